package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/browser/browsertest"
	"github.com/entrhq/portalrunner/pkg/modal"
	"github.com/entrhq/portalrunner/pkg/scan"
)

var releaseColumns = []string{"student_pen", "TxtDateOfBirth", "school_name"}

func releasePage(cfg ReleaseConfig) *browsertest.Page {
	sel := cfg.Selectors
	mcfg := modal.DefaultConfig()
	remark := "select " + sel.Remark

	page := browsertest.NewPage()
	page.Show(sel.PEN)
	page.On("click", sel.GetDetails, func(p *browsertest.Page) error {
		p.Show(sel.SchoolName)
		delete(p.Errors, remark)
		switch p.Filled[sel.PEN] {
		case "PEN003":
			p.Texts[sel.SchoolName] = "Smt. Sarojini Naidu Girls High School"
		case "PEN004":
			p.Texts[sel.SchoolName] = "GOVT HIGH SCHOOL"
			p.Errors[remark] = fmt.Errorf("select remark: %w", browser.ErrTimeout)
		default:
			p.Texts[sel.SchoolName] = "GOVT HIGH SCHOOL"
		}
		return nil
	})
	page.On("click", sel.Generate, func(p *browsertest.Page) error {
		switch p.Filled[sel.PEN] {
		case "PEN001":
			showDialog(p, mcfg.SuccessTitle, "Release request generated. Request No: RR-2025-0042")
		case "PEN005":
			showDialog(p, mcfg.ErrorTitle, "Request is already pending for this student")
		default:
			showDialog(p, mcfg.ErrorTitle, "Student cannot be released because the academic session for the school has been locked")
		}
		return nil
	})
	return page
}

func TestReleaseRequests(t *testing.T) {
	cfg := DefaultReleaseConfig()
	tbl := table(releaseColumns,
		[]string{"PEN001", "16/08/2005", "GOVT HIGH SCHOOL"},
		[]string{"PEN002", "16/08/2005", "SMT. SAROJINI NAIDU GIRLS HIGH SCHOOL"},
		[]string{"PEN003", "16/08/2005", ""},
		[]string{"PEN004", "16/08/2005", ""},
		[]string{"PEN005", "16/08/2005", ""},
		[]string{"PEN006", "", ""},
		[]string{"PEN007", "38579", ""},
	)
	env, _ := newEnv(t, tbl)

	w, err := NewReleaseRequests(cfg)
	require.NoError(t, err)
	job, err := w.Job(env)
	require.NoError(t, err)
	page := releasePage(cfg)

	outs := drive(t, job, env, page)
	require.Len(t, outs, 6, "own-school rows are filtered before processing")

	assert.Equal(t, "Request Raised RR-2025-0042", tbl.Get(0, "release_status"))
	assert.Equal(t, []string{"raised"}, outs[0].Tags)
	assert.Equal(t, "1", page.Selected[cfg.Selectors.Remark])

	assert.Empty(t, tbl.Get(1, "release_status"))

	assert.Equal(t, scan.Skipped, outs[1].Status)
	assert.Equal(t, OwnSchool, tbl.Get(2, "release_status"))

	assert.Equal(t, scan.Skipped, outs[2].Status)
	assert.Equal(t, RemarkDisabled, tbl.Get(3, "release_status"))

	assert.Equal(t, scan.Done, outs[3].Status)
	assert.Equal(t, AlreadyRaised, tbl.Get(4, "release_status"))

	assert.Equal(t, ReleaseBadDOB, tbl.Get(5, "release_status"))

	assert.Equal(t, scan.Failed, outs[5].Status)
	assert.Equal(t, "Student cannot be released because the academic session for ", tbl.Get(6, "release_status"))
	assert.Equal(t, "15/08/2005", page.Filled[cfg.Selectors.DOB], "Excel serial DOB is normalized")

	assert.Equal(t, 3, page.Called("click "+cfg.Selectors.Generate))
}

func TestReleaseRequests_DisabledRemarkFails(t *testing.T) {
	cfg := DefaultReleaseConfig()
	tbl := table(releaseColumns, []string{"PEN004", "16/08/2005", ""})
	env, _ := newEnv(t, tbl)
	env.DisabledControl = DisabledFail

	w, err := NewReleaseRequests(cfg)
	require.NoError(t, err)
	job, err := w.Job(env)
	require.NoError(t, err)

	outs := drive(t, job, env, releasePage(cfg))
	require.Len(t, outs, 1)
	assert.Equal(t, scan.Failed, outs[0].Status)
	assert.Equal(t, "Remark disabled", tbl.Get(0, "release_status"))
}

func TestReleaseRequests_OwnSchoolPatterns(t *testing.T) {
	cfg := DefaultReleaseConfig()
	cfg.OwnSchools = append(cfg.OwnSchools, "*SAROJINI*ANNEX*")
	w, err := NewReleaseRequests(cfg)
	require.NoError(t, err)

	tests := []struct {
		name string
		want bool
	}{
		{"SMT. SAROJINI NAIDU GIRLS HIGH SCHOOL", true},
		{"smt.sarojini naidu girls high school", true},
		{"Sarojini Naidu Annex", true},
		{"GOVT HIGH SCHOOL", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.IsOwnSchool(tt.name), tt.name)
	}
}

func TestReleaseRequests_Resume(t *testing.T) {
	cfg := DefaultReleaseConfig()
	tbl := table(append(releaseColumns, "release_status"),
		[]string{"PEN001", "16/08/2005", "", "Request Raised RR-1"},
		[]string{"PEN001", "16/08/2005", "", "Error: timeout"},
		[]string{"PEN001", "16/08/2005", "", ""},
	)
	env, _ := newEnv(t, tbl)
	env.Resume = true

	w, err := NewReleaseRequests(cfg)
	require.NoError(t, err)
	job, err := w.Job(env)
	require.NoError(t, err)

	outs := drive(t, job, env, releasePage(cfg))
	require.Len(t, outs, 2)
	assert.Equal(t, 1, outs[0].Row)
	assert.Equal(t, 2, outs[1].Row)
}
