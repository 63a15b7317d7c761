package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/portalrunner/pkg/browser/browsertest"
	"github.com/entrhq/portalrunner/pkg/item"
	"github.com/entrhq/portalrunner/pkg/modal"
	"github.com/entrhq/portalrunner/pkg/scan"
)

var penColumns = []string{"aadharId", "TxtDateOfBirth", "TxtStudName"}

// penPage answers searches for 123456789012 with PEN001 and everything else
// with the portal's error popup.
func penPage(cfg PENConfig) *browsertest.Page {
	sel := cfg.Selectors
	page := browsertest.NewPage()
	page.Show(sel.Open, sel.Aadhaar)
	page.On("click", sel.Search, func(p *browsertest.Page) error {
		if p.Filled[sel.Aadhaar] == "123456789012" {
			p.Show(sel.ResultPEN)
			p.Texts[sel.ResultPEN] = " PEN001 "
			p.Texts[sel.ResultDOB] = "16/08/2005"
			return nil
		}
		showDialog(p, modal.DefaultConfig().ErrorTitle, "Invalid Aadhaar or Year of Birth")
		return nil
	})
	page.On("press", "body Escape", func(p *browsertest.Page) error {
		p.Hide(sel.ResultPEN)
		return nil
	})
	return page
}

func TestPENLookup(t *testing.T) {
	cfg := DefaultPENConfig()
	tbl := table(penColumns,
		[]string{"1234 5678 9012", "2005-08-16", "Asha"},
		[]string{"234567890123", "not a date", "Bina"},
		[]string{"0", "2006", "Chitra"},
		[]string{"345678901234", "2006", "Devi"},
	)
	env, _ := newEnv(t, tbl)

	job, err := NewPENLookup(cfg).Job(env)
	require.NoError(t, err)
	page := penPage(cfg)

	outs := drive(t, job, env, page)
	require.Len(t, outs, 3, "row without Aadhaar is not eligible")

	assert.Equal(t, scan.Done, outs[0].Status)
	assert.Equal(t, "PEN001", tbl.Get(0, "student_pen"))
	assert.Equal(t, "16/08/2005", tbl.Get(0, "TxtDateOfBirth"), "portal DOB overwrites the input")
	assert.Equal(t, "PEN PEN001", job.Detail(outs[0]))

	assert.Equal(t, item.Failed, outs[1].State)
	assert.Equal(t, BadDOB, tbl.Get(1, "student_pen"))

	assert.Empty(t, tbl.Get(2, "student_pen"))

	assert.Equal(t, scan.Failed, outs[2].Status)
	assert.Equal(t, WrongAadhaar, tbl.Get(3, "student_pen"))
	assert.Equal(t, "345678901234", page.Filled[cfg.Selectors.Aadhaar])
	assert.Equal(t, "2006", page.Filled[cfg.Selectors.YearOfBirth])
	require.Len(t, outs[2].Dialogs, 1)
	assert.Equal(t, modal.Error, outs[2].Dialogs[0].Kind)

	assert.Equal(t, 2, page.Called("press body Escape"), "each searched item is closed")
}

func TestPENLookup_BadDOBTouchesNothing(t *testing.T) {
	cfg := DefaultPENConfig()
	tbl := table(penColumns, []string{"234567890123", "31/02/2005", "Bina"})
	env, _ := newEnv(t, tbl)

	job, err := NewPENLookup(cfg).Job(env)
	require.NoError(t, err)
	page := browsertest.NewPage()

	outs := drive(t, job, env, page)
	require.Len(t, outs, 1)
	assert.Equal(t, "Bad DOB", tbl.Get(0, "student_pen"))
	assert.Empty(t, page.Calls)
}

func TestPENLookup_Resume(t *testing.T) {
	cfg := DefaultPENConfig()
	tbl := table(append(penColumns, "student_pen"),
		[]string{"123456789012", "2005", "Asha", "PEN001"},
		[]string{"123456789012", "2005", "Bina", "Error: timeout"},
		[]string{"123456789012", "2005", "Chitra", WrongAadhaar},
	)
	env, _ := newEnv(t, tbl)
	env.Resume = true

	job, err := NewPENLookup(cfg).Job(env)
	require.NoError(t, err)

	outs := drive(t, job, env, penPage(cfg))
	require.Len(t, outs, 2)
	assert.Equal(t, 1, outs[0].Row)
	assert.Equal(t, 2, outs[1].Row)
}

func TestPENLookup_ResultTimeout(t *testing.T) {
	cfg := DefaultPENConfig()
	cfg.ResultTimeout = time.Second
	tbl := table(penColumns, []string{"123456789012", "2005", "Asha"})
	env, _ := newEnv(t, tbl)

	job, err := NewPENLookup(cfg).Job(env)
	require.NoError(t, err)
	page := browsertest.NewPage()
	page.Show(cfg.Selectors.Open, cfg.Selectors.Aadhaar)

	outs := drive(t, job, env, page)
	require.Len(t, outs, 1)
	assert.Equal(t, item.Submitted, outs[0].Err.(*item.Error).State)
	assert.Equal(t, "Error: timeout", tbl.Get(0, "student_pen"))
	assert.Equal(t, 1, page.Called("press body Escape"))
}

func TestPENLookup_MissingColumns(t *testing.T) {
	env, _ := newEnv(t, table([]string{"TxtStudName"}))
	_, err := NewPENLookup(DefaultPENConfig()).Job(env)
	assert.ErrorContains(t, err, "aadharId, TxtDateOfBirth")
}

func TestIsPEN(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"2139867401", true},
		{" PEN001 ", true},
		{"", false},
		{WrongAadhaar, false},
		{BadDOB, false},
		{NoAadhaar, false},
		{"Error: timeout", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPEN(tt.value), tt.value)
	}
}

func TestPENLookup_ZeroAadhaarNotEligible(t *testing.T) {
	cfg := DefaultPENConfig()
	tbl := table(penColumns,
		[]string{"000000000000", "2005", "Asha"},
		[]string{"0", "2005", "Bina"},
		[]string{"0.0", "2005", "Chitra"},
		[]string{"  ", "2005", "Devi"},
	)
	env, _ := newEnv(t, tbl)

	job, err := NewPENLookup(cfg).Job(env)
	require.NoError(t, err)
	page := browsertest.NewPage()

	outs := drive(t, job, env, page)
	assert.Empty(t, outs)
	assert.Empty(t, page.Calls)
}

func TestMissingAadhaar(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"0", true},
		{"000000000000", true},
		{"000123456789", false},
		{"123456789012", false},
		{"12AB", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, missingAadhaar(tt.value), tt.value)
	}
}
