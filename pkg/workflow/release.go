package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/item"
	"github.com/entrhq/portalrunner/pkg/lander"
	"github.com/entrhq/portalrunner/pkg/modal"
	"github.com/entrhq/portalrunner/pkg/normalize"
	"github.com/entrhq/portalrunner/pkg/runner"
	"github.com/entrhq/portalrunner/pkg/scan"
)

// Release statuses.
const (
	OwnSchool       = "School is our school—skip"
	RemarkDisabled  = "Skip (remark disabled)"
	ReleaseBadDOB   = "Skipped (bad DOB)"
	AlreadyRaised   = "Already Raised"
	RequestRaised   = "Request Raised"
	UnknownResponse = "Unknown"
)

// ReleaseSelectors locate the release request form.
type ReleaseSelectors struct {
	PEN        string `yaml:"pen"`
	DOB        string `yaml:"dob"`
	GetDetails string `yaml:"get_details"`
	SchoolName string `yaml:"school_name"`
	Remark     string `yaml:"remark"`
	Generate   string `yaml:"generate"`
	Dialog     string `yaml:"dialog"`
}

// ReleaseColumns name the input and result columns.
type ReleaseColumns struct {
	PEN    string `yaml:"pen"`
	DOB    string `yaml:"dob"`
	Name   string `yaml:"name"`
	School string `yaml:"school"`
	Status string `yaml:"status"`
}

// ReleaseConfig configures release request generation.
type ReleaseConfig struct {
	Landing   []lander.Step    `yaml:"landing"`
	Ready     lander.Readiness `yaml:"ready"`
	Selectors ReleaseSelectors `yaml:"selectors"`
	Columns   ReleaseColumns   `yaml:"columns"`

	// OwnSchools are glob patterns for the school running the tool. Names
	// and patterns are compared upper-cased with spaces removed.
	OwnSchools []string `yaml:"own_schools"`

	// RemarkValue is the "Please release the student" option.
	RemarkValue string `yaml:"remark_value"`

	DetailsTimeout time.Duration `yaml:"details_timeout"`
	RemarkTimeout  time.Duration `yaml:"remark_timeout"`
	Settle         time.Duration `yaml:"settle"`
}

// DefaultReleaseConfig returns the portal's release request layout.
func DefaultReleaseConfig() ReleaseConfig {
	pen := "input[placeholder='Enter PEN']"
	return ReleaseConfig{
		Landing: releaseLanding(),
		Ready:   lander.Readiness{Wait: pen},
		Selectors: ReleaseSelectors{
			PEN:        pen,
			DOB:        "input[placeholder='DD/MM/YYYY']",
			GetDetails: "button:has-text('Get Details')",
			SchoolName: "li:has(span.title:has-text('School Name')) span.vlause",
			Remark:     "div:has(p:has-text('Select Remark')) select.form-select",
			Generate:   generateRelease,
			Dialog:     "div.swal2-popup.swal2-show",
		},
		Columns: ReleaseColumns{
			PEN:    "student_pen",
			DOB:    "TxtDateOfBirth",
			Name:   "TxtStudName",
			School: "school_name",
			Status: "release_status",
		},
		OwnSchools:     []string{"SMT. SAROJINI NAIDU GIRLS HIGH SCHOOL"},
		RemarkValue:    "1",
		DetailsTimeout: 6 * time.Second,
		RemarkTimeout:  10 * time.Second,
		Settle:         time.Second,
	}
}

// ReleaseRequests raises a release request for every student currently
// enrolled in another school.
type ReleaseRequests struct {
	cfg ReleaseConfig
	own []glob.Glob
}

// NewReleaseRequests compiles the own-school patterns.
func NewReleaseRequests(cfg ReleaseConfig) (*ReleaseRequests, error) {
	w := &ReleaseRequests{cfg: cfg}
	for _, p := range cfg.OwnSchools {
		g, err := glob.Compile(squash(p))
		if err != nil {
			return nil, fmt.Errorf("own school pattern %q: %w", p, err)
		}
		w.own = append(w.own, g)
	}
	return w, nil
}

// Name implements Workflow.
func (w *ReleaseRequests) Name() string { return Release }

// Required implements Workflow.
func (w *ReleaseRequests) Required() []string {
	return []string{w.cfg.Columns.PEN, w.cfg.Columns.DOB}
}

// IsOwnSchool reports whether name matches an own-school pattern.
func (w *ReleaseRequests) IsOwnSchool(name string) bool {
	s := squash(name)
	if s == "" {
		return false
	}
	for _, g := range w.own {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// Job implements Workflow. Rows already known to be in the own school are
// left untouched.
func (w *ReleaseRequests) Job(env Env) (runner.Job, error) {
	if err := CheckColumns(env.Input, w.Required()); err != nil {
		return runner.Job{}, err
	}
	if env.Resolver == nil {
		return runner.Job{}, errors.New("release requests need a dialog resolver")
	}
	cols := w.cfg.Columns
	env.Input.AddColumn(cols.Status)

	src := scan.NewRowSource(rowsOf(env.Input))
	src.Eligible = func(r scan.Row) bool {
		if !IsPEN(r[cols.PEN]) || w.IsOwnSchool(r[cols.School]) {
			return false
		}
		if !env.Resume {
			return true
		}
		status := strings.TrimSpace(r[cols.Status])
		return status == "" || strings.HasPrefix(status, "Error")
	}

	policy := env.DisabledControl
	if policy == "" {
		policy = DisabledSkip
	}

	return runner.Job{
		Workflow:  Release,
		Source:    func(browser.Page) scan.Source { return src },
		Operation: &releaseOp{w: w, resolver: env.Resolver, policy: policy},
		Label: func(it scan.WorkItem) string {
			return it.Field(cols.PEN)
		},
		Detail: func(out item.Outcome) string {
			return out.Values[cols.Status]
		},
	}, nil
}

type releaseOp struct {
	w        *ReleaseRequests
	resolver *modal.Resolver
	policy   string
}

func (o *releaseOp) Prepare(t *item.Task) error {
	cols := o.w.cfg.Columns
	dob, ok := normalize.Date(t.Item.Fields[cols.DOB])
	if !ok {
		t.Set(cols.Status, ReleaseBadDOB)
		return item.Skip("bad DOB")
	}
	t.Input["pen"] = t.Item.Field(cols.PEN)
	t.Input["dob"] = dob
	return nil
}

func (o *releaseOp) Open(page browser.Page, _ *item.Task) error {
	return page.WaitFor(browser.WaitOptions{Selector: o.w.cfg.Selectors.PEN, State: browser.StateVisible})
}

func (o *releaseOp) Fill(page browser.Page, t *item.Task) error {
	sel := o.w.cfg.Selectors
	if err := page.Fill(browser.FillOptions{Selector: sel.PEN, Value: t.Input["pen"]}); err != nil {
		return err
	}
	return page.Fill(browser.FillOptions{Selector: sel.DOB, Value: t.Input["dob"]})
}

func (o *releaseOp) Submit(page browser.Page, _ *item.Task) error {
	return page.Click(browser.ClickOptions{Selector: o.w.cfg.Selectors.GetDetails})
}

func (o *releaseOp) Expect() item.Expect {
	return item.Expect{
		Inline:  o.w.cfg.Selectors.SchoolName,
		Dialog:  o.w.cfg.Selectors.Dialog,
		Timeout: o.w.cfg.DetailsTimeout,
	}
}

func (o *releaseOp) Finish(page browser.Page, t *item.Task, res item.Resolution) error {
	cfg := o.w.cfg
	if !res.Inline {
		return marker(item.Resolved, dialogStatus(res.Dialog))
	}

	school, err := page.ReadText(cfg.Selectors.SchoolName)
	if err != nil {
		return err
	}
	t.Set(cfg.Columns.School, school)
	if o.w.IsOwnSchool(school) {
		t.Set(cfg.Columns.Status, OwnSchool)
		return item.Skip("own school")
	}

	page.Pause(cfg.Settle)
	err = page.SelectOption(browser.SelectOptions{
		Selector: cfg.Selectors.Remark,
		Value:    cfg.RemarkValue,
		Timeout:  cfg.RemarkTimeout,
	})
	switch {
	case errors.Is(err, browser.ErrTimeout) && o.policy == DisabledSkip:
		t.Set(cfg.Columns.Status, RemarkDisabled)
		return item.Skip("remark disabled")
	case errors.Is(err, browser.ErrTimeout):
		return marker(item.Resolved, "Remark disabled")
	case err != nil:
		return err
	}

	if err := page.Click(browser.ClickOptions{Selector: cfg.Selectors.Generate}); err != nil {
		return err
	}

	out := o.resolver.Resolve(page)
	t.Record(out)
	switch out.Kind {
	case modal.Success:
		t.Set(cfg.Columns.Status, strings.TrimSpace(RequestRaised+" "+out.Reference))
		t.Tag("raised")
		return nil
	case modal.AlreadyDone:
		t.Set(cfg.Columns.Status, AlreadyRaised)
		t.Tag("already raised")
		return nil
	default:
		return marker(item.Resolved, dialogStatus(out))
	}
}

// dialogStatus renders a non-success dialog for the status column.
func dialogStatus(out modal.Outcome) string {
	if out.Kind == modal.Error && out.Message != "" {
		return item.Truncate(out.Message, 60)
	}
	return UnknownResponse
}

func (o *releaseOp) Fail(t *item.Task, err *item.Error) {
	t.Set(o.w.cfg.Columns.Status, failValue(err, 40))
}

func (o *releaseOp) Close(page browser.Page, _ *item.Task) error {
	return dismissLeftover(page, o.w.cfg.Selectors.Dialog)
}
