package workflow

import (
	"strings"
	"time"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/item"
	"github.com/entrhq/portalrunner/pkg/lander"
	"github.com/entrhq/portalrunner/pkg/normalize"
	"github.com/entrhq/portalrunner/pkg/runner"
	"github.com/entrhq/portalrunner/pkg/scan"
)

// PEN status markers.
const (
	WrongAadhaar = "Wrong Aadhaar/YOB"
	BadDOB       = "Bad DOB"
	BadAadhaar   = "Bad Aadhaar"
	NoAadhaar    = "No Aadhaar"
)

// PENSelectors locate the "Get PEN & DOB" form.
type PENSelectors struct {
	Open        string `yaml:"open"`
	Aadhaar     string `yaml:"aadhaar"`
	YearOfBirth string `yaml:"year_of_birth"`
	Search      string `yaml:"search"`
	ResultPEN   string `yaml:"result_pen"`
	ResultDOB   string `yaml:"result_dob"`
	Dialog      string `yaml:"dialog"`
}

// PENColumns name the input and result columns.
type PENColumns struct {
	Aadhaar string `yaml:"aadhaar"`
	DOB     string `yaml:"dob"`
	Name    string `yaml:"name"`
	PEN     string `yaml:"pen"`
}

// PENConfig configures the PEN lookup.
type PENConfig struct {
	Landing   []lander.Step    `yaml:"landing"`
	Ready     lander.Readiness `yaml:"ready"`
	Selectors PENSelectors     `yaml:"selectors"`
	Columns   PENColumns       `yaml:"columns"`

	FormTimeout   time.Duration `yaml:"form_timeout"`
	ResultTimeout time.Duration `yaml:"result_timeout"`
	AnchorTimeout time.Duration `yaml:"anchor_timeout"`
}

// DefaultPENConfig returns the portal's Import Module layout.
func DefaultPENConfig() PENConfig {
	open := "a:has-text('Get PEN & DOB')"
	return PENConfig{
		Landing: importModuleLanding(),
		Ready:   lander.Readiness{Wait: open},
		Selectors: PENSelectors{
			Open:        open,
			Aadhaar:     "input[name='aadhaar']",
			YearOfBirth: "input[name='dob']",
			Search:      "button:has-text('Search')",
			ResultPEN:   "table.table tbody tr td:nth-child(1)",
			ResultDOB:   "table.table tbody tr td:nth-child(2)",
			Dialog:      "div.swal2-popup.swal2-show",
		},
		Columns: PENColumns{
			Aadhaar: "aadharId",
			DOB:     "TxtDateOfBirth",
			Name:    "TxtStudName",
			PEN:     "student_pen",
		},
		FormTimeout:   5 * time.Second,
		ResultTimeout: 8 * time.Second,
		AnchorTimeout: 4 * time.Second,
	}
}

// PENLookup fetches each student's PEN and portal date of birth from
// Aadhaar and year of birth.
type PENLookup struct {
	cfg PENConfig
}

// NewPENLookup creates the workflow.
func NewPENLookup(cfg PENConfig) *PENLookup {
	return &PENLookup{cfg: cfg}
}

// Name implements Workflow.
func (w *PENLookup) Name() string { return PEN }

// Required implements Workflow.
func (w *PENLookup) Required() []string {
	return []string{w.cfg.Columns.Aadhaar, w.cfg.Columns.DOB}
}

// Job implements Workflow.
func (w *PENLookup) Job(env Env) (runner.Job, error) {
	if err := CheckColumns(env.Input, w.Required()); err != nil {
		return runner.Job{}, err
	}
	cols := w.cfg.Columns
	env.Input.AddColumn(cols.PEN)

	src := scan.NewRowSource(rowsOf(env.Input))
	src.Eligible = func(r scan.Row) bool {
		if missingAadhaar(r[cols.Aadhaar]) {
			return false
		}
		return !env.Resume || !IsPEN(r[cols.PEN])
	}

	return runner.Job{
		Workflow:  PEN,
		Source:    func(browser.Page) scan.Source { return src },
		Operation: &penOp{cfg: w.cfg},
		Label: func(it scan.WorkItem) string {
			return it.Field(cols.Name)
		},
		Detail: func(out item.Outcome) string {
			if out.Status == scan.Done {
				return "PEN " + out.Values[cols.PEN]
			}
			return out.Reason
		},
	}, nil
}

// IsPEN reports whether a result cell holds a PEN rather than a marker.
func IsPEN(v string) bool {
	v = strings.TrimSpace(v)
	switch v {
	case "", WrongAadhaar, BadDOB, BadAadhaar, NoAadhaar:
		return false
	}
	return !strings.HasPrefix(v, "Error")
}

// missingAadhaar reports an empty cell or a zero placeholder such as "0"
// or "000000000000".
func missingAadhaar(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	id, ok := normalize.Identifier(v, 12)
	return ok && strings.Trim(id, "0") == ""
}

type penOp struct {
	cfg PENConfig
}

func (o *penOp) Prepare(t *item.Task) error {
	raw := t.Item.Fields[o.cfg.Columns.Aadhaar]
	if missingAadhaar(raw) {
		return item.Invalid(NoAadhaar)
	}
	aadhaar, ok := normalize.Identifier(raw, 12)
	if !ok {
		return item.Invalid(BadAadhaar)
	}
	yob, ok := normalize.Year(t.Item.Fields[o.cfg.Columns.DOB])
	if !ok {
		return item.Invalid(BadDOB)
	}
	t.Input["aadhaar"] = aadhaar
	t.Input["yob"] = yob
	return nil
}

func (o *penOp) Open(page browser.Page, _ *item.Task) error {
	sel := o.cfg.Selectors
	if err := page.Click(browser.ClickOptions{Selector: sel.Open}); err != nil {
		return err
	}
	return page.WaitFor(browser.WaitOptions{Selector: sel.Aadhaar, State: browser.StateVisible, Timeout: o.cfg.FormTimeout})
}

func (o *penOp) Fill(page browser.Page, t *item.Task) error {
	sel := o.cfg.Selectors
	if err := page.Fill(browser.FillOptions{Selector: sel.Aadhaar, Value: t.Input["aadhaar"]}); err != nil {
		return err
	}
	return page.Fill(browser.FillOptions{Selector: sel.YearOfBirth, Value: t.Input["yob"]})
}

func (o *penOp) Submit(page browser.Page, _ *item.Task) error {
	return page.Click(browser.ClickOptions{Selector: o.cfg.Selectors.Search})
}

func (o *penOp) Expect() item.Expect {
	return item.Expect{
		Inline:  o.cfg.Selectors.ResultPEN,
		Dialog:  o.cfg.Selectors.Dialog,
		Timeout: o.cfg.ResultTimeout,
	}
}

func (o *penOp) Finish(page browser.Page, t *item.Task, res item.Resolution) error {
	if !res.Inline {
		return marker(item.Resolved, WrongAadhaar)
	}

	pen, err := page.ReadText(o.cfg.Selectors.ResultPEN)
	if err != nil {
		return err
	}
	t.Set(o.cfg.Columns.PEN, pen)

	if dob, err := page.ReadText(o.cfg.Selectors.ResultDOB); err == nil && dob != "" {
		t.Set(o.cfg.Columns.DOB, dob)
	}
	return nil
}

func (o *penOp) Fail(t *item.Task, err *item.Error) {
	t.Set(o.cfg.Columns.PEN, failValue(err, 30))
}

// Close dismisses the lookup modal and waits for the form's opener.
func (o *penOp) Close(page browser.Page, _ *item.Task) error {
	if err := page.Press("body", "Escape"); err != nil {
		return err
	}
	return page.WaitFor(browser.WaitOptions{
		Selector: o.cfg.Selectors.Open,
		State:    browser.StateVisible,
		Timeout:  o.cfg.AnchorTimeout,
	})
}
