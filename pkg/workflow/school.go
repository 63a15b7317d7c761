package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/item"
	"github.com/entrhq/portalrunner/pkg/lander"
	"github.com/entrhq/portalrunner/pkg/logging"
	"github.com/entrhq/portalrunner/pkg/modal"
	"github.com/entrhq/portalrunner/pkg/normalize"
	"github.com/entrhq/portalrunner/pkg/runner"
	"github.com/entrhq/portalrunner/pkg/scan"
)

// School lookup markers.
const (
	NotFound      = "Not Found"
	DOBParseFail  = "DOB Parse Fail"
	NoSchool      = "Skipped (no school)"
	SkippedDOB    = "Skipped (DOB)"
	NoSection     = "Skipped (no section)"
	TaggedNoOp    = "No Import (tagged)"
	importFailure = "Import FAIL: "
)

// SchoolSelectors locate the Import Module search box and import panel.
type SchoolSelectors struct {
	// Search matches both search inputs: PEN is the first, DOB the second.
	Search        string `yaml:"search"`
	Go            string `yaml:"go"`
	SchoolName    string `yaml:"school_name"`
	ImportSection string `yaml:"import_section"`
	ImportDate    string `yaml:"import_date"`
	ImportButton  string `yaml:"import_button"`
	Dialog        string `yaml:"dialog"`
}

// SchoolColumns name the input and result columns.
type SchoolColumns struct {
	PEN        string `yaml:"pen"`
	DOB        string `yaml:"dob"`
	Name       string `yaml:"name"`
	Section    string `yaml:"section"`
	Admission  string `yaml:"admission"`
	School     string `yaml:"school"`
	PrevSchool string `yaml:"prev_school"`
	Import     string `yaml:"import"`
}

// SchoolConfig configures the school lookup.
type SchoolConfig struct {
	Landing   []lander.Step    `yaml:"landing"`
	Ready     lander.Readiness `yaml:"ready"`
	Selectors SchoolSelectors  `yaml:"selectors"`
	Columns   SchoolColumns    `yaml:"columns"`

	// Untagged is the current-school value that triggers an import.
	Untagged string `yaml:"untagged"`

	// Sections maps a section letter to the import dropdown value.
	Sections map[string]string `yaml:"sections"`

	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
	ResultTimeout  time.Duration `yaml:"result_timeout"`
	ImportTimeout  time.Duration `yaml:"import_timeout"`
	Settle         time.Duration `yaml:"settle"`
}

// DefaultSchoolConfig returns the portal's Import Module layout.
func DefaultSchoolConfig() SchoolConfig {
	search := "ul.SerachBoxus input.mat-mdc-input-element"
	return SchoolConfig{
		Landing: importModuleLanding(),
		Ready:   lander.Readiness{Wait: search},
		Selectors: SchoolSelectors{
			Search:        search,
			Go:            "ul.SerachBoxus button:has-text('Go')",
			SchoolName:    "li:has(> span.titleUser:has-text('School Name')) span.userValue",
			ImportSection: "ul.existingSchool1 li:has(label:has-text('Import Section')) select",
			ImportDate:    "ul.existingSchool1 li:has(label:has-text('Date of Admission')) input",
			ImportButton:  "ul.existingSchool1 button:has-text('IMPORT')",
			Dialog:        "div.swal2-popup.swal2-show",
		},
		Columns: SchoolColumns{
			PEN:        "student_pen",
			DOB:        "TxtDateOfBirth",
			Name:       "TxtStudName",
			Section:    "ddlSection",
			Admission:  "TxtDateOfAddmission",
			School:     "school_name",
			PrevSchool: "prev_school_name",
			Import:     "import_status",
		},
		Untagged:       "UN-TAGGED",
		Sections:       map[string]string{"A": "1", "B": "2"},
		RefreshTimeout: 15 * time.Second,
		ResultTimeout:  10 * time.Second,
		ImportTimeout:  5 * time.Second,
		Settle:         500 * time.Millisecond,
	}
}

// SchoolLookup reads each student's current and previous school by PEN,
// importing students that are not tagged to any school.
type SchoolLookup struct {
	cfg SchoolConfig
}

// NewSchoolLookup creates the workflow.
func NewSchoolLookup(cfg SchoolConfig) *SchoolLookup {
	return &SchoolLookup{cfg: cfg}
}

// Name implements Workflow.
func (w *SchoolLookup) Name() string { return School }

// Required implements Workflow.
func (w *SchoolLookup) Required() []string {
	return []string{w.cfg.Columns.PEN, w.cfg.Columns.DOB}
}

// Job implements Workflow.
func (w *SchoolLookup) Job(env Env) (runner.Job, error) {
	if err := CheckColumns(env.Input, w.Required()); err != nil {
		return runner.Job{}, err
	}
	if env.Resolver == nil {
		return runner.Job{}, errors.New("school lookup needs a dialog resolver")
	}
	cols := w.cfg.Columns
	for _, c := range []string{cols.School, cols.Import} {
		env.Input.AddColumn(c)
	}

	src := scan.NewRowSource(rowsOf(env.Input))
	src.Eligible = func(r scan.Row) bool {
		if !IsPEN(r[cols.PEN]) {
			return false
		}
		return !env.Resume || strings.TrimSpace(r[cols.Import]) == ""
	}

	logger := env.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return runner.Job{
		Workflow:  School,
		Source:    func(browser.Page) scan.Source { return src },
		Operation: &schoolOp{cfg: w.cfg, resolver: env.Resolver, logger: logger},
		Label: func(it scan.WorkItem) string {
			if name := it.Field(cols.Name); name != "" {
				return fmt.Sprintf("%s (PEN %s)", name, it.Field(cols.PEN))
			}
			return it.Field(cols.PEN)
		},
		Detail: func(out item.Outcome) string {
			school := out.Values[cols.School]
			if status := out.Values[cols.Import]; status != "" {
				return school + " · " + status
			}
			return school
		},
	}, nil
}

type schoolOp struct {
	cfg      SchoolConfig
	resolver *modal.Resolver
	logger   *logging.Logger
}

func (o *schoolOp) Prepare(t *item.Task) error {
	cols := o.cfg.Columns
	dob, ok := normalize.Date(t.Item.Fields[cols.DOB])
	if !ok {
		t.Set(cols.School, DOBParseFail)
		t.Set(cols.Import, SkippedDOB)
		return item.Skip("bad DOB")
	}
	t.Input["pen"] = t.Item.Field(cols.PEN)
	t.Input["dob"] = dob
	t.Input["name"] = t.Item.Field(cols.Name)
	return nil
}

func (o *schoolOp) Open(page browser.Page, _ *item.Task) error {
	return page.WaitFor(browser.WaitOptions{Selector: o.cfg.Selectors.Go, State: browser.StateVisible})
}

func (o *schoolOp) Fill(page browser.Page, t *item.Task) error {
	sel := o.cfg.Selectors.Search
	if err := page.Fill(browser.FillOptions{Selector: sel, Nth: browser.Index(0), Value: t.Input["pen"]}); err != nil {
		return err
	}
	return page.Fill(browser.FillOptions{Selector: sel, Nth: browser.Index(1), Value: t.Input["dob"]})
}

// Submit searches and waits for the page to show the requested student.
// The refresh wait is best effort; the school name wait decides.
func (o *schoolOp) Submit(page browser.Page, t *item.Task) error {
	if err := page.Click(browser.ClickOptions{Selector: o.cfg.Selectors.Go}); err != nil {
		return err
	}
	if err := page.WaitForText([]string{t.Input["pen"], t.Input["name"]}, o.cfg.RefreshTimeout); err != nil {
		o.logger.Debugf("student %s did not refresh: %v", t.Input["pen"], err)
	}
	page.Pause(o.cfg.Settle)
	return nil
}

func (o *schoolOp) Expect() item.Expect {
	return item.Expect{
		Inline:  o.cfg.Selectors.SchoolName,
		Dialog:  o.cfg.Selectors.Dialog,
		Timeout: o.cfg.ResultTimeout,
	}
}

func (o *schoolOp) Finish(page browser.Page, t *item.Task, res item.Resolution) error {
	cols := o.cfg.Columns
	if !res.Inline {
		return marker(item.Resolved, NotFound)
	}

	schools, err := page.ListElements(o.cfg.Selectors.SchoolName)
	if err != nil {
		return err
	}
	if len(schools) == 0 {
		return marker(item.Resolved, NotFound)
	}
	current := strings.TrimSpace(schools[0].Text)
	t.Set(cols.School, current)
	if len(schools) > 1 {
		if prev := strings.TrimSpace(schools[1].Text); prev != "" {
			t.Set(cols.PrevSchool, prev)
		}
	}

	if squash(current) != squash(o.cfg.Untagged) {
		t.Set(cols.Import, TaggedNoOp)
		return nil
	}
	return o.importStudent(page, t)
}

// importStudent tags an UN-TAGGED student to this school.
func (o *schoolOp) importStudent(page browser.Page, t *item.Task) error {
	cols := o.cfg.Columns
	sel := o.cfg.Selectors

	letter, code, ok := normalize.SectionCode(t.Item.Fields[cols.Section], o.cfg.Sections)
	if !ok {
		t.Set(cols.Import, NoSection)
		return item.Skip("no section")
	}
	admitted, ok := normalize.Date(t.Item.Fields[cols.Admission])
	if !ok {
		admitted = t.Input["dob"]
	}

	fail := func(cause string) error {
		status := importFailure + cause
		t.Set(cols.Import, status)
		return marker(item.Resolved, status)
	}

	if err := page.SelectOption(browser.SelectOptions{Selector: sel.ImportSection, Value: code, Timeout: o.cfg.ImportTimeout}); err != nil {
		return fail(err.Error())
	}
	if err := page.Fill(browser.FillOptions{Selector: sel.ImportDate, Value: admitted}); err != nil {
		return fail(err.Error())
	}
	if err := page.Click(browser.ClickOptions{Selector: sel.ImportButton}); err != nil {
		return fail(err.Error())
	}

	out := o.resolver.ResolveConfirm(page)
	t.Record(out)
	switch out.Kind {
	case modal.Success:
	case modal.NoDialog:
		if out.Confirmed {
			o.logger.Warnf("import of %s: no result dialog after confirming", t.Input["pen"])
		} else {
			o.logger.Warnf("import of %s: confirmation dialog not detected", t.Input["pen"])
		}
	default:
		return fail(out.Message)
	}
	t.Set(cols.Import, fmt.Sprintf("Imported (%s/%s)", letter, admitted))
	t.Tag("imported")
	return nil
}

func (o *schoolOp) Fail(t *item.Task, err *item.Error) {
	cols := o.cfg.Columns
	switch {
	case strings.HasPrefix(err.Reason, importFailure):
		t.Set(cols.Import, err.Reason)
	case err.Reason == NotFound, err.State == item.Submitted && errors.Is(err, item.ErrTimeout):
		t.Set(cols.School, NotFound)
		t.Set(cols.Import, NoSchool)
	default:
		v := failValue(err, 30)
		t.Set(cols.School, v)
		t.Set(cols.Import, v)
	}
}

// Close dismisses a dialog left open by a failed lookup. The search box
// stays on the page between students.
func (o *schoolOp) Close(page browser.Page, _ *item.Task) error {
	return dismissLeftover(page, o.cfg.Selectors.Dialog)
}
