package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/checkpoint"
	"github.com/entrhq/portalrunner/pkg/item"
	"github.com/entrhq/portalrunner/pkg/lander"
	"github.com/entrhq/portalrunner/pkg/runner"
	"github.com/entrhq/portalrunner/pkg/scan"
)

// Summary sheet columns written by the export.
const (
	ColClass    = "Class"
	ColSection  = "Section"
	ColSheet    = "Sheet"
	ColStudents = "Students"
	ColExport   = "Export Status"
)

// Detail sheet columns.
const (
	ColStudentName  = "Student Name"
	ColStatus       = "Status"
	ColProgressedOn = "Progressed On"
)

// Export statuses.
const (
	Exported   = "Exported"
	NoStudents = "No rows"
)

// ExportSelectors locate the pending summary and the section detail view.
type ExportSelectors struct {
	// ViewButton selects the View button inside a summary row.
	ViewButton string `yaml:"view_button"`

	// Anchor is visible once the summary table is back after GoBack.
	Anchor string `yaml:"anchor"`

	DetailTable string `yaml:"detail_table"`
	DetailRow   string `yaml:"detail_row"`
	StudentName string `yaml:"student_name"`
	Status      string `yaml:"status"`
	Progressed  string `yaml:"progressed"`
}

// ExportConfig configures the pending-section export.
type ExportConfig struct {
	Landing   []lander.Step    `yaml:"landing"`
	Ready     lander.Readiness `yaml:"ready"`
	Summary   scan.TableLayout `yaml:"summary"`
	Selectors ExportSelectors  `yaml:"selectors"`

	// SummarySheet names the first sheet of the workbook.
	SummarySheet string `yaml:"summary_sheet"`

	DetailTimeout time.Duration `yaml:"detail_timeout"`
	AnchorTimeout time.Duration `yaml:"anchor_timeout"`
	Settle        time.Duration `yaml:"settle"`
}

// DefaultExportConfig returns the Progression Activity layout.
func DefaultExportConfig() ExportConfig {
	summaryLink := "a.AnText:has-text('Progression Summary Section Wise')"
	anchor := "div.example-container table[mat-table] button.btn-primary"
	return ExportConfig{
		Landing: progressionLanding(summaryLink),
		Ready: lander.Readiness{
			Click:   summaryLink,
			Wait:    anchor,
			Timeout: 60 * time.Second,
		},
		Summary: scan.TableLayout{
			Table:        "div.example-container table[mat-table]",
			Row:          "tbody tr",
			StatusCell:   "td.cdk-column-status",
			PendingLabel: "Pending",
			KeyCells:     []string{"td.cdk-column-className", "td.cdk-column-sectionName"},
			KeyFields:    []string{ColClass, ColSection},
		},
		Selectors: ExportSelectors{
			ViewButton:  "button.btn-primary",
			Anchor:      anchor,
			DetailTable: "table.mat-mdc-table",
			DetailRow:   "tbody tr",
			StudentName: "td.cdk-column-studentName span.fw-bold",
			Status:      "td.cdk-column-status",
			Progressed:  "td.cdk-column-updateDetails span.fw-bold",
		},
		SummarySheet:  "Summary",
		DetailTimeout: 60 * time.Second,
		AnchorTimeout: 60 * time.Second,
		Settle:        5 * time.Second,
	}
}

// PendingExport copies the student list of every pending class/section
// into its own sheet.
type PendingExport struct {
	cfg ExportConfig
}

// NewPendingExport creates the workflow.
func NewPendingExport(cfg ExportConfig) *PendingExport {
	return &PendingExport{cfg: cfg}
}

// Name implements Workflow.
func (w *PendingExport) Name() string { return Export }

// Required implements Workflow. The export reads no input.
func (w *PendingExport) Required() []string { return nil }

// SummaryColumns are the columns of the summary sheet.
func SummaryColumns() []string {
	return []string{ColClass, ColSection, ColSheet, ColStudents, ColExport}
}

// Job implements Workflow.
func (w *PendingExport) Job(env Env) (runner.Job, error) {
	if env.Store == nil {
		return runner.Job{}, errors.New("pending export needs a checkpoint store")
	}
	for _, c := range SummaryColumns() {
		env.Input.AddColumn(c)
	}

	return runner.Job{
		Workflow: Export,
		Source: func(page browser.Page) scan.Source {
			return scan.NewTableScanner(page, w.cfg.Summary)
		},
		Operation: &exportOp{cfg: w.cfg, store: env.Store},
		Label: func(it scan.WorkItem) string {
			return checkpoint.SheetName(it.Field(ColClass), it.Field(ColSection))
		},
		Detail: func(out item.Outcome) string {
			if out.Status == scan.Done {
				return out.Values[ColStudents] + " students"
			}
			return out.Reason
		},
	}, nil
}

type exportOp struct {
	cfg   ExportConfig
	store *checkpoint.Store
}

func (o *exportOp) Prepare(t *item.Task) error {
	class, section := t.Item.Field(ColClass), t.Item.Field(ColSection)
	if class == "" {
		return item.Invalid("no class")
	}
	t.Input["class"] = class
	t.Input["section"] = section
	t.Input["sheet"] = checkpoint.SheetName(class, section)

	t.Set(ColClass, class)
	t.Set(ColSection, section)
	t.Set(ColSheet, t.Input["sheet"])
	return nil
}

// Open clicks the row's View button. The summary table re-renders after
// every GoBack, so the row is found again by exact key before the click.
func (o *exportOp) Open(page browser.Page, t *item.Task) error {
	layout := o.cfg.Summary
	html, err := page.ReadHTML(layout.Table)
	if err != nil {
		return err
	}
	n, err := scan.LocateRow(html, layout, t.Item.Key)
	if err != nil {
		return err
	}
	if err := page.Click(browser.ClickOptions{Selector: scan.RowSelector(layout, n, o.cfg.Selectors.ViewButton)}); err != nil {
		return err
	}
	t.Input["opened"] = "yes"
	return nil
}

func (o *exportOp) Fill(browser.Page, *item.Task) error   { return nil }
func (o *exportOp) Submit(browser.Page, *item.Task) error { return nil }

func (o *exportOp) Expect() item.Expect {
	return item.Expect{
		Inline:  o.cfg.Selectors.DetailTable,
		Timeout: o.cfg.DetailTimeout,
	}
}

func (o *exportOp) Finish(page browser.Page, t *item.Task, _ item.Resolution) error {
	page.Pause(o.cfg.Settle)

	html, err := page.ReadHTML(o.cfg.Selectors.DetailTable)
	if err != nil {
		return err
	}
	students, err := ParseDetail(html, o.cfg.Selectors)
	if err != nil {
		return err
	}

	t.Set(ColStudents, strconv.Itoa(students.Len()))
	if students.Len() == 0 {
		t.Set(ColExport, NoStudents)
		return item.Skip("no students")
	}
	o.store.Attach(t.Input["sheet"], students)
	t.Set(ColExport, Exported)
	t.Tag("exported")
	return nil
}

func (o *exportOp) Fail(t *item.Task, err *item.Error) {
	t.Set(ColExport, failValue(err, 40))
}

// Close goes back to the summary table if the detail view was opened.
func (o *exportOp) Close(page browser.Page, t *item.Task) error {
	if t.Input["opened"] == "" {
		return nil
	}
	if err := page.GoBack(); err != nil {
		return err
	}
	return page.WaitFor(browser.WaitOptions{
		Selector: o.cfg.Selectors.Anchor,
		State:    browser.StateVisible,
		Timeout:  o.cfg.AnchorTimeout,
	})
}

// ParseDetail reads the student rows of a section detail table. Rows
// missing any of the three cells are skipped.
func ParseDetail(html string, sel ExportSelectors) (*checkpoint.Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail table: %w", err)
	}

	tbl := checkpoint.NewTable(ColStudentName, ColStatus, ColProgressedOn)
	doc.Find(sel.DetailRow).Each(func(_ int, row *goquery.Selection) {
		name := row.Find(sel.StudentName).First()
		status := row.Find(sel.Status).First()
		progressed := row.Find(sel.Progressed).First()
		if name.Length() == 0 || status.Length() == 0 || progressed.Length() == 0 {
			return
		}
		tbl.Append(map[string]string{
			ColStudentName:  strings.TrimSpace(name.Text()),
			ColStatus:       strings.TrimSpace(status.Text()),
			ColProgressedOn: strings.TrimSpace(progressed.Text()),
		})
	})
	return tbl, nil
}
