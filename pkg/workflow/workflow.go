// Package workflow implements the portal operations: PEN lookup, school
// lookup with import, release requests and the pending-section export.
//
// Each workflow turns its input table into a scan.Source, supplies the
// item.Operation that drives one item through the portal, and names the
// result columns it writes.
package workflow

import (
	"fmt"
	"strings"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/checkpoint"
	"github.com/entrhq/portalrunner/pkg/item"
	"github.com/entrhq/portalrunner/pkg/logging"
	"github.com/entrhq/portalrunner/pkg/modal"
	"github.com/entrhq/portalrunner/pkg/runner"
	"github.com/entrhq/portalrunner/pkg/scan"
)

// Names of the workflows.
const (
	PEN     = "pen"
	School  = "school"
	Release = "release"
	Export  = "export-pending"
)

// Names lists every workflow.
var Names = []string{PEN, School, Release, Export}

// Disabled-control policies.
const (
	DisabledSkip = "skip"
	DisabledFail = "fail"
)

// Env is what a workflow gets from the run.
type Env struct {
	// Input is the loaded input table; the result columns are added to it.
	// Export has no input and gets an empty summary table instead.
	Input *checkpoint.Table

	Store    *checkpoint.Store
	Resolver *modal.Resolver
	Logger   *logging.Logger

	// Resume skips rows whose result column already holds a success.
	Resume bool

	// DisabledControl is the policy for a form control that never enables.
	DisabledControl string
}

// Workflow builds the job for one run.
type Workflow interface {
	Name() string

	// Required lists the input columns that must exist.
	Required() []string

	// Job adds the result columns to env.Input and returns the run's job.
	Job(env Env) (runner.Job, error)
}

// CheckColumns returns an error naming every required column missing
// from tbl.
func CheckColumns(tbl *checkpoint.Table, required []string) error {
	var missing []string
	for _, c := range required {
		if !tbl.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("input is missing required column(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// rowsOf copies the table into scan rows.
func rowsOf(tbl *checkpoint.Table) []scan.Row {
	rows := make([]scan.Row, tbl.Len())
	for i := range rows {
		rows[i] = tbl.Row(i)
	}
	return rows
}

// failValue renders a failure for a status column. Markers produced by the
// workflow itself are written as-is; anything else becomes "Error: <cause>".
func failValue(err *item.Error, width int) string {
	if err.Err == nil {
		return err.Reason
	}
	return "Error: " + item.Truncate(err.Reason, width)
}

// marker returns an item error whose reason is written verbatim.
func marker(state item.State, reason string) error {
	return &item.Error{State: state, Reason: reason}
}

// squash upper-cases s and drops all spaces, for tolerant name matching.
func squash(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

// dismissLeftover presses Escape when a dialog is still showing.
func dismissLeftover(page browser.Page, dialog string) error {
	visible, err := page.IsVisible(dialog)
	if err != nil || !visible {
		return err
	}
	return page.Press("body", "Escape")
}
