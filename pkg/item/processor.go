package item

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/modal"
	"github.com/entrhq/portalrunner/pkg/scan"
)

// Expect describes how a submitted form reports back. The processor polls
// for the inline selector and the dialog selector until one is visible or
// the bound elapses.
type Expect struct {
	Inline   string
	Dialog   string
	Timeout  time.Duration
	Interval time.Duration

	// Confirm resolves the dialog as a two-step confirmation.
	Confirm bool
}

// Resolution is what the submit step produced.
type Resolution struct {
	// Inline is set when the inline result selector became visible.
	Inline bool

	// Dialog is the resolved dialog outcome. It is NoDialog when the inline
	// result won.
	Dialog modal.Outcome
}

// Task carries one item through the hooks.
type Task struct {
	Item scan.WorkItem

	// Input holds normalized values produced by Prepare.
	Input map[string]string

	// Values are the result record columns to write back.
	Values map[string]string

	// Tags label notable side effects (e.g. "imported") for the summary.
	Tags []string

	// Dialogs lists every dialog resolved for the item.
	Dialogs []modal.Outcome
}

// Set records a result column.
func (t *Task) Set(column, value string) {
	t.Values[column] = value
}

// Tag adds a summary label.
func (t *Task) Tag(tag string) {
	t.Tags = append(t.Tags, tag)
}

// Record notes a resolved dialog.
func (t *Task) Record(out modal.Outcome) {
	t.Dialogs = append(t.Dialogs, out)
}

// Operation is the portal-specific part of item processing.
type Operation interface {
	// Prepare validates and normalizes the item's fields into t.Input.
	Prepare(t *Task) error

	// Open brings up the item's form, re-locating it by key.
	Open(page browser.Page, t *Task) error

	Fill(page browser.Page, t *Task) error
	Submit(page browser.Page, t *Task) error

	// Expect returns how Submit's result is bound.
	Expect() Expect

	// Finish maps the resolution onto t.Values and runs follow-up actions.
	Finish(page browser.Page, t *Task, res Resolution) error

	// Fail writes the failure values for err into t.Values.
	Fail(t *Task, err *Error)

	// Close returns the page to the list view.
	Close(page browser.Page, t *Task) error
}

// Outcome is the processed result of one item.
type Outcome struct {
	Key     scan.Key
	Row     int
	State   State
	Status  scan.Status
	Values  map[string]string
	Tags    []string
	Dialogs []modal.Outcome

	// Reason is the short cause for skipped and failed items.
	Reason string

	// Err is the *Error of a failed item.
	Err error

	// CloseErr is set when returning to the list view failed.
	CloseErr error
}

// Processor runs items through an Operation.
type Processor struct {
	op       Operation
	resolver *modal.Resolver
}

// NewProcessor creates a processor for op.
func NewProcessor(op Operation, resolver *modal.Resolver) *Processor {
	return &Processor{op: op, resolver: resolver}
}

// Process runs it through Open, Filled, Submitted, Resolved and Closed. Any
// failure, a panicking hook included, moves the item to Failed; Close is
// still attempted whenever the page was touched.
func (p *Processor) Process(ctx context.Context, page browser.Page, it scan.WorkItem) Outcome {
	t := &Task{
		Item:   it,
		Input:  make(map[string]string),
		Values: make(map[string]string),
	}

	if err := ctx.Err(); err != nil {
		return p.failed(t, Open, err)
	}

	if err := protect(Open, func() error { return p.op.Prepare(t) }); err != nil {
		return p.finish(t, Open, err)
	}

	state, err := p.run(page, t)
	out := p.finish(t, state, err)
	if cerr := protect(Closed, func() error { return p.op.Close(page, t) }); cerr != nil {
		out.CloseErr = cerr
	}
	return out
}

func (p *Processor) run(page browser.Page, t *Task) (State, error) {
	if err := protect(Open, func() error { return p.op.Open(page, t) }); err != nil {
		return Open, err
	}
	if err := protect(Filled, func() error { return p.op.Fill(page, t) }); err != nil {
		return Filled, err
	}
	if err := protect(Submitted, func() error { return p.op.Submit(page, t) }); err != nil {
		return Submitted, err
	}

	var res Resolution
	if err := protect(Submitted, func() (err error) {
		res, err = p.bind(page, p.op.Expect())
		return err
	}); err != nil {
		return Submitted, err
	}
	if !res.Inline && res.Dialog.Kind != modal.NoDialog {
		t.Record(res.Dialog)
	}
	if err := protect(Resolved, func() error { return p.op.Finish(page, t, res) }); err != nil {
		return Resolved, err
	}
	return Closed, nil
}

// protect runs one hook, converting a panic into an *Error at state.
func protect(state State, hook func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &Error{State: state, Reason: fmt.Sprintf("panic: %v", v), Err: fmt.Errorf("%w: %v", ErrPanic, v)}
		}
	}()
	return hook()
}

// bind polls for whichever result surface shows up first.
func (p *Processor) bind(page browser.Page, exp Expect) (Resolution, error) {
	if exp.Inline == "" && exp.Dialog == "" {
		return Resolution{}, nil
	}

	interval := exp.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	polls := int(exp.Timeout / interval)
	if polls < 1 {
		polls = 1
	}

	for i := 0; i < polls; i++ {
		if exp.Inline != "" {
			if ok, err := page.IsVisible(exp.Inline); err != nil {
				return Resolution{}, err
			} else if ok {
				return Resolution{Inline: true}, nil
			}
		}
		if exp.Dialog != "" {
			if ok, err := page.IsVisible(exp.Dialog); err != nil {
				return Resolution{}, err
			} else if ok {
				return Resolution{Dialog: p.resolveDialog(page, exp)}, nil
			}
		}
		page.Pause(interval)
	}
	return Resolution{}, ErrTimeout
}

func (p *Processor) resolveDialog(page browser.Page, exp Expect) modal.Outcome {
	if p.resolver == nil {
		return modal.Outcome{Kind: modal.Unresolved, Message: "no dialog resolver"}
	}
	if exp.Confirm {
		return p.resolver.ResolveConfirm(page)
	}
	return p.resolver.Resolve(page)
}

func (p *Processor) finish(t *Task, state State, err error) Outcome {
	if err == nil {
		return Outcome{
			Key:     t.Item.Key,
			Row:     t.Item.Row,
			State:   Closed,
			Status:  scan.Done,
			Values:  t.Values,
			Tags:    t.Tags,
			Dialogs: t.Dialogs,
		}
	}

	var skip *SkipError
	if errors.As(err, &skip) {
		return Outcome{
			Key:     t.Item.Key,
			Row:     t.Item.Row,
			State:   Closed,
			Status:  scan.Skipped,
			Values:  t.Values,
			Tags:    t.Tags,
			Dialogs: t.Dialogs,
			Reason:  skip.Reason,
		}
	}
	return p.failed(t, state, err)
}

func (p *Processor) failed(t *Task, state State, err error) Outcome {
	var ie *Error
	if !errors.As(err, &ie) {
		ie = &Error{State: state, Reason: reason(err), Err: err}
	}
	_ = protect(state, func() error {
		p.op.Fail(t, ie)
		return nil
	})

	return Outcome{
		Key:     t.Item.Key,
		Row:     t.Item.Row,
		State:   Failed,
		Status:  scan.Failed,
		Values:  t.Values,
		Tags:    t.Tags,
		Dialogs: t.Dialogs,
		Reason:  ie.Reason,
		Err:     ie,
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, browser.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return fmt.Sprint(err)
	}
}
