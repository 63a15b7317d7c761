// Package item drives a single work item through the portal: open it, fill
// the form, submit, bind the result, record it and close the view.
package item

import (
	"errors"
	"fmt"
)

// State is a step of the per-item state machine.
type State int

const (
	Open State = iota
	Filled
	Submitted
	Resolved
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Filled:
		return "filled"
	case Submitted:
		return "submitted"
	case Resolved:
		return "resolved"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrTimeout is the cause recorded when neither the inline result nor a
// dialog appeared in time.
var ErrTimeout = errors.New("timeout")

// ErrPanic wraps a panic raised inside an Operation hook.
var ErrPanic = errors.New("operation panicked")

// Error is a per-item failure. It never aborts the run.
type Error struct {
	// State is the step that was running when the item failed. Open
	// covers Prepare and Open, Submitted covers the submit click and the
	// wait for its result, Resolved covers Finish.
	State State

	// Reason is the short, user-facing cause (e.g. "Bad DOB")
	Reason string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.State, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Invalid reports a field that failed normalization. Returning it from
// Prepare fails the item before the page is touched.
func Invalid(reason string) error {
	return &Error{State: Open, Reason: reason}
}

// SkipError marks an item that needs no portal action.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// Skip returns a SkipError. Any hook may return it.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
