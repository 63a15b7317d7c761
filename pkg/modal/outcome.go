// Package modal resolves the portal's SweetAlert dialogs into outcomes.
//
// A dialog is either single-step (a result popup that only needs reading and
// dismissing) or two-step (a confirmation popup whose affirmative button must
// be chosen, followed by a result popup).
package modal

import "fmt"

// Kind classifies a dialog resolution.
type Kind int

const (
	// NoDialog means nothing appeared within the bound
	NoDialog Kind = iota

	// Success means the portal accepted the request
	Success

	// AlreadyDone means the portal reported the request as already in progress
	AlreadyDone

	// Error means the portal rejected the request; Message holds the title
	Error

	// Unresolved means a dialog appeared but could not be read or answered
	Unresolved
)

func (k Kind) String() string {
	switch k {
	case NoDialog:
		return "no-dialog"
	case Success:
		return "success"
	case AlreadyDone:
		return "already-done"
	case Error:
		return "error"
	case Unresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of resolving a dialog.
type Outcome struct {
	Kind Kind

	// Reference is the token captured from a success title, if any.
	Reference string

	// Message is the error title, or the reason for Unresolved.
	Message string

	// Confirmed is set by ResolveConfirm once the affirmative button of the
	// confirmation popup was clicked, whatever the result popup said.
	Confirmed bool
}

func (o Outcome) String() string {
	switch o.Kind {
	case Success:
		if o.Reference != "" {
			return "success " + o.Reference
		}
		return "success"
	case Error, Unresolved:
		return o.Kind.String() + ": " + o.Message
	default:
		return o.Kind.String()
	}
}
