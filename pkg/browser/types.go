package browser

import (
	"errors"
	"time"
)

// ErrTimeout is matched (errors.Is) by every wait or action that ran out of
// time before its target reached the requested state.
var ErrTimeout = errors.New("browser: timeout")

// WaitState is the element state a wait resolves on.
type WaitState string

const (
	// StateAttached waits until the element is in the DOM
	StateAttached WaitState = "attached"

	// StateDetached waits until the element is removed from the DOM
	StateDetached WaitState = "detached"

	// StateVisible waits until the element is visible (default)
	StateVisible WaitState = "visible"

	// StateHidden waits until the element is hidden or absent
	StateHidden WaitState = "hidden"
)

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window.
	// The CAPTCHA step needs a person, so the default is headed.
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout is the page's default operation timeout
	Timeout time.Duration

	// Args are extra browser command line flags
	Args []string
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful
	// Valid values: "load", "domcontentloaded", "networkidle"
	WaitUntil string

	// Timeout (0 means the page default)
	Timeout time.Duration
}

// ClickOptions configures element clicking behavior.
type ClickOptions struct {
	// Selector identifies the element to click. When it matches several
	// elements the first one is clicked.
	Selector string

	// Nth picks the zero-based match instead of the first one. Negative
	// values count from the end (-1 is the last match).
	Nth *int

	// Timeout (0 means the page default)
	Timeout time.Duration
}

// FillOptions configures form input filling.
type FillOptions struct {
	// Selector identifies the input element
	Selector string

	// Nth picks the zero-based match, as in ClickOptions
	Nth *int

	// Value is the text to fill. Inputs are cleared before filling.
	Value string

	// Timeout (0 means the page default)
	Timeout time.Duration
}

// SelectOptions configures choosing an option in a <select>.
type SelectOptions struct {
	Selector string
	Value    string

	// Timeout bounds the wait for the control to become enabled
	Timeout time.Duration
}

// WaitOptions configures waiting behavior.
type WaitOptions struct {
	// Selector to wait for
	Selector string

	// State to wait for (default visible)
	State WaitState

	// Timeout (0 means the page default)
	Timeout time.Duration
}

// Element is a snapshot of one matched element.
type Element struct {
	Text  string
	Class string
}

// Default values for various operations
const (
	DefaultTimeout        = 60 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// Index returns a pointer suitable for ClickOptions.Nth and FillOptions.Nth.
func Index(n int) *int {
	return &n
}
