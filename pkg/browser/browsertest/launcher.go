package browsertest

import (
	"fmt"

	"github.com/entrhq/portalrunner/pkg/browser"
)

// Handle pairs an id with a fake page.
type Handle struct {
	Name string
	Fake *Page
}

// ID returns the handle name.
func (h *Handle) ID() string { return h.Name }

// Page returns the fake page.
func (h *Handle) Page() browser.Page { return h.Fake }

// Launcher hands out fake sessions. The first FailAcquire calls fail.
type Launcher struct {
	// NewPage builds the page for the n-th successful acquire (1-based).
	NewPage     func(n int) *Page
	FailAcquire int

	Attempts int
	Acquired []*Handle
	Released []*Handle
}

// Acquire returns a new fake handle or a scripted launch failure.
func (l *Launcher) Acquire() (browser.Handle, error) {
	l.Attempts++
	if l.Attempts <= l.FailAcquire {
		return nil, fmt.Errorf("launch %d: browser crashed", l.Attempts)
	}

	page := NewPage()
	if l.NewPage != nil {
		page = l.NewPage(len(l.Acquired) + 1)
	}
	h := &Handle{Name: fmt.Sprintf("fake-%d", len(l.Acquired)+1), Fake: page}
	l.Acquired = append(l.Acquired, h)
	return h, nil
}

// Release records the release.
func (l *Launcher) Release(h browser.Handle) {
	if fh, ok := h.(*Handle); ok {
		l.Released = append(l.Released, fh)
	}
}

var _ browser.Launcher = (*Launcher)(nil)
