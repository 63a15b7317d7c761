// Package browsertest provides a scriptable in-memory browser.Page for tests.
package browsertest

import (
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/portalrunner/pkg/browser"
)

// Hook runs when an action hits a selector. Hooks mutate the page to model
// the portal reacting (a dialog opening, a table re-rendering).
type Hook func(p *Page) error

// Page is an in-memory browser.Page. Visibility, text and HTML are keyed by
// the exact selector string the caller uses. Every call is recorded in Calls
// as "<action> <selector>" so tests can assert on interaction order.
type Page struct {
	Visible  map[string]bool
	Texts    map[string]string
	HTML     map[string]string
	Elements map[string][]browser.Element
	Filled   map[string]string
	Selected map[string]string

	// BodyText backs WaitForText.
	BodyText string

	// Errors fails the matching "<action> <selector>" call.
	Errors map[string]error

	Calls  []string
	Paused time.Duration

	hooks map[string]Hook
}

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{
		Visible:  make(map[string]bool),
		Texts:    make(map[string]string),
		HTML:     make(map[string]string),
		Elements: make(map[string][]browser.Element),
		Filled:   make(map[string]string),
		Selected: make(map[string]string),
		Errors:   make(map[string]error),
		hooks:    make(map[string]Hook),
	}
}

// On registers fn to run after action ("click", "press", "select", "fill",
// "goback", "navigate") on selector. A hook replaces any earlier one.
func (p *Page) On(action, selector string, fn Hook) *Page {
	p.hooks[action+" "+selector] = fn
	return p
}

// Show marks selectors visible.
func (p *Page) Show(selectors ...string) *Page {
	for _, s := range selectors {
		p.Visible[s] = true
	}
	return p
}

// Hide marks selectors hidden.
func (p *Page) Hide(selectors ...string) *Page {
	for _, s := range selectors {
		delete(p.Visible, s)
	}
	return p
}

// Called reports how many recorded calls start with prefix.
func (p *Page) Called(prefix string) int {
	n := 0
	for _, c := range p.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (p *Page) do(action, selector string) error {
	key := action + " " + selector
	p.Calls = append(p.Calls, key)
	if err, ok := p.Errors[key]; ok {
		return err
	}
	if hook, ok := p.hooks[key]; ok {
		return hook(p)
	}
	return nil
}

func nthSuffix(nth *int) string {
	if nth == nil {
		return ""
	}
	return fmt.Sprintf(" >> nth=%d", *nth)
}

// Navigate records the navigation.
func (p *Page) Navigate(url string, _ browser.NavigateOptions) error {
	return p.do("navigate", url)
}

// Fill records the value under the selector.
func (p *Page) Fill(opts browser.FillOptions) error {
	sel := opts.Selector + nthSuffix(opts.Nth)
	if err := p.do("fill", sel); err != nil {
		return err
	}
	p.Filled[sel] = opts.Value
	return nil
}

// Click records the click and runs its hook.
func (p *Page) Click(opts browser.ClickOptions) error {
	return p.do("click", opts.Selector+nthSuffix(opts.Nth))
}

// SelectOption records the chosen value.
func (p *Page) SelectOption(opts browser.SelectOptions) error {
	if err := p.do("select", opts.Selector); err != nil {
		return err
	}
	p.Selected[opts.Selector] = opts.Value
	return nil
}

// Press records the key press.
func (p *Page) Press(selector, key string) error {
	return p.do("press", selector+" "+key)
}

// WaitFor resolves immediately against the current visibility map.
func (p *Page) WaitFor(opts browser.WaitOptions) error {
	if err := p.do("wait", opts.Selector); err != nil {
		return err
	}
	visible := p.Visible[opts.Selector]
	switch opts.State {
	case browser.StateDetached, browser.StateHidden:
		if visible {
			return fmt.Errorf("wait %s detached: %w", opts.Selector, browser.ErrTimeout)
		}
	default:
		if !visible {
			return fmt.Errorf("wait %s: %w", opts.Selector, browser.ErrTimeout)
		}
	}
	return nil
}

// WaitForText checks BodyText.
func (p *Page) WaitForText(texts []string, _ time.Duration) error {
	p.Calls = append(p.Calls, "waittext "+strings.Join(texts, ","))
	for _, t := range texts {
		if t != "" && strings.Contains(p.BodyText, t) {
			return nil
		}
	}
	return fmt.Errorf("wait for text: %w", browser.ErrTimeout)
}

// WaitForIdle always succeeds unless an "idle " error is set.
func (p *Page) WaitForIdle(_ time.Duration) error {
	return p.do("idle", "")
}

// ReadText returns Texts[selector].
func (p *Page) ReadText(selector string) (string, error) {
	if err := p.do("read", selector); err != nil {
		return "", err
	}
	text, ok := p.Texts[selector]
	if !ok {
		return "", fmt.Errorf("read %s: %w", selector, browser.ErrTimeout)
	}
	return strings.TrimSpace(text), nil
}

// ReadHTML returns HTML[selector].
func (p *Page) ReadHTML(selector string) (string, error) {
	if err := p.do("html", selector); err != nil {
		return "", err
	}
	html, ok := p.HTML[selector]
	if !ok {
		return "", fmt.Errorf("read html %s: %w", selector, browser.ErrTimeout)
	}
	return html, nil
}

// ListElements returns Elements[selector].
func (p *Page) ListElements(selector string) ([]browser.Element, error) {
	if err := p.do("list", selector); err != nil {
		return nil, err
	}
	return append([]browser.Element(nil), p.Elements[selector]...), nil
}

// Count returns the number of listed elements, falling back to visibility
// and text presence for selectors without an element list.
func (p *Page) Count(selector string) (int, error) {
	if err := p.do("count", selector); err != nil {
		return 0, err
	}
	if els, ok := p.Elements[selector]; ok {
		return len(els), nil
	}
	if _, ok := p.Texts[selector]; ok || p.Visible[selector] {
		return 1, nil
	}
	return 0, nil
}

// IsVisible reports Visible[selector].
func (p *Page) IsVisible(selector string) (bool, error) {
	if err := p.do("visible", selector); err != nil {
		return false, err
	}
	return p.Visible[selector], nil
}

// GoBack records the navigation and runs the "goback" hook.
func (p *Page) GoBack() error {
	return p.do("goback", "")
}

// Pause accumulates the requested settle time without sleeping.
func (p *Page) Pause(d time.Duration) {
	p.Paused += d
}

var _ browser.Page = (*Page)(nil)
