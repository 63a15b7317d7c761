package modal

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/entrhq/portalrunner/pkg/browser"
)

// Config describes the dialog markup and the resolution policy.
type Config struct {
	// Popup matches any open dialog
	Popup string `yaml:"popup"`

	// SuccessPopup matches an open success dialog. It is only a hint: results
	// are classified by SuccessTitle and ErrorTitle.
	SuccessPopup string `yaml:"success_popup"`

	// SuccessTitle and ErrorTitle read the title of a success or error dialog
	SuccessTitle string `yaml:"success_title"`
	ErrorTitle   string `yaml:"error_title"`

	// Buttons lists the buttons of the open dialog
	Buttons string `yaml:"buttons"`

	// ReferencePattern captures the request reference from a success title.
	// The first group is used.
	ReferencePattern string `yaml:"reference_pattern"`

	// AlreadyPhrases mark an error title as "already in progress"
	AlreadyPhrases []string `yaml:"already_phrases"`

	// ConfirmLabels are the affirmative labels of a confirmation dialog
	ConfirmLabels []string `yaml:"confirm_labels"`

	// CancelClass is the class the portal puts on its affirmative button
	CancelClass string `yaml:"cancel_class"`

	// DismissLabels close a result dialog; DismissClass is the fallback
	DismissLabels []string `yaml:"dismiss_labels"`
	DismissClass  string   `yaml:"dismiss_class"`

	// Appear bounds the wait for a result dialog
	Appear time.Duration `yaml:"appear"`

	// ConfirmAppear bounds the wait for a confirmation dialog
	ConfirmAppear time.Duration `yaml:"confirm_appear"`

	// Settle is the pause after answering a confirmation dialog
	Settle time.Duration `yaml:"settle"`

	// Detach bounds the best-effort wait for a dismissed dialog to go away
	Detach time.Duration `yaml:"detach"`
}

// DefaultConfig returns the SweetAlert2 markup used by the portal.
func DefaultConfig() Config {
	return Config{
		Popup:            "div.swal2-popup.swal2-show",
		SuccessPopup:     "div.swal2-popup.swal2-icon-success.swal2-show",
		SuccessTitle:     "div.swal2-popup.swal2-icon-success h2.swal2-title",
		ErrorTitle:       "div.swal2-popup.swal2-icon-error h2.swal2-title",
		Buttons:          "div.swal2-popup.swal2-show button.swal2-styled",
		ReferencePattern: `Request No: (\S+)`,
		AlreadyPhrases:   []string{"already pending"},
		ConfirmLabels:    []string{"Confirm", "Yes", "OK", "Okey", "Okay"},
		CancelClass:      "swal2-cancel",
		DismissLabels:    []string{"Okay", "Ok", "Okey", "Close"},
		DismissClass:     "swal2-confirm",
		Appear:           10 * time.Second,
		ConfirmAppear:    15 * time.Second,
		Settle:           300 * time.Millisecond,
		Detach:           5 * time.Second,
	}
}

const resultPoll = 250 * time.Millisecond

// Resolver turns the dialog currently shown on a page into an Outcome.
type Resolver struct {
	cfg       Config
	reference *regexp.Regexp
	confirm   Strategy
	dismiss   Strategy
}

// NewResolver validates cfg and builds a resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Popup == "" || cfg.Buttons == "" {
		return nil, errors.New("modal: popup and buttons selectors are required")
	}

	r := &Resolver{cfg: cfg}
	if cfg.ReferencePattern != "" {
		re, err := regexp.Compile(cfg.ReferencePattern)
		if err != nil {
			return nil, fmt.Errorf("modal: invalid reference pattern: %w", err)
		}
		r.reference = re
	}

	r.confirm = FirstOf(LabelMatch(cfg.ConfirmLabels...), ClassInversion(cfg.CancelClass), LastButton())
	r.dismiss = FirstOf(LabelMatch(cfg.DismissLabels...), ClassInversion(cfg.DismissClass))
	return r, nil
}

// Resolve handles a single-step dialog: wait for it, classify it, dismiss it.
func (r *Resolver) Resolve(page browser.Page) Outcome {
	return r.resolve(page, r.cfg.Popup, r.cfg.Appear)
}

// ResolveConfirm handles a two-step dialog. The affirmative button of the
// confirmation popup is chosen by label, then by the cancel-class inversion,
// then as the last button. The result popup that follows is classified by
// its title and dismissed.
func (r *Resolver) ResolveConfirm(page browser.Page) Outcome {
	if err := page.WaitFor(browser.WaitOptions{
		Selector: r.cfg.Popup,
		State:    browser.StateVisible,
		Timeout:  r.cfg.ConfirmAppear,
	}); err != nil {
		return waitOutcome(err)
	}

	buttons, err := page.ListElements(r.cfg.Buttons)
	if err != nil {
		return Outcome{Kind: Unresolved, Message: fmt.Sprintf("list buttons: %v", err)}
	}
	i, err := Choose(r.confirm, buttons)
	if err != nil {
		return Outcome{Kind: Unresolved, Message: err.Error()}
	}
	if err := page.Click(browser.ClickOptions{Selector: r.cfg.Buttons, Nth: browser.Index(i)}); err != nil {
		return Outcome{Kind: Unresolved, Message: fmt.Sprintf("click %q: %v", buttons[i].Text, err)}
	}
	page.Pause(r.cfg.Settle)

	out := r.awaitResult(page)
	out.Confirmed = true
	return out
}

// awaitResult polls for the popup that replaces an answered confirmation
// until its title reads as success or error. The confirmation popup and the
// result popup share the same markup, so a popup is only final once one of
// the title selectors matches.
func (r *Resolver) awaitResult(page browser.Page) Outcome {
	polls := int(r.cfg.Appear / resultPoll)
	if polls < 1 {
		polls = 1
	}
	for i := 0; i < polls; i++ {
		if r.dialogVisible(page) {
			if out := r.classify(page); out.Kind != Unresolved {
				r.close(page, r.cfg.Popup)
				return out
			}
		}
		page.Pause(resultPoll)
	}

	if r.dialogVisible(page) {
		r.close(page, r.cfg.Popup)
		return Outcome{Kind: Unresolved, Message: "unrecognised dialog"}
	}
	return Outcome{Kind: NoDialog}
}

// dialogVisible reports whether Popup or SuccessPopup is open.
func (r *Resolver) dialogVisible(page browser.Page) bool {
	for _, sel := range []string{r.cfg.Popup, r.cfg.SuccessPopup} {
		if sel == "" {
			continue
		}
		if ok, err := page.IsVisible(sel); err == nil && ok {
			return true
		}
	}
	return false
}

func (r *Resolver) resolve(page browser.Page, popup string, appear time.Duration) Outcome {
	if err := page.WaitFor(browser.WaitOptions{
		Selector: popup,
		State:    browser.StateVisible,
		Timeout:  appear,
	}); err != nil {
		return waitOutcome(err)
	}

	out := r.classify(page)
	r.close(page, popup)
	return out
}

func (r *Resolver) classify(page browser.Page) Outcome {
	if title, ok := readVisible(page, r.cfg.SuccessTitle); ok {
		return Outcome{Kind: Success, Reference: r.ref(title)}
	}
	if title, ok := readVisible(page, r.cfg.ErrorTitle); ok {
		if r.already(title) {
			return Outcome{Kind: AlreadyDone, Message: title}
		}
		return Outcome{Kind: Error, Message: title}
	}
	return Outcome{Kind: Unresolved, Message: "unrecognised dialog"}
}

// close dismisses the dialog and waits briefly for it to detach. Failures
// are ignored: the outcome is already known.
func (r *Resolver) close(page browser.Page, popup string) {
	buttons, err := page.ListElements(r.cfg.Buttons)
	if err != nil {
		return
	}
	i, err := Choose(r.dismiss, buttons)
	if err != nil {
		return
	}
	if err := page.Click(browser.ClickOptions{Selector: r.cfg.Buttons, Nth: browser.Index(i)}); err != nil {
		return
	}
	_ = page.WaitFor(browser.WaitOptions{
		Selector: popup,
		State:    browser.StateDetached,
		Timeout:  r.cfg.Detach,
	})
}

func (r *Resolver) ref(title string) string {
	if r.reference == nil {
		return ""
	}
	m := r.reference.FindStringSubmatch(title)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func (r *Resolver) already(title string) bool {
	lower := strings.ToLower(title)
	for _, p := range r.cfg.AlreadyPhrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func readVisible(page browser.Page, selector string) (string, bool) {
	if selector == "" {
		return "", false
	}
	visible, err := page.IsVisible(selector)
	if err != nil || !visible {
		return "", false
	}
	text, err := page.ReadText(selector)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(text), true
}

func waitOutcome(err error) Outcome {
	if errors.Is(err, browser.ErrTimeout) {
		return Outcome{Kind: NoDialog}
	}
	return Outcome{Kind: Unresolved, Message: err.Error()}
}
