package modal

import (
	"errors"
	"strings"

	"github.com/entrhq/portalrunner/pkg/browser"
)

// ErrAmbiguous is returned when no strategy could pick a dialog button.
var ErrAmbiguous = errors.New("modal: cannot choose dialog button")

// Strategy picks one button out of a dialog's buttons. It returns false when
// it cannot make a definite choice.
type Strategy func(buttons []browser.Element) (int, bool)

// Choose runs s and converts an undecided result into ErrAmbiguous.
func Choose(s Strategy, buttons []browser.Element) (int, error) {
	if len(buttons) == 0 {
		return -1, ErrAmbiguous
	}
	i, ok := s(buttons)
	if !ok || i < 0 || i >= len(buttons) {
		return -1, ErrAmbiguous
	}
	return i, nil
}

// FirstOf tries strategies in order and returns the first definite choice.
func FirstOf(strategies ...Strategy) Strategy {
	return func(buttons []browser.Element) (int, bool) {
		for _, s := range strategies {
			if i, ok := s(buttons); ok {
				return i, true
			}
		}
		return -1, false
	}
}

// LabelMatch picks the button whose text matches a label, trying labels in
// order. An exact case-insensitive match beats a substring match. A label
// that matches more than one button is skipped.
func LabelMatch(labels ...string) Strategy {
	return func(buttons []browser.Element) (int, bool) {
		for _, label := range labels {
			want := strings.ToLower(strings.TrimSpace(label))
			if want == "" {
				continue
			}
			if i, ok := only(buttons, func(text string) bool { return text == want }); ok {
				return i, true
			}
			if i, ok := only(buttons, func(text string) bool { return strings.Contains(text, want) }); ok {
				return i, true
			}
		}
		return -1, false
	}
}

// ClassInversion picks the single button carrying class. The portal styles
// its affirmative confirm button with the cancel class, so this targets it
// directly.
func ClassInversion(class string) Strategy {
	return func(buttons []browser.Element) (int, bool) {
		match := -1
		for i, b := range buttons {
			if hasClass(b.Class, class) {
				if match >= 0 {
					return -1, false
				}
				match = i
			}
		}
		return match, match >= 0
	}
}

// LastButton picks the last button.
func LastButton() Strategy {
	return func(buttons []browser.Element) (int, bool) {
		if len(buttons) == 0 {
			return -1, false
		}
		return len(buttons) - 1, true
	}
}

func only(buttons []browser.Element, match func(text string) bool) (int, bool) {
	found := -1
	for i, b := range buttons {
		if match(strings.ToLower(strings.TrimSpace(b.Text))) {
			if found >= 0 {
				return -1, false
			}
			found = i
		}
	}
	return found, found >= 0
}

func hasClass(list, class string) bool {
	for _, c := range strings.Fields(list) {
		if c == class {
			return true
		}
	}
	return false
}
