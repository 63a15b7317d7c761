package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session represents an active browser session with its associated resources.
// It implements both Handle and Page.
type Session struct {
	// Name is the unique identifier for this session
	Name string

	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context (isolated session)
	Context playwright.BrowserContext

	// Headless indicates if the browser is running in headless mode
	Headless bool

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	// LastUsedAt is the timestamp of the last operation on this session
	LastUsedAt time.Time

	// CurrentURL is the URL of the current page
	CurrentURL string

	page playwright.Page
}

// ID returns the session name.
func (s *Session) ID() string {
	return s.Name
}

// Page returns the session's page capability.
func (s *Session) Page() Page {
	return s
}

// touch updates the LastUsedAt timestamp to the current time.
func (s *Session) touch() {
	s.LastUsedAt = time.Now()
}

// Navigate navigates the session's page to the specified URL.
func (s *Session) Navigate(url string, opts NavigateOptions) error {
	s.touch()

	playwrightOpts := playwright.PageGotoOptions{Timeout: millis(opts.Timeout)}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		playwrightOpts.WaitUntil = &waitUntil
	}

	if _, err := s.page.Goto(url, playwrightOpts); err != nil {
		return wrap("navigate", err)
	}

	s.CurrentURL = s.page.URL()
	return nil
}

// Fill fills an input element with the specified value.
func (s *Session) Fill(opts FillOptions) error {
	s.touch()

	err := s.locate(opts.Selector, opts.Nth).Fill(opts.Value, playwright.LocatorFillOptions{
		Timeout: millis(opts.Timeout),
	})
	if err != nil {
		return wrap("fill "+opts.Selector, err)
	}
	return nil
}

// Click clicks an element matching the selector.
func (s *Session) Click(opts ClickOptions) error {
	s.touch()

	err := s.locate(opts.Selector, opts.Nth).Click(playwright.LocatorClickOptions{
		Timeout: millis(opts.Timeout),
	})
	if err != nil {
		return wrap("click "+opts.Selector, err)
	}

	// Update current URL in case click caused navigation
	s.CurrentURL = s.page.URL()
	return nil
}

// SelectOption picks an option by value. Playwright waits for the control
// to become enabled, so a disabled control surfaces as ErrTimeout.
func (s *Session) SelectOption(opts SelectOptions) error {
	s.touch()

	_, err := s.page.Locator(opts.Selector).First().SelectOption(
		playwright.SelectOptionValues{Values: &[]string{opts.Value}},
		playwright.LocatorSelectOptionOptions{Timeout: millis(opts.Timeout)},
	)
	if err != nil {
		return wrap("select "+opts.Selector, err)
	}
	return nil
}

// Press sends a key to the element matching selector.
func (s *Session) Press(selector, key string) error {
	s.touch()

	if err := s.page.Locator(selector).First().Press(key); err != nil {
		return wrap("press "+key, err)
	}
	return nil
}

// WaitFor waits for an element to reach the requested state.
func (s *Session) WaitFor(opts WaitOptions) error {
	s.touch()

	if opts.Selector == "" {
		return fmt.Errorf("selector is required for wait")
	}
	if opts.State == "" {
		opts.State = StateVisible
	}

	state := playwright.WaitForSelectorState(opts.State)
	_, err := s.page.WaitForSelector(opts.Selector, playwright.PageWaitForSelectorOptions{
		State:   &state,
		Timeout: millis(opts.Timeout),
	})
	if err != nil {
		return wrap("wait "+opts.Selector, err)
	}
	return nil
}

const bodyContainsExpr = `(texts) => {
	const body = document.body ? document.body.innerText : '';
	if (!body) return false;
	return texts.some((t) => t && body.includes(t));
}`

// WaitForText waits until the page body contains any of texts.
func (s *Session) WaitForText(texts []string, timeout time.Duration) error {
	s.touch()

	_, err := s.page.WaitForFunction(bodyContainsExpr, texts, playwright.PageWaitForFunctionOptions{
		Timeout: millis(timeout),
	})
	if err != nil {
		return wrap("wait for text", err)
	}
	return nil
}

// WaitForIdle waits for the network to go idle.
func (s *Session) WaitForIdle(timeout time.Duration) error {
	s.touch()

	err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: millis(timeout),
	})
	if err != nil {
		return wrap("wait for network idle", err)
	}
	s.CurrentURL = s.page.URL()
	return nil
}

// ReadText returns the trimmed inner text of the first match.
func (s *Session) ReadText(selector string) (string, error) {
	s.touch()

	text, err := s.page.Locator(selector).First().InnerText()
	if err != nil {
		return "", wrap("read "+selector, err)
	}
	return strings.TrimSpace(text), nil
}

// ReadHTML returns the outer HTML of the first match.
func (s *Session) ReadHTML(selector string) (string, error) {
	s.touch()

	v, err := s.page.Locator(selector).First().Evaluate("(el) => el.outerHTML", nil)
	if err != nil {
		return "", wrap("read html "+selector, err)
	}
	html, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("read html %s: unexpected result type %T", selector, v)
	}
	return html, nil
}

// ListElements snapshots every match in document order.
func (s *Session) ListElements(selector string) ([]Element, error) {
	s.touch()

	locators, err := s.page.Locator(selector).All()
	if err != nil {
		return nil, wrap("list "+selector, err)
	}

	elements := make([]Element, 0, len(locators))
	for _, loc := range locators {
		text, err := loc.InnerText()
		if err != nil {
			return nil, wrap("list "+selector, err)
		}
		// A missing class attribute is reported as an empty string
		class, _ := loc.GetAttribute("class")
		elements = append(elements, Element{
			Text:  strings.TrimSpace(text),
			Class: class,
		})
	}
	return elements, nil
}

// Count returns the number of elements matching selector.
func (s *Session) Count(selector string) (int, error) {
	s.touch()

	n, err := s.page.Locator(selector).Count()
	if err != nil {
		return 0, wrap("count "+selector, err)
	}
	return n, nil
}

// IsVisible reports whether the first match is visible. It does not wait.
func (s *Session) IsVisible(selector string) (bool, error) {
	s.touch()

	visible, err := s.page.Locator(selector).First().IsVisible()
	if err != nil {
		return false, wrap("visible "+selector, err)
	}
	return visible, nil
}

// GoBack navigates one step back in history.
func (s *Session) GoBack() error {
	s.touch()

	if _, err := s.page.GoBack(); err != nil {
		return wrap("go back", err)
	}
	s.CurrentURL = s.page.URL()
	return nil
}

// Pause blocks for a fixed settle duration.
func (s *Session) Pause(d time.Duration) {
	s.page.WaitForTimeout(float64(d.Milliseconds()))
}

// locate resolves selector to a single locator. nil picks the first match,
// negative indexes count from the end.
func (s *Session) locate(selector string, nth *int) playwright.Locator {
	loc := s.page.Locator(selector)
	switch {
	case nth == nil:
		return loc.First()
	case *nth == -1:
		return loc.Last()
	case *nth < 0:
		count, err := loc.Count()
		if err != nil || count+*nth < 0 {
			return loc.Last()
		}
		return loc.Nth(count + *nth)
	default:
		return loc.Nth(*nth)
	}
}

// millis converts a duration into Playwright's millisecond option.
// Zero means "use the page default" and yields nil.
func millis(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// wrap annotates a Playwright error and maps timeouts onto ErrTimeout.
func wrap(op string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
