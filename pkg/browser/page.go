package browser

import "time"

// Page is the capability surface the engine needs from a browser page.
// Implementations re-resolve selectors on every call; callers never hold
// element handles across waits.
type Page interface {
	Navigate(url string, opts NavigateOptions) error
	Fill(opts FillOptions) error
	Click(opts ClickOptions) error
	SelectOption(opts SelectOptions) error

	// Press sends a key (e.g. "Escape") to the element matching selector.
	Press(selector, key string) error

	// WaitFor waits for the selector to reach opts.State.
	WaitFor(opts WaitOptions) error

	// WaitForText waits until the page body contains any of texts.
	WaitForText(texts []string, timeout time.Duration) error

	// WaitForIdle waits for the network to go idle.
	WaitForIdle(timeout time.Duration) error

	// ReadText returns the trimmed inner text of the first match.
	ReadText(selector string) (string, error)

	// ReadHTML returns the outer HTML of the first match.
	ReadHTML(selector string) (string, error)

	// ListElements snapshots every match, in document order.
	ListElements(selector string) ([]Element, error)

	Count(selector string) (int, error)
	IsVisible(selector string) (bool, error)
	GoBack() error

	// Pause blocks for a fixed settle duration.
	Pause(d time.Duration)
}

// Handle owns one browser session and its page.
type Handle interface {
	ID() string
	Page() Page
}

// Launcher acquires and releases session handles. Release never fails:
// close errors are swallowed so cleanup can always run.
type Launcher interface {
	Acquire() (Handle, error)
	Release(h Handle)
}
