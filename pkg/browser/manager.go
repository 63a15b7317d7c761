package browser

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Manager owns the Playwright driver and launches sessions. It implements
// Launcher.
type Manager struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	opts        SessionOptions
	launched    int
	initialized bool
}

// NewManager creates a new manager whose sessions use opts.
func NewManager(opts SessionOptions) *Manager {
	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Manager{opts: opts}
}

// Initialize installs and starts the Playwright driver.
// This must be called before acquiring any session.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// Keep the driver quiet so it doesn't interleave with progress output
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// Acquire launches a browser with one context and one page. A partially
// launched session is unwound before the error is returned.
func (m *Manager) Acquire() (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}

	browser, err := m.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.opts.Headless),
		Args:     m.opts.Args,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  m.opts.Viewport.Width,
			Height: m.opts.Viewport.Height,
		},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		_ = context.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(float64(m.opts.Timeout.Milliseconds()))

	m.launched++
	now := time.Now()
	return &Session{
		Name:       fmt.Sprintf("session-%d", m.launched),
		Browser:    browser,
		Context:    context,
		Headless:   m.opts.Headless,
		CreatedAt:  now,
		LastUsedAt: now,
		CurrentURL: "about:blank",
		page:       page,
	}, nil
}

// Release closes the session's page, context and browser. Close errors are
// ignored so that cleanup always completes.
func (m *Manager) Release(h Handle) {
	session, ok := h.(*Session)
	if !ok || session == nil {
		return
	}

	if session.page != nil {
		_ = session.page.Close()
	}
	if session.Context != nil {
		_ = session.Context.Close()
	}
	if session.Browser != nil {
		_ = session.Browser.Close()
	}
}

// Shutdown stops the Playwright driver.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized || m.playwright == nil {
		return nil
	}
	if err := m.playwright.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	m.initialized = false
	return nil
}
