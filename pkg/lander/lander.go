// Package lander establishes an authenticated session parked on a
// workflow's landing view.
package lander

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/logging"
)

// SessionError means no ready session could be established. It is fatal
// for the run.
type SessionError struct {
	Attempts int
	Err      error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("no ready session after %d browser attempts: %v", e.Attempts, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Credentials are the portal login.
type Credentials struct {
	Username string
	Password string
}

// Prompter blocks until a person has done something in the browser.
type Prompter interface {
	WaitForHuman(ctx context.Context, message string) error
}

// LinePrompter prints message to Out and waits for a line on In.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// WaitForHuman implements Prompter. It does not time out; ctx cancellation
// only takes effect before the prompt is shown.
func (p *LinePrompter) WaitForHuman(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	fmt.Fprint(p.Out, message)
	if _, err := p.reader.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	return nil
}

// Lander logs in and navigates to the landing view.
type Lander struct {
	launcher browser.Launcher
	cfg      Config
	creds    Credentials
	prompter Prompter
	logger   *logging.Logger
}

// New creates a lander.
func New(launcher browser.Launcher, cfg Config, creds Credentials, prompter Prompter, logger *logging.Logger) *Lander {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Lander{
		launcher: launcher,
		cfg:      cfg,
		creds:    creds,
		prompter: prompter,
		logger:   logger,
	}
}

// LoginAndLand returns a session whose page shows the ready view. Each
// browser attempt releases its session before the next one starts; after
// the last attempt the final cause is wrapped in a *SessionError.
func (l *Lander) LoginAndLand(ctx context.Context) (browser.Handle, error) {
	attempts := l.cfg.BrowserAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &SessionError{Attempts: attempt - 1, Err: err}
		}

		h, err := l.launcher.Acquire()
		if err != nil {
			lastErr = fmt.Errorf("launch: %w", err)
			l.logger.Warnf("browser attempt %d/%d failed: %v", attempt, attempts, lastErr)
			continue
		}

		if err := l.land(ctx, h.Page()); err != nil {
			lastErr = err
			l.logger.Warnf("browser attempt %d/%d failed: %v", attempt, attempts, err)
			l.launcher.Release(h)
			continue
		}

		l.logger.Infof("landing view ready (session %s, browser attempt %d)", h.ID(), attempt)
		return h, nil
	}

	return nil, &SessionError{Attempts: attempts, Err: lastErr}
}

func (l *Lander) land(ctx context.Context, page browser.Page) error {
	if err := page.Navigate(l.cfg.LoginURL, browser.NavigateOptions{Timeout: l.cfg.PageTimeout}); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := page.Fill(browser.FillOptions{Selector: l.cfg.UsernameField, Value: l.creds.Username}); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	if err := page.Fill(browser.FillOptions{Selector: l.cfg.PasswordField, Value: l.creds.Password}); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	if l.prompter != nil {
		if err := l.prompter.WaitForHuman(ctx, l.cfg.CaptchaPrompt); err != nil {
			return fmt.Errorf("captcha: %w", err)
		}
	}

	if err := page.Click(browser.ClickOptions{Selector: l.cfg.SubmitButton}); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if err := page.WaitForIdle(l.cfg.PageTimeout); err != nil {
		return fmt.Errorf("after login: %w", err)
	}

	for i, step := range l.cfg.Landing {
		if err := l.step(page, step); err != nil {
			return fmt.Errorf("landing step %d (%s): %w", i+1, step, err)
		}
	}

	return l.ready(page)
}

func (l *Lander) step(page browser.Page, s Step) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = l.cfg.PageTimeout
	}
	l.logger.Debugf("landing: %s", s)

	switch s.Action {
	case ActionClick:
		return page.Click(browser.ClickOptions{Selector: s.Selector, Timeout: timeout})
	case ActionClickIfVisible:
		visible, err := page.IsVisible(s.Selector)
		if err != nil || !visible {
			return nil
		}
		target := s.Target
		if target == "" {
			target = s.Selector
		}
		return page.Click(browser.ClickOptions{Selector: target, Timeout: timeout})
	case ActionWait:
		return page.WaitFor(browser.WaitOptions{Selector: s.Selector, State: browser.StateVisible, Timeout: timeout})
	case ActionIdle:
		return page.WaitForIdle(timeout)
	case ActionPause:
		page.Pause(s.Timeout)
		return nil
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
}

// ready clicks the navigating control and waits for the ready selector,
// retrying within the session.
func (l *Lander) ready(page browser.Page) error {
	attempts := l.cfg.NavAttempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := l.cfg.Ready.Timeout
	if timeout <= 0 {
		timeout = l.cfg.PageTimeout
	}

	var lastErr error
	for n := 1; n <= attempts; n++ {
		if l.cfg.Ready.Click != "" {
			if err := page.Click(browser.ClickOptions{Selector: l.cfg.Ready.Click, Timeout: timeout}); err != nil {
				lastErr = err
				l.logger.Debugf("readiness click %d/%d failed: %v", n, attempts, err)
				continue
			}
		}
		err := page.WaitFor(browser.WaitOptions{Selector: l.cfg.Ready.Wait, State: browser.StateVisible, Timeout: timeout})
		if err == nil {
			return nil
		}
		lastErr = err
		l.logger.Debugf("readiness wait %d/%d failed: %v", n, attempts, err)
	}
	return fmt.Errorf("%s not ready after %d attempts: %w", strings.TrimSpace(l.cfg.Ready.Wait), attempts, lastErr)
}
