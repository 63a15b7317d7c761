package lander

import (
	"fmt"
	"time"
)

// Action is what a landing step does.
type Action string

const (
	// ActionClick clicks Selector
	ActionClick Action = "click"

	// ActionClickIfVisible clicks Target (or Selector) only when Selector is
	// visible, e.g. to close an optional announcement dialog
	ActionClickIfVisible Action = "click_if_visible"

	// ActionWait waits for Selector to be visible
	ActionWait Action = "wait"

	// ActionIdle waits for network idle
	ActionIdle Action = "idle"

	// ActionPause sleeps for Timeout
	ActionPause Action = "pause"
)

// Step is one fixed navigation step after login.
type Step struct {
	Action   Action        `yaml:"action"`
	Selector string        `yaml:"selector"`
	Target   string        `yaml:"target,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

func (s Step) String() string {
	if s.Selector == "" {
		return string(s.Action)
	}
	return fmt.Sprintf("%s %s", s.Action, s.Selector)
}

// Validate checks the step is well formed.
func (s Step) Validate() error {
	switch s.Action {
	case ActionClick, ActionClickIfVisible, ActionWait:
		if s.Selector == "" {
			return fmt.Errorf("%s step requires a selector", s.Action)
		}
	case ActionIdle:
	case ActionPause:
		if s.Timeout <= 0 {
			return fmt.Errorf("pause step requires a positive timeout")
		}
	default:
		return fmt.Errorf("unknown step action %q", s.Action)
	}
	return nil
}

// Readiness confirms the landing view loaded. Click is optional.
type Readiness struct {
	Click   string        `yaml:"click"`
	Wait    string        `yaml:"wait"`
	Timeout time.Duration `yaml:"timeout"`
}

// Config describes login and landing.
type Config struct {
	LoginURL      string `yaml:"login_url"`
	UsernameField string `yaml:"username_field"`
	PasswordField string `yaml:"password_field"`
	SubmitButton  string `yaml:"submit_button"`

	// Landing runs after the login submit, in order
	Landing []Step `yaml:"landing"`

	Ready Readiness `yaml:"ready"`

	// BrowserAttempts bounds whole-session attempts
	BrowserAttempts int `yaml:"browser_attempts"`

	// NavAttempts bounds readiness attempts within one session
	NavAttempts int `yaml:"nav_attempts"`

	// PageTimeout bounds navigation and each landing step
	PageTimeout time.Duration `yaml:"page_timeout"`

	// CaptchaPrompt is shown while the operator solves the CAPTCHA
	CaptchaPrompt string `yaml:"captcha_prompt"`
}

// DefaultConfig returns the portal login used by every workflow. Landing
// and readiness are workflow specific and left empty.
func DefaultConfig() Config {
	return Config{
		LoginURL:        "https://sdms.udiseplus.gov.in/p2/v1/login?state-id=124",
		UsernameField:   "input[name='username']",
		PasswordField:   "input[name='password']",
		SubmitButton:    "button[type='submit']",
		BrowserAttempts: 3,
		NavAttempts:     3,
		PageTimeout:     60 * time.Second,
		CaptchaPrompt:   "Solve CAPTCHA in browser, then press [Enter] here → ",
	}
}

// Validate checks the login settings and landing steps.
func (c *Config) Validate() error {
	if c.LoginURL == "" {
		return fmt.Errorf("login_url is required")
	}
	if c.UsernameField == "" || c.PasswordField == "" || c.SubmitButton == "" {
		return fmt.Errorf("username_field, password_field and submit_button are required")
	}
	if c.BrowserAttempts < 1 || c.NavAttempts < 1 {
		return fmt.Errorf("browser_attempts and nav_attempts must be at least 1")
	}
	for i, s := range c.Landing {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("landing step %d: %w", i+1, err)
		}
	}
	if c.Ready.Wait == "" {
		return fmt.Errorf("ready.wait is required")
	}
	return nil
}
