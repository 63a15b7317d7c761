package lander

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/browser/browsertest"
)

const (
	summaryLink = "a.AnText:has-text('Progression Summary Section Wise')"
	readyButton = "div.example-container table[mat-table] button.btn-primary"
	yearFilter  = "div.filter2:has-text('Go to 2025-26')"
	notice      = "div.modal-dialog"
	noticeClose = "button.btn.btn-danger:has-text('Close')"
)

type countingPrompter struct {
	calls int
	err   error
}

func (p *countingPrompter) WaitForHuman(context.Context, string) error {
	p.calls++
	return p.err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Landing = []Step{
		{Action: ActionClick, Selector: yearFilter},
		{Action: ActionClickIfVisible, Selector: notice, Target: noticeClose},
		{Action: ActionPause, Timeout: 4 * time.Second},
		{Action: ActionWait, Selector: summaryLink},
	}
	cfg.Ready = Readiness{Click: summaryLink, Wait: readyButton}
	return cfg
}

// readyPage shows the summary view once the summary link is clicked.
func readyPage() *browsertest.Page {
	page := browsertest.NewPage()
	page.Show(summaryLink)
	page.On("click", summaryLink, func(p *browsertest.Page) error {
		p.Show(readyButton)
		return nil
	})
	return page
}

func TestLoginAndLand_FirstAttempt(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func(int) *browsertest.Page { return readyPage() }}
	prompter := &countingPrompter{}
	l := New(launcher, testConfig(), Credentials{Username: "u", Password: "p"}, prompter, nil)

	h, err := l.LoginAndLand(context.Background())
	require.NoError(t, err)
	require.NotNil(t, h)

	page := launcher.Acquired[0].Fake
	assert.Equal(t, "u", page.Filled["input[name='username']"])
	assert.Equal(t, "p", page.Filled["input[name='password']"])
	assert.Equal(t, 1, prompter.calls)
	assert.Equal(t, 4*time.Second, page.Paused)
	assert.Zero(t, page.Called("click "+noticeClose))
	assert.Empty(t, launcher.Released)

	// Captcha before submit, submit before landing.
	var order []string
	for _, c := range page.Calls {
		if strings.HasPrefix(c, "click ") || strings.HasPrefix(c, "fill ") {
			order = append(order, c)
		}
	}
	assert.Equal(t, []string{
		"fill input[name='username']",
		"fill input[name='password']",
		"click button[type='submit']",
		"click " + yearFilter,
		"click " + summaryLink,
	}, order)
}

func TestLoginAndLand_ClosesOptionalNotice(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func(int) *browsertest.Page {
		return readyPage().Show(notice)
	}}
	l := New(launcher, testConfig(), Credentials{}, &countingPrompter{}, nil)

	_, err := l.LoginAndLand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, launcher.Acquired[0].Fake.Called("click "+noticeClose))
}

func TestLoginAndLand_NavRetryWithinSession(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func(int) *browsertest.Page {
		page := browsertest.NewPage().Show(summaryLink)
		clicks := 0
		page.On("click", summaryLink, func(p *browsertest.Page) error {
			clicks++
			if clicks == 2 {
				p.Show(readyButton)
			}
			return nil
		})
		return page
	}}
	l := New(launcher, testConfig(), Credentials{}, &countingPrompter{}, nil)

	_, err := l.LoginAndLand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, launcher.Attempts)
	assert.Equal(t, 2, launcher.Acquired[0].Fake.Called("click "+summaryLink))
}

func TestLoginAndLand_BrowserRetry(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func(n int) *browsertest.Page {
		if n == 1 {
			// First session never becomes ready.
			return browsertest.NewPage().Show(summaryLink)
		}
		return readyPage()
	}}
	prompter := &countingPrompter{}
	l := New(launcher, testConfig(), Credentials{}, prompter, nil)

	h, err := l.LoginAndLand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake-2", h.ID())
	require.Len(t, launcher.Released, 1)
	assert.Equal(t, "fake-1", launcher.Released[0].Name)
	assert.Equal(t, 3, launcher.Acquired[0].Fake.Called("click "+summaryLink))
	assert.Equal(t, 2, prompter.calls)
}

func TestLoginAndLand_LaunchFailuresThenSuccess(t *testing.T) {
	launcher := &browsertest.Launcher{
		FailAcquire: 2,
		NewPage:     func(int) *browsertest.Page { return readyPage() },
	}
	l := New(launcher, testConfig(), Credentials{}, &countingPrompter{}, nil)

	_, err := l.LoginAndLand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, launcher.Attempts)
}

func TestLoginAndLand_Exhausted(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func(int) *browsertest.Page {
		page := browsertest.NewPage()
		page.Errors["navigate "+DefaultConfig().LoginURL] = errors.New("net::ERR_CONNECTION_RESET")
		return page
	}}
	l := New(launcher, testConfig(), Credentials{}, &countingPrompter{}, nil)

	h, err := l.LoginAndLand(context.Background())
	assert.Nil(t, h)

	var se *SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Attempts)
	assert.ErrorContains(t, err, "ERR_CONNECTION_RESET")
	assert.Len(t, launcher.Released, 3)
}

func TestLoginAndLand_PromptFailureTearsDown(t *testing.T) {
	launcher := &browsertest.Launcher{NewPage: func(int) *browsertest.Page { return readyPage() }}
	cfg := testConfig()
	cfg.BrowserAttempts = 1
	l := New(launcher, cfg, Credentials{}, &countingPrompter{err: errors.New("stdin closed")}, nil)

	_, err := l.LoginAndLand(context.Background())
	var se *SessionError
	require.ErrorAs(t, err, &se)
	assert.Len(t, launcher.Released, 1)
	assert.Zero(t, launcher.Acquired[0].Fake.Called("click button[type='submit']"))
}

func TestLoginAndLand_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	launcher := &browsertest.Launcher{}
	l := New(launcher, testConfig(), Credentials{}, &countingPrompter{}, nil)

	_, err := l.LoginAndLand(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, launcher.Attempts)
}

func TestStepTimeoutDefaultsToPageTimeout(t *testing.T) {
	page := browsertest.NewPage()
	l := New(&browsertest.Launcher{}, testConfig(), Credentials{}, nil, nil)
	err := l.step(page, Step{Action: ActionWait, Selector: "div.missing"})
	assert.ErrorIs(t, err, browser.ErrTimeout)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no url", func(c *Config) { c.LoginURL = "" }},
		{"no attempts", func(c *Config) { c.BrowserAttempts = 0 }},
		{"bad action", func(c *Config) { c.Landing = append(c.Landing, Step{Action: "hover", Selector: "x"}) }},
		{"click without selector", func(c *Config) { c.Landing = []Step{{Action: ActionClick}} }},
		{"pause without duration", func(c *Config) { c.Landing = []Step{{Action: ActionPause}} }},
		{"no ready", func(c *Config) { c.Ready.Wait = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	p := &LinePrompter{In: strings.NewReader("\n"), Out: &out}
	require.NoError(t, p.WaitForHuman(context.Background(), "solve it → "))
	assert.Equal(t, "solve it → ", out.String())

	// EOF counts as confirmation.
	require.NoError(t, p.WaitForHuman(context.Background(), "again → "))
}
