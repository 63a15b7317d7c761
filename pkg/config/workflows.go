package config

import (
	"errors"
	"fmt"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/lander"
	"github.com/entrhq/portalrunner/pkg/workflow"
)

// ErrNoWorkflow is returned by Build for an unknown workflow.
var ErrNoWorkflow = errors.New("no such workflow")

// Build constructs the configured workflow.
func (c *Config) Build() (workflow.Workflow, error) {
	switch c.Workflow {
	case workflow.PEN:
		return workflow.NewPENLookup(c.Workflows.PEN), nil
	case workflow.School:
		return workflow.NewSchoolLookup(c.Workflows.School), nil
	case workflow.Release:
		return workflow.NewReleaseRequests(c.Workflows.Release)
	case workflow.Export:
		return workflow.NewPendingExport(c.Workflows.Export), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoWorkflow, c.Workflow)
	}
}

// LoginConfig returns the portal login completed with the workflow's
// landing steps and readiness check. Landing steps set under portal.login
// take precedence.
func (c *Config) LoginConfig() lander.Config {
	lc := c.Portal.Login

	var (
		landing []lander.Step
		ready   lander.Readiness
	)
	switch c.Workflow {
	case workflow.PEN:
		landing, ready = c.Workflows.PEN.Landing, c.Workflows.PEN.Ready
	case workflow.School:
		landing, ready = c.Workflows.School.Landing, c.Workflows.School.Ready
	case workflow.Release:
		landing, ready = c.Workflows.Release.Landing, c.Workflows.Release.Ready
	case workflow.Export:
		landing, ready = c.Workflows.Export.Landing, c.Workflows.Export.Ready
	}

	if len(lc.Landing) == 0 {
		lc.Landing = landing
	}
	if lc.Ready.Wait == "" {
		lc.Ready = ready
	}
	if lc.Ready.Timeout == 0 {
		lc.Ready.Timeout = lc.PageTimeout
	}
	return lc
}

// SessionOptions returns the browser launch options.
func (c *Config) SessionOptions() browser.SessionOptions {
	opts := browser.SessionOptions{
		Headless: c.Portal.Headless,
		Timeout:  c.Portal.Timeout,
		Args:     c.Portal.BrowserArgs,
	}
	if c.Portal.Viewport.Width > 0 && c.Portal.Viewport.Height > 0 {
		opts.Viewport = &browser.Viewport{
			Width:  c.Portal.Viewport.Width,
			Height: c.Portal.Viewport.Height,
		}
	}
	return opts
}
