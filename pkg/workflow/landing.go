package workflow

import (
	"time"

	"github.com/entrhq/portalrunner/pkg/lander"
)

const (
	yearFilter  = "div.filter2:has-text('Go to 2025-26')"
	noticeModal = "div.modal-dialog"
	noticeClose = "button.btn.btn-danger:has-text('Close')"
	movementNav = "span.HideMobile:has-text('Student Movement and Progression')"

	generateRelease = "button:has-text('Generate Student Release Request')"
)

// entry picks the academic year and dismisses the optional notice shown
// after login.
func entry() []lander.Step {
	return []lander.Step{
		{Action: lander.ActionClick, Selector: yearFilter},
		{Action: lander.ActionClickIfVisible, Selector: noticeModal, Target: noticeClose},
	}
}

// importModuleLanding reaches the Import Module search page.
func importModuleLanding() []lander.Step {
	return append(entry(),
		lander.Step{Action: lander.ActionClick, Selector: movementNav},
		lander.Step{Action: lander.ActionClick, Selector: "span.HideMobile:has-text('Import Module')"},
		lander.Step{Action: lander.ActionIdle},
	)
}

// progressionLanding reaches the Progression Activity page.
func progressionLanding(summaryLink string) []lander.Step {
	return append(entry(),
		lander.Step{Action: lander.ActionClick, Selector: movementNav},
		lander.Step{Action: lander.ActionClick, Selector: "span.HideMobile:has-text('Progression Activity')"},
		lander.Step{Action: lander.ActionPause, Timeout: 4 * time.Second},
		lander.Step{Action: lander.ActionWait, Selector: summaryLink},
	)
}

// releaseLanding reaches the release request module.
func releaseLanding() []lander.Step {
	return append(entry(),
		lander.Step{Action: lander.ActionClick, Selector: "span.HideMobile:has-text('Student Release Request Management')"},
		lander.Step{Action: lander.ActionPause, Timeout: 500 * time.Millisecond},
		lander.Step{Action: lander.ActionClick, Selector: "li.cardIcon:has(h2:has-text('Student Release Request Management')) button:has-text('Go')"},
		lander.Step{Action: lander.ActionIdle},
		lander.Step{Action: lander.ActionClick, Selector: generateRelease},
		lander.Step{Action: lander.ActionIdle},
	)
}
