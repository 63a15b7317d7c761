package modal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/portalrunner/pkg/browser"
	"github.com/entrhq/portalrunner/pkg/browser/browsertest"
)

func newResolver(t *testing.T) (*Resolver, Config) {
	t.Helper()
	cfg := DefaultConfig()
	r, err := NewResolver(cfg)
	require.NoError(t, err)
	return r, cfg
}

func btn(text, class string) browser.Element {
	return browser.Element{Text: text, Class: "swal2-styled " + class}
}

func resultPage(cfg Config, titleSel, title string) *browsertest.Page {
	page := browsertest.NewPage()
	page.Show(cfg.Popup, titleSel)
	page.Texts[titleSel] = title
	page.Elements[cfg.Buttons] = []browser.Element{btn("Okay", "swal2-confirm")}
	page.On("click", cfg.Buttons+" >> nth=0", func(p *browsertest.Page) error {
		p.Hide(cfg.Popup, titleSel)
		return nil
	})
	return page
}

func TestStrategies(t *testing.T) {
	buttons := []browser.Element{
		btn("Cancel", "swal2-confirm"),
		btn("Confirm", "swal2-cancel"),
	}

	tests := []struct {
		name     string
		strategy Strategy
		buttons  []browser.Element
		want     int
		ok       bool
	}{
		{"label exact", LabelMatch("Confirm"), buttons, 1, true},
		{"label order", LabelMatch("Yes", "Cancel"), buttons, 0, true},
		{"label case", LabelMatch("confirm"), buttons, 1, true},
		{"label substring", LabelMatch("Conf"), buttons, 1, true},
		{"label missing", LabelMatch("Yes"), buttons, -1, false},
		{"label ambiguous", LabelMatch("C"), buttons, -1, false},
		{"class", ClassInversion("swal2-cancel"), buttons, 1, true},
		{"class missing", ClassInversion("swal2-deny"), buttons, -1, false},
		{"class not substring", ClassInversion("swal2"), buttons, -1, false},
		{"last", LastButton(), buttons, 1, true},
		{"last empty", LastButton(), nil, -1, false},
		{"first of falls through", FirstOf(LabelMatch("Yes"), ClassInversion("swal2-confirm")), buttons, 0, true},
		{"first of nothing", FirstOf(LabelMatch("Yes")), buttons, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.strategy(tt.buttons)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestChoose(t *testing.T) {
	_, err := Choose(LastButton(), nil)
	assert.ErrorIs(t, err, ErrAmbiguous)

	_, err = Choose(LabelMatch("Yes"), []browser.Element{btn("No", "")})
	assert.ErrorIs(t, err, ErrAmbiguous)

	i, err := Choose(LastButton(), []browser.Element{btn("a", ""), btn("b", "")})
	require.NoError(t, err)
	assert.Equal(t, 1, i)
}

func TestNewResolver_Validation(t *testing.T) {
	_, err := NewResolver(Config{})
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.ReferencePattern = "("
	_, err = NewResolver(cfg)
	assert.Error(t, err)
}

func TestResolve_Success(t *testing.T) {
	r, cfg := newResolver(t)
	page := resultPage(cfg, cfg.SuccessTitle, "Release request generated. Request No: RR-2025-0042")

	out := r.Resolve(page)
	assert.Equal(t, Success, out.Kind)
	assert.Equal(t, "RR-2025-0042", out.Reference)
	assert.Equal(t, 1, page.Called("click "+cfg.Buttons))
	assert.False(t, page.Visible[cfg.Popup])
}

func TestResolve_SuccessWithoutReference(t *testing.T) {
	r, cfg := newResolver(t)
	page := resultPage(cfg, cfg.SuccessTitle, "Done")

	out := r.Resolve(page)
	assert.Equal(t, Success, out.Kind)
	assert.Empty(t, out.Reference)
	assert.Equal(t, "success", out.String())
}

func TestResolve_AlreadyPending(t *testing.T) {
	r, cfg := newResolver(t)
	page := resultPage(cfg, cfg.ErrorTitle, "Request is Already Pending for this student")

	out := r.Resolve(page)
	assert.Equal(t, AlreadyDone, out.Kind)
}

func TestResolve_Error(t *testing.T) {
	r, cfg := newResolver(t)
	page := resultPage(cfg, cfg.ErrorTitle, "Student not found")

	out := r.Resolve(page)
	assert.Equal(t, Error, out.Kind)
	assert.Equal(t, "Student not found", out.Message)
	assert.Equal(t, "error: Student not found", out.String())
}

func TestResolve_NoDialog(t *testing.T) {
	r, _ := newResolver(t)
	page := browsertest.NewPage()

	out := r.Resolve(page)
	assert.Equal(t, NoDialog, out.Kind)
	assert.Zero(t, page.Called("click"))
}

func TestResolve_WaitFailure(t *testing.T) {
	r, cfg := newResolver(t)
	page := browsertest.NewPage()
	page.Errors["wait "+cfg.Popup] = errors.New("target closed")

	out := r.Resolve(page)
	assert.Equal(t, Unresolved, out.Kind)
	assert.Contains(t, out.Message, "target closed")
}

func TestResolve_UnknownDialogIsStillDismissed(t *testing.T) {
	r, cfg := newResolver(t)
	page := browsertest.NewPage()
	page.Show(cfg.Popup)
	page.Elements[cfg.Buttons] = []browser.Element{btn("OK", "swal2-confirm")}

	out := r.Resolve(page)
	assert.Equal(t, Unresolved, out.Kind)
	assert.Equal(t, 1, page.Called("click "+cfg.Buttons+" >> nth=0"))
}

func TestResolveConfirm_LabelBeatsClass(t *testing.T) {
	r, cfg := newResolver(t)
	page := browsertest.NewPage()
	page.Show(cfg.Popup)
	// "Confirm" carries the regular confirm class here; the class inversion
	// alone would pick "Cancel".
	page.Elements[cfg.Buttons] = []browser.Element{
		btn("Confirm", "swal2-confirm"),
		btn("Cancel", "swal2-cancel"),
	}
	page.On("click", cfg.Buttons+" >> nth=0", func(p *browsertest.Page) error {
		p.Show(cfg.SuccessPopup, cfg.SuccessTitle)
		p.Texts[cfg.SuccessTitle] = "Imported successfully"
		p.Elements[cfg.Buttons] = []browser.Element{btn("Okay", "swal2-confirm")}
		p.On("click", cfg.Buttons+" >> nth=0", func(p *browsertest.Page) error {
			p.Hide(cfg.Popup, cfg.SuccessPopup, cfg.SuccessTitle)
			return nil
		})
		return nil
	})

	out := r.ResolveConfirm(page)
	assert.Equal(t, Success, out.Kind)
	assert.True(t, out.Confirmed)
	assert.Zero(t, page.Called("click "+cfg.Buttons+" >> nth=1"))
	assert.Equal(t, cfg.Settle, page.Paused)
}

func TestResolveConfirm_ClassInversion(t *testing.T) {
	r, cfg := newResolver(t)
	page := browsertest.NewPage()
	page.Show(cfg.Popup)
	page.Elements[cfg.Buttons] = []browser.Element{
		btn("Nein", "swal2-confirm"),
		btn("Ja", "swal2-cancel"),
	}
	page.On("click", cfg.Buttons+" >> nth=1", func(p *browsertest.Page) error {
		p.Hide(cfg.Popup)
		return nil
	})

	out := r.ResolveConfirm(page)
	assert.True(t, out.Confirmed)
	assert.Equal(t, NoDialog, out.Kind)
	assert.Equal(t, 1, page.Called("click "+cfg.Buttons+" >> nth=1"))
}

func TestResolveConfirm_LastButton(t *testing.T) {
	r, cfg := newResolver(t)
	page := browsertest.NewPage()
	page.Show(cfg.Popup)
	page.Elements[cfg.Buttons] = []browser.Element{btn("Nein", ""), btn("Ja", "")}
	page.On("click", cfg.Buttons+" >> nth=1", func(p *browsertest.Page) error {
		p.Hide(cfg.Popup)
		return nil
	})

	out := r.ResolveConfirm(page)
	assert.True(t, out.Confirmed)
	assert.Equal(t, NoDialog, out.Kind)
	assert.Equal(t, 1, page.Called("click "+cfg.Buttons+" >> nth=1"))
}

func TestResolveConfirm_ErrorResult(t *testing.T) {
	r, cfg := newResolver(t)
	page := browsertest.NewPage()
	page.Show(cfg.Popup)
	page.Elements[cfg.Buttons] = []browser.Element{btn("Yes", "swal2-confirm")}
	// The result popup reuses the confirmation markup and carries the error
	// icon, so SuccessPopup never matches.
	page.On("click", cfg.Buttons+" >> nth=0", func(p *browsertest.Page) error {
		p.Show(cfg.ErrorTitle)
		p.Texts[cfg.ErrorTitle] = "Student is in another school"
		p.Elements[cfg.Buttons] = []browser.Element{btn("Okay", "swal2-confirm")}
		p.On("click", cfg.Buttons+" >> nth=0", func(p *browsertest.Page) error {
			p.Hide(cfg.Popup, cfg.ErrorTitle)
			return nil
		})
		return nil
	})

	out := r.ResolveConfirm(page)
	assert.Equal(t, Error, out.Kind)
	assert.Equal(t, "Student is in another school", out.Message)
	assert.True(t, out.Confirmed)
	assert.False(t, page.Visible[cfg.Popup], "result popup is dismissed")
	assert.Equal(t, cfg.Settle, page.Paused)
}

func TestResolveConfirm_ResultAppearsLate(t *testing.T) {
	r, cfg := newResolver(t)
	page := browsertest.NewPage()
	page.Show(cfg.Popup)
	page.Elements[cfg.Buttons] = []browser.Element{btn("Confirm", "")}
	page.On("click", cfg.Buttons+" >> nth=0", func(p *browsertest.Page) error {
		p.Hide(cfg.Popup)
		return nil
	})
	polls := 0
	page.On("visible", cfg.SuccessPopup, func(p *browsertest.Page) error {
		polls++
		if polls == 3 {
			showResult(p, cfg, cfg.SuccessTitle, "Imported")
		}
		return nil
	})

	out := r.ResolveConfirm(page)
	assert.Equal(t, Success, out.Kind)
	assert.True(t, out.Confirmed)
	assert.Equal(t, cfg.Settle+3*resultPoll, page.Paused)
}

func TestResolveConfirm_UnrecognisedResult(t *testing.T) {
	_, cfg := newResolver(t)
	cfg.Appear = 4 * resultPoll
	r, err := NewResolver(cfg)
	require.NoError(t, err)

	page := browsertest.NewPage()
	page.Show(cfg.Popup)
	page.Elements[cfg.Buttons] = []browser.Element{btn("Confirm", "swal2-confirm")}

	out := r.ResolveConfirm(page)
	assert.Equal(t, Unresolved, out.Kind)
	assert.True(t, out.Confirmed)
	assert.Equal(t, "unrecognised dialog", out.Message)
}

func showResult(p *browsertest.Page, cfg Config, titleSel, title string) {
	p.Show(cfg.Popup, titleSel)
	p.Texts[titleSel] = title
	p.Elements[cfg.Buttons] = []browser.Element{btn("Okay", "swal2-confirm")}
	p.On("click", cfg.Buttons+" >> nth=0", func(p *browsertest.Page) error {
		p.Hide(cfg.Popup, titleSel)
		return nil
	})
}

func TestResolveConfirm_NoButtons(t *testing.T) {
	r, cfg := newResolver(t)
	page := browsertest.NewPage()
	page.Show(cfg.Popup)

	out := r.ResolveConfirm(page)
	assert.Equal(t, Unresolved, out.Kind)
	assert.False(t, out.Confirmed)
	assert.Contains(t, out.Message, ErrAmbiguous.Error())
}

func TestResolveConfirm_ClickFails(t *testing.T) {
	r, cfg := newResolver(t)
	page := browsertest.NewPage()
	page.Show(cfg.Popup)
	page.Elements[cfg.Buttons] = []browser.Element{btn("Confirm", "")}
	page.Errors["click "+cfg.Buttons+" >> nth=0"] = errors.New("detached")

	out := r.ResolveConfirm(page)
	assert.Equal(t, Unresolved, out.Kind)
	assert.False(t, out.Confirmed)
}

func TestResolveConfirm_NoDialog(t *testing.T) {
	r, _ := newResolver(t)
	out := r.ResolveConfirm(browsertest.NewPage())
	assert.Equal(t, NoDialog, out.Kind)
	assert.False(t, out.Confirmed)
}
