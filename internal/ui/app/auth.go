// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/knowhub/internal/ui/styles"
)

// authMode selects between the two auth forms.
type authMode int

const (
	modeLogin authMode = iota
	modeSignup
)

// Field indexes into authForm.inputs.
const (
	fieldEmail = iota
	fieldPassword
	fieldName
)

// authForm is the login/signup form.
type authForm struct {
	mode   authMode
	inputs []textinput.Model
	focus  int
	busy   bool
	err    string
}

func newAuthForm() authForm {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.CharLimit = 256

	name := textinput.New()
	name.Placeholder = "Your name"
	name.CharLimit = 100

	f := authForm{inputs: []textinput.Model{email, password, name}}
	for i := range f.inputs {
		f.inputs[i].Prompt = ""
		f.inputs[i].Width = 32
	}
	return f
}

// fieldCount is the number of fields visible in the current mode.
func (f *authForm) fieldCount() int {
	if f.mode == modeSignup {
		return 3
	}
	return 2
}

// focusField moves focus to field i.
func (f *authForm) focusField(i int) tea.Cmd {
	n := f.fieldCount()
	f.focus = ((i % n) + n) % n
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	return f.inputs[f.focus].Focus()
}

// toggleMode switches between login and signup, keeping typed values.
func (f *authForm) toggleMode() tea.Cmd {
	if f.mode == modeLogin {
		f.mode = modeSignup
	} else {
		f.mode = modeLogin
	}
	f.err = ""
	return f.focusField(min(f.focus, f.fieldCount()-1))
}

// reset clears every field and returns to login.
func (f *authForm) reset() tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Reset()
	}
	f.mode = modeLogin
	f.busy = false
	f.err = ""
	return f.focusField(fieldEmail)
}

func (f *authForm) values() (email, password, name string) {
	return strings.TrimSpace(f.inputs[fieldEmail].Value()),
		f.inputs[fieldPassword].Value(),
		strings.TrimSpace(f.inputs[fieldName].Value())
}

// update forwards a message to the focused input.
func (f *authForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// =============================================================================
// UPDATE
// =============================================================================

func (m *Model) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.auth
	if f.busy {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.ToggleMode):
		return m, f.toggleMode()
	case key.Matches(msg, m.keys.NextField):
		return m, f.focusField(f.focus + 1)
	case key.Matches(msg, m.keys.PrevField):
		return m, f.focusField(f.focus - 1)
	case key.Matches(msg, m.keys.Submit):
		if f.focus < f.fieldCount()-1 {
			return m, f.focusField(f.focus + 1)
		}
		return m, m.submitAuth()
	}
	return m, f.update(msg)
}

// submitAuth starts a login or signup. Missing fields are reported by the
// session store without any network call.
func (m *Model) submitAuth() tea.Cmd {
	f := &m.auth
	email, password, name := f.values()
	f.busy = true
	f.err = ""

	store := m.store
	ctx := m.scope.context()
	if f.mode == modeSignup {
		return func() tea.Msg {
			cred, err := store.Signup(ctx, email, password, name)
			return authResultMsg{email: email, cred: cred, err: err}
		}
	}
	return func() tea.Msg {
		cred, err := store.Login(ctx, email, password)
		return authResultMsg{email: email, cred: cred, err: err}
	}
}

func (m *Model) handleAuthResult(msg authResultMsg) (tea.Model, tea.Cmd) {
	m.auth.busy = false
	if msg.err != nil {
		m.auth.err = errorText(msg.err)
		m.logger.Info("authentication failed", "mode", m.auth.modeName(), "error", msg.err)
		return m, nil
	}

	m.auth.reset()
	m.auth.inputs[fieldEmail].Blur()
	m.screen = ScreenDocuments
	m.toasts.AddSuccess("Signed in as " + signedInAs(msg))
	m.docs.refreshing = true
	return m, m.refreshCmd()
}

// signedInAs prefers the token's claims and falls back to the typed email
// for opaque tokens.
func signedInAs(msg authResultMsg) string {
	if msg.cred.Claims.Name == "" && msg.cred.Claims.Email == "" && msg.email != "" {
		return msg.email
	}
	return msg.cred.DisplayName()
}

func (f *authForm) modeName() string {
	if f.mode == modeSignup {
		return "signup"
	}
	return "login"
}

// =============================================================================
// VIEW
// =============================================================================

func (m *Model) viewAuth(width, height int) string {
	f := &m.auth
	theme := m.theme

	title := "Sign in"
	if f.mode == modeSignup {
		title = "Create an account"
	}

	labels := []string{"Email", "Password", "Name"}
	var b strings.Builder
	b.WriteString(theme.FormTitle.Render(title))
	b.WriteString("\n")
	for i := 0; i < f.fieldCount(); i++ {
		label := theme.FormLabel
		if i == f.focus {
			label = theme.FormLabelFocus
		}
		b.WriteString(label.Render(labels[i]))
		b.WriteString("\n")
		b.WriteString(f.inputs[i].View())
		b.WriteString("\n\n")
	}

	switch {
	case f.busy:
		b.WriteString(theme.Spinner.Render(m.spinner.View()) + " " + theme.ThinkingText.Render("Contacting the server..."))
	case f.err != "":
		b.WriteString(theme.ErrorStyle.Render(styles.StatusIndicators.Error+" ") + theme.ErrorMessage.Render(f.err))
	default:
		other := "New here? Press ctrl+t to sign up."
		if f.mode == modeSignup {
			other = "Have an account? Press ctrl+t to sign in."
		}
		b.WriteString(theme.FormHint.Render(other))
	}

	box := theme.FormBox.Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
