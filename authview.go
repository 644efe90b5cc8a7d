package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// authForm drives the login and signup screens: a field list, the focused
// index, and a one-line message for errors or hints.
type authForm struct {
	fields     []textinput.Model
	labels     []string
	focus      int
	message    string
	submitting bool
}

func newLoginForm() authForm {
	username := textinput.New()
	username.Placeholder = "username"
	username.Focus()
	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	return authForm{
		fields: []textinput.Model{username, password},
		labels: []string{"Username", "Password"},
	}
}

func newSignupForm() authForm {
	username := textinput.New()
	username.Placeholder = "username"
	username.Focus()
	email := textinput.New()
	email.Placeholder = "email"
	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	return authForm{
		fields: []textinput.Model{username, email, password},
		labels: []string{"Username", "Email", "Password"},
	}
}

func (f *authForm) cycleFocus(delta int) {
	f.fields[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.fields)) % len(f.fields)
	f.fields[f.focus].Focus()
}

func (f *authForm) values() []string {
	out := make([]string, len(f.fields))
	for i := range f.fields {
		out[i] = strings.TrimSpace(f.fields[i].Value())
	}
	return out
}

func (f *authForm) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.fields[f.focus], cmd = f.fields[f.focus].Update(msg)
	return cmd
}

func (m model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		m.login.cycleFocus(1)
		return m, nil
	case "shift+tab", "up":
		m.login.cycleFocus(-1)
		return m, nil
	case "ctrl+n":
		m.signup = newSignupForm()
		m.screen = screenSignup
		return m, textinput.Blink
	case "enter":
		if m.login.submitting {
			return m, nil
		}
		vals := m.login.values()
		if vals[0] == "" || vals[1] == "" {
			m.login.message = "Username and password are required."
			return m, nil
		}
		m.login.submitting = true
		m.login.message = "Logging in..."
		return m, loginCmd(m.api, vals[0], vals[1])
	}
	cmd := m.login.updateFocused(msg)
	return m, cmd
}

func (m model) handleSignupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.screen = screenLogin
		return m, textinput.Blink
	case "tab", "down":
		m.signup.cycleFocus(1)
		return m, nil
	case "shift+tab", "up":
		m.signup.cycleFocus(-1)
		return m, nil
	case "enter":
		if m.signup.submitting {
			return m, nil
		}
		vals := m.signup.values()
		if vals[0] == "" || vals[1] == "" || vals[2] == "" {
			m.signup.message = "All fields are required."
			return m, nil
		}
		m.signup.submitting = true
		m.signup.message = "Creating account..."
		return m, signupCmd(m.api, vals[0], vals[1], vals[2])
	}
	cmd := m.signup.updateFocused(msg)
	return m, cmd
}

func (m model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	m.login.submitting = false
	if msg.err != nil {
		m.logger.Warn("login failed", zap.Error(msg.err))
		m.login.message = msg.err.Error()
		return m, nil
	}

	if err := saveAuthState(m.paths.authPath, msg.state); err != nil {
		m.logger.Warn("persist auth state failed", zap.Error(err))
	}
	m.auth = msg.state
	m.api = newAPIClient(m.cfg.BaseURL, msg.state.Token)
	m.screen = screenChat
	m.focus = focusSidebar
	m.status = "Welcome back, " + msg.state.User.Username
	return m, loadWorkspaceCmd(m.api)
}

func (m model) handleSignupResult(msg signupResultMsg) (tea.Model, tea.Cmd) {
	m.signup.submitting = false
	if msg.err != nil {
		m.logger.Warn("signup failed", zap.Error(msg.err))
		m.signup.message = msg.err.Error()
		return m, nil
	}

	// Account created; the user still logs in explicitly.
	m.login = newLoginForm()
	m.login.message = msg.message
	m.screen = screenLogin
	return m, textinput.Blink
}

func (m model) renderLogin() string {
	return renderAuthScreen("Log in to CodeChat", m.login,
		"enter submit · tab next field · ctrl+n sign up · ctrl+c quit")
}

func (m model) renderSignup() string {
	return renderAuthScreen("Create a CodeChat account", m.signup,
		"enter submit · tab next field · esc back to login · ctrl+c quit")
}

func renderAuthScreen(title string, form authForm, help string) string {
	lines := []string{
		"",
		titleStyle.Render("  " + title),
		"",
	}
	for i, field := range form.fields {
		lines = append(lines, "  "+form.labels[i]+": "+field.View())
	}
	lines = append(lines, "")
	if form.message != "" {
		lines = append(lines, "  "+form.message)
		lines = append(lines, "")
	}
	lines = append(lines, helpStyle.Render("  "+help))
	return strings.Join(lines, "\n")
}
