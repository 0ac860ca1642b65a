package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"taskpad/internal/nav"
	"taskpad/internal/utils"
)

type authDoneMsg struct {
	gen    uint64
	screen nav.Screen
	email  string
	err    error
}

func newAuthForm(screen nav.Screen) form {
	email := field{label: "Email", placeholder: "you@example.com"}
	password := field{label: "Password", placeholder: "password", secret: true}

	switch screen {
	case nav.Register:
		return newForm(email, password, field{label: "Confirm password", placeholder: "password", secret: true})
	case nav.ForgotPassword:
		return newForm(email)
	default:
		return newForm(email, password)
	}
}

func (m *Model) handleAuthKey(msg tea.KeyMsg) tea.Cmd {
	screen := m.state.Screen
	switch msg.String() {
	case "tab", "down":
		return m.form.move(1)
	case "shift+tab", "up":
		return m.form.move(-1)
	case "enter":
		if !m.form.onLast() {
			return m.form.move(1)
		}
		return m.submitAuth()
	case "ctrl+r":
		if screen == nav.Login {
			return m.navigate(nav.Register, nil)
		}
	case "ctrl+f":
		if screen == nav.Login {
			return m.navigate(nav.ForgotPassword, nil)
		}
	case "esc":
		if screen != nav.Login {
			return m.navigate(nav.Login, nil)
		}
		return tea.Quit
	}
	return m.form.update(msg)
}

// submitAuth checks the form locally, then runs the session operation
func (m *Model) submitAuth() tea.Cmd {
	if m.inflight > 0 {
		return nil
	}
	m.info = ""
	screen, gen := m.state.Screen, m.state.Generation
	email := m.form.value(0)
	session, ctx := m.app.Session, m.ctx

	switch screen {
	case nav.Login:
		password := m.form.raw(1)
		if email == "" || password == "" {
			m.errText = "Please fill in all fields."
			return nil
		}
		return m.start(func() tea.Msg {
			_, err := session.Login(ctx, email, password)
			return authDoneMsg{gen: gen, screen: screen, email: email, err: err}
		})

	case nav.Register:
		password, confirm := m.form.raw(1), m.form.raw(2)
		if email == "" || password == "" || confirm == "" {
			m.errText = "Please fill in all fields."
			return nil
		}
		if password != confirm {
			m.errText = "Passwords do not match."
			return nil
		}
		return m.start(func() tea.Msg {
			_, err := session.Register(ctx, email, password)
			return authDoneMsg{gen: gen, screen: screen, email: email, err: err}
		})

	case nav.ForgotPassword:
		if email == "" {
			m.errText = "Please enter your email."
			return nil
		}
		return m.start(func() tea.Msg {
			err := session.ResetPassword(ctx, email)
			return authDoneMsg{gen: gen, screen: screen, email: email, err: err}
		})
	}
	return nil
}

// handleAuthDone shows the outcome. Successful sign-ins need nothing here:
// the navigation controller moves to Home on the identity change.
func (m *Model) handleAuthDone(msg authDoneMsg) tea.Cmd {
	if msg.err != nil {
		utils.Debugf("TUI: %s failed: %v", msg.screen, msg.err)
	}
	if m.stale(msg.gen) {
		return nil
	}
	if msg.err != nil {
		m.errText = utils.UserMessage(msg.err)
		return nil
	}
	if msg.screen == nav.ForgotPassword {
		cmd := m.navigate(nav.Login, nil)
		m.info = "Password reset instructions sent to " + utils.NormalizeEmail(msg.email) + "."
		return cmd
	}
	return nil
}

func (m *Model) authView() string {
	var title, help string
	switch m.state.Screen {
	case nav.Login:
		title = "Welcome back"
		help = "enter: sign in  ctrl+r: create account  ctrl+f: forgot password  esc: quit"
	case nav.Register:
		title = "Create account"
		help = "enter: register  esc: back to sign in"
	case nav.ForgotPassword:
		title = "Reset password"
		help = "enter: send reset link  esc: back to sign in"
	}

	var b strings.Builder
	b.WriteString(m.styles.title.Render("taskpad · "+title) + "\n\n")
	b.WriteString(m.form.view(m.styles))
	b.WriteString(m.styles.subtle.Render(help))
	return m.styles.dialog.Render(b.String())
}
