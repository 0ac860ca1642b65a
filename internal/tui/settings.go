package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"taskpad/internal/nav"
	"taskpad/internal/prefs"
	"taskpad/internal/utils"
)

func (m *Model) handleSettingsKey(msg tea.KeyMsg) tea.Cmd {
	if m.editingBackground {
		switch msg.Type {
		case tea.KeyEnter:
			m.editingBackground = false
			m.form.blur()
			if err := m.app.Prefs.SetBackground(m.form.value(0)); err != nil {
				m.errText = utils.UserMessage(err)
				return nil
			}
			m.info = "Background updated."
			return nil
		case tea.KeyEsc:
			m.editingBackground = false
			m.form.blur()
			m.form.inputs[0].SetValue(m.app.Prefs.Background())
			return nil
		}
		return m.form.update(msg)
	}

	switch msg.String() {
	case "esc", "q":
		return m.navigate(nav.Home, nil)
	case "t":
		if _, err := m.app.Prefs.ToggleMode(); err != nil {
			m.errText = utils.UserMessage(err)
			return nil
		}
		m.applyTheme()
	case "b":
		m.editingBackground = true
		m.info = ""
		return m.form.focusCmd()
	case "r":
		if err := m.app.Prefs.SetBackground(""); err != nil {
			m.errText = utils.UserMessage(err)
			return nil
		}
		m.form.inputs[0].SetValue(m.app.Prefs.Background())
		m.info = "Background reset."
	case "l":
		return m.logout()
	}
	return nil
}

// logout ends the session. The navigation controller returns to Login
// when the session store reports the absent identity.
func (m *Model) logout() tea.Cmd {
	if m.inflight > 0 {
		return nil
	}
	gen := m.state.Generation
	session, ctx := m.app.Session, m.ctx
	return m.start(func() tea.Msg {
		return authDoneMsg{gen: gen, screen: nav.Settings, err: session.Logout(ctx)}
	})
}

func (m *Model) settingsView() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Settings") + "\n\n")

	if m.identity != nil {
		b.WriteString(m.styles.badge.Render(m.identity.Initials()) + " " + m.identity.Name() + "\n")
		b.WriteString(m.styles.subtle.Render(m.identity.Email) + "\n\n")
	}

	mode := "Light"
	if m.app.Prefs.Mode() == prefs.Dark {
		mode = "Dark"
	}
	b.WriteString("Theme: " + m.styles.accent.Render(mode) + "\n\n")

	bg := "Background:"
	if m.app.Prefs.IsDefaultBackground() {
		bg += " " + m.styles.subtle.Render("(default)")
	}
	b.WriteString(bg + "\n")
	b.WriteString(m.form.inputs[0].View() + "\n\n")

	b.WriteString(m.styles.subtle.Render("t: toggle theme  b: edit background  r: reset background  l: log out  esc: back"))
	return m.styles.dialog.Render(b.String())
}
