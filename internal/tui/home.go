package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskpad/backend"
	"taskpad/internal/dashboard"
	"taskpad/internal/nav"
	"taskpad/internal/utils"
)

type itemsLoadedMsg struct {
	gen   uint64
	items []backend.Item
	err   error
}

type toggleDoneMsg struct {
	gen    uint64
	toggle dashboard.Toggle
	item   *backend.Item
	err    error
}

type itemDeletedMsg struct {
	gen uint64
	id  string
	err error
}

func (m *Model) enterHome() tea.Cmd {
	m.loaded = false
	m.cursor = 0
	m.search = newForm(field{placeholder: "Search tasks..."})
	m.query = ""
	return m.loadItems()
}

func (m *Model) loadItems() tea.Cmd {
	gen := m.state.Generation
	a, ctx := m.app, m.ctx
	return m.start(func() tea.Msg {
		items, err := a.ListItems(ctx)
		return itemsLoadedMsg{gen: gen, items: items, err: err}
	})
}

func (m *Model) handleItemsLoaded(msg itemsLoadedMsg) tea.Cmd {
	if m.stale(msg.gen) {
		return nil
	}
	if msg.err != nil {
		m.errText = utils.UserMessage(msg.err)
		return nil
	}
	m.board.Replace(msg.items)
	m.loaded = true
	m.clampCursor()
	return nil
}

// visible returns the board filtered by the active tab and search query
func (m *Model) visible() []backend.Item {
	return dashboard.Filter(m.board.Items(), m.tab, m.query)
}

func (m *Model) selected() (backend.Item, bool) {
	items := m.visible()
	if m.cursor < 0 || m.cursor >= len(items) {
		return backend.Item{}, false
	}
	return items[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) cycleTab(delta int) {
	i := 0
	for j, t := range dashboard.Tabs {
		if t == m.tab {
			i = j
		}
	}
	n := len(dashboard.Tabs)
	m.tab = dashboard.Tabs[(i+delta+n)%n]
	m.cursor = 0
}

func (m *Model) handleHomeKey(msg tea.KeyMsg) tea.Cmd {
	if m.searching {
		switch msg.Type {
		case tea.KeyEnter:
			m.searching = false
			m.search.blur()
			return nil
		case tea.KeyEsc:
			m.searching = false
			m.search = newForm(field{placeholder: "Search tasks..."})
			m.query = ""
			m.clampCursor()
			return nil
		}
		cmd := m.search.update(msg)
		m.query = m.search.value(0)
		m.cursor = 0
		return cmd
	}

	if m.confirmDelete {
		switch msg.String() {
		case "y", "Y":
			m.confirmDelete = false
			return m.deleteSelected()
		case "n", "N", "esc":
			m.confirmDelete = false
		}
		return nil
	}

	switch msg.String() {
	case "q":
		return tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case "tab", "right", "l":
		m.cycleTab(1)
	case "shift+tab", "left", "h":
		m.cycleTab(-1)
	case "/":
		m.searching = true
		return m.search.focusCmd()
	case " ", "x":
		return m.toggleSelected()
	case "d":
		if _, ok := m.selected(); ok {
			m.confirmDelete = true
		}
	case "e", "enter":
		if item, ok := m.selected(); ok {
			return m.navigate(nav.EditItem, &item)
		}
	case "a":
		return m.navigate(nav.AddItem, nil)
	case "s":
		return m.navigate(nav.Settings, nil)
	case "r":
		return m.loadItems()
	}
	return nil
}

// toggleSelected flips the status on the board right away and asks the
// store to confirm. A failure rolls the board back.
func (m *Model) toggleSelected() tea.Cmd {
	item, ok := m.selected()
	if !ok {
		return nil
	}
	t, err := m.board.BeginToggle(item.ID)
	if err != nil {
		m.errText = utils.UserMessage(err)
		return nil
	}
	m.clampCursor()

	gen := m.state.Generation
	a, ctx := m.app, m.ctx
	return m.start(func() tea.Msg {
		updated, err := a.UpdateItem(ctx, t.ID, backend.Patch{Status: backend.Ptr(t.Target)})
		return toggleDoneMsg{gen: gen, toggle: t, item: updated, err: err}
	})
}

// handleToggleDone settles the board even for a stale result, since the
// board outlives the screen and must end up matching the store.
func (m *Model) handleToggleDone(msg toggleDoneMsg) tea.Cmd {
	if msg.err != nil {
		m.board.Rollback(msg.toggle)
		if !m.stale(msg.gen) {
			m.errText = "Could not update task. " + utils.UserMessage(msg.err)
		}
		return nil
	}
	m.board.Commit(msg.toggle, *msg.item)
	return nil
}

func (m *Model) deleteSelected() tea.Cmd {
	item, ok := m.selected()
	if !ok {
		return nil
	}
	gen := m.state.Generation
	a, ctx := m.app, m.ctx
	return m.start(func() tea.Msg {
		return itemDeletedMsg{gen: gen, id: item.ID, err: a.DeleteItem(ctx, item.ID)}
	})
}

func (m *Model) handleItemDeleted(msg itemDeletedMsg) tea.Cmd {
	if m.stale(msg.gen) {
		return nil
	}
	if msg.err != nil {
		m.errText = utils.UserMessage(msg.err)
		return nil
	}
	m.board.Remove(msg.id)
	m.clampCursor()
	return nil
}

func (m *Model) homeView() string {
	var b strings.Builder

	name, initials := "Guest", "?"
	if m.identity != nil {
		name, initials = m.identity.Name(), m.identity.Initials()
	}
	b.WriteString(m.styles.badge.Render(initials) + " " + m.styles.title.Render("Hello, "+name) + "\n\n")

	all := m.board.Items()
	stats := dashboard.Summarize(all)
	b.WriteString(fmt.Sprintf("Total %d   Active %d   Completed %d\n", stats.Total, stats.Active, stats.Completed))
	b.WriteString(m.progress.ViewAs(float64(stats.CompletionRate)/100) + "\n\n")

	var tabs []string
	for _, t := range dashboard.Tabs {
		label := tabLabel(t)
		if t == m.tab {
			tabs = append(tabs, m.styles.activeTab.Render(label))
		} else {
			tabs = append(tabs, m.styles.tab.Render(label))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n")

	if m.searching || m.query != "" {
		b.WriteString(m.search.inputs[0].View() + "\n")
	}
	b.WriteString("\n")

	items := m.visible()
	switch {
	case !m.loaded && len(all) == 0:
		b.WriteString(m.styles.subtle.Render("Loading tasks...") + "\n")
	case len(items) == 0:
		b.WriteString(m.styles.subtle.Render("No tasks") + "\n")
	}
	for i, item := range items {
		b.WriteString(m.renderItem(item, i == m.cursor) + "\n")
	}

	b.WriteString("\n")
	if m.confirmDelete {
		b.WriteString(m.styles.err.Render("Delete selected task? y: yes  n: no") + "\n")
	}
	b.WriteString(m.styles.subtle.Render("a: add  e: edit  space: toggle  d: delete  /: search  tab: filter  s: settings  q: quit"))
	return b.String()
}

func tabLabel(t dashboard.Tab) string {
	switch t {
	case dashboard.TabActive:
		return "Active"
	case dashboard.TabCompleted:
		return "Completed"
	default:
		return "All"
	}
}

func (m *Model) renderItem(item backend.Item, selected bool) string {
	cursor := " "
	if selected {
		cursor = ">"
	}
	check := "[ ]"
	if item.Status == backend.StatusCompleted {
		check = "[✓]"
	}

	title := item.Title
	switch {
	case item.Status == backend.StatusCompleted:
		title = m.styles.completed.Render(title)
	case selected:
		title = m.styles.selected.Render(title)
	}

	var tags []string
	if item.Category != backend.CategoryNone {
		tags = append(tags, string(item.Category))
	}
	if item.Priority != backend.PriorityNone {
		tags = append(tags, string(item.Priority))
	}
	line := cursor + " " + check + " " + title
	if len(tags) > 0 {
		line += " " + m.styles.subtle.Render("("+strings.Join(tags, ", ")+")")
	}
	return line
}
