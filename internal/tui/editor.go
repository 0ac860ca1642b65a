package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"taskpad/backend"
	"taskpad/internal/nav"
	"taskpad/internal/utils"
)

type itemSavedMsg struct {
	gen  uint64
	item *backend.Item
	err  error
}

// Editor focus positions after the two text inputs
const (
	focusCategory = iota + 2
	focusPriority
	editorFields
)

// editor holds the add/edit item form
type editor struct {
	original *backend.Item // nil when adding
	form     form
	focus    int
	category int // index into categoryChoices
	priority int // index into priorityChoices
}

var (
	categoryChoices = append([]backend.Category{backend.CategoryNone}, backend.Categories...)
	priorityChoices = append([]backend.Priority{backend.PriorityNone}, backend.Priorities...)
)

func newEditor(item *backend.Item) editor {
	e := editor{original: item}
	title, description := "", ""
	if item != nil {
		title, description = item.Title, item.Description
		e.category = indexOf(categoryChoices, item.Category)
		e.priority = indexOf(priorityChoices, item.Priority)
	}
	e.form = newForm(
		field{label: "Title", placeholder: "What needs doing?", value: title, limit: 200},
		field{label: "Description", placeholder: "Optional details", value: description, limit: 1000},
	)
	return e
}

func indexOf[T comparable](values []T, v T) int {
	for i, candidate := range values {
		if candidate == v {
			return i
		}
	}
	return 0
}

func (e *editor) setFocus(i int) tea.Cmd {
	e.focus = (i + editorFields) % editorFields
	if e.focus < len(e.form.inputs) {
		e.form.focus = e.focus
		return e.form.focusCmd()
	}
	e.form.blur()
	return nil
}

func (e *editor) cycle(delta int) {
	switch e.focus {
	case focusCategory:
		e.category = (e.category + delta + len(categoryChoices)) % len(categoryChoices)
	case focusPriority:
		e.priority = (e.priority + delta + len(priorityChoices)) % len(priorityChoices)
	}
}

func (e editor) draft() backend.Draft {
	return backend.Draft{
		Title:       e.form.value(0),
		Description: e.form.value(1),
		Priority:    priorityChoices[e.priority],
		Category:    categoryChoices[e.category],
	}
}

// patch returns only the fields that differ from the original item
func (e editor) patch() backend.Patch {
	d := e.draft()
	var p backend.Patch
	if d.Title != e.original.Title {
		p.Title = backend.Ptr(d.Title)
	}
	if d.Description != e.original.Description {
		p.Description = backend.Ptr(d.Description)
	}
	if d.Priority != e.original.Priority {
		p.Priority = backend.Ptr(d.Priority)
	}
	if d.Category != e.original.Category {
		p.Category = backend.Ptr(d.Category)
	}
	return p
}

func (m *Model) handleEditorKey(msg tea.KeyMsg) tea.Cmd {
	e := &m.editor
	switch msg.String() {
	case "esc":
		return m.navigate(nav.Home, nil)
	case "tab", "down":
		return e.setFocus(e.focus + 1)
	case "shift+tab", "up":
		return e.setFocus(e.focus - 1)
	case "ctrl+s":
		return m.saveItem()
	case "enter":
		if e.focus == editorFields-1 {
			return m.saveItem()
		}
		return e.setFocus(e.focus + 1)
	case "left", "right":
		if e.focus >= len(e.form.inputs) {
			delta := 1
			if msg.String() == "left" {
				delta = -1
			}
			e.cycle(delta)
			return nil
		}
	}
	if e.focus < len(e.form.inputs) {
		return e.form.update(msg)
	}
	return nil
}

func (m *Model) saveItem() tea.Cmd {
	if m.inflight > 0 {
		return nil
	}
	e := m.editor
	if err := utils.ValidateTitle(e.form.value(0)); err != nil {
		m.errText = utils.UserMessage(err)
		return nil
	}

	gen := m.state.Generation
	a, ctx := m.app, m.ctx

	if e.original == nil {
		draft := e.draft()
		return m.start(func() tea.Msg {
			item, err := a.AddItem(ctx, draft)
			return itemSavedMsg{gen: gen, item: item, err: err}
		})
	}

	patch := e.patch()
	if patch.IsEmpty() {
		return m.navigate(nav.Home, nil)
	}
	id := e.original.ID
	return m.start(func() tea.Msg {
		item, err := a.UpdateItem(ctx, id, patch)
		return itemSavedMsg{gen: gen, item: item, err: err}
	})
}

func (m *Model) handleItemSaved(msg itemSavedMsg) tea.Cmd {
	if m.stale(msg.gen) {
		return nil
	}
	if msg.err != nil {
		m.errText = utils.UserMessage(msg.err)
		return nil
	}
	m.board.Upsert(*msg.item)
	return m.navigate(nav.Home, nil)
}

func (m *Model) editorView() string {
	e := m.editor
	title := "New task"
	if e.original != nil {
		title = "Edit task"
	}

	var b strings.Builder
	b.WriteString(m.styles.title.Render(title) + "\n\n")
	b.WriteString(e.form.view(m.styles))

	b.WriteString(m.choiceView("Category", e.focus == focusCategory, categoryLabel(categoryChoices[e.category])) + "\n")
	b.WriteString(m.choiceView("Priority", e.focus == focusPriority, priorityLabel(priorityChoices[e.priority])) + "\n\n")

	b.WriteString(m.styles.subtle.Render("tab: next field  ←/→: change  enter/ctrl+s: save  esc: cancel"))
	return m.styles.dialog.Render(b.String())
}

func (m *Model) choiceView(label string, focused bool, value string) string {
	if focused {
		return m.styles.selected.Render(label) + "  ‹ " + m.styles.selected.Render(value) + " ›"
	}
	return m.styles.subtle.Render(label) + "  " + value
}

func categoryLabel(c backend.Category) string {
	if c == backend.CategoryNone {
		return "None"
	}
	return string(c)
}

func priorityLabel(p backend.Priority) string {
	if p == backend.PriorityNone {
		return "None"
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}
