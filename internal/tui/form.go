package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type field struct {
	label       string
	placeholder string
	value       string
	secret      bool
	limit       int
}

// form is a vertical stack of text inputs with one focused at a time
type form struct {
	labels []string
	inputs []textinput.Model
	focus  int
}

func newForm(fields ...field) form {
	f := form{}
	for _, fd := range fields {
		ti := textinput.New()
		ti.Placeholder = fd.placeholder
		ti.CharLimit = 256
		if fd.limit > 0 {
			ti.CharLimit = fd.limit
		}
		if fd.secret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		ti.SetValue(fd.value)
		f.labels = append(f.labels, fd.label)
		f.inputs = append(f.inputs, ti)
	}
	return f
}

func (f *form) focusCmd() tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	return f.inputs[f.focus].Focus()
}

func (f *form) blur() {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

func (f *form) move(delta int) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	return f.focusCmd()
}

func (f form) onLast() bool {
	return f.focus == len(f.inputs)-1
}

func (f form) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

// raw returns the untrimmed value, for passwords
func (f form) raw(i int) string {
	return f.inputs[i].Value()
}

// update forwards msg to the focused input
func (f *form) update(msg tea.Msg) tea.Cmd {
	if len(f.inputs) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f form) view(s styles) string {
	var b strings.Builder
	for i, in := range f.inputs {
		label := f.labels[i]
		if label != "" {
			if i == f.focus && in.Focused() {
				label = s.selected.Render(label)
			} else {
				label = s.subtle.Render(label)
			}
			b.WriteString(label + "\n")
		}
		b.WriteString(in.View())
		b.WriteString("\n\n")
	}
	return b.String()
}
