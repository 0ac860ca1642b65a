// Package tui provides the terminal user interface. Each navigation state
// of the controller has a screen; store calls run as commands and their
// results come back as messages.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"taskpad/backend"
	"taskpad/internal/app"
	"taskpad/internal/auth"
	"taskpad/internal/dashboard"
	"taskpad/internal/nav"
	"taskpad/internal/prefs"
	"taskpad/internal/utils"
)

// identityMsg forwards a session store notification into the event loop
type identityMsg struct {
	id *auth.Identity
}

// navMsg forwards a navigation state change into the event loop
type navMsg struct {
	state nav.State
}

// Option configures a Model
type Option func(*Model)

// WithColorProfile fixes the color profile used by the progress bar.
// Tests pass termenv.Ascii for stable output.
func WithColorProfile(p termenv.Profile) Option {
	return func(m *Model) {
		m.profile = p
		m.hasProfile = true
	}
}

// WithContext sets the context passed to store operations
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		m.ctx = ctx
	}
}

// Model is the root Bubble Tea model
type Model struct {
	app *app.App
	ctx context.Context

	events      chan tea.Msg
	done        chan struct{}
	unsubscribe []func()

	state    nav.State
	identity *auth.Identity

	width  int
	height int

	inflight int
	spinner  spinner.Model
	errText  string
	info     string

	// auth screens and editor
	form form

	// home
	board         *dashboard.Board
	loaded        bool
	tab           dashboard.Tab
	query         string
	searching     bool
	search        form
	cursor        int
	confirmDelete bool
	progress      progress.Model

	editor editor

	// settings
	editingBackground bool

	profile    termenv.Profile
	hasProfile bool
	styles     styles
}

// New creates the model and starts following the session and navigation
func New(a *app.App, opts ...Option) *Model {
	m := &Model{
		app:    a,
		ctx:    context.Background(),
		events: make(chan tea.Msg, 32),
		done:   make(chan struct{}),
		board:  dashboard.NewBoard(nil),
		tab:    dashboard.TabAll,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))
	progressOpts := []progress.Option{progress.WithDefaultGradient(), progress.WithWidth(30)}
	if m.hasProfile {
		progressOpts = append(progressOpts, progress.WithColorProfile(m.profile))
	}
	m.progress = progress.New(progressOpts...)
	m.applyTheme()

	m.state = a.Nav.State()
	m.identity = a.Session.Current()
	m.unsubscribe = append(m.unsubscribe,
		a.Session.Subscribe(func(id *auth.Identity) { m.forward(identityMsg{id}) }),
		a.Nav.Watch(func(s nav.State) { m.forward(navMsg{s}) }),
	)
	return m
}

// forward hands msg to the event loop. It runs on whichever goroutine
// the store notified from.
func (m *Model) forward(msg tea.Msg) {
	select {
	case m.events <- msg:
	case <-m.done:
	}
}

// listen waits for the next forwarded notification
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.done:
			return nil
		}
	}
}

// Close stops following the session and navigation. Safe to call twice.
func (m *Model) Close() {
	for _, unsubscribe := range m.unsubscribe {
		unsubscribe()
	}
	m.unsubscribe = nil
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

// Init starts listening and enters the initial screen
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.enter(m.state.Screen))
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case identityMsg:
		m.identity = msg.id
		return m, m.listen()

	case navMsg:
		cmds := []tea.Cmd{m.listen()}
		if msg.state.Generation > m.state.Generation {
			m.state = msg.state
			cmds = append(cmds, m.enter(msg.state.Screen))
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if m.inflight == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case authDoneMsg:
		m.finish()
		return m, m.handleAuthDone(msg)

	case itemsLoadedMsg:
		m.finish()
		return m, m.handleItemsLoaded(msg)

	case toggleDoneMsg:
		m.finish()
		return m, m.handleToggleDone(msg)

	case itemDeletedMsg:
		m.finish()
		return m, m.handleItemDeleted(msg)

	case itemSavedMsg:
		m.finish()
		return m, m.handleItemSaved(msg)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.state.Screen {
		case nav.Login, nav.Register, nav.ForgotPassword:
			return m, m.handleAuthKey(msg)
		case nav.Home:
			return m, m.handleHomeKey(msg)
		case nav.AddItem, nav.EditItem:
			return m, m.handleEditorKey(msg)
		case nav.Settings:
			return m, m.handleSettingsKey(msg)
		}
	}

	return m, nil
}

// enter resets per-screen state when a screen becomes current
func (m *Model) enter(screen nav.Screen) tea.Cmd {
	m.errText = ""
	m.info = ""
	m.confirmDelete = false
	m.searching = false
	m.editingBackground = false
	utils.Debugf("TUI: entering %s", screen)

	switch screen {
	case nav.Login, nav.Register, nav.ForgotPassword:
		m.form = newAuthForm(screen)
		return m.form.focusCmd()
	case nav.Home:
		return m.enterHome()
	case nav.AddItem, nav.EditItem:
		m.editor = newEditor(m.state.Pending)
		return m.editor.form.focusCmd()
	case nav.Settings:
		m.form = newForm(field{placeholder: "Background image URL (empty resets)", value: m.app.Prefs.Background(), limit: 512})
		m.form.blur()
	}
	return nil
}

// navigate requests a screen change and applies it immediately. item is
// required for EditItem only.
func (m *Model) navigate(screen nav.Screen, item *backend.Item) tea.Cmd {
	if err := m.app.Nav.Navigate(screen, item); err != nil {
		m.errText = utils.UserMessage(err)
		return nil
	}
	prev := m.state.Generation
	m.state = m.app.Nav.State()
	if m.state.Generation == prev {
		return nil
	}
	return m.enter(screen)
}

// start marks an operation in flight and starts the spinner when idle
func (m *Model) start(op tea.Cmd) tea.Cmd {
	m.inflight++
	m.errText = ""
	if m.inflight == 1 {
		return tea.Batch(op, m.spinner.Tick)
	}
	return op
}

func (m *Model) finish() {
	if m.inflight > 0 {
		m.inflight--
	}
}

// stale reports whether a result belongs to a screen the user has left
func (m *Model) stale(gen uint64) bool {
	if gen != m.state.Generation {
		utils.Debugf("TUI: discarding result from generation %d (now %d)", gen, m.state.Generation)
		return true
	}
	return false
}

// applyTheme rebuilds the styles for the saved colour scheme
func (m *Model) applyTheme() {
	m.app.Prefs.Apply()
	m.styles = newStyles(m.app.Prefs.Mode())
	m.spinner.Style = m.styles.accent
}

// View renders the current screen
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	var body string
	switch m.state.Screen {
	case nav.Login, nav.Register, nav.ForgotPassword:
		body = m.authView()
	case nav.Home:
		body = m.homeView()
	case nav.AddItem, nav.EditItem:
		body = m.editorView()
	case nav.Settings:
		body = m.settingsView()
	}

	var b strings.Builder
	b.WriteString(m.styles.app.Render(body))
	b.WriteString("\n")
	b.WriteString(m.statusBar())
	return b.String()
}

func (m *Model) statusBar() string {
	left := ""
	if m.inflight > 0 {
		left = m.spinner.View() + " Working..."
	}
	switch {
	case m.errText != "":
		left = m.styles.err.Render(m.errText)
	case m.info != "" && m.inflight == 0:
		left = m.styles.info.Render(m.info)
	}
	return m.styles.statusBar.Width(m.width).Render(left)
}

// Run starts the interface on the terminal and blocks until it exits.
// Diagnostics go to the background log so they do not corrupt the screen.
func Run(a *app.App, opts ...Option) error {
	bg, err := utils.NewBackgroundLoggerWithEnabled(a.Config.IsBackgroundLoggingEnabled())
	if err == nil {
		defer bg.Close()
		if bg.IsEnabled() {
			utils.SetOutput(bg)
			defer utils.SetOutput(nil)
		}
	}

	m := New(a, opts...)
	defer m.Close()

	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

type styles struct {
	app       lipgloss.Style
	title     lipgloss.Style
	subtle    lipgloss.Style
	accent    lipgloss.Style
	selected  lipgloss.Style
	completed lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	badge     lipgloss.Style
	err       lipgloss.Style
	info      lipgloss.Style
	dialog    lipgloss.Style
	statusBar lipgloss.Style
}

func newStyles(mode prefs.Mode) styles {
	fg, subtle, accent, bar := lipgloss.Color("235"), lipgloss.Color("245"), lipgloss.Color("62"), lipgloss.Color("254")
	if mode == prefs.Dark {
		fg, subtle, accent, bar = lipgloss.Color("252"), lipgloss.Color("241"), lipgloss.Color("212"), lipgloss.Color("236")
	}

	return styles{
		app:       lipgloss.NewStyle().Padding(1, 2).Foreground(fg),
		title:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		subtle:    lipgloss.NewStyle().Foreground(subtle),
		accent:    lipgloss.NewStyle().Foreground(accent),
		selected:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		completed: lipgloss.NewStyle().Strikethrough(true).Foreground(subtle),
		tab:       lipgloss.NewStyle().Padding(0, 1).Foreground(subtle),
		activeTab: lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true).Foreground(accent),
		badge:     lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(accent).Foreground(lipgloss.Color("255")),
		err:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		info:      lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2),
		statusBar: lipgloss.NewStyle().Background(bar).Padding(0, 1),
	}
}
