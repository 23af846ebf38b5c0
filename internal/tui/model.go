// Package tui is a terminal command panel: one button per command, greyed
// out whenever the command cannot execute.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/relaycmd/internal/registry"
)

// Source is the command set the panel drives.
type Source interface {
	List() []registry.View
	Execute(name string) (*registry.Execution, error)
	Enable(name string) error
	Disable(name string) error
	Subscribe(fn func()) func()
}

type refreshMsg struct{}

type executedMsg struct {
	name string
	id   string
	err  error

	// rejected is set when the command refused to run.
	rejected bool
}

// Model is the BubbleTea model for the command panel.
type Model struct {
	source Source
	title  string

	buttons []registry.View
	cursor  int
	status  string
	failed  bool

	width int

	// refresh receives a signal whenever a command notifies. It holds one
	// pending signal; further notifications coalesce into it.
	refresh     chan struct{}
	unsubscribe func()

	spinner spinner.Model
	keys    keyMap
	help    help.Model
	theme   Theme
}

// New creates a panel over source and subscribes to its change
// notifications. Call Close when the program exits.
func New(source Source, title string) *Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	m := &Model{
		source:  source,
		title:   title,
		refresh: make(chan struct{}, 1),
		spinner: sp,
		keys:    defaultKeys(),
		help:    help.New(),
		theme:   NewDefaultTheme(),
	}
	m.spinner.Style = m.theme.Busy
	m.unsubscribe = source.Subscribe(m.notify)
	m.buttons = source.List()
	return m
}

// notify runs on whichever goroutine changed a command, so it only signals.
func (m *Model) notify() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// Close stops listening for notifications.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m Model) waitForRefresh() tea.Cmd {
	ch := m.refresh
	return func() tea.Msg {
		<-ch
		return refreshMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForRefresh(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.buttons)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Execute):
			return m.execute()
		case key.Matches(msg, m.keys.Toggle):
			m.toggle()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case refreshMsg:
		m.buttons = m.source.List()
		return m, m.waitForRefresh()

	case executedMsg:
		switch {
		case msg.rejected:
			m.setStatus(fmt.Sprintf("%s: %v", msg.name, msg.err), true)
		case msg.err != nil:
			m.setStatus(fmt.Sprintf("%s failed: %v", msg.name, msg.err), true)
		default:
			m.setStatus(fmt.Sprintf("%s completed (%s)", msg.name, shortID(msg.id)), false)
		}
		m.buttons = m.source.List()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) selected() (registry.View, bool) {
	if m.cursor < 0 || m.cursor >= len(m.buttons) {
		return registry.View{}, false
	}
	return m.buttons[m.cursor], true
}

// execute dispatches from a tea.Cmd so a synchronous command never blocks
// the event loop. The live command decides whether it runs; the cached
// button may be stale until the next refresh.
func (m Model) execute() (tea.Model, tea.Cmd) {
	b, ok := m.selected()
	if !ok {
		return m, nil
	}
	m.setStatus(fmt.Sprintf("%s running", b.Name), false)
	return m, dispatch(m.source, b.Name)
}

func dispatch(source Source, name string) tea.Cmd {
	return func() tea.Msg {
		exec, err := source.Execute(name)
		if err != nil {
			return executedMsg{name: name, err: err, rejected: true}
		}
		_, err = exec.Task.Wait(context.Background())
		return executedMsg{name: exec.Command, id: exec.ID, err: err}
	}
}

func (m *Model) toggle() {
	b, ok := m.selected()
	if !ok {
		return
	}
	var err error
	if b.UserDisabled {
		err = m.source.Enable(b.Name)
	} else {
		err = m.source.Disable(b.Name)
	}
	if err != nil {
		m.setStatus(err.Error(), true)
	}
	m.buttons = m.source.List()
}

func (m *Model) setStatus(s string, failed bool) {
	m.status = s
	m.failed = failed
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.theme.Title.Render(m.title))
	b.WriteString("\n\n")

	if len(m.buttons) == 0 {
		b.WriteString(m.theme.Dim.Render("no commands configured"))
		b.WriteString("\n")
	}
	for i, btn := range m.buttons {
		b.WriteString(m.renderButton(i, btn))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		if m.failed {
			b.WriteString(m.theme.Failed.Render(m.status))
		} else {
			b.WriteString(m.theme.OK.Render(m.status))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return lipgloss.NewStyle().Margin(1, 2).Render(b.String())
}

func (m Model) renderButton(i int, btn registry.View) string {
	cursor := "  "
	if i == m.cursor {
		cursor = "> "
	}

	label := fmt.Sprintf("[ %s ]", btn.Name)
	style := m.theme.Enabled
	if !btn.CanExecute {
		style = m.theme.Disabled
	}
	if i == m.cursor {
		style = style.Inherit(m.theme.Selected)
	}

	line := cursor + style.Render(label)
	if btn.InProgress {
		line += " " + m.spinner.View()
	}
	if btn.State != "enabled" {
		line += " " + m.theme.Dim.Render(btn.State)
	}
	if btn.Description != "" {
		line += "  " + m.theme.Dim.Render(btn.Description)
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Run starts the panel as a full-screen program and blocks until it quits.
func Run(ctx context.Context, source Source, title string) error {
	m := New(source, title)
	defer m.Close()

	p := tea.NewProgram(*m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
