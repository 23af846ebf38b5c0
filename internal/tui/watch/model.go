package watch

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/relaycmd/internal/events"
)

const maxEventLog = 50

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string
	title  string

	width  int
	height int

	health   HealthState
	commands *commandSet
	eventLog []events.Event

	ticker  Ticker
	spinner Spinner

	theme    Theme
	selected int

	hubEvents chan events.Event

	lastError string
}

// New creates a new watch TUI model.
func New(apiURL, apiKey, title string) *Model {
	if title == "" {
		title = "relaycmd watch"
	}
	return &Model{
		apiURL:    apiURL,
		apiKey:    apiKey,
		title:     title,
		commands:  newCommandSet(),
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),
		ticker:    NewTicker(),
		spinner:   NewSpinner(),
		theme:     NewDefaultTheme(),
	}
}

// Run starts the watcher as a full-screen program.
func Run(apiURL, apiKey, title string) error {
	p := tea.NewProgram(New(apiURL, apiKey, title), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run watch: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.apiURL, m.apiKey) },
		func() tea.Msg { return fetchCommands(m.apiURL, m.apiKey) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.commands.order)-1 {
				m.selected++
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.ticker.Tick()
		m.spinner.Decay()
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)

		// Newest first.
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}

		m.spinner.OnEvent()
		m.commands.apply(e)
		switch e.Type {
		case events.ProgressStarted:
			m.health.ActiveProgress++
		case events.ProgressStopped:
			if m.health.ActiveProgress > 0 {
				m.health.ActiveProgress--
			}
		}

		m.health.Connected = true
		m.lastError = ""

		return m, receiveNextEvent(m.hubEvents)

	case commandsMsg:
		m.commands.seed(msg)
		m.health.Commands = len(m.commands.order)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Commands = msg.Commands
		m.health.ActiveProgress = msg.ActiveProgress
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""

		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "SSE disconnected, reconnecting..."
		// The pending receiveNextEvent keeps waiting on the same channel,
		// so the new subscription feeds it.
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting..."
	}

	header := renderHeader(m.title, m.health, m.ticker, m.spinner, m.theme, m.width)
	commands := renderCommands(m.commands, m.selected, m.theme, m.width)
	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	parts := []string{header, commands, eventStream}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Navigate Commands"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
