package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/relaycmd/internal/events"
)

// CommandState is the watcher's view of one remote command, seeded from
// /commands and kept current by command.* events.
type CommandState struct {
	Name       string `json:"name"`
	CanExecute bool   `json:"can_execute"`
	State      string `json:"state"`
	InProgress bool   `json:"in_progress"`
	Runs       int64  `json:"runs"`

	LastResult string    `json:"-"`
	LastRun    time.Time `json:"-"`
}

// commandSet keeps states in first-seen order.
type commandSet struct {
	order []string
	byKey map[string]*CommandState
}

func newCommandSet() *commandSet {
	return &commandSet{byKey: make(map[string]*CommandState)}
}

func (s *commandSet) get(name string) *CommandState {
	c, ok := s.byKey[name]
	if !ok {
		c = &CommandState{Name: name}
		s.byKey[name] = c
		s.order = append(s.order, name)
	}
	return c
}

func (s *commandSet) seed(states []CommandState) {
	for _, st := range states {
		c := s.get(st.Name)
		c.CanExecute = st.CanExecute
		c.State = st.State
		c.InProgress = st.InProgress
		c.Runs = st.Runs
	}
}

// apply updates command tracking from one event.
func (s *commandSet) apply(e events.Event) {
	if e.Subject == "" {
		return
	}

	switch e.Type {
	case events.CommandChanged:
		var st CommandState
		if err := json.Unmarshal(e.Data, &st); err != nil {
			return
		}
		c := s.get(e.Subject)
		c.CanExecute = st.CanExecute
		c.State = st.State
		c.InProgress = st.InProgress
		c.Runs = st.Runs
	case events.CommandExecuted:
		c := s.get(e.Subject)
		c.LastResult = "ok"
		c.LastRun = e.At
	case events.CommandFailed:
		c := s.get(e.Subject)
		c.LastResult = "failed"
		c.LastRun = e.At
	}
}

func renderCommands(set *commandSet, selected int, theme Theme, width int) string {
	innerWidth := width - 4

	if len(set.order) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("COMMANDS"),
			theme.Dim.Render("  No commands seen yet"),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	lines := make([]string, 0, len(set.order))
	for i, name := range set.order {
		c := set.byKey[name]

		icon := theme.StatusOK.Render("●")
		switch {
		case c.InProgress:
			icon = theme.StatusRunning.Render("◐")
		case !c.CanExecute:
			icon = theme.StatusDead.Render("○")
		}

		last := ""
		switch c.LastResult {
		case "ok":
			last = theme.StatusOK.Render("last: ok")
		case "failed":
			last = theme.StatusFailed.Render("last: failed")
		}

		line := fmt.Sprintf("%s %-20s %-15s runs:%-4d %s", icon, c.Name, c.State, c.Runs, last)
		if i == selected {
			line = theme.Highlight.Render("▸ ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}

	body := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("COMMANDS"),
		body,
	)
	return theme.Border.Width(innerWidth).Render(content)
}
