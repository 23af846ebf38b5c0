// Package tokenmgr is an interactive scope picker for new API tokens.
package tokenmgr

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/relaycmd/internal/auth"
	"github.com/mattjoyce/relaycmd/internal/config"
)

var (
	titleStyle      = lipgloss.NewStyle().MarginLeft(2)
	paginationStyle = list.DefaultStyles().PaginationStyle.PaddingLeft(4)
	helpStyle       = list.DefaultStyles().HelpStyle.PaddingLeft(4).PaddingBottom(1)
	quitTextStyle   = lipgloss.NewStyle().Margin(1, 0, 2, 4)
)

// coreScopes lists every scope the API checks, in display order.
var coreScopes = []struct {
	scope string
	desc  string
}{
	{auth.ScopeAll, "Full administrative access (all scopes)"},
	{auth.ScopeCommandsRead, "List commands and read progress"},
	{auth.ScopeCommandsWrite, "Execute, enable and disable commands"},
	{auth.ScopeEventsRead, "Access to the real-time event stream (SSE)"},
}

type item struct {
	scope    string
	desc     string
	selected bool
}

func (i item) Title() string {
	check := "[ ]"
	if i.selected {
		check = "[x]"
	}
	return fmt.Sprintf("%s %s", check, i.scope)
}
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.scope }

type model struct {
	list     list.Model
	quitting bool
	done     bool
	scopes   []string
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case " ":
			if i, ok := m.list.SelectedItem().(item); ok {
				i.selected = !i.selected
				m.list.SetItem(m.list.Index(), i)
			}
			return m, nil

		case "enter":
			m.done = true
			m.scopes = selectedScopes(m.list.Items())
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func selectedScopes(items []list.Item) []string {
	var out []string
	for _, li := range items {
		if it, ok := li.(item); ok && it.selected {
			out = append(out, it.scope)
		}
	}
	return out
}

func (m model) View() string {
	if m.quitting {
		return quitTextStyle.Render("Cancelled.")
	}
	if m.done {
		return quitTextStyle.Render(fmt.Sprintf("Selected scopes: %s", strings.Join(m.scopes, ", ")))
	}
	return "\n" + m.list.View()
}

func newModel() model {
	items := make([]list.Item, 0, len(coreScopes))
	for _, s := range coreScopes {
		items = append(items, item{scope: s.scope, desc: s.desc})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select Scopes (Space to toggle, Enter to confirm)"
	l.Styles.Title = titleStyle
	l.Styles.PaginationStyle = paginationStyle
	l.Styles.HelpStyle = helpStyle
	l.SetFilteringEnabled(false)
	l.SetSize(80, 24)

	return model{list: l}
}

// SelectScopes runs the picker and returns the chosen scopes. It returns
// nil when the user cancels.
func SelectScopes() ([]string, error) {
	final, err := tea.NewProgram(newModel()).Run()
	if err != nil {
		return nil, fmt.Errorf("scope picker: %w", err)
	}
	m, ok := final.(model)
	if !ok || m.quitting {
		return nil, nil
	}
	return m.scopes, nil
}

// NewToken returns a fresh random bearer token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Snippet renders the api.auth.tokens entry for token and scopes, ready to
// paste into the config file.
func Snippet(token string, scopes []string) (string, error) {
	entry := []config.APIToken{{Token: token, Scopes: scopes}}
	out, err := yaml.Marshal(map[string]any{"tokens": entry})
	if err != nil {
		return "", fmt.Errorf("marshal token entry: %w", err)
	}
	return string(out), nil
}
