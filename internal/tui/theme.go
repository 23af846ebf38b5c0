package tui

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the command panel.
type Theme struct {
	Title    lipgloss.Style
	Enabled  lipgloss.Style
	Disabled lipgloss.Style
	Selected lipgloss.Style
	Busy     lipgloss.Style
	Failed   lipgloss.Style
	OK       lipgloss.Style
	Dim      lipgloss.Style
	Border   lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(purple).
			Padding(0, 1),
		Enabled:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
		Disabled: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Strikethrough(true),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")),
		Busy:     lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		Failed:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		OK:       lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple).
			Padding(0, 1),
	}
}
