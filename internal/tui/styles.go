package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("63")
	colorMuted  = lipgloss.Color("241")
)

// Panel styles
var (
	StylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent)

	StylePanelFaded = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Faint(true)

	StyleLauncher = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 2).
			Bold(true)
)

// Header styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleSubtitle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	StyleOnline = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green"))
)

// Message styles
var (
	StyleUserBubble = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(colorAccent).
			Padding(0, 1)

	StyleBotBubble = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	StyleSeparator = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	StyleNumbered = lipgloss.NewStyle().
			PaddingLeft(2)

	StyleTyping = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	StyleHelp = lipgloss.NewStyle().
			Foreground(colorMuted)
)
