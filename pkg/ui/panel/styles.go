package panel

import "github.com/charmbracelet/lipgloss"

// theme groups reusable styles for the widget regions. Everything that carries
// brand color derives from the configured accent.
type theme struct {
	accent lipgloss.Color

	toggle     lipgloss.Style
	teaser     lipgloss.Style
	header     lipgloss.Style
	headerName lipgloss.Style
	online     lipgloss.Style
	userBox    lipgloss.Style
	botBox     lipgloss.Style
	errorBox   lipgloss.Style
	timestamp  lipgloss.Style
	cursor     lipgloss.Style
	typing     lipgloss.Style
	quickReply lipgloss.Style
	hint       lipgloss.Style
	input      lipgloss.Style
	viewport   lipgloss.Style
	goodbye    lipgloss.Style
}

func newTheme(accentHex string) theme {
	accent := lipgloss.Color(accentHex)
	onAccent := lipgloss.Color("231")

	return theme{
		accent: accent,
		toggle: lipgloss.NewStyle().
			Bold(true).
			Foreground(onAccent).
			Background(accent).
			Padding(1, 3),
		teaser: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1).
			MaxWidth(40),
		header: lipgloss.NewStyle().
			Foreground(onAccent).
			Background(accent).
			Padding(0, 1),
		headerName: lipgloss.NewStyle().
			Bold(true).
			Foreground(onAccent),
		online: lipgloss.NewStyle().
			Foreground(lipgloss.Color("157")),
		userBox: lipgloss.NewStyle().
			Foreground(onAccent).
			Background(accent).
			Padding(0, 1),
		botBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		errorBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("203")).
			Foreground(lipgloss.Color("203")).
			Padding(0, 1),
		timestamp: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Faint(true),
		cursor: lipgloss.NewStyle().
			Foreground(accent),
		typing: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Italic(true),
		quickReply: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Foreground(accent).
			Padding(0, 1),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		viewport: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true).
			BorderForeground(lipgloss.Color("238")),
		goodbye: lipgloss.NewStyle().
			Bold(true).
			Foreground(onAccent).
			Background(accent).
			Padding(1, 2),
	}
}
