package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha subset.
var (
	colorSurface1 = lipgloss.Color("#45475A")
	colorText     = lipgloss.Color("#CDD6F4")
	colorSubtext  = lipgloss.Color("#A6ADC8")
	colorDim      = lipgloss.Color("#585B70")

	colorAccent   = lipgloss.Color("#CBA6F7") // mauve, brand accent
	colorBlue     = lipgloss.Color("#89B4FA") // section headers
	colorGreen    = lipgloss.Color("#A6E3A1") // OK
	colorYellow   = lipgloss.Color("#F9E2AF") // warning
	colorRed      = lipgloss.Color("#F38BA8") // critical
	colorLavender = lipgloss.Color("#B4BEFE") // titles
	colorTeal     = lipgloss.Color("#94E2D5")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)

	groupHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorLavender)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorText)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorSubtext)

	resetStyle = lipgloss.NewStyle().
			Foreground(colorTeal)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	gaugeTrackStyle = lipgloss.NewStyle().
			Foreground(colorSurface1)
)

// RoleColor maps the severity color roles carried on view rows to the palette.
func RoleColor(role string) lipgloss.Color {
	switch role {
	case "red":
		return colorRed
	case "yellow":
		return colorYellow
	case "green":
		return colorGreen
	}
	return colorDim
}
