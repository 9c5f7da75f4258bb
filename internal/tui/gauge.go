package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderGauge produces a text gauge of the given width. percent is the fill
// portion (0-100); colorRole is the severity role computed upstream, so the
// bar color never flips with the fill direction. percent < 0 renders a dimmed
// track with "N/A".
func RenderGauge(percent float64, width int, colorRole string) string {
	if width < 5 {
		width = 5
	}
	if percent < 0 {
		return gaugeTrackStyle.Render(strings.Repeat("─", width)) + dimStyle.Render(" N/A")
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100 * float64(width))
	empty := width - filled

	fillStyle := lipgloss.NewStyle().Foreground(RoleColor(colorRole))
	return fillStyle.Render(strings.Repeat("━", filled)) +
		gaugeTrackStyle.Render(strings.Repeat("━", empty))
}
