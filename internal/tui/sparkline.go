package tui

import (
	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/lipgloss"

	"github.com/janekbaraniewski/usagesync/internal/history"
)

// RenderSparkline draws recent consumption samples for one provider as a
// single-row sparkline. Values are normalized used percentages, so the chart
// is pinned to a 0-100 scale rather than auto-scaling to the window max.
func RenderSparkline(points []history.Point, width int) string {
	if len(points) == 0 || width < 4 {
		return ""
	}

	sl := sparkline.New(width, 1,
		sparkline.WithMaxValue(100),
		sparkline.WithStyle(lipgloss.NewStyle().Foreground(colorTeal)),
	)
	start := 0
	if len(points) > width {
		start = len(points) - width
	}
	for _, p := range points[start:] {
		sl.Push(p.UsedPercent)
	}
	sl.Draw()
	return sl.View()
}
