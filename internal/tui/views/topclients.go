package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/botradar/pkg/sanitize"
)

type ClientRow struct {
	ClientID string
	Flags    int
	Bad      int
	LastSeen string
	LastPath string
}

// TopClients ranks clients by how often they were flagged.
type TopClients struct {
	Clients      []ClientRow
	Width        int
	VisibleCount int
}

func NewTopClients(width int) *TopClients {
	return &TopClients{Width: width, VisibleCount: 25}
}

func (v *TopClients) Update(clients []ClientRow) { v.Clients = clients }

func (v *TopClients) Render() string {
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	greenDim := lipgloss.NewStyle().Foreground(lipgloss.Color("#00aa2a"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	text := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e5e5"))

	if len(v.Clients) == 0 {
		return dim.Italic(true).Render("  No clients flagged")
	}

	var lines []string
	lines = append(lines, muted.Bold(true).Render(fmt.Sprintf(" %-3s %-39s %-12s %-6s %-10s %s",
		"#", "CLIENT", "FLAGS", "BAD", "LAST", "PATH")))
	lines = append(lines, dim.Render(strings.Repeat("─", max(v.Width, 10))))

	maxFlags := 0
	for _, c := range v.Clients {
		maxFlags = max(maxFlags, c.Flags)
	}

	visible := v.Clients
	if len(visible) > v.VisibleCount {
		visible = visible[:v.VisibleCount]
	}

	for i, c := range visible {
		idx := muted.Render(fmt.Sprintf("%2d.", i+1))

		share := 0.0
		if maxFlags > 0 {
			share = float64(c.Flags) / float64(maxFlags)
		}
		style := greenDim
		switch {
		case c.Bad > 0 && share > 0.7:
			style = red.Bold(true)
		case c.Bad > 0 || share > 0.4:
			style = amber.Bold(true)
		case c.Flags > 5:
			style = green
		}

		const barWidth = 6
		fill := min(int(share*barWidth), barWidth)
		bar := strings.Repeat("█", fill) + strings.Repeat("░", barWidth-fill)
		flags := style.Render(fmt.Sprintf("%s %5s", bar, fmtLarge(int64(c.Flags))))

		path := sanitize.String(c.LastPath, max(v.Width-80, 10))

		lines = append(lines, fmt.Sprintf(" %s %s %s %s %s %s",
			idx,
			style.Render(padRight(sanitize.ClientID(c.ClientID), 39)),
			flags,
			text.Render(padRight(fmtLarge(int64(c.Bad)), 6)),
			muted.Render(padRight(c.LastSeen, 10)),
			muted.Render(path),
		))
	}

	for i := len(lines); i < v.VisibleCount+2; i++ {
		lines = append(lines, "")
	}

	if len(v.Clients) > v.VisibleCount {
		lines = append(lines, dim.Render(fmt.Sprintf("  [showing %d of %d clients]", v.VisibleCount, len(v.Clients))))
	}

	return strings.Join(lines, "\n")
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s[:length]
	}
	return s + strings.Repeat(" ", length-len(s))
}
