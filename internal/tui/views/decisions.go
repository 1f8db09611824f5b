package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/pkg/sanitize"
)

// DecisionList renders recent decisions, newest on top.
type DecisionList struct {
	Decisions     []*domain.Decision
	VisibleCount  int
	ScrollPos     int
	Width         int
	SelectedIndex int
}

func NewDecisionList(visibleCount int) *DecisionList {
	return &DecisionList{
		VisibleCount:  visibleCount,
		Width:         100,
		SelectedIndex: -1,
	}
}

func (d *DecisionList) Update(decisions []*domain.Decision) {
	d.Decisions = decisions
	if d.SelectedIndex >= len(decisions) {
		d.SelectedIndex = len(decisions) - 1
	}
}

// ScrollUp moves the selection towards newer decisions.
func (d *DecisionList) ScrollUp() {
	if d.SelectedIndex < len(d.Decisions)-1 {
		d.SelectedIndex++
	}
	d.ensureSelectionVisible()
}

// ScrollDown moves the selection towards older decisions.
func (d *DecisionList) ScrollDown() {
	if d.SelectedIndex > 0 {
		d.SelectedIndex--
	}
	d.ensureSelectionVisible()
}

// ensureSelectionVisible adjusts ScrollPos, counted from the newest entry,
// so that SelectedIndex falls inside the visible window.
func (d *DecisionList) ensureSelectionVisible() {
	n := len(d.Decisions)
	if n <= d.VisibleCount {
		d.ScrollPos = 0
		return
	}

	start, end := d.window()
	if d.SelectedIndex < start {
		d.ScrollPos = n - d.VisibleCount - d.SelectedIndex
	}
	if d.SelectedIndex >= end {
		d.ScrollPos = n - 1 - d.SelectedIndex
	}
	d.ScrollPos = max(0, min(d.ScrollPos, n-d.VisibleCount))
}

// window returns the [start, end) slice of Decisions currently visible.
func (d *DecisionList) window() (int, int) {
	n := len(d.Decisions)
	if n <= d.VisibleCount {
		return 0, n
	}
	start := max(0, n-d.VisibleCount-d.ScrollPos)
	return start, min(start+d.VisibleCount, n)
}

func (d *DecisionList) Selected() *domain.Decision {
	if d.SelectedIndex >= 0 && d.SelectedIndex < len(d.Decisions) {
		return d.Decisions[d.SelectedIndex]
	}
	return nil
}

func (d *DecisionList) Render() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	text := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e5e5"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	selected := lipgloss.NewStyle().Background(lipgloss.Color("#003300")).Foreground(lipgloss.Color("#00ff41"))

	if len(d.Decisions) == 0 {
		return dim.Italic(true).Render("  No bots flagged yet")
	}

	if d.SelectedIndex < 0 {
		d.SelectedIndex = len(d.Decisions) - 1
	}

	var lines []string
	lines = append(lines, muted.Bold(true).Render(
		fmt.Sprintf("  %-8s  %-3s  %-39s  %-5s  %-6s  %s",
			"TIME", "CLS", "CLIENT", "SCORE", "SRC", "REQUEST")))
	lines = append(lines, dim.Render("  "+strings.Repeat("─", max(d.Width-4, 10))))

	start, end := d.window()
	for i := end - 1; i >= start; i-- {
		dec := d.Decisions[i]
		isSelected := i == d.SelectedIndex
		prefix := "  "
		if isSelected {
			prefix = "▶ "
		}

		timeStr := dim.Render(dec.Timestamp.Local().Format("15:04:05"))
		if isSelected {
			timeStr = selected.Render(dec.Timestamp.Local().Format("15:04:05"))
		}

		cls, clsStyle := "SUS", amber.Bold(true)
		clientStyle := text
		if dec.Class == domain.ActorClassBad {
			cls, clsStyle = "BAD", red.Bold(true)
			clientStyle = red.Bold(true)
		}
		if isSelected {
			clientStyle = selected.Bold(true)
		}

		score := "-"
		if dec.Score > 0 {
			score = fmt.Sprintf("%.2f", dec.Score)
		}

		request := strings.TrimSpace(dec.Method + " " + dec.Path)
		maxLen := max(d.Width-76, 10)
		request = sanitize.String(request, maxLen)

		lines = append(lines, fmt.Sprintf("%s%s  %s  %s  %-5s  %s  %s",
			prefix,
			timeStr,
			clsStyle.Render(cls),
			clientStyle.Render(padRight(sanitize.ClientID(dec.ClientID), 39)),
			green.Render(score),
			muted.Render(padRight(dec.Source, 6)),
			muted.Render(request),
		))
	}

	if len(d.Decisions) > d.VisibleCount {
		lines = append(lines, dim.Render(fmt.Sprintf("  [%d-%d of %d]",
			d.ScrollPos+1, min(d.ScrollPos+d.VisibleCount, len(d.Decisions)), len(d.Decisions))))
	}

	return strings.Join(lines, "\n")
}
