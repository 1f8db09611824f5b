package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/botradar/internal/domain"
)

type Status struct {
	Width      int
	Metrics    domain.MetricsSnapshot
	lastUpdate time.Time
	now        func() time.Time
}

func NewStatus(width int) *Status {
	return &Status{Width: width, now: time.Now}
}

func (s *Status) Update(metrics domain.MetricsSnapshot) {
	s.Metrics = metrics
	s.lastUpdate = s.now()
}

func (s *Status) Render() string {
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	greenDim := lipgloss.NewStyle().Foreground(lipgloss.Color("#00aa2a"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	border := lipgloss.NewStyle().Foreground(lipgloss.Color("#2a2a2a"))

	req := s.Metrics.Requests
	total := req.Total()

	susp := green
	bad := green
	if total > 0 {
		if share := float64(req.NumSuspReqs) / float64(total); share > 0.2 {
			susp = red.Bold(true)
		} else if share > 0.05 {
			susp = amber.Bold(true)
		}
		if share := float64(req.NumBadReqs) / float64(total); share > 0.1 {
			bad = red.Bold(true)
		} else if req.NumBadReqs > 0 {
			bad = amber.Bold(true)
		}
	}

	drop := green
	if s.Metrics.DroppedDecisions > 0 {
		drop = amber.Bold(true)
	}

	mem := green
	if s.Metrics.MemoryUsageMB > 1000 {
		mem = red.Bold(true)
	} else if s.Metrics.MemoryUsageMB > 500 {
		mem = amber.Bold(true)
	}

	items := []string{
		s.heartbeat(green, greenDim, amber, red),
		muted.Render("RATE:") + " " + green.Render(fmtRate(s.Metrics.RequestsPerSecond)),
		muted.Render("GOOD:") + " " + green.Render(fmtLarge(int64(req.NumGoodReqs))),
		muted.Render("SUSP:") + " " + susp.Render(fmtLarge(int64(req.NumSuspReqs))),
		muted.Render("BAD:") + " " + bad.Render(fmtLarge(int64(req.NumBadReqs))),
		muted.Render("CLIENTS:") + " " + green.Render(fmtLarge(int64(s.Metrics.TrackedClients))),
		muted.Render("DROP:") + " " + drop.Render(fmtLarge(s.Metrics.DroppedDecisions)),
		muted.Render("MEM:") + " " + mem.Render(fmt.Sprintf("%.0fM", s.Metrics.MemoryUsageMB)),
		muted.Render("UP:") + " " + green.Render(fmtUptime(s.Metrics.Uptime.Round(time.Second))),
	}

	return lipgloss.NewStyle().
		Width(s.Width).
		Padding(0, 1).
		Background(lipgloss.Color("#0a0a0a")).
		Render(strings.Join(items, border.Render(" │ ")))
}

func (s *Status) heartbeat(active, dim, warn, crit lipgloss.Style) string {
	elapsed := s.now().Sub(s.lastUpdate)
	var icon string
	var style lipgloss.Style

	switch {
	case elapsed < 700*time.Millisecond:
		icon, style = "●", active.Bold(true)
	case elapsed < 1500*time.Millisecond:
		icon, style = "●", dim
	case elapsed < 3*time.Second:
		icon, style = "○", warn
	default:
		icon, style = "○", crit
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color("#707070")).Render("SYS:") + " " + style.Render(icon)
}

func fmtLarge(n int64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func fmtRate(r float64) string {
	if r >= 1000 {
		return fmtLarge(int64(r)) + "/s"
	}
	return fmt.Sprintf("%.1f/s", r)
}

func fmtUptime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
