package views

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	sparkColorPrimary = lipgloss.Color("#00ff41")
	sparkColorAmber   = lipgloss.Color("#ffb000")
	sparkColorRed     = lipgloss.Color("#ff3333")
	sparkColorDim     = lipgloss.Color("#404040")
	sparkColorGhost   = lipgloss.Color("#252525")
)

var signalChars = []rune{'⎽', '⎼', '─', '⎻', '⎺'}

var barChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Throughput draws the request rate history, one sample per metrics tick.
type Throughput struct {
	Data        []float64
	Width       int
	OscilloMode bool
}

func NewThroughput(width int) *Throughput {
	if width <= 0 {
		width = 60
	}
	return &Throughput{
		Data:        make([]float64, width),
		Width:       width,
		OscilloMode: true,
	}
}

func (t *Throughput) Update(value float64) {
	t.Data = append(t.Data[1:], value)
}

func (t *Throughput) SetWidth(width int) {
	if width <= 0 || width == t.Width {
		return
	}
	old := t.Data
	t.Width = width
	t.Data = make([]float64, width)
	if len(old) > 0 {
		start := 0
		if len(old) > width {
			start = len(old) - width
		}
		copy(t.Data[width-len(old[start:]):], old[start:])
	}
}

// ToggleMode switches between the oscilloscope trace and bars.
func (t *Throughput) ToggleMode() {
	t.OscilloMode = !t.OscilloMode
}

func (t *Throughput) Render() string {
	if t.OscilloMode {
		return t.render(signalChars, 10)
	}
	return t.render(barChars, 0)
}

// Current returns the most recent sample.
func (t *Throughput) Current() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	return t.Data[len(t.Data)-1]
}

// render draws the visible samples scaled to the window maximum (at least
// 10 req/s). gridEvery > 0 replaces every n-th column with a grid mark.
func (t *Throughput) render(glyphs []rune, gridEvery int) string {
	dim := lipgloss.NewStyle().Foreground(sparkColorDim)
	ghost := lipgloss.NewStyle().Foreground(sparkColorGhost)

	data := t.Data
	if len(data) > t.Width {
		data = data[len(data)-t.Width:]
	}

	peak := 10.0
	for _, v := range data {
		peak = max(peak, v)
	}

	current := t.Current()
	color := lipgloss.NewStyle().Foreground(sparkColorPrimary)
	switch {
	case current > 5000:
		color = lipgloss.NewStyle().Foreground(sparkColorRed)
	case current > 1000:
		color = lipgloss.NewStyle().Foreground(sparkColorAmber)
	}

	top := len(glyphs) - 1
	var b strings.Builder
	b.WriteString(" ")
	for i, v := range data {
		if gridEvery > 0 && i > 0 && i%gridEvery == 0 {
			b.WriteString(ghost.Render("│"))
			continue
		}
		if v <= 0 {
			b.WriteString(dim.Render(string(glyphs[0])))
			continue
		}
		level := min(int(v/peak*float64(top)), top)
		b.WriteString(color.Render(string(glyphs[level])))
	}
	b.WriteString(color.Bold(true).Render(" ▶ " + fmtRate(current)))

	return b.String()
}
