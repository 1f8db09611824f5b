package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/botradar/internal/domain"
)

func decisionFor(client string, status domain.ActorStatus) *domain.Decision {
	d := domain.NewDecision(client, status, domain.DecisionSourceProxy, time.Now())
	d.Method = "GET"
	d.Path = "/products"
	return d
}

func TestModel_TopClientsRanking(t *testing.T) {
	m := NewModel()
	for i := 0; i < 5; i++ {
		m.RecordClient(decisionFor("10.0.0.1", domain.Bad()))
	}
	for i := 0; i < 3; i++ {
		m.RecordClient(decisionFor("10.0.0.2", domain.Suspicious(0.5)))
	}
	m.RecordClient(decisionFor("10.0.0.3", domain.Suspicious(0.5)))

	top := m.TopClients()
	require.Len(t, top, 3)
	assert.Equal(t, "10.0.0.1", top[0].ClientID)
	assert.Equal(t, 5, top[0].Flags)
	assert.Equal(t, 5, top[0].Bad)
	assert.Equal(t, "10.0.0.2", top[1].ClientID)
	assert.Equal(t, 0, top[1].Bad)
	assert.Equal(t, "/products", top[1].LastPath)

	assert.Equal(t, 9, m.TotalFlagged())
	assert.Equal(t, 5, m.TotalBad())
}

func TestModel_ForgetsLeastFlagged(t *testing.T) {
	m := NewModel()
	m.MaxTrackedClients = 2

	m.RecordClient(decisionFor("a", domain.Bad()))
	m.RecordClient(decisionFor("a", domain.Bad()))
	m.RecordClient(decisionFor("b", domain.Bad()))
	m.RecordClient(decisionFor("c", domain.Bad()))

	assert.Equal(t, 2, m.TrackedClients())
	ids := []string{}
	for _, e := range m.TopClients() {
		ids = append(ids, e.ClientID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestModel_DecisionRingIsBounded(t *testing.T) {
	m := NewModel()
	m.MaxDecisions = 3
	for i := 0; i < 5; i++ {
		m.AddDecision(decisionFor(fmt.Sprintf("10.0.0.%d", i), domain.Bad()))
	}
	got := m.GetDecisions()
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.2", got[0].ClientID)
	assert.Equal(t, "10.0.0.4", got[2].ClientID)
}

func TestApp_RendersDecisionsAndStatus(t *testing.T) {
	app := NewApp("127.0.0.1:8080")
	app.Update(tea.WindowSizeMsg{Width: 140, Height: 40})

	app.OnDecision(decisionFor("203.0.113.9", domain.Bad()))
	app.OnDecision(decisionFor("\x1b[2J198.51.100.1", domain.Suspicious(0.5)))
	app.Update(tickMsg(time.Now()))
	app.Update(metricsMsg(domain.MetricsSnapshot{
		Requests:          domain.ReqStats{NumGoodReqs: 10, NumSuspReqs: 1, NumBadReqs: 1},
		RequestsPerSecond: 3.5,
		TrackedClients:    4,
	}))

	view := app.View()
	assert.Contains(t, view, "BOTRADAR")
	assert.Contains(t, view, "BLOCKING")
	assert.Contains(t, view, "203.0.113.9")
	assert.Contains(t, view, "GET /products")
	assert.Contains(t, view, "3.5/s")
	assert.NotContains(t, view, "\x1b[2J", "client IDs are sanitized")

	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	view = app.View()
	assert.Contains(t, view, "TOP FLAGGED CLIENTS")
	assert.True(t, strings.Contains(view, "203.0.113.9"))
}

func TestApp_PendingBufferDrops(t *testing.T) {
	app := NewApp("backend")
	for i := 0; i < app.maxPending+1; i++ {
		app.OnDecision(decisionFor("10.0.0.1", domain.Bad()))
	}
	assert.Equal(t, int64(app.maxPending/10), app.DroppedDecisions())
	assert.Equal(t, app.maxPending+1, app.Model().TotalFlagged())
}

func TestApp_Quit(t *testing.T) {
	app := NewApp("backend")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Contains(t, app.View(), "Session terminated")
}
