package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTally(t *testing.T) {
	tally := NewRequestTally()
	tally.Record(Good())
	tally.Record(Good())
	tally.Record(Suspicious(SuspiciousPlaceholderScore))
	tally.Record(Bad())

	s := tally.Snapshot()
	assert.Equal(t, uint64(2), s.NumGoodReqs)
	assert.Equal(t, uint64(1), s.NumSuspReqs)
	assert.Equal(t, uint64(1), s.NumBadReqs)
	assert.Equal(t, uint64(4), s.Total())
}

func TestRequestTallyConcurrent(t *testing.T) {
	tally := NewRequestTally()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tally.Record(Bad())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(4000), tally.Snapshot().NumBadReqs)
}

func TestReqStatsJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(ReqStats{NumGoodReqs: 1, NumSuspReqs: 2, NumBadReqs: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"num_good_reqs":1,"num_susp_reqs":2,"num_bad_reqs":3}`, string(data))
}

func TestRuntimeMetricsSnapshot(t *testing.T) {
	m := NewRuntimeMetrics()
	m.UpdateRPS(12.5)
	m.SetTrackedClients(7)
	m.SetMemoryUsage(3.5)
	m.IncrementDroppedDecisions()

	snap := m.Snapshot(ReqStats{NumBadReqs: 2})
	assert.Equal(t, 12.5, snap.RequestsPerSecond)
	assert.Equal(t, 7, snap.TrackedClients)
	assert.Equal(t, 3.5, snap.MemoryUsageMB)
	assert.Equal(t, int64(1), snap.DroppedDecisions)
	assert.Equal(t, uint64(2), snap.Requests.NumBadReqs)
	assert.GreaterOrEqual(t, snap.Uptime, time.Duration(0))
}
