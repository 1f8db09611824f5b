package domain

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogEntryPool(t *testing.T) {
	entry := AcquireLogEntry()
	require.NotNil(t, entry)

	entry.IP = netip.MustParseAddr("192.168.1.1")
	entry.Timestamp = time.Now()
	entry.Method = "GET"
	entry.Path = "/test"
	entry.StatusCode = 200

	ReleaseLogEntry(entry)

	entry2 := AcquireLogEntry()
	require.NotNil(t, entry2)
	assert.False(t, entry2.IP.IsValid())
	assert.True(t, entry2.Timestamp.IsZero())
	assert.Empty(t, entry2.Method)
	assert.Empty(t, entry2.Path)
	assert.Zero(t, entry2.StatusCode)

	ReleaseLogEntry(entry2)
}

func TestLogEntryClientID(t *testing.T) {
	entry := &LogEntry{IP: netip.MustParseAddr("2001:db8::1")}
	assert.Equal(t, "2001:db8::1", entry.ClientID())

	assert.Empty(t, (&LogEntry{}).ClientID())
}

func TestReleaseNilEntry(t *testing.T) {
	assert.NotPanics(t, func() { ReleaseLogEntry(nil) })
}
