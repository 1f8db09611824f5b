package domain

import (
	"net/netip"
	"sync"
	"time"
)

// MaxLineLength bounds a single access-log line accepted by replay.
const MaxLineLength = 8192

// LogEntry is one parsed access-log request, used when replaying logs
// through the detection engine.
type LogEntry struct {
	IP         netip.Addr `json:"ip"`
	Timestamp  time.Time  `json:"timestamp"`
	Method     string     `json:"method"`
	Path       string     `json:"path"`
	StatusCode int        `json:"status_code"`
	UserAgent  string     `json:"user_agent"`
	BytesSent  int        `json:"bytes_sent"`
	Truncated  bool       `json:"truncated,omitempty"`
	RawLine    string     `json:"raw_line,omitempty"`
}

var logEntryPool = sync.Pool{
	New: func() interface{} {
		return &LogEntry{}
	},
}

func AcquireLogEntry() *LogEntry {
	return logEntryPool.Get().(*LogEntry)
}

func ReleaseLogEntry(entry *LogEntry) {
	if entry == nil {
		return
	}
	*entry = LogEntry{}
	logEntryPool.Put(entry)
}

// ClientID is the identifier the engine tracks this entry under.
func (e *LogEntry) ClientID() string {
	if !e.IP.IsValid() {
		return ""
	}
	return e.IP.String()
}
