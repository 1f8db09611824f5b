package domain

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Decision records a non-good classification for the decision log,
// the dashboard and metrics.
type Decision struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	ClientID  string     `json:"client_id"`
	Class     ActorClass `json:"class"`
	Score     float64    `json:"score,omitempty"`
	Method    string     `json:"method,omitempty"`
	Path      string     `json:"path,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	Source    string     `json:"source"`
}

const (
	DecisionSourceProxy  = "proxy"
	DecisionSourceReplay = "replay"
)

func NewDecision(clientID string, status ActorStatus, source string, at time.Time) *Decision {
	d := &Decision{
		ID:        uuid.NewString(),
		Timestamp: at.UTC(),
		ClientID:  clientID,
		Class:     status.Class,
		Source:    source,
	}
	if status.IsSuspicious() {
		d.Score = status.Score
	}
	return d
}

func (d *Decision) ToJSON() ([]byte, error) {
	return json.Marshal(d)
}

// Message is a short human readable description of the decision.
func (d *Decision) Message() string {
	switch d.Class {
	case ActorClassBad:
		return "request blocked"
	case ActorClassSuspicious:
		return "request tagged as suspicious"
	default:
		return "request allowed"
	}
}

func (d *Decision) ClientString() string {
	if d.ClientID == "" {
		return "unknown"
	}
	return d.ClientID
}
