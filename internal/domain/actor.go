package domain

import (
	"strconv"
	"time"
)

// ActorClass is the coarse standing of a client.
type ActorClass string

const (
	ActorClassGood       ActorClass = "GOOD"
	ActorClassSuspicious ActorClass = "SUSPICIOUS"
	ActorClassBad        ActorClass = "BAD"
)

// SuspiciousPlaceholderScore is the confidence attached to every
// Suspicious classification until a real scoring model exists.
const SuspiciousPlaceholderScore = 0.5

// ActorStatus is the result of classifying one request.
// Score is only meaningful for ActorClassSuspicious and lies in [0,1].
type ActorStatus struct {
	Class ActorClass
	Score float64
}

func Good() ActorStatus { return ActorStatus{Class: ActorClassGood} }

func Bad() ActorStatus { return ActorStatus{Class: ActorClassBad} }

// Suspicious returns a suspicious status with score clamped to [0,1].
func Suspicious(score float64) ActorStatus {
	return ActorStatus{Class: ActorClassSuspicious, Score: clampScore(score)}
}

func (s ActorStatus) IsGood() bool       { return s.Class == ActorClassGood }
func (s ActorStatus) IsSuspicious() bool { return s.Class == ActorClassSuspicious }
func (s ActorStatus) IsBad() bool        { return s.Class == ActorClassBad }

// ScoreString formats the score the way it is sent to the backend.
func (s ActorStatus) ScoreString() string {
	return strconv.FormatFloat(s.Score, 'g', -1, 64)
}

func (s ActorStatus) String() string {
	if s.Class == ActorClassSuspicious {
		return string(s.Class) + "(" + s.ScoreString() + ")"
	}
	return string(s.Class)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Event is a single observation of a client. Immutable once created.
type Event struct {
	Timestamp time.Time
}

func NewEvent(ts time.Time) Event {
	return Event{Timestamp: ts}
}

// ClientSummary is a read-only view of one tracked client.
type ClientSummary struct {
	ClientID  string    `json:"client_id"`
	Frequency float64   `json:"frequency"`
	Events    int       `json:"events"`
	LastSeen  time.Time `json:"last_seen"`
}
