package domain

import (
	"fmt"
	"time"
)

// ClockRegressionError reports that the newest event in a log is older than
// the oldest one, typically after a wall-clock correction. The log keeps its
// previous frequency when this happens.
type ClockRegressionError struct {
	Oldest time.Time
	Newest time.Time
}

func (e *ClockRegressionError) Error() string {
	return fmt.Sprintf("clock regression: newest event %s precedes oldest %s by %s",
		e.Newest.Format(time.RFC3339Nano), e.Oldest.Format(time.RFC3339Nano), e.Oldest.Sub(e.Newest))
}

// ConfigValidationError describes a single invalid configuration value.
type ConfigValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s = %v - %s", e.Field, e.Value, e.Reason)
}
