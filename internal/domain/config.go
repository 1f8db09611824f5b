package domain

import (
	"math"
	"time"
)

const (
	// DefaultMaxClients caps the number of distinct clients tracked at once.
	DefaultMaxClients = 10000
	// DefaultMaxEvents is the number of recent events kept per client.
	DefaultMaxEvents = 10
	// MinFrequencyWindow is the smallest time span a frequency is computed over.
	MinFrequencyWindow = 10 * time.Second

	DefaultBadFrequency        = 30.0 / 60.0
	DefaultSuspiciousFrequency = 20.0 / 60.0
)

// DetectorConfig holds the two classification thresholds in events/second.
// Invariant: BadFrequency >= SuspiciousFrequency >= 0.
type DetectorConfig struct {
	BadFrequency        float64 `json:"bad_frequency"`
	SuspiciousFrequency float64 `json:"suspicious_frequency"`
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		BadFrequency:        DefaultBadFrequency,
		SuspiciousFrequency: DefaultSuspiciousFrequency,
	}
}

// NewDetectorConfig builds a validated configuration.
func NewDetectorConfig(bad, suspicious float64) (DetectorConfig, error) {
	cfg := DetectorConfig{BadFrequency: bad, SuspiciousFrequency: suspicious}
	if err := cfg.Validate(); err != nil {
		return DetectorConfig{}, err
	}
	return cfg, nil
}

func (c DetectorConfig) Validate() error {
	if c.SuspiciousFrequency < 0 || math.IsNaN(c.SuspiciousFrequency) {
		return &ConfigValidationError{Field: "detection.suspicious_frequency", Value: c.SuspiciousFrequency, Reason: "must be non-negative"}
	}
	if c.BadFrequency < c.SuspiciousFrequency || math.IsNaN(c.BadFrequency) {
		return &ConfigValidationError{Field: "detection.bad_frequency", Value: c.BadFrequency, Reason: "must be >= detection.suspicious_frequency"}
	}
	return nil
}
