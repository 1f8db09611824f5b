package detection

import "github.com/xoelrdgz/botradar/internal/domain"

// Classify maps a frequency to an ActorStatus. Comparisons are inclusive, so
// a frequency equal to a threshold lands in the more severe class.
func Classify(frequency float64, cfg domain.DetectorConfig) domain.ActorStatus {
	switch {
	case frequency >= cfg.BadFrequency:
		return domain.Bad()
	case frequency >= cfg.SuspiciousFrequency:
		return domain.Suspicious(domain.SuspiciousPlaceholderScore)
	default:
		return domain.Good()
	}
}
