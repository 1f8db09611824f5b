package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/botradar/internal/domain"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	ListenAddress string
	ListenPort    int

	BackendAddress          string
	BackendPort             int
	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration

	Detector   domain.DetectorConfig
	MaxClients int
	MaxEvents  int
	Shards     int

	TrustForwardedHeaders bool
	AnalyticsPath         string
	AnalyticsRateLimit    int

	MetricsEnabled bool
	MetricsPort    int

	DecisionLogPath   string
	DecisionLogStdout bool

	LogLevel   string
	TUIEnabled bool
}

// SetDefaults registers every configuration key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen.address", "127.0.0.1")
	v.SetDefault("listen.port", 8000)

	v.SetDefault("backend.address", "127.0.0.1")
	v.SetDefault("backend.port", 8080)
	v.SetDefault("backend.breaker.failure_threshold", 5)
	v.SetDefault("backend.breaker.timeout", "30s")

	v.SetDefault("detection.bad_frequency", domain.DefaultBadFrequency)
	v.SetDefault("detection.suspicious_frequency", domain.DefaultSuspiciousFrequency)
	v.SetDefault("detection.max_clients", domain.DefaultMaxClients)
	v.SetDefault("detection.max_events", domain.DefaultMaxEvents)
	v.SetDefault("detection.shards", 1)

	v.SetDefault("proxy.trust_forwarded_headers", false)
	v.SetDefault("proxy.analytics_path", "/botdetector_analytics")
	v.SetDefault("proxy.analytics_rate_limit", 60)

	v.SetDefault("output.metrics.enabled", false)
	v.SetDefault("output.metrics.port", 9090)
	v.SetDefault("output.decisions.path", "")
	v.SetDefault("output.decisions.stdout", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("tui.enabled", false)
}

// LoadConfig reads and validates the configuration held by v.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		ListenAddress: v.GetString("listen.address"),
		ListenPort:    v.GetInt("listen.port"),

		BackendAddress:          v.GetString("backend.address"),
		BackendPort:             v.GetInt("backend.port"),
		BreakerFailureThreshold: v.GetUint32("backend.breaker.failure_threshold"),
		BreakerTimeout:          v.GetDuration("backend.breaker.timeout"),

		Detector: domain.DetectorConfig{
			BadFrequency:        v.GetFloat64("detection.bad_frequency"),
			SuspiciousFrequency: v.GetFloat64("detection.suspicious_frequency"),
		},
		MaxClients: v.GetInt("detection.max_clients"),
		MaxEvents:  v.GetInt("detection.max_events"),
		Shards:     v.GetInt("detection.shards"),

		TrustForwardedHeaders: v.GetBool("proxy.trust_forwarded_headers"),
		AnalyticsPath:         v.GetString("proxy.analytics_path"),
		AnalyticsRateLimit:    v.GetInt("proxy.analytics_rate_limit"),

		MetricsEnabled: v.GetBool("output.metrics.enabled"),
		MetricsPort:    v.GetInt("output.metrics.port"),

		DecisionLogPath:   v.GetString("output.decisions.path"),
		DecisionLogStdout: v.GetBool("output.decisions.stdout"),

		LogLevel:   v.GetString("logging.level"),
		TUIEnabled: v.GetBool("tui.enabled"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field and returns the first problem found as a
// *domain.ConfigValidationError.
func (c Config) Validate() error {
	if err := validatePort("listen.port", c.ListenPort); err != nil {
		return err
	}
	if c.BackendAddress == "" {
		return &domain.ConfigValidationError{Field: "backend.address", Value: c.BackendAddress, Reason: "must not be empty"}
	}
	if err := validatePort("backend.port", c.BackendPort); err != nil {
		return err
	}
	if c.BreakerFailureThreshold < 1 {
		return &domain.ConfigValidationError{Field: "backend.breaker.failure_threshold", Value: c.BreakerFailureThreshold, Reason: "must be positive"}
	}
	if c.BreakerTimeout <= 0 {
		return &domain.ConfigValidationError{Field: "backend.breaker.timeout", Value: c.BreakerTimeout, Reason: "must be positive"}
	}
	if err := c.Detector.Validate(); err != nil {
		return err
	}
	if c.MaxClients < 1 {
		return &domain.ConfigValidationError{Field: "detection.max_clients", Value: c.MaxClients, Reason: "must be positive"}
	}
	if c.MaxEvents < 2 {
		return &domain.ConfigValidationError{Field: "detection.max_events", Value: c.MaxEvents, Reason: "must be at least 2"}
	}
	if c.Shards < 1 || c.Shards > c.MaxClients {
		return &domain.ConfigValidationError{Field: "detection.shards", Value: c.Shards, Reason: "must be between 1 and detection.max_clients"}
	}
	if len(c.AnalyticsPath) == 0 || c.AnalyticsPath[0] != '/' {
		return &domain.ConfigValidationError{Field: "proxy.analytics_path", Value: c.AnalyticsPath, Reason: "must start with /"}
	}
	if c.AnalyticsRateLimit < 0 {
		return &domain.ConfigValidationError{Field: "proxy.analytics_rate_limit", Value: c.AnalyticsRateLimit, Reason: "must be non-negative"}
	}
	if c.MetricsEnabled {
		if err := validatePort("output.metrics.port", c.MetricsPort); err != nil {
			return err
		}
		if c.MetricsPort == c.ListenPort {
			return &domain.ConfigValidationError{Field: "output.metrics.port", Value: c.MetricsPort, Reason: "must differ from listen.port"}
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return &domain.ConfigValidationError{Field: "logging.level", Value: c.LogLevel, Reason: "unknown level"}
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &domain.ConfigValidationError{Field: field, Value: port, Reason: "must be between 1 and 65535"}
	}
	return nil
}

// ApplyLogLevel sets the global zerolog level.
func ApplyLogLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

// LogLevelWatcher re-applies logging.level whenever the config file changes.
// Detection thresholds are deliberately left alone: the engine is immutable
// after construction and a threshold change requires a restart.
type LogLevelWatcher struct {
	v        *viper.Viper
	mu       sync.Mutex
	current  string
	stopped  bool
	stopOnce sync.Once
}

func NewLogLevelWatcher(v *viper.Viper) *LogLevelWatcher {
	return &LogLevelWatcher{v: v, current: v.GetString("logging.level")}
}

// Start begins watching the config file. It is a no-op when no config file
// was loaded.
func (w *LogLevelWatcher) Start() error {
	if w.v.ConfigFileUsed() == "" {
		return errors.New("no config file in use")
	}
	w.v.OnConfigChange(w.onChange)
	w.v.WatchConfig()
	log.Info().Str("config", w.v.ConfigFileUsed()).Msg("Watching config file for log level changes")
	return nil
}

func (w *LogLevelWatcher) onChange(e fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	level := w.v.GetString("logging.level")
	if level == w.current {
		return
	}
	if err := ApplyLogLevel(level); err != nil {
		log.Error().Err(err).Str("file", e.Name).Msg("Rejecting config reload")
		return
	}
	log.Info().
		Str("file", e.Name).
		Str("op", e.Op.String()).
		Str("from", w.current).
		Str("to", level).
		Msg("Log level reloaded")
	w.current = level
}

// Current returns the level applied most recently.
func (w *LogLevelWatcher) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ignores further change events. viper offers no way to remove the
// underlying file watch.
func (w *LogLevelWatcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
	})
}
