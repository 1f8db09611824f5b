package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/xoelrdgz/botradar/internal/ports"
)

// UpstreamFailureBody is returned to the client when the backend cannot be
// reached. It never includes the underlying error.
const UpstreamFailureBody = "Bad Gateway: the upstream server could not be reached\n"

// BackendConfig configures the upstream connection.
type BackendConfig struct {
	Address          string        // Backend host
	Port             int           // Backend port
	FailureThreshold uint32        // Consecutive failures before opening (default: 5)
	OpenTimeout      time.Duration // Time open before probing again (default: 30s)
	DialTimeout      time.Duration // TCP connect timeout (default: 5s)
}

// DefaultBackendConfig returns production-ready defaults.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Address:          "127.0.0.1",
		Port:             8080,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		DialTimeout:      5 * time.Second,
	}
}

// Backend forwards requests to the upstream server.
//
// Transport errors feed a circuit breaker. While it is open requests fail
// fast with 502 instead of waiting on a dead upstream. HTTP error statuses
// from the backend are passed through and do not count as failures.
type Backend struct {
	target  *url.URL
	proxy   *httputil.ReverseProxy
	breaker *gobreaker.CircuitBreaker[*http.Response]
	errors  ports.ClassificationObserver
}

// NewBackend creates the reverse proxy for cfg.
//
// Parameters:
//   - cfg: Upstream address and breaker settings
//   - observer: Optional, counts backend errors
func NewBackend(cfg BackendConfig, observer ports.ClassificationObserver) (*Backend, error) {
	if cfg.Address == "" {
		return nil, errors.New("backend address is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("backend port out of range: %d", cfg.Port)
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	target := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)),
	}

	b := &Backend{target: target, errors: observer}
	b.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Clients hanging up are not upstream failures.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Backend circuit breaker state change")
		},
	})

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	b.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		Transport:    &breakerTransport{base: transport, breaker: b.breaker},
		ErrorHandler: b.handleError,
	}
	return b, nil
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.proxy.ServeHTTP(w, r)
}

// Target returns the upstream base URL.
func (b *Backend) Target() *url.URL {
	return b.target
}

// BreakerState returns the circuit breaker state ("closed", "half-open", "open").
func (b *Backend) BreakerState() string {
	return b.breaker.State().String()
}

func (b *Backend) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if b.errors != nil {
		b.errors.IncrementBackendErrors()
	}
	event := log.Error()
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		event = log.Warn()
	}
	event.Err(err).Str("path", r.URL.Path).Str("backend", b.target.Host).Msg("Request to backend failed")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = io.WriteString(w, UpstreamFailureBody)
}

// breakerTransport runs each round trip through the circuit breaker.
type breakerTransport struct {
	base    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.breaker.Execute(func() (*http.Response, error) {
		return t.base.RoundTrip(req)
	})
}
