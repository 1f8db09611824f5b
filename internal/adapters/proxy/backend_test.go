package proxy

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backendFor(t *testing.T, rawURL string) BackendConfig {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := DefaultBackendConfig()
	cfg.Address = host
	cfg.Port = port
	return cfg
}

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestBackend_Forwards(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		_, _ = io.WriteString(w, r.Method+" "+r.URL.RequestURI()+" "+r.Header.Get(BotProbabilityHeader))
	}))
	defer upstream.Close()

	backend, err := NewBackend(backendFor(t, upstream.URL), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/a/b?x=1", nil)
	req.Header.Set(BotProbabilityHeader, "0.5")
	rec := httptest.NewRecorder()
	backend.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
	assert.Equal(t, "GET /a/b?x=1 0.5", rec.Body.String())
	assert.Equal(t, "closed", backend.BreakerState())
}

func TestBackend_UpstreamStatusPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	backend, err := NewBackend(backendFor(t, upstream.URL), nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		backend.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	}
	assert.Equal(t, "closed", backend.BreakerState())
}

func TestBackend_OutageReturns502(t *testing.T) {
	cfg := DefaultBackendConfig()
	cfg.Port = closedPort(t)
	cfg.FailureThreshold = 2
	cfg.OpenTimeout = time.Hour
	observer := &stubObserver{}

	backend, err := NewBackend(cfg, observer)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		backend.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, UpstreamFailureBody, rec.Body.String())
	}

	assert.Equal(t, "open", backend.BreakerState())
	assert.Equal(t, 3, observer.backendErrors)
}

func TestNewBackend_Validation(t *testing.T) {
	cfg := DefaultBackendConfig()
	cfg.Address = ""
	_, err := NewBackend(cfg, nil)
	assert.Error(t, err)

	cfg = DefaultBackendConfig()
	cfg.Port = 70000
	_, err = NewBackend(cfg, nil)
	assert.Error(t, err)
}
