package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/ports"
)

// DefaultAnalyticsPath is where the request tally is served.
const DefaultAnalyticsPath = "/botdetector_analytics"

// Recent decisions are served under the analytics path.
const (
	decisionsSuffix      = "/decisions"
	defaultDecisionLimit = 100
)

// ServerConfig configures the listening side of the proxy.
type ServerConfig struct {
	Address            string        // Listen address
	Port               int           // Listen port
	AnalyticsPath      string        // Tally endpoint (default: /botdetector_analytics)
	AnalyticsRateLimit int           // Requests per minute per IP, 0 disables
	ShutdownTimeout    time.Duration // Graceful shutdown bound (default: 10s)
}

// DefaultServerConfig returns production-ready defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:            "127.0.0.1",
		Port:               8000,
		AnalyticsPath:      DefaultAnalyticsPath,
		AnalyticsRateLimit: 60,
		ShutdownTimeout:    10 * time.Second,
	}
}

// Analytics is the JSON document served on the analytics path.
type Analytics struct {
	domain.ReqStats
	TrackedClients int `json:"tracked_clients"`
}

// RecentDecisions is the JSON document served on the decisions path.
type RecentDecisions struct {
	Count     int                `json:"count"`
	Decisions []*domain.Decision `json:"decisions"`
}

// Server is the proxy HTTP server.
//
// Routing: every request, analytics included, passes through the Gate
// first. The analytics path and its /decisions subpath are answered
// locally; everything else goes to the backend.
type Server struct {
	config    ServerConfig
	router    chi.Router
	gate      *Gate
	inspector ports.ClientInspector
	history   ports.DecisionHistory

	server *http.Server
	mu     sync.Mutex
}

// NewServer wires the router.
//
// Parameters:
//   - cfg: Listen and analytics settings
//   - gate: Classification middleware
//   - backend: Handler for all non-analytics requests
//   - inspector: Optional, adds tracked_clients to analytics
//   - history: Optional, enables the /decisions subpath
func NewServer(cfg ServerConfig, gate *Gate, backend http.Handler, inspector ports.ClientInspector, history ports.DecisionHistory) *Server {
	if cfg.AnalyticsPath == "" {
		cfg.AnalyticsPath = DefaultAnalyticsPath
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		config:    cfg,
		gate:      gate,
		inspector: inspector,
		history:   history,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(gate.Middleware)

	r.Group(func(r chi.Router) {
		if cfg.AnalyticsRateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.AnalyticsRateLimit, time.Minute))
		}
		r.Get(cfg.AnalyticsPath, s.handleAnalytics)
		if history != nil {
			r.Get(cfg.AnalyticsPath+decisionsSuffix, s.handleDecisions)
		}
		r.Get(cfg.AnalyticsPath+"/*", s.handleAnalytics)
	})
	r.Handle("/*", backend)

	s.router = r
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Address, strconv.Itoa(s.config.Port))
}

// Start begins serving in the background.
//
// Returns:
//   - Error if the listener cannot be bound
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("Starting proxy server")
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Proxy server error")
		}
	}()
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests up
// to the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	doc := Analytics{ReqStats: s.gate.Tally().Snapshot()}
	if s.inspector != nil {
		doc.TrackedClients = s.inspector.TrackedClients()
	}

	writeJSON(w, doc)
}

func writeJSON(w http.ResponseWriter, doc any) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Error serializing analytics")
		http.Error(w, "I am terribly sorry, something went wrong", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

// handleDecisions serves the newest decisions, oldest first. The optional
// limit query parameter bounds the count.
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := defaultDecisionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	decisions := s.history.Latest(limit)
	writeJSON(w, RecentDecisions{Count: len(decisions), Decisions: decisions})
}
