package proxy

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/ports"
)

const (
	// BotProbabilityHeader carries the suspicion score to the backend.
	BotProbabilityHeader = "Bot-Probability"

	// BlockedBody is the response body sent to Bad clients.
	BlockedBody = "<p>Go away silly bot<p>\n"
)

// Gate is the classification middleware.
//
// Thread Safety: Safe for concurrent use; all shared state lives in the
// classifier, the tally and the observers, which synchronize themselves.
type Gate struct {
	classifier     ports.ActorClassifier
	tally          *domain.RequestTally
	observer       ports.ClassificationObserver
	publisher      ports.DecisionPublisher
	trustForwarded bool
	now            func() time.Time
}

// GateOptions holds the optional collaborators of a Gate.
type GateOptions struct {
	Observer              ports.ClassificationObserver
	Publisher             ports.DecisionPublisher
	TrustForwardedHeaders bool
}

func NewGate(classifier ports.ActorClassifier, tally *domain.RequestTally, opts GateOptions) *Gate {
	if tally == nil {
		tally = domain.NewRequestTally()
	}
	return &Gate{
		classifier:     classifier,
		tally:          tally,
		observer:       opts.Observer,
		publisher:      opts.Publisher,
		trustForwarded: opts.TrustForwardedHeaders,
		now:            time.Now,
	}
}

// Middleware classifies the request before handing it to next.
//
// Behavior:
//   - Bad: 401 with BlockedBody, next is not called
//   - Suspicious: Bot-Probability header set to the score
//   - Good: any client supplied Bot-Probability header is removed
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := ClientID(r, g.trustForwarded)

		start := g.now()
		status := g.classifier.RecordAndClassify(clientID)
		elapsed := g.now().Sub(start)

		g.tally.Record(status)
		if g.observer != nil {
			g.observer.ObserveClassification(status, elapsed.Seconds())
		}
		if !status.IsGood() {
			g.publish(r, clientID, status, start)
		}

		switch status.Class {
		case domain.ActorClassBad:
			log.Debug().Str("client", clientID).Str("path", r.URL.Path).Msg("Blocked bad actor")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, BlockedBody)
			return
		case domain.ActorClassSuspicious:
			r.Header.Set(BotProbabilityHeader, status.ScoreString())
		default:
			r.Header.Del(BotProbabilityHeader)
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) publish(r *http.Request, clientID string, status domain.ActorStatus, at time.Time) {
	if g.publisher == nil {
		return
	}
	d := domain.NewDecision(clientID, status, domain.DecisionSourceProxy, at)
	d.Method = r.Method
	d.Path = r.URL.Path
	d.RequestID = middleware.GetReqID(r.Context())
	g.publisher.Publish(d)
}

// Tally returns the request tally updated by the gate.
func (g *Gate) Tally() *domain.RequestTally {
	return g.tally
}
