// HTTP surface of the mission center dashboard.
//
// DESIGN: Request flow:
//   - webhook.go: POST /api/webhook/* ledger ingestion and delivery history
//   - usage.go:   GET  /api/usage, /api/claude-usage, /api/openclaw-usage,
//     /api/openclaw-setup snapshot reads
//   - status.go:  GET  /api/status, /api/stats, /healthz
//   - events.go:  GET  /api/events websocket snapshot push
//
// All state mutation goes through the ledger service; handlers only shape
// responses.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/notesmbr/mission-center/internal/billing"
	"github.com/notesmbr/mission-center/internal/config"
	"github.com/notesmbr/mission-center/internal/history"
	"github.com/notesmbr/mission-center/internal/ledger"
	"github.com/notesmbr/mission-center/internal/logwatch"
	"github.com/notesmbr/mission-center/internal/setup"
	"github.com/notesmbr/mission-center/internal/utils"
)

// Provenance tags every read response with where its data came from.
const (
	ProvenanceLive        = "live"
	ProvenanceDerived     = "derived"
	ProvenanceHardcoded   = "hardcoded"
	ProvenanceFallback    = "fallback"
	ProvenanceUnavailable = "unavailable"
)

// Server wires the dashboard components behind an http.Handler.
type Server struct {
	cfg       *config.Config
	ledger    *ledger.Service
	estimator *logwatch.Estimator
	inspector *setup.Inspector
	billing   *billing.Client
	history   *history.Store
	metrics   *MetricsCollector
	hub       *eventHub
	now       func() time.Time
}

// New assembles a Server from its components. history may be nil; the
// debug endpoints then report unavailable.
func New(cfg *config.Config, svc *ledger.Service, est *logwatch.Estimator, ins *setup.Inspector, bc *billing.Client, hist *history.Store) *Server {
	return &Server{
		cfg:       cfg,
		ledger:    svc,
		estimator: est,
		inspector: ins,
		billing:   bc,
		history:   hist,
		metrics:   NewMetricsCollector(),
		hub:       newEventHub(),
		now:       time.Now,
	}
}

// Handler returns the routed handler for the dashboard API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/webhook/openrouter", s.handleOpenRouterWebhook)
	mux.HandleFunc("/api/webhook/debug", s.handleDebugWebhook)
	mux.HandleFunc("/api/usage", s.handleUsage)
	mux.HandleFunc("/api/claude-usage", s.handleClaudeUsage)
	mux.HandleFunc("/api/openclaw-usage", s.handleOpenClawUsage)
	mux.HandleFunc("/api/openclaw-setup", s.handleOpenClawSetup)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/healthz", s.handleHealth)
	return s.withRequestLog(mux)
}

// ListenAndServe runs the server until ctx is canceled, then drains.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.cfg.Server.Port).Msg("server: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Websocket upgrades manage the connection themselves.
		if r.URL.Path == "/api/events" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.metrics.RecordRequest(rec.status < 400)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("server: request")
	})
}

// writeJSON writes a 200 JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	s.writeJSONStatus(w, http.StatusOK, v)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, v any) {
	data, err := utils.MarshalNoEscape(v)
	if err != nil {
		s.writeError(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// isLoopback reports whether the remote address is a loopback interface.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
