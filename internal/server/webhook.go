package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/notesmbr/mission-center/internal/config"
	"github.com/notesmbr/mission-center/internal/history"
	"github.com/notesmbr/mission-center/internal/ledger"
)

// handleOpenRouterWebhook ingests usage telemetry into the ledger. Two
// body shapes are accepted: an OTEL-style span batch and a simple typed
// event. Anything else is rejected without touching the ledger.
func (s *Server) handleOpenRouterWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxWebhookBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.recordDelivery("unknown", "rejected", nil)
		s.writeError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	switch {
	case ledger.IsSpanBatch(body):
		result, err := s.ledger.RecordSpanBatch(body)
		if err != nil {
			s.recordDelivery("span_batch", "failed", body)
			s.writeWebhookFailure(w, err)
			return
		}
		s.recordDelivery("span_batch", "recorded", body)
		s.afterLedgerWrite(r)
		s.writeJSON(w, map[string]any{
			"status":         "recorded",
			"spansProcessed": result.SpansProcessed,
			"totalCost":      result.TotalCost,
		})

	case ledger.IsEvent(body):
		result, err := s.ledger.RecordEvent(body)
		if err != nil {
			s.recordDelivery("event", "failed", body)
			s.writeWebhookFailure(w, err)
			return
		}
		s.recordDelivery("event", string(result.Status), body)
		switch result.Status {
		case ledger.StatusRecorded:
			s.afterLedgerWrite(r)
			s.writeJSON(w, map[string]any{
				"status":    "recorded",
				"model":     result.Model,
				"cost":      result.Cost,
				"totalCost": result.TotalCost,
			})
		case ledger.StatusUpdated:
			s.afterLedgerWrite(r)
			s.writeJSON(w, map[string]any{
				"status":    "updated",
				"totalCost": result.TotalCost,
			})
		default:
			s.writeJSON(w, map[string]any{
				"status": "ignored",
				"type":   result.Type,
			})
		}

	default:
		s.recordDelivery("unknown", "rejected", body)
		s.writeError(w, "Unknown webhook format", http.StatusBadRequest)
	}
}

// writeWebhookFailure maps ledger errors to responses. A write that could
// not be flushed to disk is a server failure; the caller must not believe
// its data was recorded.
func (s *Server) writeWebhookFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, ledger.ErrUnknownFormat) {
		s.writeError(w, "Unknown webhook format", http.StatusBadRequest)
		return
	}
	log.Error().Err(err).Msg("server: webhook processing failed")
	s.writeError(w, "Failed to process webhook", http.StatusInternalServerError)
}

// recordDelivery appends to the delivery history and bumps counters.
// History failures are logged, never surfaced; the ledger write is the
// source of truth for the caller.
func (s *Server) recordDelivery(kind, status string, payload []byte) {
	s.metrics.RecordDelivery(status)
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(kind, status, string(payload)); err != nil {
		log.Warn().Err(err).Msg("server: recording delivery history failed")
	}
}

// afterLedgerWrite pushes the refreshed snapshot to websocket listeners.
func (s *Server) afterLedgerWrite(r *http.Request) {
	payload := s.usageResponse()
	if n := s.hub.broadcast(r.Context(), payload); n > 0 {
		s.metrics.RecordEventPush()
	}
}

// handleDebugWebhook records raw payloads for inspection. POST appends,
// GET returns the recent entries newest first.
func (s *Server) handleDebugWebhook(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, "Delivery history is not enabled", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, config.MaxWebhookBodySize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.writeError(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		count, err := s.history.Record("debug", "logged", string(body))
		if err != nil {
			log.Error().Err(err).Msg("server: debug log write failed")
			s.writeError(w, "Failed to record payload", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, map[string]any{"status": "logged", "entries": count})

	case http.MethodGet:
		entries, err := s.history.Recent(0)
		if err != nil {
			s.writeError(w, "Failed to read delivery history", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		s.writeJSON(w, map[string]any{
			"provenance": ProvenanceLive,
			"entries":    entries,
		})

	default:
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
