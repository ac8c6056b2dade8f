package server

import (
	"net/http"
	"time"
)

// Agent is one entry in the orchestrator roster.
type Agent struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Model          string `json:"model"`
	Status         string `json:"status"`
	TasksCompleted int    `json:"tasksCompleted"`
}

// agentRoster is a static snapshot of the orchestrator's sessions. There
// is no roster API to read from yet, so the dashboard shows this picture
// with hardcoded provenance.
var agentRoster = []Agent{
	{ID: "main", Name: "Main Session", Model: "openrouter/anthropic/claude-haiku-4-5", Status: "active", TasksCompleted: 12},
	{ID: "isolated-1", Name: "Research Agent", Model: "openrouter/anthropic/claude-sonnet-4.6", Status: "idle", TasksCompleted: 3},
	{ID: "isolated-2", Name: "Code Agent", Model: "openrouter/anthropic/claude-opus-4-6", Status: "active", TasksCompleted: 5},
}

// handleStatus returns orchestrator status and the agent roster.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.metrics.StartedAt())
	s.writeJSON(w, map[string]any{
		"provenance": ProvenanceHardcoded,
		"openclaw": map[string]any{
			"status":        "active",
			"uptime":        formatDuration(uptime),
			"lastHeartbeat": s.now().UTC().Format(time.RFC3339),
		},
		"agents": agentRoster,
	})
}

// handleStats returns operational counters.
// Restricted to localhost to prevent external access to operational metrics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	s.writeJSON(w, s.metrics.FullStats())
}

// handleHealth returns server health, probing the ledger store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if err := s.ledger.Ping(); err != nil {
		health["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSONStatus(w, status, health)
}
