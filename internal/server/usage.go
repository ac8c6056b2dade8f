package server

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/notesmbr/mission-center/internal/billing"
	"github.com/notesmbr/mission-center/internal/ledger"
	"github.com/notesmbr/mission-center/internal/setup"
	"github.com/notesmbr/mission-center/internal/utils"
)

// UsageModel is one model row in the /api/usage response.
type UsageModel struct {
	Name              string  `json:"name"`
	Provider          string  `json:"provider"`
	TokensUsed        int     `json:"tokensUsed"`
	CostUSD           float64 `json:"costUSD"`
	Requests          int     `json:"requests"`
	AvgCostPerRequest float64 `json:"avgCostPerRequest"`
}

// UsageSummary aggregates spend against the advisory monthly budget.
type UsageSummary struct {
	TotalCostUSD      float64 `json:"totalCostUSD"`
	TotalRequests     int     `json:"totalRequests"`
	TotalTokensUsed   int     `json:"totalTokensUsed"`
	AvgCostPerRequest float64 `json:"avgCostPerRequest"`
	MonthlyBudget     float64 `json:"monthlyBudget"`
	RemainingBudget   float64 `json:"remainingBudget"`
	PercentUsed       float64 `json:"percentUsed"`
}

// Recommendation is a budget advisory derived from current spend.
type Recommendation struct {
	Priority string `json:"priority"`
	Message  string `json:"message"`
	Savings  string `json:"savings"`
}

// UsageResponse is the reshaped ledger snapshot served at /api/usage.
type UsageResponse struct {
	Provenance      string           `json:"provenance"`
	Period          *ledger.Period   `json:"period"`
	Models          []UsageModel     `json:"models"`
	Summary         UsageSummary     `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
	LastUpdate      *time.Time       `json:"lastUpdate"`
}

// handleUsage serves the current spend picture. Ledger data when there is
// any; otherwise a clearly-tagged hardcoded sample so the dashboard still
// renders.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.metrics.RecordSnapshotRead()
	s.writeJSON(w, s.buildUsage())
}

func (s *Server) buildUsage() UsageResponse {
	snapshot := s.ledger.Snapshot()
	if snapshot.LastUpdate == nil && len(snapshot.Models) == 0 {
		return s.fallbackUsage()
	}

	models := make([]UsageModel, 0, len(snapshot.Models))
	var totalRequests, totalTokens int
	for _, m := range snapshot.Models {
		row := UsageModel{
			Name:       m.Name,
			Provider:   "openrouter",
			TokensUsed: m.TokensUsed,
			CostUSD:    round2(m.CostUSD),
			Requests:   m.Requests,
		}
		if m.Requests > 0 {
			row.AvgCostPerRequest = round2(m.CostUSD / float64(m.Requests))
		}
		totalRequests += m.Requests
		totalTokens += m.TokensUsed
		models = append(models, row)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].CostUSD > models[j].CostUSD })

	return UsageResponse{
		Provenance:      ProvenanceDerived,
		Period:          snapshot.Period,
		Models:          models,
		Summary:         s.summarize(snapshot.TotalCost, totalRequests, totalTokens),
		Recommendations: s.recommend(snapshot.TotalCost),
		LastUpdate:      snapshot.LastUpdate,
	}
}

func (s *Server) summarize(totalCost float64, totalRequests, totalTokens int) UsageSummary {
	budget := s.cfg.Ledger.MonthlyBudget
	summary := UsageSummary{
		TotalCostUSD:    round2(totalCost),
		TotalRequests:   totalRequests,
		TotalTokensUsed: totalTokens,
		MonthlyBudget:   budget,
		RemainingBudget: round2(budget - totalCost),
	}
	if totalRequests > 0 {
		summary.AvgCostPerRequest = round2(totalCost / float64(totalRequests))
	}
	if budget > 0 {
		summary.PercentUsed = round1(totalCost / budget * 100)
	}
	return summary
}

func (s *Server) recommend(totalCost float64) []Recommendation {
	budget := s.cfg.Ledger.MonthlyBudget
	remaining := budget - totalCost

	switch {
	case budget > 0 && totalCost > budget*0.8:
		return []Recommendation{{
			Priority: "high",
			Message:  fmt.Sprintf("You're at %.1f%% of your $%.0f budget. Consider reducing API usage.", totalCost/budget*100, budget),
			Savings:  fmt.Sprintf("$%.2f remaining", remaining),
		}}
	case budget > 0 && totalCost > budget*0.5:
		return []Recommendation{{
			Priority: "medium",
			Message:  "Monitor usage closely to stay within budget",
			Savings:  fmt.Sprintf("Budget allows $%.2f more", remaining),
		}}
	default:
		return []Recommendation{{
			Priority: "low",
			Message:  fmt.Sprintf("You're on track. Current spend: $%.2f", totalCost),
			Savings:  fmt.Sprintf("$%.2f remaining this month", remaining),
		}}
	}
}

// fallbackUsage is the sample served before any webhook has arrived.
func (s *Server) fallbackUsage() UsageResponse {
	models := []UsageModel{
		{Name: "anthropic/claude-haiku-4-5", Provider: "openrouter", TokensUsed: 125000, CostUSD: 8.50, Requests: 232, AvgCostPerRequest: 0.037},
		{Name: "anthropic/claude-sonnet-4.6", Provider: "openrouter", TokensUsed: 45000, CostUSD: 4.20, Requests: 24, AvgCostPerRequest: 0.175},
		{Name: "google/gemini-2.0-flash", Provider: "openrouter", TokensUsed: 85000, CostUSD: 2.50, Requests: 11, AvgCostPerRequest: 0.227},
	}
	const totalCost = 15.20
	const totalRequests = 267
	var totalTokens int
	for _, m := range models {
		totalTokens += m.TokensUsed
	}

	return UsageResponse{
		Provenance:      ProvenanceHardcoded,
		Period:          &ledger.Period{Start: "2026-02-01", End: "2026-02-24"},
		Models:          models,
		Summary:         s.summarize(totalCost, totalRequests, totalTokens),
		Recommendations: s.recommend(totalCost),
	}
}

// usageResponse marshals the current usage view for websocket pushes.
func (s *Server) usageResponse() []byte {
	data, err := utils.MarshalNoEscape(s.buildUsage())
	if err != nil {
		log.Error().Err(err).Msg("server: encoding usage snapshot failed")
		return nil
	}
	return data
}

// handleClaudeUsage reports on the Anthropic credential and the slice of
// ledger spend attributable to Anthropic models.
func (s *Server) handleClaudeUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := s.billing.Probe(r.Context())
	limits := billing.LimitsFor(report.Class)

	subscriptionStatus := report.Status
	if report.Healthy() {
		subscriptionStatus = "active"
	}

	type claudeModel struct {
		Model    string  `json:"model"`
		Cost     float64 `json:"cost"`
		Tokens   int     `json:"tokens"`
		Requests int     `json:"requests"`
	}

	snapshot := s.ledger.Snapshot()
	models := []claudeModel{}
	var cost float64
	var tokens, requests int
	for _, m := range snapshot.Models {
		lower := strings.ToLower(m.Name)
		if !strings.Contains(lower, "anthropic") && !strings.Contains(lower, "claude") {
			continue
		}
		models = append(models, claudeModel{Model: m.Name, Cost: m.CostUSD, Tokens: m.TokensUsed, Requests: m.Requests})
		cost += m.CostUSD
		tokens += m.TokensUsed
		requests += m.Requests
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Cost > models[j].Cost })

	s.writeJSON(w, map[string]any{
		"provenance": ProvenanceLive,
		"subscription": map[string]any{
			"tier":   report.Tier,
			"status": subscriptionStatus,
		},
		"key":    report,
		"limits": limits,
		"usage": map[string]any{
			"totalCost":     round2(cost),
			"totalTokens":   tokens,
			"totalRequests": requests,
			"models":        models,
			"source":        "ledger",
		},
	})
}

// handleOpenClawUsage serves the log-window estimator snapshot.
func (s *Server) handleOpenClawUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := s.now().UTC()
	snap, err := s.estimator.Scan(now)
	if err != nil {
		log.Error().Err(err).Msg("server: log scan failed")
		s.writeError(w, "Failed to scan gateway logs", http.StatusInternalServerError)
		return
	}

	if !snap.Available {
		s.writeJSON(w, map[string]any{
			"dataSource":  "local_logs",
			"provenance":  ProvenanceUnavailable,
			"available":   false,
			"reason":      snap.Reason,
			"lastUpdated": now,
		})
		return
	}

	s.writeJSON(w, map[string]any{
		"dataSource":  "local_logs",
		"provenance":  ProvenanceDerived,
		"available":   true,
		"window5h":    snap.Window5h,
		"window7d":    snap.Window7d,
		"alerts":      snap.Alerts,
		"notes":       snap.Notes,
		"lastUpdated": now,
	})
}

// handleOpenClawSetup serves the redacted openclaw.json summary.
func (s *Server) handleOpenClawSetup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := s.inspector.Inspect()
	provenance := ProvenanceLive
	if !report.Available {
		provenance = ProvenanceUnavailable
	}
	s.writeJSON(w, struct {
		Provenance string `json:"provenance"`
		setup.Report
	}{Provenance: provenance, Report: report})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
