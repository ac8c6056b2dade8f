// Package ledger implements the file-backed usage ledger.
//
// DESIGN: The ledger accumulates per-model request/cost/token counters
// from inbound webhook events. The durable state is a single JSON
// document; a mutex-guarded store serializes every read-modify-write so
// concurrent webhook deliveries cannot lose updates.
package ledger

import "time"

// Ledger is the durable accumulator of usage counters. The zero value is
// the empty ledger.
type Ledger struct {
	LastUpdate *time.Time             `json:"lastUpdate"`
	TotalCost  float64                `json:"totalCost"`
	Period     *Period                `json:"period,omitempty"`
	Models     map[string]*ModelUsage `json:"models"`
}

// Period labels a billing interval. Only set by billing_summary events,
// which overwrite it wholesale.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ModelUsage holds accumulated counters for one model identifier.
type ModelUsage struct {
	Name       string  `json:"name"`
	CostUSD    float64 `json:"costUSD"`
	Requests   int     `json:"requests"`
	TokensUsed int     `json:"tokensUsed"`
}

// UnknownModel is the attribution key for events that carry no model
// identifier.
const UnknownModel = "unknown"

// model returns the usage entry for name, creating it if needed.
func (l *Ledger) model(name string) *ModelUsage {
	if l.Models == nil {
		l.Models = make(map[string]*ModelUsage)
	}
	m, ok := l.Models[name]
	if !ok {
		m = &ModelUsage{Name: name}
		l.Models[name] = m
	}
	return m
}

// RecordStatus reports how a webhook event affected the ledger.
type RecordStatus string

const (
	StatusRecorded RecordStatus = "recorded" // counters accumulated
	StatusUpdated  RecordStatus = "updated"  // billing summary overwrite
	StatusIgnored  RecordStatus = "ignored"  // unrecognized event type
)

// BatchResult is the outcome of recording a span batch.
type BatchResult struct {
	SpansProcessed int
	TotalCost      float64
}

// EventResult is the outcome of recording a simple webhook event.
type EventResult struct {
	Status    RecordStatus
	Type      string
	Model     string
	Cost      float64
	TotalCost float64
}
