// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// SERVER
// =============================================================================

// DefaultServerPort is the dashboard API port.
const DefaultServerPort = 3000

// DefaultServerReadTimeout for the HTTP server.
const DefaultServerReadTimeout = 30 * time.Second

// DefaultServerWriteTimeout for the HTTP server. Generous because the
// websocket event stream is served by the same listener.
const DefaultServerWriteTimeout = 10 * time.Minute

// MaxWebhookBodySize limits inbound webhook bodies (1MB).
const MaxWebhookBodySize = 1 * 1024 * 1024

// =============================================================================
// LEDGER
// =============================================================================

// DefaultLedgerPath is where the usage ledger JSON document lives.
const DefaultLedgerPath = ".data/usage.json"

// DefaultMonthlyBudgetUSD is the advisory monthly spend budget used by
// /api/usage recommendations. Not an enforced cap.
const DefaultMonthlyBudgetUSD = 100.0

// =============================================================================
// LOG-WINDOW ESTIMATOR
// =============================================================================

// Window5h and Window7d are the trailing intervals the estimator buckets
// log lines into. The 5h window nests inside the 7d window.
const (
	Window5h = 5 * time.Hour
	Window7d = 7 * 24 * time.Hour
)

// ConservativeMinBudget5h is the low end of known Pro plan 5-hour request
// budgets. Alerting compares against the minimum to avoid surprises; the
// real budget is a range we cannot observe from logs.
const ConservativeMinBudget5h = 300

// EvidenceMaxLen caps the limit-signal evidence excerpt kept per scan.
const EvidenceMaxLen = 300

// =============================================================================
// UPSTREAM PROBES
// =============================================================================

// DefaultProbeTimeout bounds every upstream billing/key-check call.
// Failures fall back to cached or degraded data, never an unbounded wait.
const DefaultProbeTimeout = 5 * time.Second

// DefaultProbeCacheTTL is how long a key-check result is reused before
// the upstream is consulted again.
const DefaultProbeCacheTTL = 30 * time.Second

// =============================================================================
// WEBHOOK HISTORY
// =============================================================================

// DefaultHistoryPath is the sqlite file recording recent webhook deliveries.
const DefaultHistoryPath = ".data/webhook-history.db"

// HistoryRetention is how many webhook deliveries are kept for debugging.
const HistoryRetention = 100
