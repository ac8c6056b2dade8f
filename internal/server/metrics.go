// Package server - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - requests/successes: Total and successful request counts
//   - deliveries:         Webhook deliveries by outcome
//   - reads:              Dashboard snapshot reads
//
// For production, export these to Prometheus or similar.
package server

import (
	"fmt"
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	startedAt time.Time

	// Request counters
	requests  atomic.Int64
	successes atomic.Int64

	// Webhook delivery counters
	deliveriesRecorded atomic.Int64
	deliveriesUpdated  atomic.Int64
	deliveriesIgnored  atomic.Int64
	deliveriesRejected atomic.Int64

	// Dashboard read counters
	snapshotReads atomic.Int64
	eventsPushed  atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startedAt: time.Now()}
}

// RecordRequest records a completed request.
func (mc *MetricsCollector) RecordRequest(success bool) {
	mc.requests.Add(1)
	if success {
		mc.successes.Add(1)
	}
}

// RecordDelivery records a webhook delivery outcome.
func (mc *MetricsCollector) RecordDelivery(status string) {
	switch status {
	case "recorded":
		mc.deliveriesRecorded.Add(1)
	case "updated":
		mc.deliveriesUpdated.Add(1)
	case "ignored":
		mc.deliveriesIgnored.Add(1)
	default:
		mc.deliveriesRejected.Add(1)
	}
}

// RecordSnapshotRead records a dashboard snapshot read.
func (mc *MetricsCollector) RecordSnapshotRead() { mc.snapshotReads.Add(1) }

// RecordEventPush records a websocket snapshot push.
func (mc *MetricsCollector) RecordEventPush() { mc.eventsPushed.Add(1) }

// StartedAt returns when the metrics collector was created.
func (mc *MetricsCollector) StartedAt() time.Time { return mc.startedAt }

// FullStats returns all metrics in a structured format for /api/stats.
func (mc *MetricsCollector) FullStats() StatsResponse {
	uptime := time.Since(mc.startedAt)
	requests := mc.requests.Load()
	successes := mc.successes.Load()

	return StatsResponse{
		Uptime:        formatDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		StartedAt:     mc.startedAt.Format(time.RFC3339),
		Requests: RequestStats{
			Total:      requests,
			Successful: successes,
			Failed:     requests - successes,
		},
		Deliveries: DeliveryStats{
			Recorded: mc.deliveriesRecorded.Load(),
			Updated:  mc.deliveriesUpdated.Load(),
			Ignored:  mc.deliveriesIgnored.Load(),
			Rejected: mc.deliveriesRejected.Load(),
		},
		Reads: ReadStats{
			Snapshots:    mc.snapshotReads.Load(),
			EventsPushed: mc.eventsPushed.Load(),
		},
	}
}

// StatsResponse is the structured response for the /api/stats endpoint.
type StatsResponse struct {
	Uptime        string        `json:"uptime"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartedAt     string        `json:"started_at"`
	Requests      RequestStats  `json:"requests"`
	Deliveries    DeliveryStats `json:"deliveries"`
	Reads         ReadStats     `json:"reads"`
}

// RequestStats holds request count metrics.
type RequestStats struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

// DeliveryStats holds webhook delivery metrics by outcome.
type DeliveryStats struct {
	Recorded int64 `json:"recorded"`
	Updated  int64 `json:"updated"`
	Ignored  int64 `json:"ignored"`
	Rejected int64 `json:"rejected"`
}

// ReadStats holds dashboard read metrics.
type ReadStats struct {
	Snapshots    int64 `json:"snapshots"`
	EventsPushed int64 `json:"events_pushed"`
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
