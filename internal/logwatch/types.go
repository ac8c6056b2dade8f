// Package logwatch estimates recent request volume from free-text gateway logs.
//
// DESIGN: There is no structured telemetry source for the OpenClaw
// gateway, so this is a best-effort line scanner: parse a leading
// timestamp, bucket model mentions into trailing 5h/7d windows, and
// surface threshold alerts. Counts are approximate by construction and
// labeled as such.
package logwatch

import "time"

// AlertLevel is the severity of a derived alert.
type AlertLevel string

const (
	LevelInfo     AlertLevel = "info"
	LevelWarn     AlertLevel = "warn"
	LevelCritical AlertLevel = "critical"
)

// Alert codes emitted by the estimator.
const (
	CodeLimitSignal = "LIMIT_SIGNAL"
	CodeNearLimit   = "WINDOW5H_NEAR_LIMIT"
	CodeHigh        = "WINDOW5H_HIGH"
	CodeOK          = "WINDOW5H_OK"
)

// Alert is one threshold-derived advisory. Order in a snapshot is
// meaningful: most urgent first.
type Alert struct {
	Level    AlertLevel `json:"level"`
	Code     string     `json:"code"`
	Message  string     `json:"message"`
	Evidence string     `json:"evidence,omitempty"`
}

// Window holds approximate request counts for one trailing interval.
type Window struct {
	Start              time.Time      `json:"start"`
	End                time.Time      `json:"end"`
	RequestCountApprox int            `json:"requestCountApprox"`
	Models             map[string]int `json:"models"`
}

// Snapshot is the estimator's output. Recomputed from raw log text on
// every call; never persisted.
type Snapshot struct {
	Available bool     `json:"available"`
	Reason    string   `json:"reason,omitempty"`
	Window5h  Window   `json:"window5h"`
	Window7d  Window   `json:"window7d"`
	Alerts    []Alert  `json:"alerts"`
	Notes     []string `json:"notes"`
}
