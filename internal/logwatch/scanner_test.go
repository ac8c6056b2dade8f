package logwatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scanNow = time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)

func logLine(at time.Time, text string) string {
	return at.UTC().Format("2006-01-02T15:04:05.000Z") + " " + text
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	return path
}

func TestScan_NoFilesUnavailable(t *testing.T) {
	est := NewEstimator([]string{"/nonexistent/a.log", "/nonexistent/b.log"}, 300)

	snap, err := est.Scan(scanNow)
	require.NoError(t, err)
	assert.False(t, snap.Available)
	assert.NotEmpty(t, snap.Reason)
}

func TestScan_WindowContainment(t *testing.T) {
	path := writeLog(t,
		logLine(scanNow.Add(-4*time.Hour), `agent model: openai-codex/gpt-5`),
		logLine(scanNow.Add(-6*24*time.Hour), `agent model: openai-codex/gpt-5`),
		logLine(scanNow.Add(-8*24*time.Hour), `agent model: openai-codex/gpt-5`),
	)
	est := NewEstimator([]string{path}, 300)

	snap, err := est.Scan(scanNow)
	require.NoError(t, err)
	require.True(t, snap.Available)

	// 4h ago: both windows. 6d ago: 7d only. 8d ago: neither.
	assert.Equal(t, 1, snap.Window5h.RequestCountApprox)
	assert.Equal(t, 2, snap.Window7d.RequestCountApprox)
	assert.Equal(t, 1, snap.Window5h.Models["openai-codex/gpt-5"])
	assert.Equal(t, 2, snap.Window7d.Models["openai-codex/gpt-5"])
}

func TestScan_UnparseableLinesIgnored(t *testing.T) {
	path := writeLog(t,
		`no timestamp here openai-codex/gpt-5 rate limit exceeded`,
		`[WARN] quota nearly reached openai-codex/gpt-5-mini`,
		logLine(scanNow.Add(-time.Hour), `agent model: openai-codex/gpt-5`),
	)
	est := NewEstimator([]string{path}, 300)

	snap, err := est.Scan(scanNow)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Window5h.RequestCountApprox)
	assert.NotContains(t, snap.Window5h.Models, "openai-codex/gpt-5-mini")
	for _, a := range snap.Alerts {
		assert.NotEqual(t, CodeLimitSignal, a.Code, "limit text on untimestamped lines must not produce evidence")
	}
}

func TestScan_TimestampedLinesWithoutModelsOnlyFeedEvidence(t *testing.T) {
	path := writeLog(t,
		logLine(scanNow.Add(-time.Hour), `upstream 429: rate limit exceeded, retrying`),
	)
	est := NewEstimator([]string{path}, 300)

	snap, err := est.Scan(scanNow)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Window5h.RequestCountApprox)
	require.NotEmpty(t, snap.Alerts)
	assert.Equal(t, CodeLimitSignal, snap.Alerts[0].Code)
	assert.Equal(t, LevelCritical, snap.Alerts[0].Level)
	assert.Contains(t, snap.Alerts[0].Evidence, "rate limit exceeded")
}

func TestScan_LatestEvidenceWins(t *testing.T) {
	path := writeLog(t,
		logLine(scanNow.Add(-3*time.Hour), `quota warning: first`),
		logLine(scanNow.Add(-1*time.Hour), `quota warning: second`),
		logLine(scanNow.Add(-2*time.Hour), `quota warning: middle`),
	)
	est := NewEstimator([]string{path}, 300)

	snap, err := est.Scan(scanNow)
	require.NoError(t, err)

	require.NotEmpty(t, snap.Alerts)
	assert.Contains(t, snap.Alerts[0].Evidence, "second")
}

func TestScan_EvidenceTruncatedTo300(t *testing.T) {
	long := strings.Repeat("x", 500)
	path := writeLog(t,
		logLine(scanNow.Add(-time.Hour), "usage limit reached "+long),
	)
	est := NewEstimator([]string{path}, 300)

	snap, err := est.Scan(scanNow)
	require.NoError(t, err)
	require.NotEmpty(t, snap.Alerts)
	assert.Len(t, snap.Alerts[0].Evidence, 300)
}

func TestScan_EvidenceTruncationKeepsRunesIntact(t *testing.T) {
	// Pick a length where the 300-byte cut would land inside a rune.
	long := strings.Repeat("é", 250)
	path := writeLog(t,
		logLine(scanNow.Add(-time.Hour), "usage limit reached "+long),
	)
	est := NewEstimator([]string{path}, 300)

	snap, err := est.Scan(scanNow)
	require.NoError(t, err)
	require.NotEmpty(t, snap.Alerts)

	evidence := snap.Alerts[0].Evidence
	assert.LessOrEqual(t, len(evidence), 300)
	assert.Greater(t, len(evidence), 290)
	assert.True(t, utf8.ValidString(evidence))
}

func TestScan_AlertTieringBoundary(t *testing.T) {
	tests := []struct {
		name  string
		count int
		code  string
		level AlertLevel
	}{
		{"critical at exactly 95 percent", 285, CodeNearLimit, LevelCritical},
		{"warn just below 95 percent", 284, CodeHigh, LevelWarn},
		{"warn at exactly 80 percent", 240, CodeHigh, LevelWarn},
		{"info below 80 percent", 239, CodeOK, LevelInfo},
		{"info at zero", 0, CodeOK, LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := make([]string, tt.count)
			for i := range lines {
				lines[i] = logLine(scanNow.Add(-time.Duration(i)*time.Second), `agent model: openai-codex/gpt-5`)
			}
			if len(lines) == 0 {
				lines = []string{logLine(scanNow.Add(-30*time.Hour), `boot`)}
			}
			est := NewEstimator([]string{writeLog(t, lines...)}, 300)

			snap, err := est.Scan(scanNow)
			require.NoError(t, err)
			require.Len(t, snap.Alerts, 1, "exactly one tier alert absent limit signals")
			assert.Equal(t, tt.code, snap.Alerts[0].Code)
			assert.Equal(t, tt.level, snap.Alerts[0].Level)
		})
	}
}

func TestScan_LimitSignalIsAdditive(t *testing.T) {
	lines := []string{logLine(scanNow.Add(-time.Minute), `weekly usage report openai-codex/gpt-5`)}
	est := NewEstimator([]string{writeLog(t, lines...)}, 300)

	snap, err := est.Scan(scanNow)
	require.NoError(t, err)

	// Limit-signal critical first, then the percentage tier.
	require.Len(t, snap.Alerts, 2)
	assert.Equal(t, CodeLimitSignal, snap.Alerts[0].Code)
	assert.Equal(t, CodeOK, snap.Alerts[1].Code)
}

func TestScan_MultipleFilesMerged(t *testing.T) {
	main := writeLog(t, logLine(scanNow.Add(-time.Hour), `agent model: openai-codex/gpt-5`))
	errLog := writeLog(t, logLine(scanNow.Add(-2*time.Hour), `agent model: openai-codex/gpt-5-mini`))
	est := NewEstimator([]string{main, errLog, "/nonexistent.log"}, 300)

	snap, err := est.Scan(scanNow)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Window5h.RequestCountApprox)
	assert.Equal(t, 1, snap.Window5h.Models["openai-codex/gpt-5"])
	assert.Equal(t, 1, snap.Window5h.Models["openai-codex/gpt-5-mini"])
}

func TestScan_MultipleModelMentionsOneLine(t *testing.T) {
	path := writeLog(t,
		logLine(scanNow.Add(-time.Hour), `routing openai-codex/gpt-5 -> openai-codex/gpt-5-mini`),
	)
	est := NewEstimator([]string{path}, 300)

	snap, err := est.Scan(scanNow)
	require.NoError(t, err)

	// One request, two model mentions.
	assert.Equal(t, 1, snap.Window5h.RequestCountApprox)
	assert.Equal(t, 1, snap.Window5h.Models["openai-codex/gpt-5"])
	assert.Equal(t, 1, snap.Window5h.Models["openai-codex/gpt-5-mini"])
}

func TestScan_WindowBounds(t *testing.T) {
	est := NewEstimator([]string{writeLog(t, logLine(scanNow, "boot"))}, 300)
	snap, err := est.Scan(scanNow)
	require.NoError(t, err)

	assert.Equal(t, scanNow.Add(-5*time.Hour), snap.Window5h.Start)
	assert.Equal(t, scanNow, snap.Window5h.End)
	assert.Equal(t, scanNow.Add(-7*24*time.Hour), snap.Window7d.Start)
}

func TestDeriveAlerts_MessageIncludesBudget(t *testing.T) {
	alerts := deriveAlerts(150, 300, "")
	require.Len(t, alerts, 1)
	assert.Equal(t, fmt.Sprintf("Estimated 5h usage is ~50%% of conservative minimum (%d/5h).", 300), alerts[0].Message)
}
