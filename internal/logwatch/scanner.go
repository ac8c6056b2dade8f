package logwatch

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/notesmbr/mission-center/internal/config"
)

var (
	// Leading ISO-8601 timestamp, e.g. 2026-02-25T15:13:49.130Z.
	// Lines without one are ignored entirely.
	timestampPat = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2}))`)

	// Model identifiers the gateway logs, e.g. openai-codex/gpt-5.
	modelPat = regexp.MustCompile(`(openai-codex/[^\s"']+)`)

	// Language suggesting the upstream is near or at a usage limit.
	limitPat = regexp.MustCompile(`(?i)(rate[_ -]?limit|usage limit|quota|weekly|\b5h\b)`)
)

// Estimator scans gateway log files into windowed usage estimates.
type Estimator struct {
	paths       []string
	minBudget5h int
}

// NewEstimator creates an estimator over the given log paths.
func NewEstimator(paths []string, minBudget5h int) *Estimator {
	if minBudget5h <= 0 {
		minBudget5h = config.ConservativeMinBudget5h
	}
	return &Estimator{paths: paths, minBudget5h: minBudget5h}
}

// Scan buckets timestamped log lines into the trailing 5h and 7d windows
// ending at now and derives alerts. Missing files are skipped; if none of
// the configured files exist the snapshot reports unavailable.
func (e *Estimator) Scan(now time.Time) (*Snapshot, error) {
	anyExists := false
	for _, p := range e.paths {
		if _, err := os.Stat(p); err == nil {
			anyExists = true
			break
		}
	}
	if !anyExists {
		return &Snapshot{
			Available: false,
			Reason:    "gateway log files not found on this host",
		}, nil
	}

	start5h := now.Add(-config.Window5h)
	start7d := now.Add(-config.Window7d)

	snap := &Snapshot{
		Available: true,
		Window5h:  Window{Start: start5h, End: now, Models: make(map[string]int)},
		Window7d:  Window{Start: start7d, End: now, Models: make(map[string]int)},
		Notes: []string{
			"Estimates are derived from local gateway logs, not an official quota API.",
			"5-hour limits are shared between local messages and cloud tasks; the split is not visible in these logs.",
			"Weekly limits are not clearly published; 7-day activity and explicit limit signals are tracked instead.",
		},
	}

	var lastEvidence string
	var evidenceAt time.Time
	for _, p := range e.paths {
		if err := e.scanFile(p, snap, start5h, start7d, &lastEvidence, &evidenceAt); err != nil {
			return nil, err
		}
	}

	snap.Alerts = deriveAlerts(snap.Window5h.RequestCountApprox, e.minBudget5h, lastEvidence)
	return snap, nil
}

// scanFile applies the line classifiers to one log file. A missing file
// is not an error.
func (e *Estimator) scanFile(path string, snap *Snapshot, start5h, start7d time.Time, lastEvidence *string, evidenceAt *time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening log %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lines := 0
	for scanner.Scan() {
		lines++
		line := scanner.Text()
		if line == "" {
			continue
		}

		ts, ok := parseLineTime(line)
		if !ok {
			continue
		}

		if models := modelPat.FindAllString(line, -1); len(models) > 0 {
			if !ts.Before(start7d) {
				snap.Window7d.RequestCountApprox++
				for _, m := range models {
					snap.Window7d.Models[m]++
				}
			}
			if !ts.Before(start5h) {
				snap.Window5h.RequestCountApprox++
				for _, m := range models {
					snap.Window5h.Models[m]++
				}
			}
		}

		// Most recent limit-ish line wins; earlier evidence is discarded.
		if limitPat.MatchString(line) && !ts.Before(*evidenceAt) {
			*evidenceAt = ts
			*lastEvidence = truncate(line, config.EvidenceMaxLen)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading log %s: %w", path, err)
	}

	log.Debug().Str("path", path).Int("lines", lines).Msg("logwatch: scanned")
	return nil
}

// parseLineTime extracts the leading ISO-8601 timestamp from a log line.
func parseLineTime(line string) (time.Time, bool) {
	m := timestampPat.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// deriveAlerts produces the alert sequence for a scan: an additive
// critical when limit language was seen, then exactly one usage tier.
func deriveAlerts(count5h, minBudget int, evidence string) []Alert {
	var alerts []Alert

	if evidence != "" {
		alerts = append(alerts, Alert{
			Level:    LevelCritical,
			Code:     CodeLimitSignal,
			Message:  "Detected limit/rate-limit language in logs. Treat as close-to-limit until it clears.",
			Evidence: evidence,
		})
	}

	var pct float64
	if minBudget > 0 {
		pct = float64(count5h) / float64(minBudget) * 100
	}
	msg := fmt.Sprintf("Estimated 5h usage is ~%.0f%% of conservative minimum (%d/5h).", pct, minBudget)

	switch {
	case pct >= 95:
		alerts = append(alerts, Alert{Level: LevelCritical, Code: CodeNearLimit, Message: msg})
	case pct >= 80:
		alerts = append(alerts, Alert{Level: LevelWarn, Code: CodeHigh, Message: msg})
	default:
		alerts = append(alerts, Alert{Level: LevelInfo, Code: CodeOK, Message: msg})
	}
	return alerts
}

// truncate cuts s to at most maxLen bytes, backing off so a multi-byte
// rune is never split.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
