// Package setup inspects the local OpenClaw install by summarizing its
// openclaw.json. Read-only: the file is never written, and known secrets
// are redacted before the raw config leaves the process.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// secretPaths are config locations whose values must never be echoed back.
var secretPaths = []string{
	"channels.discord.token",
	"tools.web.search.apiKey",
	"gateway.auth.token",
}

// GatewaySummary describes the gateway block of openclaw.json.
type GatewaySummary struct {
	Mode *string `json:"mode"`
	Bind *string `json:"bind"`
	Port *int64  `json:"port"`
}

// Summary is the condensed view of an openclaw.json.
type Summary struct {
	DefaultModel      *string        `json:"defaultModel"`
	ThinkingDefault   *string        `json:"thinkingDefault"`
	Gateway           GatewaySummary `json:"gateway"`
	Channels          []string       `json:"channels"`
	PluginsEnabled    []string       `json:"pluginsEnabled"`
	AuthProfiles      []string       `json:"authProfiles"`
	WebSearchProvider *string        `json:"webSearchProvider"`
}

// Report is the full inspection result. When Available is false, Reason
// says why and Summary/Raw are absent.
type Report struct {
	DataSource  string          `json:"dataSource"`
	Available   bool            `json:"available"`
	ConfigPath  string          `json:"configPath"`
	Reason      string          `json:"reason,omitempty"`
	Summary     *Summary        `json:"summary,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Inspector reads and summarizes a single openclaw.json path.
type Inspector struct {
	configPath string
	now        func() time.Time
}

// NewInspector creates an inspector for the given config path.
func NewInspector(configPath string) *Inspector {
	return &Inspector{configPath: configPath, now: time.Now}
}

// Inspect reads the config and builds a report. A missing or unparseable
// file is not an error; it yields an unavailable report with a reason.
func (i *Inspector) Inspect() Report {
	report := Report{
		DataSource:  "local_file",
		ConfigPath:  i.configPath,
		LastUpdated: i.now().UTC(),
	}

	raw, err := os.ReadFile(i.configPath)
	if os.IsNotExist(err) {
		report.Reason = "openclaw.json not found on this host (expected when running remotely)."
		return report
	}
	if err != nil {
		report.Reason = fmt.Sprintf("Failed to read openclaw.json: %v", err)
		return report
	}
	if !gjson.ValidBytes(raw) {
		report.Reason = "Failed to parse openclaw.json: not valid JSON."
		return report
	}

	report.Available = true
	report.Summary = summarize(raw)
	report.Raw = redactSecrets(raw)
	return report
}

func summarize(raw []byte) *Summary {
	s := &Summary{
		DefaultModel:      stringAt(raw, "agents.defaults.model.primary"),
		ThinkingDefault:   stringAt(raw, "agents.defaults.thinkingDefault"),
		WebSearchProvider: stringAt(raw, "tools.web.search.provider"),
		Channels:          keysAt(raw, "channels"),
		AuthProfiles:      keysAt(raw, "auth.profiles"),
		PluginsEnabled:    []string{},
	}

	s.Gateway.Mode = stringAt(raw, "gateway.mode")
	s.Gateway.Bind = stringAt(raw, "gateway.bind")
	if port := gjson.GetBytes(raw, "gateway.port"); port.Exists() {
		n := port.Int()
		s.Gateway.Port = &n
	}

	gjson.GetBytes(raw, "plugins.entries").ForEach(func(key, value gjson.Result) bool {
		if value.Get("enabled").Bool() {
			s.PluginsEnabled = append(s.PluginsEnabled, key.String())
		}
		return true
	})
	return s
}

// redactSecrets replaces known secret values in place. Failures fall back
// to dropping the raw config entirely rather than risking a leak.
func redactSecrets(raw []byte) json.RawMessage {
	out := raw
	for _, path := range secretPaths {
		if !gjson.GetBytes(out, path).Exists() {
			continue
		}
		redacted, err := sjson.SetBytes(out, path, "REDACTED")
		if err != nil {
			return nil
		}
		out = redacted
	}
	return out
}

func stringAt(raw []byte, path string) *string {
	v := gjson.GetBytes(raw, path)
	if !v.Exists() {
		return nil
	}
	s := v.String()
	return &s
}

func keysAt(raw []byte, path string) []string {
	keys := []string{}
	gjson.GetBytes(raw, path).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}
