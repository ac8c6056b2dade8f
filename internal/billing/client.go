// Package billing probes the upstream Anthropic account behind the
// configured key: what class of credential it is and whether it is
// currently accepted.
//
// FILES:
//   - client.go: API client, key classification, and probe caching
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/notesmbr/mission-center/internal/config"
	"github.com/notesmbr/mission-center/internal/utils"
)

// DefaultAnthropicBaseURL is the production Anthropic API base URL.
const DefaultAnthropicBaseURL = "https://api.anthropic.com"

// anthropicVersion is the API version header the probe sends.
const anthropicVersion = "2023-06-01"

// probeModel is the cheapest model available for a 1-token liveness check.
const probeModel = "claude-haiku-4-5-20250918"

// Key classes derived from the credential prefix.
const (
	KeyClassOAuth   = "OAuth (Max Subscription)"
	KeyClassAPIKey  = "API Key"
	KeyClassUnknown = "Unknown"
)

// Key statuses a probe can report.
const (
	StatusNotConfigured = "not_configured"
	StatusActive        = "active"
	StatusInvalid       = "invalid"
	StatusRateLimited   = "rate_limited (active)"
	StatusAuthError     = "auth_error"
	StatusCheckFailed   = "active (check failed)"
)

// KeyReport describes the configured credential and its last probe result.
type KeyReport struct {
	Configured bool   `json:"configured"`
	Class      string `json:"type"`
	Tier       string `json:"tier"`
	Last4      string `json:"last4"`
	Status     string `json:"status"`
}

// Healthy reports whether the status means the upstream accepts the key.
// Rate limiting and failed probes count as healthy; only a rejected or
// missing key does not.
func (r KeyReport) Healthy() bool {
	switch r.Status {
	case StatusActive, StatusRateLimited, StatusCheckFailed:
		return true
	}
	return false
}

// Client probes the Anthropic API for key liveness.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// Cached probe result to avoid hitting the upstream on every dashboard refresh
	cacheMu  sync.RWMutex
	cached   *KeyReport
	cachedAt time.Time
	cacheTTL time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithBaseURL overrides the upstream base URL.
func WithBaseURL(u string) ClientOption {
	return func(client *Client) {
		client.baseURL = u
	}
}

// WithCacheTTL overrides how long probe results are cached.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(client *Client) {
		client.cacheTTL = ttl
	}
}

// NewClient creates a billing probe client for the given key. An empty key
// is allowed; probes then report not_configured.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultAnthropicBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: config.DefaultProbeTimeout,
		},
		cacheTTL: config.DefaultProbeCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassifyKey maps a credential prefix to its class and billing tier.
func ClassifyKey(key string) (class, tier string) {
	switch {
	case strings.HasPrefix(key, "sk-ant-oat"):
		return KeyClassOAuth, "Max"
	case strings.HasPrefix(key, "sk-ant-api"):
		return KeyClassAPIKey, "API Credits"
	default:
		return KeyClassUnknown, "API Credits"
	}
}

// Probe validates the configured key against the upstream with a 1-token
// request. Results are cached so dashboard polling does not turn into
// upstream traffic.
func (c *Client) Probe(ctx context.Context) KeyReport {
	c.cacheMu.RLock()
	if c.cached != nil && time.Since(c.cachedAt) < c.cacheTTL {
		cached := *c.cached
		c.cacheMu.RUnlock()
		return cached
	}
	c.cacheMu.RUnlock()

	report := c.probe(ctx)

	c.cacheMu.Lock()
	c.cached = &report
	c.cachedAt = time.Now()
	c.cacheMu.Unlock()

	return report
}

func (c *Client) probe(ctx context.Context) KeyReport {
	report := KeyReport{Last4: "N/A", Status: StatusNotConfigured}
	report.Class, report.Tier = ClassifyKey(c.apiKey)
	if c.apiKey == "" {
		return report
	}
	report.Configured = true
	if len(c.apiKey) >= 4 {
		report.Last4 = c.apiKey[len(c.apiKey)-4:]
	}

	body, _ := json.Marshal(map[string]any{
		"model":      probeModel,
		"max_tokens": 1,
		"messages":   []map[string]string{{"role": "user", "content": "hi"}},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		report.Status = StatusCheckFailed
		return report
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("key", utils.MaskKey(c.apiKey)).Msg("billing: key probe failed")
		report.Status = StatusCheckFailed
		return report
	}
	defer func() { _ = resp.Body.Close() }()

	report.Status = classifyResponse(resp)
	log.Debug().Str("key", utils.MaskKey(c.apiKey)).Str("status", report.Status).Msg("billing: key probed")
	return report
}

func classifyResponse(resp *http.Response) string {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return StatusActive
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return StatusInvalid
	case http.StatusTooManyRequests:
		return StatusRateLimited
	}

	var errBody struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Error.Type == "authentication_error" {
		return StatusAuthError
	}
	// Other upstream errors (overloaded etc) still mean the key works.
	return StatusActive
}

// Limits describes the plan limits implied by the key class.
type Limits struct {
	DailyTokens   string `json:"dailyTokens"`
	MonthlyTokens string `json:"monthlyTokens"`
	Note          string `json:"note"`
}

// LimitsFor returns the plan limits for a key class.
func LimitsFor(class string) Limits {
	if class == KeyClassOAuth {
		return Limits{
			DailyTokens:   "Unlimited (Max tier)",
			MonthlyTokens: "Unlimited (Max tier)",
			Note:          "Max subscription includes generous usage limits. Rate limits apply per-minute.",
		}
	}
	return Limits{
		DailyTokens:   "Credit-based",
		MonthlyTokens: "Credit-based",
		Note:          "Usage deducted from prepaid credits.",
	}
}

// String renders the report for logs.
func (r KeyReport) String() string {
	return fmt.Sprintf("%s (...%s): %s", r.Class, r.Last4, r.Status)
}
