package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKey(t *testing.T) {
	tests := []struct {
		key   string
		class string
		tier  string
	}{
		{"sk-ant-oat01-abcdef", KeyClassOAuth, "Max"},
		{"sk-ant-api03-abcdef", KeyClassAPIKey, "API Credits"},
		{"sk-something-else", KeyClassUnknown, "API Credits"},
		{"", KeyClassUnknown, "API Credits"},
	}
	for _, tt := range tests {
		class, tier := ClassifyKey(tt.key)
		assert.Equal(t, tt.class, class, tt.key)
		assert.Equal(t, tt.tier, tier, tt.key)
	}
}

func probeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(1), req["max_tokens"])

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe_NotConfigured(t *testing.T) {
	c := NewClient("")
	report := c.Probe(context.Background())

	assert.False(t, report.Configured)
	assert.Equal(t, StatusNotConfigured, report.Status)
	assert.Equal(t, "N/A", report.Last4)
	assert.False(t, report.Healthy())
}

func TestProbe_ActiveKey(t *testing.T) {
	srv := probeServer(t, http.StatusOK, `{"id":"msg_1"}`)
	c := NewClient("sk-ant-oat01-secret-tail", WithBaseURL(srv.URL))

	report := c.Probe(context.Background())
	assert.True(t, report.Configured)
	assert.Equal(t, StatusActive, report.Status)
	assert.Equal(t, KeyClassOAuth, report.Class)
	assert.Equal(t, "tail", report.Last4)
	assert.True(t, report.Healthy())
}

func TestProbe_InvalidKey(t *testing.T) {
	srv := probeServer(t, http.StatusUnauthorized, `{"error":{"type":"authentication_error"}}`)
	c := NewClient("sk-ant-api03-bad-key", WithBaseURL(srv.URL))

	report := c.Probe(context.Background())
	assert.Equal(t, StatusInvalid, report.Status)
	assert.False(t, report.Healthy())
}

func TestProbe_RateLimitedStillActive(t *testing.T) {
	srv := probeServer(t, http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error"}}`)
	c := NewClient("sk-ant-api03-busy-key", WithBaseURL(srv.URL))

	report := c.Probe(context.Background())
	assert.Equal(t, StatusRateLimited, report.Status)
	assert.True(t, report.Healthy())
}

func TestProbe_AuthErrorBody(t *testing.T) {
	srv := probeServer(t, http.StatusForbidden, `{"error":{"type":"authentication_error"}}`)
	c := NewClient("sk-ant-api03-weird-key", WithBaseURL(srv.URL))

	report := c.Probe(context.Background())
	assert.Equal(t, StatusAuthError, report.Status)
}

func TestProbe_OverloadedCountsAsActive(t *testing.T) {
	srv := probeServer(t, http.StatusServiceUnavailable, `{"error":{"type":"overloaded_error"}}`)
	c := NewClient("sk-ant-api03-good-key", WithBaseURL(srv.URL))

	report := c.Probe(context.Background())
	assert.Equal(t, StatusActive, report.Status)
}

func TestProbe_UnreachableUpstream(t *testing.T) {
	c := NewClient("sk-ant-api03-some-key", WithBaseURL("http://127.0.0.1:1"))

	report := c.Probe(context.Background())
	assert.Equal(t, StatusCheckFailed, report.Status)
	assert.True(t, report.Healthy())
}

func TestProbe_ResultIsCached(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("sk-ant-api03-some-key", WithBaseURL(srv.URL), WithCacheTTL(time.Hour))
	for i := 0; i < 5; i++ {
		report := c.Probe(context.Background())
		assert.Equal(t, StatusActive, report.Status)
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestProbe_CacheExpires(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("sk-ant-api03-some-key", WithBaseURL(srv.URL), WithCacheTTL(time.Nanosecond))
	c.Probe(context.Background())
	time.Sleep(time.Millisecond)
	c.Probe(context.Background())
	assert.Equal(t, int64(2), calls.Load())
}

func TestLimitsFor(t *testing.T) {
	oauth := LimitsFor(KeyClassOAuth)
	assert.Equal(t, "Unlimited (Max tier)", oauth.DailyTokens)

	api := LimitsFor(KeyClassAPIKey)
	assert.Equal(t, "Credit-based", api.DailyTokens)
}
