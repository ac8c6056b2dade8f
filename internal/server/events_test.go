package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func dialEvents(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "/api/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	return string(data)
}

func TestEvents_SnapshotOnConnect(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialEvents(t, srv)
	msg := readMessage(t, conn)

	assert.Equal(t, ProvenanceHardcoded, gjson.Get(msg, "provenance").String())
	assert.True(t, gjson.Get(msg, "summary").Exists())
}

func TestEvents_PushAfterLedgerWrite(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialEvents(t, srv)
	_ = readMessage(t, conn) // drain the connect snapshot

	resp, err := http.Post(srv.URL+"/api/webhook/openrouter", "application/json",
		strings.NewReader(`{"type":"usage","data":{"model":"anthropic/claude-haiku-4-5","cost":2.5,"tokens_used":1000}}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	msg := readMessage(t, conn)
	assert.Equal(t, ProvenanceDerived, gjson.Get(msg, "provenance").String())
	assert.InDelta(t, 2.5, gjson.Get(msg, "summary.totalCostUSD").Float(), 1e-9)
}

func TestEvents_IgnoredEventDoesNotPush(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialEvents(t, srv)
	_ = readMessage(t, conn)

	resp, err := http.Post(srv.URL+"/api/webhook/openrouter", "application/json",
		strings.NewReader(`{"type":"mystery","data":{}}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, _, err = conn.Read(ctx)
	assert.Error(t, err, "no push expected for ignored events")
}
