package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

// eventHub fans ledger snapshots out to websocket subscribers.
type eventHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *eventHub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *eventHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// broadcast sends payload to every subscriber and returns the delivered
// count. Slow or dead connections are dropped rather than blocking the
// webhook path.
func (h *eventHub) broadcast(ctx context.Context, payload []byte) int {
	if payload == nil {
		return 0
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	delivered := 0
	for _, c := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.Write(writeCtx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			h.remove(c)
			_ = c.Close(websocket.StatusPolicyViolation, "write failed")
			continue
		}
		delivered++
	}
	return delivered
}

// handleEvents upgrades to a websocket and pushes the usage snapshot on
// connect and after every ledger write.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("server: websocket accept failed")
		return
	}

	if payload := s.usageResponse(); payload != nil {
		writeCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := c.Write(writeCtx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			_ = c.Close(websocket.StatusPolicyViolation, "write failed")
			return
		}
	}

	s.hub.add(c)
	defer s.hub.remove(c)

	// Subscribers never send; CloseRead surfaces the disconnect.
	ctx := c.CloseRead(r.Context())
	<-ctx.Done()
	_ = c.Close(websocket.StatusNormalClosure, "")
}
