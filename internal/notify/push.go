package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/scrypster/stash/pkg/types"
)

// PushHub delivers notifications over live websocket connections. Each
// connection registers under a client-chosen token; the token doubles as
// the durable push registration so delivery targets survive restarts.
type PushHub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn // token -> connection
}

// NewPushHub creates an empty hub.
func NewPushHub() *PushHub {
	return &PushHub{conns: make(map[string]*websocket.Conn)}
}

// Register attaches a live connection under the given token, replacing any
// previous connection using the same token.
func (h *PushHub) Register(token string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.conns[token]; ok {
		_ = old.Close(websocket.StatusNormalClosure, "replaced by new connection")
	}
	h.conns[token] = conn
}

// Unregister detaches the connection for a token. The durable registration
// is kept so the client can reconnect with the same token.
func (h *PushHub) Unregister(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, token)
}

// Deliver writes the payload as JSON to the token's live connection. An
// offline target is a transient miss; a write failure closes and drops the
// connection and reports the target stale.
func (h *PushHub) Deliver(ctx context.Context, userID, token string, payload types.NotificationPayload) error {
	h.mu.RLock()
	conn, ok := h.conns[token]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("deliver to %s: target offline", token)
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, payload); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "write failed")
		h.Unregister(token)
		return fmt.Errorf("deliver to %s: %w: %v", token, ErrStaleTarget, err)
	}
	return nil
}

// Name identifies the transport in records and logs.
func (h *PushHub) Name() string { return "websocket" }

var _ Transport = (*PushHub)(nil)
