// Package wsproto implements the per-connection WebSocket session: the
// `TAG|JSON` wire protocol, its request dispatch table, and the upgrade
// handler that wires a socket to the lobby.
package wsproto

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait is how long a single outbound frame write may take before the
// connection is considered dead.
const writeWait = 10 * time.Second

// pongWait is how long a connection may go without a pong before it is
// considered dead; pingPeriod keeps server-initiated pings comfortably
// inside that window.
const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// maxMessageSize bounds a single inbound text frame; `TAG|JSON` frames are
// small control messages, never media payloads (those go over HTTP).
const maxMessageSize = 32 * 1024

// wsConnection abstracts the subset of *websocket.Conn a session needs, so
// tests can substitute a fake without opening a real socket.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// upgrader is shared across all connections; CheckOrigin is assigned once
// an allow-list is known (see NewUpgrader).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	WriteBufferPool: &websocket.WriteBufferPool{},
}

// NewUpgrader builds a websocket.Upgrader whose CheckOrigin accepts only
// origins in allowed, or any origin if allowed is empty (local development).
func NewUpgrader(allowed []string) websocket.Upgrader {
	u := upgrader
	if len(allowed) == 0 {
		u.CheckOrigin = func(r *http.Request) bool { return true }
		return u
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	u.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
	return u
}
