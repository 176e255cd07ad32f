package wsproto

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aria-chat/backend/go/internal/v1/auth"
	"github.com/aria-chat/backend/go/internal/v1/logging"
	"github.com/aria-chat/backend/go/internal/v1/lobby"
	"github.com/aria-chat/backend/go/internal/v1/metrics"
	"github.com/aria-chat/backend/go/internal/v1/ratelimit"
	"github.com/aria-chat/backend/go/internal/v1/room"
)

// nextConnectionID assigns each accepted connection a process-unique id;
// ConnectionID 0 is reserved for the room actor's own internal timer.
var nextConnectionID atomic.Int64

func init() {
	nextConnectionID.Store(1)
}

// Handler serves the WebSocket upgrade endpoint and owns everything a
// connection needs once accepted: the lobby to join rooms through, the
// auth service to verify tokens, the upgrader's origin policy, and the
// pre-upgrade rate limiter.
type Handler struct {
	ctx      context.Context
	lobby    *lobby.Lobby
	authSvc  *auth.Service
	rl       *ratelimit.RateLimiter
	upgrader websocket.Upgrader
}

// NewHandler builds a Handler. ctx governs every connection's lifetime:
// cancelling it (server shutdown) unblocks every session's read loop.
// allowedOrigins may be empty to accept any origin (local development
// only — production deployments should always set it).
func NewHandler(ctx context.Context, l *lobby.Lobby, authSvc *auth.Service, rl *ratelimit.RateLimiter, allowedOrigins []string) *Handler {
	return &Handler{
		ctx:      ctx,
		lobby:    l,
		authSvc:  authSvc,
		rl:       rl,
		upgrader: NewUpgrader(allowedOrigins),
	}
}

// ServeWs upgrades the request to a WebSocket connection and runs its
// session until the socket or request context closes.
func (h *Handler) ServeWs(c *gin.Context) {
	if err := h.rl.CheckWebSocketConnect(c.Request.Context(), c.ClientIP()); err != nil {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "ws upgrade failed", zap.Error(err))
		return
	}

	id := room.ConnectionID(nextConnectionID.Add(1))
	s := newSession(id, conn, h.lobby, h.authSvc)

	metrics.IncConnection()
	defer metrics.DecConnection()

	s.run(h.ctx)
}
