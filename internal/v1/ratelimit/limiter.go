// Package ratelimit enforces per-route request limits using ulule/limiter,
// backed by Redis when available and falling back to an in-memory store
// otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aria-chat/backend/go/internal/v1/auth"
	"github.com/aria-chat/backend/go/internal/v1/config"
	"github.com/aria-chat/backend/go/internal/v1/logging"
	"github.com/aria-chat/backend/go/internal/v1/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// Route names the endpoint groups the spec assigns distinct limits to.
type Route string

const (
	RouteLogin     Route = "login"
	RouteRefresh   Route = "refresh"
	RoutePost      Route = "post"
	RouteEmote     Route = "emote"
	RouteClaim     Route = "claim"
	RouteWsConnect Route = "ws_connect"
)

// RateLimiter holds one limiter instance per Route, sharing a single store.
type RateLimiter struct {
	limiters    map[Route]*limiter.Limiter
	store       limiter.Store
	redisClient *redis.Client
}

// New builds a RateLimiter from the configured per-route rate strings. When
// redisClient is nil (REDIS_ENABLED=false) it falls back to an in-memory
// store, matching the teacher's own dev-mode fallback.
func New(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	rates := map[Route]string{
		RouteLogin:     cfg.RateLimitLogin,
		RouteRefresh:   cfg.RateLimitRefresh,
		RoutePost:      cfg.RateLimitPost,
		RouteEmote:     cfg.RateLimitEmote,
		RouteClaim:     cfg.RateLimitClaim,
		RouteWsConnect: cfg.RateLimitWsConnect,
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "aria:ratelimit:"})
		if err != nil {
			return nil, fmt.Errorf("create redis rate limit store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "rate limiter using in-memory store (redis disabled)")
	}

	limiters := make(map[Route]*limiter.Limiter, len(rates))
	for route, formatted := range rates {
		rate, err := limiter.NewRateFromFormatted(formatted)
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", route, err)
		}
		limiters[route] = limiter.New(store, rate)
	}

	return &RateLimiter{limiters: limiters, store: store, redisClient: redisClient}, nil
}

// keyFor prefers the authenticated user id (set by the auth middleware under
// "claims") and falls back to client IP — unauthenticated endpoints (login,
// claim, ws connect) only ever have an IP to key on.
func keyFor(c *gin.Context) string {
	if v, ok := c.Get("claims"); ok {
		if claims, ok := v.(*auth.Claims); ok && claims.UserID != 0 {
			return fmt.Sprintf("user:%d", claims.UserID)
		}
	}
	return "ip:" + c.ClientIP()
}

// Middleware enforces route's limit, keyed by user id if authenticated or
// by client IP otherwise. Fails open (allows the request but logs) if the
// backing store errors, matching the teacher's availability-over-strictness
// choice for this failure mode.
func (rl *RateLimiter) Middleware(route Route) gin.HandlerFunc {
	l, ok := rl.limiters[route]
	if !ok {
		panic(fmt.Sprintf("ratelimit: no limiter configured for route %q", route))
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := keyFor(c)

		limCtx, err := l.Get(ctx, key)
		if err != nil {
			logging.Error(ctx, "rate limiter store failed", zap.Error(err), zap.String("route", string(route)))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limCtx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(limCtx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(limCtx.Reset, 10))

		if limCtx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(string(route), "limit_reached").Inc()
			c.Header("Retry-After", strconv.FormatInt(limCtx.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": limCtx.Reset,
			})
			return
		}

		metrics.RateLimitRequests.WithLabelValues(string(route)).Inc()
		c.Next()
	}
}

// CheckWebSocketConnect enforces the ws-connect limit before the HTTP
// connection is upgraded, keyed by IP since no user identity exists yet at
// handshake time. Fails open on a store error.
func (rl *RateLimiter) CheckWebSocketConnect(ctx context.Context, clientIP string) error {
	l := rl.limiters[RouteWsConnect]
	limCtx, err := l.Get(ctx, "ip:"+clientIP)
	if err != nil {
		logging.Error(ctx, "ws-connect rate limiter store failed", zap.Error(err))
		return nil
	}
	if limCtx.Reached {
		metrics.RateLimitExceeded.WithLabelValues(string(RouteWsConnect), "limit_reached").Inc()
		return fmt.Errorf("rate limit exceeded for websocket connect")
	}
	metrics.RateLimitRequests.WithLabelValues(string(RouteWsConnect)).Inc()
	return nil
}
