package httpapi

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/aria-chat/backend/go/internal/v1/auth"
	"github.com/aria-chat/backend/go/internal/v1/config"
	"github.com/aria-chat/backend/go/internal/v1/core"
	"github.com/aria-chat/backend/go/internal/v1/health"
	"github.com/aria-chat/backend/go/internal/v1/middleware"
	"github.com/aria-chat/backend/go/internal/v1/ratelimit"
)

// api holds the dependencies every handler closes over.
type api struct {
	core    *core.Core
	authSvc *auth.Service
	cfg     *config.Config
}

// NewRouter builds the gin engine serving every HTTP endpoint: room
// claim/login, chat posts and emotes, user identity, and the system
// config probe, plus health and metrics. health may be nil in tests that
// don't wire a store.
func NewRouter(cfg *config.Config, c *core.Core, authSvc *auth.Service, rl *ratelimit.RateLimiter, h *health.Handler) *gin.Engine {
	a := &api{core: c, authSvc: authSvc, cfg: cfg}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("aria-backend"))
	r.Use(middleware.CorrelationID())

	corsCfg := cors.DefaultConfig()
	if cfg.AllowedOrigins != "" {
		corsCfg.AllowOrigins = splitAllowedOrigins(cfg.AllowedOrigins)
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-User", "X-Correlation-ID")
	r.Use(cors.New(corsCfg))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h != nil {
		r.GET("/health/live", h.Liveness)
		r.GET("/health/ready", h.Readiness)
	}

	if cfg.ServeFiles {
		r.Static("/f", c.Paths.Public)
	}

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/login", rl.Middleware(ratelimit.RouteLogin), a.handleLogin)
	authGroup.POST("/refresh", rl.Middleware(ratelimit.RouteRefresh), a.handleRefresh)

	roomGroup := apiGroup.Group("/r")
	roomGroup.GET("/room/:name", a.handleGetRoomByName)
	roomGroup.POST("/claim", rl.Middleware(ratelimit.RouteClaim), a.handleClaimRoom)
	roomGroup.POST("/i/:room_id/loggedin", requireRoomAuth(authSvc), a.handleLoggedIn)
	roomGroup.POST("/i/:room_id/setcontent", requireRoomAuth(authSvc), a.handleSetContent)

	chatGroup := apiGroup.Group("/chat")
	chatGroup.POST("/:room_id/post",
		rl.Middleware(ratelimit.RoutePost),
		limitBody(cfg.MaxImageSize),
		requireUser(authSvc), optionalRoomAuth(authSvc),
		a.handleCreatePost)
	chatGroup.DELETE("/:room_id/post/:post_id", requireUser(authSvc), optionalRoomAuth(authSvc), a.handleDeletePost)
	chatGroup.POST("/:room_id/emote",
		rl.Middleware(ratelimit.RouteEmote),
		limitBody(cfg.MaxEmoteSize),
		requireRoomAuth(authSvc),
		a.handleCreateEmote)
	chatGroup.DELETE("/:room_id/emote/:emote_id", requireRoomAuth(authSvc), a.handleDeleteEmote)

	userGroup := apiGroup.Group("/user")
	userGroup.POST("/new", a.handleNewUser)
	userGroup.POST("/verify", requireUser(authSvc), a.handleVerifyUser)

	apiGroup.GET("/sys/config", a.handleSysConfig)

	return r
}

func splitAllowedOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
