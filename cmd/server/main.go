// Command server runs the Aria backend: the HTTP API on cfg.HTTPPort and
// the WebSocket chatroom endpoint on cfg.WSPort, sharing one lobby, one
// store, and one notification bus.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aria-chat/backend/go/internal/v1/auth"
	"github.com/aria-chat/backend/go/internal/v1/bus"
	"github.com/aria-chat/backend/go/internal/v1/config"
	"github.com/aria-chat/backend/go/internal/v1/core"
	"github.com/aria-chat/backend/go/internal/v1/health"
	"github.com/aria-chat/backend/go/internal/v1/httpapi"
	"github.com/aria-chat/backend/go/internal/v1/lobby"
	"github.com/aria-chat/backend/go/internal/v1/logging"
	"github.com/aria-chat/backend/go/internal/v1/media"
	"github.com/aria-chat/backend/go/internal/v1/ratelimit"
	"github.com/aria-chat/backend/go/internal/v1/store"
	"github.com/aria-chat/backend/go/internal/v1/tracing"
	"github.com/aria-chat/backend/go/internal/v1/wsproto"
)

func main() {
	migrate := flag.Bool("migrate", false, "log pending schema migrations before serving")
	serveFiles := flag.Bool("serve-files", false, "serve the public files tree at /f (overrides SERVE_FILES)")
	flag.Parse()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.ValidateEnv()
	if err != nil {
		logging.Fatal(context.Background(), "invalid configuration", zap.Error(err))
		os.Exit(1)
	}
	if *serveFiles {
		cfg.ServeFiles = true
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		panic(err)
	}
	log := logging.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		tp, err := tracing.InitTracer(ctx, "aria-backend", cfg.OTelCollectorAddr)
		if err != nil {
			log.Warn("tracing disabled: failed to initialize tracer provider", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					log.Warn("tracer provider shutdown failed", zap.Error(err))
				}
			}()
		}
	}

	dbPath := filepath.Join(cfg.FilesRoot, "aria.db")
	if *migrate {
		log.Info("applying pending schema migrations", zap.String("db_path", dbPath))
	}
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	defer st.Close()

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	rl, err := ratelimit.New(cfg, redisClient)
	if err != nil {
		log.Fatal("build rate limiter", zap.Error(err))
	}

	notifications := bus.New()
	authSvc := auth.NewService(cfg.JWTSecret)
	mediaProc := media.New(media.Paths{
		OriginalImage:   filepath.Join(cfg.FilesRoot, "original", "i"),
		OriginalEmote:   filepath.Join(cfg.FilesRoot, "original", "e"),
		PublicImage:     filepath.Join(cfg.FilesRoot, "public", "i"),
		PublicThumbnail: filepath.Join(cfg.FilesRoot, "public", "t"),
		PublicEmote:     filepath.Join(cfg.FilesRoot, "public", "e"),
	}, cfg.FFmpegPath)

	c, err := core.New(cfg, st, notifications, mediaProc, authSvc)
	if err != nil {
		log.Fatal("build core", zap.Error(err))
	}

	l := lobby.New(ctx, st, notifications)
	h := health.NewHandler(st, cfg.FilesRoot)

	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(cfg, c, authSvc, rl, h)
	httpSrv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}

	wsRouter := gin.New()
	wsRouter.Use(gin.Recovery())
	wsHandler := wsproto.NewHandler(ctx, l, authSvc, rl, splitOrigins(cfg.AllowedOrigins))
	wsRouter.GET("/ws", wsHandler.ServeWs)
	wsSrv := &http.Server{Addr: ":" + cfg.WSPort, Handler: wsRouter}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		log.Info("http api listening", zap.String("port", cfg.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		log.Info("websocket server listening", zap.String("port", cfg.WSPort))
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("websocket server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", zap.Error(err))
	}
	if err := wsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("websocket server shutdown", zap.Error(err))
	}

	wg.Wait()
	log.Info("server exited")
}

// splitOrigins parses a comma-separated ALLOWED_ORIGINS value; an empty
// input means "allow any", matching wsproto.NewUpgrader's convention.
func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
