// Command tool runs one-off maintenance operations against the same
// persisted filesystem tree and store the server uses: ingesting the
// admin image dropbox, and rebuilding derivatives from already-stored
// originals after a thumbnail or encoding change.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aria-chat/backend/go/internal/v1/auth"
	"github.com/aria-chat/backend/go/internal/v1/bus"
	"github.com/aria-chat/backend/go/internal/v1/config"
	"github.com/aria-chat/backend/go/internal/v1/core"
	"github.com/aria-chat/backend/go/internal/v1/logging"
	"github.com/aria-chat/backend/go/internal/v1/media"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: tool <process-images|regenerate-post-images|regenerate-emote-images>")
		os.Exit(1)
	}
	cmd := os.Args[1]

	_ = godotenv.Load()
	cfg, err := config.ValidateEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		fmt.Fprintln(os.Stderr, "init logging:", err)
		os.Exit(1)
	}
	log := logging.GetLogger()

	st, err := store.New(filepath.Join(cfg.FilesRoot, "aria.db"))
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	defer st.Close()

	mediaProc := media.New(media.Paths{
		OriginalImage:   filepath.Join(cfg.FilesRoot, "original", "i"),
		OriginalEmote:   filepath.Join(cfg.FilesRoot, "original", "e"),
		PublicImage:     filepath.Join(cfg.FilesRoot, "public", "i"),
		PublicThumbnail: filepath.Join(cfg.FilesRoot, "public", "t"),
		PublicEmote:     filepath.Join(cfg.FilesRoot, "public", "e"),
	}, cfg.FFmpegPath)
	authSvc := auth.NewService(cfg.JWTSecret)

	c, err := core.New(cfg, st, bus.New(), mediaProc, authSvc)
	if err != nil {
		log.Fatal("build core", zap.Error(err))
	}

	ctx := context.Background()
	switch cmd {
	case "process-images":
		err = runBoth(ctx, c.ProcessImageDropbox, c.ProcessEmoteDropbox)
	case "regenerate-post-images":
		err = c.RegeneratePostImages(ctx)
	case "regenerate-emote-images":
		err = c.RegenerateEmoteImages(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		log.Fatal("command failed", zap.String("command", cmd), zap.Error(err))
	}
	log.Info("command completed", zap.String("command", cmd))
}

func runBoth(ctx context.Context, a, b func(context.Context) error) error {
	if err := a(ctx); err != nil {
		return err
	}
	return b(ctx)
}
