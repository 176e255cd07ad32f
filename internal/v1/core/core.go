// Package core implements the facade every other surface (httpapi,
// wsproto, cmd/tool) calls through: it owns the persisted filesystem
// layout and the notification bus, and every domain operation that must
// persist via the store THEN publish to the bus so a late-restarted
// lobby can skip a notification for a room it hasn't loaded.
package core

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/auth"
	"github.com/aria-chat/backend/go/internal/v1/bus"
	"github.com/aria-chat/backend/go/internal/v1/config"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

// Paths is the persisted filesystem layout rooted at cfg.FilesRoot: a
// temp scratch area, an admin dropbox the CLI tool ingests, deduplicated
// originals, and the derivatives served to clients.
type Paths struct {
	Root string

	Temp string

	ProcessImage string
	ProcessEmote string

	OriginalImage string
	OriginalEmote string

	Public          string
	PublicImage     string
	PublicThumbnail string
	PublicEmote     string
}

func newPaths(root string) Paths {
	process := filepath.Join(root, "process")
	original := filepath.Join(root, "original")
	public := filepath.Join(root, "public")
	return Paths{
		Root:            root,
		Temp:            filepath.Join(root, "temp"),
		ProcessImage:    filepath.Join(process, "i"),
		ProcessEmote:    filepath.Join(process, "e"),
		OriginalImage:   filepath.Join(original, "i"),
		OriginalEmote:   filepath.Join(original, "e"),
		Public:          public,
		PublicImage:     filepath.Join(public, "i"),
		PublicThumbnail: filepath.Join(public, "t"),
		PublicEmote:     filepath.Join(public, "e"),
	}
}

// dirs lists every directory that must exist before the process serves a
// single request — mirroring the original facade's fs::create_dir_all
// calls at startup, not lazily on first use.
func (p Paths) dirs() []string {
	return []string{
		p.Temp,
		p.ProcessImage, p.ProcessEmote,
		p.OriginalImage, p.OriginalEmote,
		p.PublicImage, p.PublicThumbnail, p.PublicEmote,
	}
}

// MediaProcessor ingests an uploaded temp file into content-addressed
// storage and produces its derivatives, handing back the hash/extension
// pair the store persists. Implemented by the media package; declared
// here, at the point of use, so core has no import-time dependency on
// ffmpeg or image-decoding libraries.
type MediaProcessor interface {
	// IngestPostImage hashes, dedups, and derives a post's attached
	// image + thumbnail. Returns the extension chosen for each.
	IngestPostImage(ctx context.Context, tempPath, filename string) (hash, ext, tnExt string, err error)

	// IngestEmoteImage hashes, dedups, and derives a room emote's image
	// or looping clip.
	IngestEmoteImage(ctx context.Context, tempPath, filename string) (hash, ext string, err error)

	// RegeneratePostDerivatives rebuilds a post's public derivatives from
	// its already-deduplicated original, identified by hash and the
	// original's extension.
	RegeneratePostDerivatives(ctx context.Context, hash, ext string) (imageExt, tnExt string, err error)

	// RegenerateEmoteDerivative rebuilds an emote's public derivative from
	// its already-deduplicated original.
	RegenerateEmoteDerivative(ctx context.Context, hash, ext string) (derivativeExt string, err error)
}

// Core is the facade. Every field is a dependency injected at
// construction, never a concrete global.
type Core struct {
	st      store.Store
	bus     *bus.Bus
	media   MediaProcessor
	authSvc *auth.Service

	Paths Paths
}

// New creates the persisted filesystem layout and returns a Core wired
// to the given store, bus, media processor, and auth service.
func New(cfg *config.Config, st store.Store, notifications *bus.Bus, media MediaProcessor, authSvc *auth.Service) (*Core, error) {
	paths := newPaths(cfg.FilesRoot)
	for _, d := range paths.dirs() {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, apperr.Wrap(apperr.KindInternalBug, "create files directory "+d, err)
		}
	}

	return &Core{
		st:      st,
		bus:     notifications,
		media:   media,
		authSvc: authSvc,
		Paths:   paths,
	}, nil
}

// publish fans a notification out to the bus's subscribers (the lobby,
// in production). Never blocks and never fails — a lagged subscriber
// drops the notification for itself only.
func (c *Core) publish(ctx context.Context, n bus.Notification) {
	c.bus.Publish(ctx, n)
}
