package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/logging"
	"go.uber.org/zap"
)

// ProcessImageDropbox ingests every file under Paths.ProcessImage — the
// admin dropbox for post images — hashing, deduplicating, and deriving
// each one, then recording the resulting hash/extensions against any post
// rows awaiting them. A single file's failure is logged and skipped so one
// bad upload doesn't stop the rest of the batch.
func (c *Core) ProcessImageDropbox(ctx context.Context) error {
	return c.processDropbox(ctx, c.Paths.ProcessImage, func(ctx context.Context, path, name string) error {
		hash, ext, tnExt, err := c.media.IngestPostImage(ctx, path, name)
		if err != nil {
			return err
		}
		return c.st.UpdatePostImages(ctx, hash, ext, tnExt)
	})
}

// ProcessEmoteDropbox ingests every file under Paths.ProcessEmote, the
// admin dropbox for room emotes.
func (c *Core) ProcessEmoteDropbox(ctx context.Context) error {
	return c.processDropbox(ctx, c.Paths.ProcessEmote, func(ctx context.Context, path, name string) error {
		hash, ext, err := c.media.IngestEmoteImage(ctx, path, name)
		if err != nil {
			return err
		}
		return c.st.UpdateEmoteImages(ctx, hash, ext)
	})
}

// RegeneratePostImages rebuilds every post's public derivatives from its
// already-deduplicated original under Paths.OriginalImage, without
// re-uploading or re-hashing. Use after a thumbnail size or codec change.
func (c *Core) RegeneratePostImages(ctx context.Context) error {
	return c.regenerateFromOriginals(ctx, c.Paths.OriginalImage, func(ctx context.Context, hash, ext string) error {
		newExt, tnExt, err := c.media.RegeneratePostDerivatives(ctx, hash, ext)
		if err != nil {
			return err
		}
		return c.st.UpdatePostImages(ctx, hash, newExt, tnExt)
	})
}

// RegenerateEmoteImages rebuilds every emote's public derivative from its
// already-deduplicated original under Paths.OriginalEmote.
func (c *Core) RegenerateEmoteImages(ctx context.Context) error {
	return c.regenerateFromOriginals(ctx, c.Paths.OriginalEmote, func(ctx context.Context, hash, ext string) error {
		newExt, err := c.media.RegenerateEmoteDerivative(ctx, hash, ext)
		if err != nil {
			return err
		}
		return c.st.UpdateEmoteImages(ctx, hash, newExt)
	})
}

func (c *Core) processDropbox(ctx context.Context, dir string, ingest func(ctx context.Context, path, name string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperr.Wrap(apperr.KindMediaError, "read dropbox "+dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)
		logging.Info(ctx, "processing dropbox file", zap.String("path", path))
		if err := ingest(ctx, path, name); err != nil {
			logging.Error(ctx, "failed to process dropbox file", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

func (c *Core) regenerateFromOriginals(ctx context.Context, dir string, regenerate func(ctx context.Context, hash, ext string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperr.Wrap(apperr.KindMediaError, "read originals "+dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		hash, ext, ok := strings.Cut(name, ".")
		if !ok {
			logging.Warn(ctx, "skipping original with no extension", zap.String("name", name))
			continue
		}
		logging.Info(ctx, "regenerating derivatives", zap.String("hash", hash), zap.String("ext", ext))
		if err := regenerate(ctx, hash, ext); err != nil {
			logging.Error(ctx, "failed to regenerate derivatives", zap.String("hash", hash), zap.Error(err))
		}
	}
	return nil
}
