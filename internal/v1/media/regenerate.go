package media

import (
	"context"
	"path/filepath"
)

// RegeneratePostDerivatives rebuilds a post image's public derivatives from
// its already-deduplicated original, keyed by hash and the original's
// extension. Used by the regenerate-post-images CLI command to rebuild
// derivatives after a thumbnail size or encoding change, without
// re-uploading or re-hashing anything; always passes overwrite=true since
// a regeneration request is explicitly asking to replace what's there.
func (p *Processor) RegeneratePostDerivatives(ctx context.Context, hash, ext string) (imageExt, tnExt string, err error) {
	originalPath := filepath.Join(p.paths.OriginalImage, hash+"."+ext)
	kind := identify(ext, originalPath)
	return p.generatePostDerivatives(ctx, originalPath, hash, ext, kind, true)
}

// RegenerateEmoteDerivative rebuilds an emote's public derivative from its
// already-deduplicated original. Used by the regenerate-emote-images CLI
// command; always passes overwrite=true for the same reason.
func (p *Processor) RegenerateEmoteDerivative(ctx context.Context, hash, ext string) (string, error) {
	originalPath := filepath.Join(p.paths.OriginalEmote, hash+"."+ext)
	kind := identify(ext, originalPath)
	return p.generateEmoteDerivative(ctx, originalPath, hash, ext, kind, true)
}
