package media

import (
	"context"
	"time"

	"github.com/aria-chat/backend/go/internal/v1/metrics"
)

// IngestPostImage hashes and deduplicates an uploaded post image into
// OriginalImage, then derives its public image and thumbnail. Satisfies
// core.MediaProcessor.
func (p *Processor) IngestPostImage(ctx context.Context, tempPath, filename string) (hash, ext, tnExt string, err error) {
	start := time.Now()
	kind := identify(extOf(filename), tempPath)
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.MediaIngestDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
		metrics.MediaDerivativesGenerated.WithLabelValues(kind.String(), status).Inc()
	}()

	hash, originalExt, originalPath, err := dedupMove(tempPath, filename, p.paths.OriginalImage)
	if err != nil {
		return "", "", "", err
	}

	ext, tnExt, err = p.generatePostDerivatives(ctx, originalPath, hash, originalExt, kind, false)
	if err != nil {
		return "", "", "", err
	}

	return hash, ext, tnExt, nil
}

// IngestEmoteImage hashes and deduplicates an uploaded emote image or
// clip into OriginalEmote, then derives its single public derivative.
// Satisfies core.MediaProcessor.
func (p *Processor) IngestEmoteImage(ctx context.Context, tempPath, filename string) (hash, ext string, err error) {
	start := time.Now()
	kind := identify(extOf(filename), tempPath)
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.MediaIngestDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
		metrics.MediaDerivativesGenerated.WithLabelValues(kind.String(), status).Inc()
	}()

	hash, originalExt, originalPath, err := dedupMove(tempPath, filename, p.paths.OriginalEmote)
	if err != nil {
		return "", "", err
	}

	ext, err = p.generateEmoteDerivative(ctx, originalPath, hash, originalExt, kind, false)
	if err != nil {
		return "", "", err
	}

	return hash, ext, nil
}
