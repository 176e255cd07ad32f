package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/metrics"
)

// runFFmpeg invokes ffmpeg through the circuit breaker so a stuck or
// crash-looping binary trips open after repeated failures rather than
// piling up subprocesses behind every upload.
func (p *Processor) runFFmpeg(ctx context.Context, args ...string) error {
	_, err := p.breaker.Execute(func() (any, error) {
		cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, apperr.Wrap(apperr.KindMediaError, "ffmpeg: "+string(out), err)
		}
		return nil, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.CircuitBreakerFailures.WithLabelValues("ffmpeg").Inc()
		}
		return apperr.Wrap(apperr.KindMediaError, "run ffmpeg", err)
	}
	return nil
}

// scaleFilter builds the ffmpeg scale filter that fits the source into
// width x height without upscaling or distorting its aspect ratio.
func scaleFilter(width, height int, pixFmt string) string {
	return fmt.Sprintf("scale=min(%d\\,iw):min(%d\\,ih):force_original_aspect_ratio=decrease,format=%s", width, height, pixFmt)
}

// animatedQuality is a use-site-specific libwebp quality preset: emotes are
// small and viewed up close, so they get a higher compression effort and
// quality than posts, which are thumbnail-sized in the feed.
type animatedQuality struct {
	compressionLevel int
	quality          int
}

var (
	postAnimatedQuality  = animatedQuality{compressionLevel: 4, quality: 40}
	emoteAnimatedQuality = animatedQuality{compressionLevel: 5, quality: 70}
)

// runAnimatedWebP transcodes an animated source into a looping animated
// webp via ffmpeg's libwebp encoder, scaled to fit width x height.
func (p *Processor) runAnimatedWebP(ctx context.Context, src, dst string, width, height int, q animatedQuality) error {
	return p.runFFmpeg(ctx, "-hide_banner", "-y", "-i", src,
		"-map_metadata", "-1", "-filter:v", scaleFilter(width, height, "yuva420p"),
		"-c:v", "libwebp", "-compression_level", strconv.Itoa(q.compressionLevel),
		"-quality", strconv.Itoa(q.quality), "-loop", "0", dst)
}
