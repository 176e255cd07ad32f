// Package media hashes, deduplicates, and derives the images and clips
// attached to posts and emotes: a static image gets a resized copy and
// thumbnail via golang.org/x/image/draw; an animated image or video gets
// both by shelling out to ffmpeg, guarded by a circuit breaker so a wedged
// ffmpeg binary degrades ingestion instead of exhausting the process.
package media

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sony/gobreaker"

	"github.com/aria-chat/backend/go/internal/v1/metrics"
)

// Kind classifies an uploaded file by how its derivatives must be produced.
type Kind int

const (
	KindImage Kind = iota
	KindAnimatedImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindAnimatedImage:
		return "animated_image"
	case KindVideo:
		return "video"
	default:
		return "image"
	}
}

// Paths is the subset of the core facade's filesystem layout media needs:
// where originals land, content-addressed, and where their public
// derivatives are served from.
type Paths struct {
	OriginalImage string
	OriginalEmote string

	PublicImage     string
	PublicThumbnail string
	PublicEmote     string
}

// Processor implements core.MediaProcessor.
type Processor struct {
	paths      Paths
	ffmpegPath string
	breaker    *gobreaker.CircuitBreaker
}

// New builds a Processor rooted at paths, shelling out to the ffmpeg
// binary at ffmpegPath for animated/video derivatives.
func New(paths Paths, ffmpegPath string) *Processor {
	st := gobreaker.Settings{
		Name:        "ffmpeg",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("ffmpeg").Set(stateVal)
		},
	}

	return &Processor{
		paths:      paths,
		ffmpegPath: ffmpegPath,
		breaker:    gobreaker.NewCircuitBreaker(st),
	}
}

// identify classifies path by extension, falling back to content
// sniffing via mimetype for the extensions that can go either way (a
// .webp may or may not carry an ANIM chunk; a misnamed upload may carry
// no reliable extension at all).
func identify(ext string, path string) Kind {
	switch ext {
	case "gif":
		return KindAnimatedImage
	case "webm", "mp4", "m4v", "mov":
		return KindVideo
	case "webp":
		if isAnimatedWebP(path) {
			return KindAnimatedImage
		}
		return KindImage
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return KindImage
	}
	switch {
	case mt.Is("video/webm"), mt.Is("video/mp4"), mt.Is("video/quicktime"):
		return KindVideo
	case mt.Is("image/gif"):
		return KindAnimatedImage
	default:
		return KindImage
	}
}

// isAnimatedWebP sniffs the RIFF/WEBP header for an ANIM chunk, the same
// signature a static WebP never carries.
func isAnimatedWebP(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 34)
	if _, err := f.Read(buf); err != nil {
		return false
	}
	if string(buf[0:4]) != "RIFF" || string(buf[8:16]) != "WEBPVP8X" {
		return false
	}
	for i := 16; i+4 <= len(buf); i++ {
		if string(buf[i:i+4]) == "ANIM" {
			return true
		}
	}
	return false
}

// staticImageExt maps an uploaded extension to the derivative extension
// the stdlib image codecs can actually produce for a non-animated,
// non-video upload: Go ships no webp encoder, so unlike the uniform webp
// output animated images and videos get via ffmpeg, static derivatives
// stay in the source format family (png stays png, everything else
// becomes jpeg).
func staticImageExt(originalExt string) string {
	switch originalExt {
	case "png", "gif":
		return originalExt
	default:
		return "jpg"
	}
}

func extOf(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	return ext
}
