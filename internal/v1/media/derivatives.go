package media

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
)

const (
	postImageSize     = 350
	postThumbnailSize = 100
	emoteImageSize    = 350
)

// preserveOriginal reports whether ext's derivative should simply be a
// hard link to the original rather than a re-encode: an animated gif
// loses its animation through any image codec path this package has, so
// it is served as-is.
func preserveOriginal(ext string) bool { return ext == "gif" }

// generatePostDerivatives writes a room-post's public image and thumbnail
// for originalPath (already content-addressed at hash.ext), returning the
// extension chosen for each. A preserved original is hard-linked into
// both slots: a broken hard link (cross-device originals) falls back to
// a copy. Existing targets are left untouched unless overwrite is set —
// set by the CLI regeneration path, never by ordinary ingestion.
func (p *Processor) generatePostDerivatives(ctx context.Context, originalPath, hash, ext string, kind Kind, overwrite bool) (imageExt, tnExt string, err error) {
	if preserveOriginal(ext) {
		imagePath := filepath.Join(p.paths.PublicImage, hash+"."+ext)
		tnPath := filepath.Join(p.paths.PublicThumbnail, hash+"."+ext)
		if err := linkOrCopy(originalPath, imagePath, overwrite); err != nil {
			return "", "", err
		}
		if err := linkOrCopy(originalPath, tnPath, overwrite); err != nil {
			return "", "", err
		}
		return ext, ext, nil
	}

	if kind == KindVideo {
		imageExt = "webm"
		imagePath := filepath.Join(p.paths.PublicImage, hash+"."+imageExt)
		if write, err := needsWrite(imagePath, overwrite); err != nil {
			return "", "", err
		} else if write {
			if err := p.runFFmpeg(ctx, "-hide_banner", "-y", "-i", originalPath,
				"-map_metadata", "-1", "-filter:v", scaleFilter(postImageSize, postImageSize, "yuv420p"),
				"-c:v", "libvpx-vp9", "-crf", "42", "-an", imagePath); err != nil {
				return "", "", err
			}
		}
		tnPath := filepath.Join(p.paths.PublicThumbnail, hash+"."+imageExt)
		if write, err := needsWrite(tnPath, overwrite); err != nil {
			return "", "", err
		} else if write {
			if err := p.runFFmpeg(ctx, "-hide_banner", "-y", "-i", originalPath,
				"-map_metadata", "-1", "-filter:v", scaleFilter(postThumbnailSize, postThumbnailSize, "yuv420p"),
				"-c:v", "libvpx-vp9", "-crf", "42", "-an", tnPath); err != nil {
				return "", "", err
			}
		}
		return imageExt, imageExt, nil
	}

	if kind == KindAnimatedImage {
		imageExt = "webp"
		imagePath := filepath.Join(p.paths.PublicImage, hash+"."+imageExt)
		if write, err := needsWrite(imagePath, overwrite); err != nil {
			return "", "", err
		} else if write {
			if err := p.runAnimatedWebP(ctx, originalPath, imagePath, postImageSize, postImageSize, postAnimatedQuality); err != nil {
				return "", "", err
			}
		}
		tnPath := filepath.Join(p.paths.PublicThumbnail, hash+"."+imageExt)
		if write, err := needsWrite(tnPath, overwrite); err != nil {
			return "", "", err
		} else if write {
			if err := p.runAnimatedWebP(ctx, originalPath, tnPath, postThumbnailSize, postThumbnailSize, postAnimatedQuality); err != nil {
				return "", "", err
			}
		}
		return imageExt, imageExt, nil
	}

	imageExt = staticImageExt(ext)
	imagePath := filepath.Join(p.paths.PublicImage, hash+"."+imageExt)
	if write, err := needsWrite(imagePath, overwrite); err != nil {
		return "", "", err
	} else if write {
		if err := generateStaticDerivative(originalPath, imagePath, imageExt, postImageSize, postImageSize); err != nil {
			return "", "", err
		}
	}
	tnPath := filepath.Join(p.paths.PublicThumbnail, hash+"."+imageExt)
	if write, err := needsWrite(tnPath, overwrite); err != nil {
		return "", "", err
	} else if write {
		if err := generateStaticDerivative(originalPath, tnPath, imageExt, postThumbnailSize, postThumbnailSize); err != nil {
			return "", "", err
		}
	}
	return imageExt, imageExt, nil
}

// generateEmoteDerivative writes a room emote's single public derivative,
// returning its extension. Emotes have no separate thumbnail.
func (p *Processor) generateEmoteDerivative(ctx context.Context, originalPath, hash, ext string, kind Kind, overwrite bool) (string, error) {
	if preserveOriginal(ext) {
		dst := filepath.Join(p.paths.PublicEmote, hash+"."+ext)
		if err := linkOrCopy(originalPath, dst, overwrite); err != nil {
			return "", err
		}
		return ext, nil
	}

	if kind == KindVideo {
		dstExt := "webm"
		dst := filepath.Join(p.paths.PublicEmote, hash+"."+dstExt)
		if write, err := needsWrite(dst, overwrite); err != nil {
			return "", err
		} else if write {
			if err := p.runFFmpeg(ctx, "-hide_banner", "-y", "-i", originalPath,
				"-map_metadata", "-1", "-filter:v", scaleFilter(emoteImageSize, emoteImageSize, "yuv420p"),
				"-c:v", "libvpx-vp9", "-crf", "42", "-an", dst); err != nil {
				return "", err
			}
		}
		return dstExt, nil
	}

	if kind == KindAnimatedImage {
		dstExt := "webp"
		dst := filepath.Join(p.paths.PublicEmote, hash+"."+dstExt)
		if write, err := needsWrite(dst, overwrite); err != nil {
			return "", err
		} else if write {
			if err := p.runAnimatedWebP(ctx, originalPath, dst, emoteImageSize, emoteImageSize, emoteAnimatedQuality); err != nil {
				return "", err
			}
		}
		return dstExt, nil
	}

	dstExt := staticImageExt(ext)
	dst := filepath.Join(p.paths.PublicEmote, hash+"."+dstExt)
	if write, err := needsWrite(dst, overwrite); err != nil {
		return "", err
	} else if write {
		if err := generateStaticDerivative(originalPath, dst, dstExt, emoteImageSize, emoteImageSize); err != nil {
			return "", err
		}
	}
	return dstExt, nil
}

// needsWrite reports whether dst must be (re)generated: true if it is
// missing, or if overwrite is requested — in which case the stale file is
// removed first so a failed regeneration can't be mistaken for success by
// a later existence check.
func needsWrite(dst string, overwrite bool) (bool, error) {
	_, err := os.Stat(dst)
	switch {
	case err == nil:
		if !overwrite {
			return false, nil
		}
		if err := os.Remove(dst); err != nil {
			return false, apperr.Wrap(apperr.KindMediaError, "remove stale derivative "+dst, err)
		}
		return true, nil
	case os.IsNotExist(err):
		return true, nil
	default:
		return false, apperr.Wrap(apperr.KindMediaError, "stat derivative "+dst, err)
	}
}

func linkOrCopy(src, dst string, overwrite bool) error {
	write, err := needsWrite(dst, overwrite)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	return moveFileCopyOnly(src, dst)
}

// moveFileCopyOnly copies src to dst without removing src, for the
// hard-link fallback where the original must remain in place.
func moveFileCopyOnly(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
