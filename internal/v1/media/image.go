package media

import (
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
)

// generateStaticDerivative decodes the image at srcPath and writes a copy
// resized to fit within maxWidth x maxHeight (never upscaled) to dstPath,
// in the format implied by ext.
func generateStaticDerivative(srcPath, dstPath, ext string, maxWidth, maxHeight int) error {
	src, err := decodeImage(srcPath)
	if err != nil {
		return err
	}

	bounds := src.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	return encodeImage(dstPath, dst, ext)
}

func fitWithin(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}
	ratio := float64(srcW) / float64(srcH)
	w, h := maxW, int(float64(maxW)/ratio)
	if h > maxH {
		h = maxH
		w = int(float64(maxH) * ratio)
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMediaError, "open image for derivation", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMediaError, "decode image", err)
	}
	return img, nil
}

func encodeImage(path string, img image.Image, ext string) error {
	f, err := os.Create(path)
	if err != nil {
		return apperr.Wrap(apperr.KindMediaError, "create derivative file", err)
	}
	defer f.Close()

	switch ext {
	case "png":
		err = png.Encode(f, img)
	case "gif":
		err = gif.Encode(f, img, nil)
	default:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return apperr.Wrap(apperr.KindMediaError, "encode derivative", err)
	}
	return nil
}
