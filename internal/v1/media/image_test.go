package media

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFitWithinLeavesSmallImagesUnscaled(t *testing.T) {
	w, h := fitWithin(50, 40, 350, 350)
	if w != 50 || h != 40 {
		t.Errorf("expected unscaled 50x40, got %dx%d", w, h)
	}
}

func TestFitWithinScalesDownPreservingAspect(t *testing.T) {
	w, h := fitWithin(1000, 500, 350, 350)
	if w != 350 || h != 175 {
		t.Errorf("expected 350x175, got %dx%d", w, h)
	}
}

func TestFitWithinScalesDownTallImages(t *testing.T) {
	w, h := fitWithin(500, 1000, 350, 350)
	if h != 350 || w != 175 {
		t.Errorf("expected 175x350, got %dx%d", w, h)
	}
}

func TestGenerateStaticDerivativeResizesAndEncodes(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.png")
	writeTestPNG(t, srcPath, 1000, 500)

	dstPath := filepath.Join(dir, "dst.png")
	if err := generateStaticDerivative(srcPath, dstPath, "png", postImageSize, postImageSize); err != nil {
		t.Fatal(err)
	}

	got, err := decodeImage(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	bounds := got.Bounds()
	if bounds.Dx() != postImageSize || bounds.Dy() != postImageSize/2 {
		t.Errorf("expected %dx%d, got %dx%d", postImageSize, postImageSize/2, bounds.Dx(), bounds.Dy())
	}
}

func TestGenerateStaticDerivativeAsJPEGForUnsupportedExt(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.png")
	writeTestPNG(t, srcPath, 100, 100)

	dstPath := filepath.Join(dir, "dst.jpg")
	if err := generateStaticDerivative(srcPath, dstPath, "jpg", postImageSize, postImageSize); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dstPath); err != nil {
		t.Errorf("expected jpeg written: %v", err)
	}
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 255), uint8(y % 255), 128, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}
