package media

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestExtOf(t *testing.T) {
	cases := map[string]string{
		"photo.png":     "png",
		"clip.MP4":      "MP4",
		"noext":         "",
		"a.b.tar.gz":    "gz",
		"trailing.dot.": "",
	}
	for name, want := range cases {
		if got := extOf(name); got != want {
			t.Errorf("extOf(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestIdentifyByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	os.WriteFile(path, []byte("irrelevant"), 0o644)

	cases := map[string]Kind{
		"gif":  KindAnimatedImage,
		"webm": KindVideo,
		"mp4":  KindVideo,
		"m4v":  KindVideo,
		"mov":  KindVideo,
	}
	for ext, want := range cases {
		if got := identify(ext, path); got != want {
			t.Errorf("identify(%q) = %v, want %v", ext, got, want)
		}
	}
}

func TestIdentifyFallsBackToSniffingForUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	writeTestPNGBytes(t, path)

	if got := identify("dat", path); got != KindImage {
		t.Errorf("identify fallback = %v, want KindImage", got)
	}
}

func TestStaticImageExt(t *testing.T) {
	cases := map[string]string{
		"png":  "png",
		"gif":  "gif",
		"jpg":  "jpg",
		"jpeg": "jpg",
		"bmp":  "jpg",
		"webp": "jpg",
	}
	for in, want := range cases {
		if got := staticImageExt(in); got != want {
			t.Errorf("staticImageExt(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsAnimatedWebPRejectsNonWebP(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.webp")
	os.WriteFile(path, []byte("not a webp file at all"), 0o644)
	if isAnimatedWebP(path) {
		t.Error("expected false for non-webp content")
	}
}

func TestIsAnimatedWebPDetectsANIMChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.webp")
	buf := make([]byte, 40)
	copy(buf[0:4], "RIFF")
	copy(buf[8:16], "WEBPVP8X")
	copy(buf[20:24], "ANIM")
	os.WriteFile(path, buf, 0o644)
	if !isAnimatedWebP(path) {
		t.Error("expected true when ANIM chunk present")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindImage:         "image",
		KindAnimatedImage: "animated_image",
		KindVideo:         "video",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func writeTestPNGBytes(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}
