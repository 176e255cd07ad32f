package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRegeneratePostDerivativesRebuildsFromOriginal(t *testing.T) {
	p, paths := newTestProcessor(t)
	srcDir := t.TempDir()
	tempPath := writeUpload(t, srcDir, "upload.png", 700, 350)

	hash, ext, tnExt, err := p.IngestPostImage(context.Background(), tempPath, "upload.png")
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(paths.PublicImage, hash+"."+ext)); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(paths.PublicThumbnail, hash+"."+tnExt)); err != nil {
		t.Fatal(err)
	}

	newExt, newTnExt, err := p.RegeneratePostDerivatives(context.Background(), hash, ext)
	if err != nil {
		t.Fatal(err)
	}
	if newExt != ext || newTnExt != tnExt {
		t.Errorf("expected stable extensions %q/%q, got %q/%q", ext, tnExt, newExt, newTnExt)
	}
	if _, err := os.Stat(filepath.Join(paths.PublicImage, hash+"."+newExt)); err != nil {
		t.Errorf("expected regenerated public image: %v", err)
	}
	if _, err := os.Stat(filepath.Join(paths.PublicThumbnail, hash+"."+newTnExt)); err != nil {
		t.Errorf("expected regenerated thumbnail: %v", err)
	}
}

func TestRegenerateEmoteDerivativeRebuildsFromOriginal(t *testing.T) {
	p, paths := newTestProcessor(t)
	srcDir := t.TempDir()
	tempPath := writeUpload(t, srcDir, "emote.png", 64, 64)

	hash, ext, err := p.IngestEmoteImage(context.Background(), tempPath, "emote.png")
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(paths.PublicEmote, hash+"."+ext)); err != nil {
		t.Fatal(err)
	}

	newExt, err := p.RegenerateEmoteDerivative(context.Background(), hash, ext)
	if err != nil {
		t.Fatal(err)
	}
	if newExt != ext {
		t.Errorf("expected stable extension %q, got %q", ext, newExt)
	}
	if _, err := os.Stat(filepath.Join(paths.PublicEmote, hash+"."+newExt)); err != nil {
		t.Errorf("expected regenerated public emote: %v", err)
	}
}
