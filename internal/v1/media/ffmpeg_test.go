package media

import (
	"context"
	"testing"
)

func TestScaleFilterBuildsExpectedExpression(t *testing.T) {
	got := scaleFilter(350, 350, "yuv420p")
	want := `scale=min(350\,iw):min(350\,ih):force_original_aspect_ratio=decrease,format=yuv420p`
	if got != want {
		t.Errorf("scaleFilter = %q, want %q", got, want)
	}
}

func TestRunFFmpegSucceedsWithWorkingBinary(t *testing.T) {
	p := New(Paths{}, "/usr/bin/true")
	if err := p.runFFmpeg(context.Background()); err != nil {
		t.Errorf("expected success invoking a trivially-successful binary, got %v", err)
	}
}

func TestRunFFmpegReturnsErrorOnFailingBinary(t *testing.T) {
	p := New(Paths{}, "/usr/bin/false")
	if err := p.runFFmpeg(context.Background()); err == nil {
		t.Error("expected error from a failing binary")
	}
}

func TestRunFFmpegReturnsErrorOnMissingBinary(t *testing.T) {
	p := New(Paths{}, "/nonexistent/ffmpeg-binary")
	if err := p.runFFmpeg(context.Background()); err == nil {
		t.Error("expected error for missing binary")
	}
}
