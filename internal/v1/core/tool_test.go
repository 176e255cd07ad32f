package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessImageDropboxIngestsAndRecords(t *testing.T) {
	c, st := newTestCore(t)
	dropped := filepath.Join(c.Paths.ProcessImage, "upload.png")
	require.NoError(t, os.WriteFile(dropped, []byte("fake"), 0o644))

	require.NoError(t, c.ProcessImageDropbox(context.Background()))

	require.Len(t, st.updatedPostImages, 1)
	assert.Equal(t, updatedPostImage{"deadbeef", "png", "png"}, st.updatedPostImages[0])
	_, err := os.Stat(dropped)
	assert.True(t, os.IsNotExist(err), "dropbox file should have been moved into originals")
}

func TestProcessEmoteDropboxIngestsAndRecords(t *testing.T) {
	c, st := newTestCore(t)
	dropped := filepath.Join(c.Paths.ProcessEmote, "emote.gif")
	require.NoError(t, os.WriteFile(dropped, []byte("fake"), 0o644))

	require.NoError(t, c.ProcessEmoteDropbox(context.Background()))

	require.Len(t, st.updatedEmoteImages, 1)
	assert.Equal(t, updatedEmoteImage{"cafef00d", "gif"}, st.updatedEmoteImages[0])
}

func TestProcessDropboxSkipsFailuresWithoutAborting(t *testing.T) {
	c, st := newTestCore(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.Paths.ProcessImage, "a.png"), []byte("fake"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(c.Paths.ProcessImage, "b.png"), []byte("fake"), 0o644))

	require.NoError(t, c.ProcessImageDropbox(context.Background()))
	assert.Len(t, st.updatedPostImages, 2)
}

func TestRegeneratePostImagesWalksOriginals(t *testing.T) {
	c, st := newTestCore(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.Paths.OriginalImage, "deadbeef.png"), []byte("fake"), 0o644))

	require.NoError(t, c.RegeneratePostImages(context.Background()))

	require.Len(t, st.updatedPostImages, 1)
	assert.Equal(t, updatedPostImage{"deadbeef", "png", "png"}, st.updatedPostImages[0])
}

func TestRegenerateEmoteImagesWalksOriginals(t *testing.T) {
	c, st := newTestCore(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.Paths.OriginalEmote, "cafef00d.gif"), []byte("fake"), 0o644))

	require.NoError(t, c.RegenerateEmoteImages(context.Background()))

	require.Len(t, st.updatedEmoteImages, 1)
	assert.Equal(t, updatedEmoteImage{"cafef00d", "gif"}, st.updatedEmoteImages[0])
}

func TestRegenerateSkipsFilenamesWithoutExtension(t *testing.T) {
	c, st := newTestCore(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.Paths.OriginalImage, "noext"), []byte("fake"), 0o644))

	require.NoError(t, c.RegeneratePostImages(context.Background()))
	assert.Empty(t, st.updatedPostImages)
}
