package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aria-chat/backend/go/internal/v1/auth"
	"github.com/aria-chat/backend/go/internal/v1/bus"
	"github.com/aria-chat/backend/go/internal/v1/config"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

// fakeStore is an in-memory double covering every method Core calls.
type fakeStore struct {
	store.Store

	rooms      map[int64]*store.Room
	roomsByName map[string]*store.Room
	nextRoomID int64

	posts      map[int64]store.PostAndImage
	nextPostID int64

	emotes      map[int64]store.Emote
	nextEmoteID int64

	nextUserID int64

	refreshTokens map[string]string // token -> claims blob

	updatedPostImages  []updatedPostImage
	updatedEmoteImages []updatedEmoteImage
}

type updatedPostImage struct{ hash, ext, tnExt string }
type updatedEmoteImage struct{ hash, ext string }

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:         make(map[int64]*store.Room),
		roomsByName:   make(map[string]*store.Room),
		posts:         make(map[int64]store.PostAndImage),
		emotes:        make(map[int64]store.Emote),
		refreshTokens: make(map[string]string),
	}
}

func (f *fakeStore) GetRoomByID(ctx context.Context, roomID int64) (*store.Room, error) {
	if r, ok := f.rooms[roomID]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	if r, ok := f.roomsByName[name]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CreateRoom(ctx context.Context, name, password string) (*store.Room, error) {
	f.nextRoomID++
	r := &store.Room{ID: f.nextRoomID, Name: name, Password: password}
	f.rooms[r.ID] = r
	f.roomsByName[name] = r
	return r, nil
}

func (f *fakeStore) GetRecentPosts(ctx context.Context, roomID int64, count int) ([]store.PostAndImage, error) {
	var out []store.PostAndImage
	for _, p := range f.posts {
		if p.Post.RoomID == roomID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePost(ctx context.Context, roomID int64, post *store.NewPost, image *store.NewImage) (*store.PostAndImage, error) {
	f.nextPostID++
	row := store.PostAndImage{
		Post: store.Post{
			ID:      f.nextPostID,
			RoomID:  roomID,
			Name:    post.Name,
			Comment: post.Comment,
			IP:      post.IP,
			UserID:  post.UserID,
			Admin:   post.Admin,
		},
	}
	if image != nil {
		row.Image = &store.Image{
			PostID:   row.Post.ID,
			Filename: image.Filename,
			Hash:     image.Hash,
			Ext:      image.Ext,
			TnExt:    image.TnExt,
		}
	}
	f.posts[row.Post.ID] = row
	return &row, nil
}

func (f *fakeStore) DeletePost(ctx context.Context, roomID, postID, userID int64, isAdmin bool) (bool, error) {
	row, ok := f.posts[postID]
	if !ok || row.Post.RoomID != roomID {
		return false, nil
	}
	if row.Post.UserID != userID && !isAdmin {
		return false, nil
	}
	delete(f.posts, postID)
	return true, nil
}

func (f *fakeStore) GetEmotes(ctx context.Context, roomID int64) ([]store.Emote, error) {
	var out []store.Emote
	for _, e := range f.emotes {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateEmote(ctx context.Context, roomID int64, emote *store.NewEmote) (*store.Emote, error) {
	f.nextEmoteID++
	e := store.Emote{ID: f.nextEmoteID, RoomID: roomID, Name: emote.Name, Hash: emote.Hash, Ext: emote.Ext}
	f.emotes[e.ID] = e
	return &e, nil
}

func (f *fakeStore) DeleteEmote(ctx context.Context, roomID, emoteID int64) (bool, error) {
	e, ok := f.emotes[emoteID]
	if !ok || e.RoomID != roomID {
		return false, nil
	}
	delete(f.emotes, emoteID)
	return true, nil
}

func (f *fakeStore) SetRoomContent(ctx context.Context, roomID int64, content string) error {
	if r, ok := f.rooms[roomID]; ok {
		r.Content = content
	}
	return nil
}

func (f *fakeStore) SetRoomPlaybackState(ctx context.Context, roomID int64, playbackState string) error {
	if r, ok := f.rooms[roomID]; ok {
		r.PlaybackState = playbackState
	}
	return nil
}

func (f *fakeStore) GenerateUserID(ctx context.Context) (int64, error) {
	f.nextUserID++
	return f.nextUserID, nil
}

func (f *fakeStore) CreateRefreshToken(ctx context.Context, claims string) (string, error) {
	token := fmt.Sprintf("token-%d", len(f.refreshTokens)+1)
	f.refreshTokens[token] = claims
	return token, nil
}

func (f *fakeStore) RefreshRefreshToken(ctx context.Context, token string) (*store.RefreshResult, error) {
	claims, ok := f.refreshTokens[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(f.refreshTokens, token)
	newToken := token + "-next"
	f.refreshTokens[newToken] = claims
	return &store.RefreshResult{Token: newToken, Claims: claims}, nil
}

func (f *fakeStore) UpdatePostImages(ctx context.Context, hash, ext, tnExt string) error {
	f.updatedPostImages = append(f.updatedPostImages, updatedPostImage{hash, ext, tnExt})
	return nil
}

func (f *fakeStore) UpdateEmoteImages(ctx context.Context, hash, ext string) error {
	f.updatedEmoteImages = append(f.updatedEmoteImages, updatedEmoteImage{hash, ext})
	return nil
}

// fakeMedia is a MediaProcessor double returning deterministic hashes.
type fakeMedia struct{}

func (fakeMedia) IngestPostImage(ctx context.Context, tempPath, filename string) (string, string, string, error) {
	return "deadbeef", "png", "png", nil
}

func (fakeMedia) IngestEmoteImage(ctx context.Context, tempPath, filename string) (string, string, error) {
	return "cafef00d", "gif", nil
}

func (fakeMedia) RegeneratePostDerivatives(ctx context.Context, hash, ext string) (string, string, error) {
	return ext, ext, nil
}

func (fakeMedia) RegenerateEmoteDerivative(ctx context.Context, hash, ext string) (string, error) {
	return ext, nil
}

func newTestCore(t *testing.T) (*Core, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	cfg := &config.Config{FilesRoot: t.TempDir()}
	c, err := New(cfg, st, bus.New(), fakeMedia{}, auth.NewService("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return c, st
}

func TestNewCreatesFilesystemLayout(t *testing.T) {
	c, _ := newTestCore(t)

	for _, d := range []string{
		c.Paths.Temp,
		c.Paths.ProcessImage, c.Paths.ProcessEmote,
		c.Paths.OriginalImage, c.Paths.OriginalEmote,
		c.Paths.PublicImage, c.Paths.PublicThumbnail, c.Paths.PublicEmote,
	} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestPathsAreRootedUnderFilesRoot(t *testing.T) {
	c, _ := newTestCore(t)
	assert.Equal(t, filepath.Join(c.Paths.Root, "temp"), c.Paths.Temp)
	assert.Equal(t, filepath.Join(c.Paths.Root, "public", "i"), c.Paths.PublicImage)
}
