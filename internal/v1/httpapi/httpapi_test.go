package httpapi

import (
	"context"
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aria-chat/backend/go/internal/v1/auth"
	"github.com/aria-chat/backend/go/internal/v1/bus"
	"github.com/aria-chat/backend/go/internal/v1/config"
	"github.com/aria-chat/backend/go/internal/v1/core"
	"github.com/aria-chat/backend/go/internal/v1/ratelimit"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

// fakeStore is a minimal in-memory store.Store double, enough to exercise
// every handler without an embedded database.
type fakeStore struct {
	store.Store

	rooms     map[int64]*store.Room
	roomsByNm map[string]int64
	nextRoom  int64

	posts    map[int64]map[int64]*store.PostAndImage
	nextPost int64

	emotes    map[int64]map[int64]*store.Emote
	nextEmote int64

	nextUser int64

	refreshTokens map[string]string
	nextToken     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:         make(map[int64]*store.Room),
		roomsByNm:     make(map[string]int64),
		posts:         make(map[int64]map[int64]*store.PostAndImage),
		emotes:        make(map[int64]map[int64]*store.Emote),
		refreshTokens: make(map[string]string),
	}
}

func (f *fakeStore) GetRoomByID(ctx context.Context, roomID int64) (*store.Room, error) {
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	id, ok := f.roomsByNm[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return f.rooms[id], nil
}

func (f *fakeStore) CreateRoom(ctx context.Context, name, password string) (*store.Room, error) {
	f.nextRoom++
	r := &store.Room{ID: f.nextRoom, Name: name, Password: password}
	f.rooms[r.ID] = r
	f.roomsByNm[name] = r.ID
	f.posts[r.ID] = make(map[int64]*store.PostAndImage)
	f.emotes[r.ID] = make(map[int64]*store.Emote)
	return r, nil
}

func (f *fakeStore) GetRecentPosts(ctx context.Context, roomID int64, count int) ([]store.PostAndImage, error) {
	var out []store.PostAndImage
	for _, p := range f.posts[roomID] {
		if !p.Post.IsDeleted {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePost(ctx context.Context, roomID int64, post *store.NewPost, image *store.NewImage) (*store.PostAndImage, error) {
	f.nextPost++
	row := &store.PostAndImage{Post: store.Post{
		ID: f.nextPost, RoomID: roomID, Name: post.Name, Comment: post.Comment,
		IP: post.IP, UserID: post.UserID, Admin: post.Admin,
	}}
	if image != nil {
		row.Image = &store.Image{Filename: image.Filename, Hash: image.Hash, Ext: image.Ext, TnExt: image.TnExt}
	}
	if f.posts[roomID] == nil {
		f.posts[roomID] = make(map[int64]*store.PostAndImage)
	}
	f.posts[roomID][row.Post.ID] = row
	return row, nil
}

func (f *fakeStore) DeletePost(ctx context.Context, roomID, postID, userID int64, isAdmin bool) (bool, error) {
	p, ok := f.posts[roomID][postID]
	if !ok || p.Post.IsDeleted {
		return false, nil
	}
	if p.Post.UserID != userID && !isAdmin {
		return false, nil
	}
	p.Post.IsDeleted = true
	return true, nil
}

func (f *fakeStore) GetEmotes(ctx context.Context, roomID int64) ([]store.Emote, error) {
	var out []store.Emote
	for _, e := range f.emotes[roomID] {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeStore) CreateEmote(ctx context.Context, roomID int64, emote *store.NewEmote) (*store.Emote, error) {
	f.nextEmote++
	e := &store.Emote{ID: f.nextEmote, RoomID: roomID, Name: emote.Name, Hash: emote.Hash, Ext: emote.Ext}
	if f.emotes[roomID] == nil {
		f.emotes[roomID] = make(map[int64]*store.Emote)
	}
	f.emotes[roomID][e.ID] = e
	return e, nil
}

func (f *fakeStore) DeleteEmote(ctx context.Context, roomID, emoteID int64) (bool, error) {
	if _, ok := f.emotes[roomID][emoteID]; !ok {
		return false, nil
	}
	delete(f.emotes[roomID], emoteID)
	return true, nil
}

func (f *fakeStore) SetRoomContent(ctx context.Context, roomID int64, content string) error {
	r, ok := f.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	r.Content = content
	return nil
}

func (f *fakeStore) SetRoomPlaybackState(ctx context.Context, roomID int64, playbackState string) error {
	r, ok := f.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	r.PlaybackState = playbackState
	return nil
}

func (f *fakeStore) GenerateUserID(ctx context.Context) (int64, error) {
	f.nextUser++
	return f.nextUser, nil
}

func (f *fakeStore) CreateRefreshToken(ctx context.Context, claims string) (string, error) {
	f.nextToken++
	token := fmt.Sprintf("token-%d", f.nextToken)
	f.refreshTokens[token] = claims
	return token, nil
}

func (f *fakeStore) RefreshRefreshToken(ctx context.Context, token string) (*store.RefreshResult, error) {
	claims, ok := f.refreshTokens[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(f.refreshTokens, token)
	f.nextToken++
	newToken := fmt.Sprintf("token-%d", f.nextToken)
	f.refreshTokens[newToken] = claims
	return &store.RefreshResult{Token: newToken, Claims: claims}, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

// fakeMedia is a no-op core.MediaProcessor double.
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

// newTestRouter wires a full router over fake store/media dependencies,
// returning it alongside the underlying fakeStore and auth service so
// tests can seed state and mint tokens.
func newTestRouter(t *testing.T) (*gin.Engine, *fakeStore, *auth.Service, *core.Core) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		FilesRoot:          t.TempDir(),
		MaxImageSize:       8 << 20,
		MaxEmoteSize:       4 << 20,
		AllowedOrigins:     "",
		RateLimitLogin:     "1000-H",
		RateLimitRefresh:   "1000-H",
		RateLimitPost:      "1000-H",
		RateLimitEmote:     "1000-H",
		RateLimitClaim:     "1000-H",
		RateLimitWsConnect: "1000-H",
	}

	st := newFakeStore()
	authSvc := auth.NewService("test-secret-at-least-32-bytes-long!!")
	c, err := core.New(cfg, st, bus.New(), fakeMedia{}, authSvc)
	if err != nil {
		t.Fatal(err)
	}
	rl, err := ratelimit.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	r := NewRouter(cfg, c, authSvc, rl, nil)
	return r, st, authSvc, c
}
