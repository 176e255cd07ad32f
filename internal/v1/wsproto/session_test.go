package wsproto

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aria-chat/backend/go/internal/v1/auth"
	"github.com/aria-chat/backend/go/internal/v1/bus"
	"github.com/aria-chat/backend/go/internal/v1/lobby"
	"github.com/aria-chat/backend/go/internal/v1/model"
	"github.com/aria-chat/backend/go/internal/v1/room"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

// fakeStore backs every room a test session joins.
type fakeStore struct {
	store.Store
	rooms map[string]*store.Room
}

func newFakeStore(names ...string) *fakeStore {
	rooms := make(map[string]*store.Room)
	for i, n := range names {
		rooms[n] = &store.Room{ID: int64(i + 1), Name: n}
	}
	return &fakeStore{rooms: rooms}
}

func (f *fakeStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	if r, ok := f.rooms[name]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetEmotes(ctx context.Context, roomID int64) ([]store.Emote, error) {
	return nil, nil
}

func (f *fakeStore) GetRecentPosts(ctx context.Context, roomID int64, count int) ([]store.PostAndImage, error) {
	return nil, nil
}

func (f *fakeStore) SetRoomPlaybackState(ctx context.Context, roomID int64, playbackState string) error {
	return nil
}

// fakeConn is a wsConnection double: ReadMessage replays a canned sequence
// of frames, then blocks until Close is called, mirroring a real socket
// that only errors out of a read once the peer disconnects.
type fakeConn struct {
	reads   [][]byte
	idx     int
	closeCh chan struct{}
	once    sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn(frames ...string) *fakeConn {
	reads := make([][]byte, len(frames))
	for i, s := range frames {
		reads[i] = []byte(s)
	}
	return &fakeConn{reads: reads, closeCh: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	if f.idx < len(f.reads) {
		m := f.reads[f.idx]
		f.idx++
		return websocket.TextMessage, m, nil
	}
	<-f.closeCh
	return 0, nil, errors.New("connection closed")
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.TextMessage {
		f.mu.Lock()
		f.writes = append(f.writes, append([]byte(nil), data...))
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error       { return nil }
func (f *fakeConn) SetReadDeadline(time.Time) error        { return nil }
func (f *fakeConn) SetReadLimit(int64)                     {}
func (f *fakeConn) SetPongHandler(func(string) error)      {}
func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closeCh) })
	return nil
}

func (f *fakeConn) writtenFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDispatchPingRepliesPong(t *testing.T) {
	s := newSession(1, newFakeConn(), nil, auth.NewService(testSecret))

	err := s.dispatch(context.Background(), frame{tag: "ping", data: `"hello"`})
	require.NoError(t, err)

	msg := <-s.send
	assert.Equal(t, "pong", msg.Tag)
	assert.Equal(t, rawPayload(`"hello"`), msg.Payload)
}

func TestDispatchUnknownTagIsIgnored(t *testing.T) {
	s := newSession(1, newFakeConn(), nil, auth.NewService(testSecret))

	err := s.dispatch(context.Background(), frame{tag: "wat", data: ""})
	assert.NoError(t, err)
}

func TestDispatchLeaveWithoutMembershipIsNoop(t *testing.T) {
	s := newSession(1, newFakeConn(), nil, auth.NewService(testSecret))

	err := s.dispatch(context.Background(), frame{tag: "leave", data: ""})
	assert.NoError(t, err)
}

func TestDispatchSetMasterWithoutMembershipIsNoop(t *testing.T) {
	s := newSession(1, newFakeConn(), nil, auth.NewService(testSecret))

	err := s.dispatch(context.Background(), frame{tag: "set-master", data: ""})
	assert.NoError(t, err)
}

func newTestLobby(t *testing.T, roomNames ...string) *lobby.Lobby {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return lobby.New(ctx, newFakeStore(roomNames...), bus.New())
}

func TestHandleJoinVerifiesUserTokenAndJoins(t *testing.T) {
	authSvc := auth.NewService(testSecret)
	l := newTestLobby(t, "alpha")
	s := newSession(1, newFakeConn(), l, authSvc)

	userToken, err := authSvc.GenerateUserToken(42)
	require.NoError(t, err)

	payload, err := json.Marshal(joinRequest{Room: "alpha", User: userToken})
	require.NoError(t, err)

	err = s.dispatch(context.Background(), frame{tag: "join", data: string(payload)})
	require.NoError(t, err)
	require.NotNil(t, s.membership)
	assert.Equal(t, "alpha", s.membership.Room.Name)

	// three confirmation messages queued on join: content, playbackstate, joined
	for i := 0; i < 3; i++ {
		<-s.send
	}
}

func TestHandleJoinRejectsInvalidUserToken(t *testing.T) {
	authSvc := auth.NewService(testSecret)
	l := newTestLobby(t, "alpha")
	s := newSession(1, newFakeConn(), l, authSvc)

	payload, err := json.Marshal(joinRequest{Room: "alpha", User: "not-a-jwt"})
	require.NoError(t, err)

	err = s.dispatch(context.Background(), frame{tag: "join", data: string(payload)})
	require.Error(t, err)
	assert.Nil(t, s.membership)
}

func TestHandleJoinSameRoomTwiceIsNoop(t *testing.T) {
	authSvc := auth.NewService(testSecret)
	l := newTestLobby(t, "alpha")
	s := newSession(1, newFakeConn(), l, authSvc)

	userToken, err := authSvc.GenerateUserToken(42)
	require.NoError(t, err)
	payload, _ := json.Marshal(joinRequest{Room: "alpha", User: userToken})

	require.NoError(t, s.dispatch(context.Background(), frame{tag: "join", data: string(payload)}))
	for i := 0; i < 3; i++ {
		<-s.send
	}
	first := s.membership.Room

	require.NoError(t, s.dispatch(context.Background(), frame{tag: "join", data: string(payload)}))
	assert.Same(t, first, s.membership.Room)
	select {
	case <-s.send:
		t.Fatal("expected no new join confirmation messages for a same-room rejoin")
	default:
	}
}

func TestAuthGrantsAdminThenSetMasterSucceeds(t *testing.T) {
	authSvc := auth.NewService(testSecret)
	l := newTestLobby(t, "alpha")
	s := newSession(1, newFakeConn(), l, authSvc)

	userToken, err := authSvc.GenerateUserToken(42)
	require.NoError(t, err)
	payload, _ := json.Marshal(joinRequest{Room: "alpha", User: userToken})
	require.NoError(t, s.dispatch(context.Background(), frame{tag: "join", data: string(payload)}))
	for i := 0; i < 3; i++ {
		<-s.send
	}

	// without auth, set-master is denied (not an admin).
	err = s.dispatch(context.Background(), frame{tag: "set-master", data: ""})
	assert.Error(t, err)

	roomToken, _, err := authSvc.GenerateRoomToken(s.membership.Room.ID)
	require.NoError(t, err)
	authPayload, _ := json.Marshal(roomToken)
	require.NoError(t, s.dispatch(context.Background(), frame{tag: "auth", data: string(authPayload)}))

	require.NoError(t, s.dispatch(context.Background(), frame{tag: "set-master", data: ""}))

	ps := model.PlaybackState{Time: 10, Rate: 1, IsPlaying: true}
	psPayload, _ := json.Marshal(ps)
	require.NoError(t, s.dispatch(context.Background(), frame{tag: "master-playbackstate", data: string(psPayload)}))

	msg := <-s.send
	assert.Equal(t, "playbackstate", msg.Tag)
}

func TestHandleAuthWithWrongRoomTokenDoesNotGrantAdmin(t *testing.T) {
	authSvc := auth.NewService(testSecret)
	l := newTestLobby(t, "alpha", "beta")
	s := newSession(1, newFakeConn(), l, authSvc)

	userToken, err := authSvc.GenerateUserToken(42)
	require.NoError(t, err)
	payload, _ := json.Marshal(joinRequest{Room: "alpha", User: userToken})
	require.NoError(t, s.dispatch(context.Background(), frame{tag: "join", data: string(payload)}))
	for i := 0; i < 3; i++ {
		<-s.send
	}

	otherRoomID := s.membership.Room.ID + 1
	wrongToken, _, err := authSvc.GenerateRoomToken(otherRoomID)
	require.NoError(t, err)
	authPayload, _ := json.Marshal(wrongToken)
	require.NoError(t, s.dispatch(context.Background(), frame{tag: "auth", data: string(authPayload)}))

	err = s.dispatch(context.Background(), frame{tag: "set-master", data: ""})
	assert.Error(t, err, "an admin grant for a different room must not authorize this one")
}

func TestSessionRunClosesAndLeavesRoomOnDisconnect(t *testing.T) {
	authSvc := auth.NewService(testSecret)
	l := newTestLobby(t, "alpha")
	conn := newFakeConn()
	s := newSession(1, conn, l, authSvc)

	userToken, err := authSvc.GenerateUserToken(42)
	require.NoError(t, err)
	payload, _ := json.Marshal(joinRequest{Room: "alpha", User: userToken})

	// Feed the join frame directly into the fake connection's read queue,
	// then drive run() on a goroutine and close the connection to unblock it.
	conn.reads = append(conn.reads, []byte("join|"+string(payload)))

	runDone := make(chan struct{})
	go func() {
		s.run(context.Background())
		close(runDone)
	}()

	require.Eventually(t, func() bool {
		return s.membership != nil
	}, time.Second, 5*time.Millisecond)

	conn.Close()

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("session.run did not return after connection close")
	}
}
