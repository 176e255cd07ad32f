package room

import (
	"context"
	"time"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/logging"
	"github.com/aria-chat/backend/go/internal/v1/metrics"
	"github.com/aria-chat/backend/go/internal/v1/model"
	"github.com/aria-chat/backend/go/internal/v1/store"
	"go.uber.org/zap"
)

// unloadCheckInterval is how often the actor checks whether a deserted room
// has sat idle past its unload deadline.
const unloadCheckInterval = 15 * time.Minute

// idleUnloadAfter is how long a deserted room is kept warm before the actor
// asks the lobby to tear it down.
const idleUnloadAfter = time.Hour

// Unloader is the lobby-side callback the actor invokes when it decides to
// self-unload; the lobby removes the room from both its indices.
type Unloader interface {
	UnloadRoom(ctx context.Context, roomID int64)
}

// Handle is the externally visible reference to a live room actor: a
// request channel plus the room's identity. All methods send a typed
// request and block for its one-shot reply.
type Handle struct {
	ID   int64
	Name string

	reqCh chan roomRequest
}

// Load fetches a room's persisted state from store and spawns its actor
// goroutine. Returns (nil, nil) if no room exists with that name — the
// lobby treats that as "room does not exist", not an error.
func Load(ctx context.Context, st store.Store, unloader Unloader, name string) (*Handle, error) {
	logging.Info(ctx, "loading room", zap.String("room_name", name))

	r, err := st.GetRoomByName(ctx, name)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindStoreError, "load room", err)
	}

	emotes, err := st.GetEmotes(ctx, r.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "load room emotes", err)
	}
	postRows, err := st.GetRecentPosts(ctx, r.ID, maxPosts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "load room posts", err)
	}

	content, ps, psAt := decodeRoomMedia(r)

	posts := make([]Post, 0, len(postRows))
	for _, row := range postRows {
		posts = append(posts, fromStorePost(row))
	}
	roomEmotes := make([]Emote, 0, len(emotes))
	for _, e := range emotes {
		roomEmotes = append(roomEmotes, Emote{ID: e.ID, Name: e.Name, Hash: e.Hash, Ext: e.Ext})
	}

	h := &Handle{
		ID:    r.ID,
		Name:  r.Name,
		reqCh: make(chan roomRequest, 64),
	}

	st2 := newState(r.ID, r.Name, content, ps, psAt, posts, roomEmotes)
	go run(ctx, st2, h.reqCh, st, unloader)

	metrics.ActiveRooms.Inc()

	return h, nil
}

// run is the actor's single goroutine: every mutation to st happens here,
// and only here. Three independent arms share the select: incoming
// requests, the idle-unload ticker, and the content-end timer, which fires
// when the currently playing content's known duration elapses and resets
// playback to its defaults.
func run(ctx context.Context, st *state, reqCh chan roomRequest, persist store.Store, unloader Unloader) {
	defer metrics.ActiveRooms.Dec()

	var unloadAt time.Time
	ticker := time.NewTicker(unloadCheckInterval)
	defer ticker.Stop()

	contentTimer := time.NewTimer(time.Hour)
	if !contentTimer.Stop() {
		<-contentTimer.C
	}
	defer contentTimer.Stop()
	resetContentTimer(st, contentTimer)

	for {
		select {
		case req := <-reqCh:
			unloadAt = handleRequest(ctx, st, req, persist, unloadAt)
			resetContentTimer(st, contentTimer)

		case <-contentTimer.C:
			if remaining := st.getContentDurationRemaining(); remaining == nil || *remaining <= 0 {
				applyPlaybackState(ctx, st, persist, 0, model.DefaultPlaybackState())
			}
			resetContentTimer(st, contentTimer)

		case <-ticker.C:
			if !unloadAt.IsZero() && time.Now().After(unloadAt) {
				logging.Info(ctx, "unloading idle room", zap.Int64("room_id", st.id))
				unloader.UnloadRoom(ctx, st.id)
				return
			}

		case <-ctx.Done():
			logging.Info(ctx, "room actor shutting down", zap.Int64("room_id", st.id))
			return
		}
	}
}

// resetContentTimer reschedules t to fire when content's known duration
// elapses at the current playback rate, or leaves it stopped if duration is
// unknown or playback isn't advancing.
func resetContentTimer(st *state, t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	remaining := st.getContentDurationRemaining()
	if remaining == nil || *remaining <= 0 {
		return
	}
	t.Reset(time.Duration(*remaining * float64(time.Second)))
}

func handleRequest(ctx context.Context, st *state, req roomRequest, persist store.Store, unloadAt time.Time) time.Time {
	switch r := req.(type) {
	case *joinReq:
		st.join(ctx, r.id, r.userID, r.send)
		r.reply.send(joinResult{}, nil)
		return time.Time{}

	case *leaveReq:
		st.leave(r.id)
		r.reply.send(struct{}{}, nil)
		if st.isDeserted() {
			return time.Now().Add(idleUnloadAfter)
		}
		return unloadAt

	case *sendEmotesReq:
		r.reply.send(struct{}{}, st.sendEmotes(ctx, r.id, r.sinceID))
		return unloadAt

	case *sendRecentPostsReq:
		r.reply.send(struct{}{}, st.sendRecentPosts(ctx, r.id, r.sinceID))
		return unloadAt

	case *postReq:
		st.post(ctx, r.post)
		r.reply.send(struct{}{}, nil)
		return unloadAt

	case *deletePostReq:
		st.deletePost(ctx, r.postID)
		r.reply.send(struct{}{}, nil)
		return unloadAt

	case *setContentReq:
		st.setContent(ctx, r.content)
		r.reply.send(struct{}{}, nil)
		return unloadAt

	case *setAdminReq:
		r.reply.send(struct{}{}, st.setAdmin(r.id))
		return unloadAt

	case *setMasterReq:
		r.reply.send(struct{}{}, st.setMaster(ctx, r.id))
		return unloadAt

	case *relinquishMasterReq:
		st.relinquishMaster(r.id)
		r.reply.send(struct{}{}, nil)
		return unloadAt

	case *setPlaybackStateReq:
		applyPlaybackState(ctx, st, persist, r.id, r.state)
		r.reply.send(struct{}{}, nil)
		return unloadAt

	case *emoteReq:
		st.addEmote(ctx, r.emote)
		r.reply.send(struct{}{}, nil)
		return unloadAt

	case *deleteEmoteReq:
		st.deleteEmote(ctx, r.emoteID)
		r.reply.send(struct{}{}, nil)
		return unloadAt
	}
	return unloadAt
}

// applyPlaybackState mutates playback state on behalf of either a member
// request or the actor's own content-end timer (id==0), persisting the
// result when it actually changed.
func applyPlaybackState(ctx context.Context, st *state, persist store.Store, id ConnectionID, ps model.PlaybackState) {
	pbsTs := st.setPlaybackState(ctx, id, ps)
	if pbsTs != nil {
		if err := persist.SetRoomPlaybackState(ctx, st.id, encodePlaybackState(*pbsTs)); err != nil {
			logging.Error(ctx, "persist playback state", zap.Error(err), zap.Int64("room_id", st.id))
		}
	}
}

// Join inserts a member and sends it content, projected playback state,
// then joined.
func (h *Handle) Join(id ConnectionID, userID int64, send Sink) error {
	reply := newReply[joinResult]()
	h.reqCh <- &joinReq{id: id, userID: userID, send: send, reply: reply}
	_, err := await(reply)
	return err
}

// Leave removes a member; the actor itself decides whether this deserts
// the room and schedules self-unload.
func (h *Handle) Leave(id ConnectionID) error {
	reply := newReply[struct{}]()
	h.reqCh <- &leaveReq{id: id, reply: reply}
	_, err := await(reply)
	return err
}

// SendEmotes delivers emotes newer than sinceID to one member.
func (h *Handle) SendEmotes(id ConnectionID, sinceID int64) error {
	reply := newReply[struct{}]()
	h.reqCh <- &sendEmotesReq{id: id, sinceID: sinceID, reply: reply}
	_, err := await(reply)
	return err
}

// SendRecentPosts delivers posts newer than sinceID to one member.
func (h *Handle) SendRecentPosts(id ConnectionID, sinceID int64) error {
	reply := newReply[struct{}]()
	h.reqCh <- &sendRecentPostsReq{id: id, sinceID: sinceID, reply: reply}
	_, err := await(reply)
	return err
}

// Post appends a post and fans it out to every member.
func (h *Handle) Post(p Post) error {
	reply := newReply[struct{}]()
	h.reqCh <- &postReq{post: p, reply: reply}
	_, err := await(reply)
	return err
}

// DeletePost removes a post by id and broadcasts the removal.
func (h *Handle) DeletePost(postID int64) error {
	reply := newReply[struct{}]()
	h.reqCh <- &deletePostReq{postID: postID, reply: reply}
	_, err := await(reply)
	return err
}

// SetContent replaces the room's content and resets playback time.
func (h *Handle) SetContent(content model.Content) error {
	reply := newReply[struct{}]()
	h.reqCh <- &setContentReq{content: content, reply: reply}
	_, err := await(reply)
	return err
}

// SetAdmin marks id's member as admin; the caller must have already
// verified the room-scoped access token upstream.
func (h *Handle) SetAdmin(id ConnectionID) error {
	reply := newReply[struct{}]()
	h.reqCh <- &setAdminReq{id: id, reply: reply}
	_, err := await(reply)
	return err
}

// SetMaster elects id as master, failing if it is not an admin member.
func (h *Handle) SetMaster(id ConnectionID) error {
	reply := newReply[struct{}]()
	h.reqCh <- &setMasterReq{id: id, reply: reply}
	_, err := await(reply)
	return err
}

// RelinquishMaster clears mastership if id currently holds it.
func (h *Handle) RelinquishMaster(id ConnectionID) error {
	reply := newReply[struct{}]()
	h.reqCh <- &relinquishMasterReq{id: id, reply: reply}
	_, err := await(reply)
	return err
}

// SetPlaybackState applies a new playback state if id has master
// authority (or is the internal timer, id==0), persists it, and
// broadcasts the projection.
func (h *Handle) SetPlaybackState(id ConnectionID, ps model.PlaybackState) error {
	reply := newReply[struct{}]()
	h.reqCh <- &setPlaybackStateReq{id: id, state: ps, reply: reply}
	_, err := await(reply)
	return err
}

// Emote adds or replaces a named emote and broadcasts it.
func (h *Handle) Emote(e Emote) error {
	reply := newReply[struct{}]()
	h.reqCh <- &emoteReq{emote: e, reply: reply}
	_, err := await(reply)
	return err
}

// DeleteEmote removes an emote by id and broadcasts its name.
func (h *Handle) DeleteEmote(emoteID int64) error {
	reply := newReply[struct{}]()
	h.reqCh <- &deleteEmoteReq{emoteID: emoteID, reply: reply}
	_, err := await(reply)
	return err
}
