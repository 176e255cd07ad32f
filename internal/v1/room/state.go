package room

import (
	"context"
	"time"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/logging"
	"github.com/aria-chat/backend/go/internal/v1/metrics"
	"github.com/aria-chat/backend/go/internal/v1/model"
	"go.uber.org/zap"
)

// maxPosts bounds the in-memory post ring.
const maxPosts = 50

// state is the room actor's private, single-goroutine-owned memory. Every
// method here runs on the actor's loop goroutine only — there is no
// synchronization because there is no concurrent access.
type state struct {
	id   int64
	name string

	members map[ConnectionID]*Member
	posts   []Post
	emotes  []Emote

	master ConnectionID // 0 = none

	content              *model.Content
	playbackState        model.PlaybackState
	playbackStateAt      time.Time
}

func newState(id int64, name string, content *model.Content, ps model.PlaybackState, psAt time.Time, posts []Post, emotes []Emote) *state {
	return &state{
		id:              id,
		name:            name,
		members:         make(map[ConnectionID]*Member),
		posts:           posts,
		emotes:          emotes,
		content:         content,
		playbackState:   ps,
		playbackStateAt: psAt,
	}
}

func (s *state) join(ctx context.Context, id ConnectionID, userID int64, send Sink) {
	s.members[id] = &Member{UserID: userID, IsAdmin: false, Send: send}

	s.send(ctx, send, Message{Tag: "content", Payload: s.content})
	s.send(ctx, send, Message{Tag: "playbackstate", Payload: s.getPlaybackState()})
	s.send(ctx, send, Message{Tag: "joined", Payload: nil})
}

func (s *state) leave(id ConnectionID) {
	delete(s.members, id)
	if s.master == id {
		s.master = 0
	}
}

func (s *state) sendEmotes(ctx context.Context, id ConnectionID, sinceID int64) error {
	m, ok := s.members[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "no member with that connection id")
	}
	out := make([]model.Emote, 0, len(s.emotes))
	for _, e := range s.emotes {
		if e.ID > sinceID {
			out = append(out, toAPIEmote(e))
		}
	}
	s.send(ctx, m.Send, Message{Tag: "emotes", Payload: out})
	return nil
}

func (s *state) sendRecentPosts(ctx context.Context, id ConnectionID, sinceID int64) error {
	m, ok := s.members[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "no member with that connection id")
	}
	out := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if p.ID > sinceID {
			ap := toAPIPost(p)
			ap.You = p.UserID == m.UserID
			out = append(out, ap)
		}
	}
	s.send(ctx, m.Send, Message{Tag: "oldposts", Payload: out})
	return nil
}

// post appends a post, evicting the oldest if the ring is full, then fans
// it out to every member with You set per-recipient.
func (s *state) post(ctx context.Context, p Post) {
	if len(s.posts) >= maxPosts {
		s.posts = s.posts[1:]
	}
	s.posts = append(s.posts, p)

	ap := toAPIPost(p)
	for _, m := range s.members {
		ap.You = p.UserID == m.UserID
		s.send(ctx, m.Send, Message{Tag: "post", Payload: ap})
	}
}

func (s *state) deletePost(ctx context.Context, postID int64) {
	out := s.posts[:0]
	for _, p := range s.posts {
		if p.ID != postID {
			out = append(out, p)
		}
	}
	s.posts = out

	s.broadcast(ctx, Message{Tag: "delete-post", Payload: postID})
}

// setContent replaces content, resets playback time to 0, and broadcasts
// both content and the projected playback state.
func (s *state) setContent(ctx context.Context, content model.Content) {
	s.content = &content
	s.playbackState.Time = 0
	s.playbackStateAt = time.Now()

	s.broadcast(ctx, Message{Tag: "content", Payload: s.content})
	s.broadcastPlaybackState(ctx)
}

func (s *state) setAdmin(id ConnectionID) error {
	m, ok := s.members[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "no member with that connection id")
	}
	m.IsAdmin = true
	return nil
}

// setMaster elects id as master iff id is an admin member; notifies any
// previous master it has lost that role.
func (s *state) setMaster(ctx context.Context, id ConnectionID) error {
	if s.master == id {
		return nil
	}
	m, ok := s.members[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "no member with that connection id")
	}
	if !m.IsAdmin {
		return apperr.New(apperr.KindUnauthorized, "member is not an admin, master denied")
	}
	if old, ok := s.members[s.master]; ok {
		s.send(ctx, old.Send, Message{Tag: "not-master", Payload: nil})
	}
	s.master = id
	return nil
}

func (s *state) relinquishMaster(id ConnectionID) {
	if s.master == id {
		s.master = 0
	}
}

// setPlaybackState applies a new playback state iff the caller holds
// master authority, then broadcasts the projection.
// Returns the new state+timestamp to persist, or nil if the caller lacked
// authority (a no-op, not an error).
func (s *state) setPlaybackState(ctx context.Context, id ConnectionID, ps model.PlaybackState) *model.PlaybackStateAndTimestamp {
	if id != s.master && id != 0 {
		return nil
	}
	s.playbackState = ps
	s.playbackStateAt = time.Now()
	s.broadcastPlaybackState(ctx)

	return &model.PlaybackStateAndTimestamp{State: s.playbackState, Timestamp: s.playbackStateAt}
}

func (s *state) broadcastPlaybackState(ctx context.Context) {
	s.broadcast(ctx, Message{Tag: "playbackstate", Payload: s.getPlaybackState()})
}

// addEmote replaces any existing emote with the same name, then broadcasts
// it.
func (s *state) addEmote(ctx context.Context, e Emote) {
	filtered := s.emotes[:0]
	for _, existing := range s.emotes {
		if existing.Name != e.Name {
			filtered = append(filtered, existing)
		}
	}
	s.emotes = append(filtered, e)

	s.broadcast(ctx, Message{Tag: "emote", Payload: toAPIEmote(e)})
}

// deleteEmote removes by id and broadcasts the emote's name (not its id —
// the wire protocol addresses emotes by name once live, per the original
// room state machine).
func (s *state) deleteEmote(ctx context.Context, emoteID int64) {
	idx := -1
	for i, e := range s.emotes {
		if e.ID == emoteID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	name := s.emotes[idx].Name
	s.emotes = append(s.emotes[:idx], s.emotes[idx+1:]...)

	s.broadcast(ctx, Message{Tag: "delete-emote", Payload: name})
}

func (s *state) isDeserted() bool { return len(s.members) == 0 }

// getContentDurationRemaining reports the seconds until content's known
// duration elapses at the current rate, or nil if duration is unknown or
// playback is not currently advancing.
func (s *state) getContentDurationRemaining() *float64 {
	if s.content == nil || s.content.Duration == nil {
		return nil
	}
	ps := s.getPlaybackState()
	if !ps.IsPlaying {
		return nil
	}
	remaining := (*s.content.Duration - ps.Time) / ps.Rate
	return &remaining
}

// getPlaybackState projects the stored state to "now":
// time = storedTime + (now-timestamp).milliseconds * rate / 1000 while
// playing, else the stored time unchanged.
func (s *state) getPlaybackState() model.PlaybackState {
	ps := s.playbackState
	if ps.IsPlaying {
		elapsedMillis := float64(time.Since(s.playbackStateAt).Milliseconds())
		ps.Time = s.playbackState.Time + elapsedMillis*ps.Rate/1000
	}
	return ps
}

func (s *state) broadcast(ctx context.Context, msg Message) {
	for _, m := range s.members {
		s.send(ctx, m.Send, msg)
	}
}

// send delivers msg to a member's outbound channel without blocking the
// actor loop: a full channel means that member's write pump has lagged or
// died, so the message is dropped for it and logged rather than stalling
// every other member's request.
func (s *state) send(ctx context.Context, to Sink, msg Message) {
	select {
	case to <- msg:
	default:
		metrics.RoomMemberSendDropped.WithLabelValues(msg.Tag).Inc()
		logging.Warn(ctx, "member send channel full, dropping message",
			zap.Int64("room_id", s.id),
			zap.String("tag", msg.Tag))
	}
}
