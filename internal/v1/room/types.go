// Package room implements the per-room actor: a single goroutine owning all
// mutable state for one chatroom, reached only through typed requests with
// one-shot reply channels. Serializing every mutation through one
// loop is what keeps concurrent posts, emotes, and master elections
// consistent without locks.
package room

import "github.com/aria-chat/backend/go/internal/v1/model"

// ConnectionID identifies a single WebSocket connection for the lifetime of
// its room membership. Assigned by the WebSocket session layer, not by the
// room — a room request's ConnectionID is an opaque caller-supplied key.
// ConnectionID 0 is reserved for the room's own internal timer (e.g. a
// content-end reset), which always passes the master-authority check.
type ConnectionID int64

// Message is one outbound wire frame destined for a single member.
type Message struct {
	Tag     string
	Payload any
}

// Sink is how the room actor delivers outbound Messages to a member; the
// WebSocket session on the other end owns the channel and translates each
// Message into a `TAG|JSON` frame.
type Sink chan<- Message

// Member is a connected, joined participant.
type Member struct {
	UserID  int64
	IsAdmin bool
	Send    Sink
}

type replyChan[R any] chan result[R]

type result[R any] struct {
	val R
	err error
}

func newReply[R any]() replyChan[R] { return make(replyChan[R], 1) }

func (r replyChan[R]) send(val R, err error) { r <- result[R]{val: val, err: err} }

// await blocks for a reply or until ctx is cancelled.
func await[R any](r replyChan[R]) (R, error) {
	res := <-r
	return res.val, res.err
}

// joinResult is the reply to a Join request.
type joinResult struct{}

// roomRequest is the sum type of everything the room actor's loop accepts;
// the loop type-switches on it exactly once per iteration. Every concrete
// request type below implements it.
type roomRequest interface{ isRoomRequest() }

func (*joinReq) isRoomRequest()             {}
func (*leaveReq) isRoomRequest()            {}
func (*sendEmotesReq) isRoomRequest()       {}
func (*sendRecentPostsReq) isRoomRequest()  {}
func (*postReq) isRoomRequest()             {}
func (*deletePostReq) isRoomRequest()       {}
func (*setContentReq) isRoomRequest()       {}
func (*setAdminReq) isRoomRequest()         {}
func (*setMasterReq) isRoomRequest()        {}
func (*relinquishMasterReq) isRoomRequest() {}
func (*setPlaybackStateReq) isRoomRequest() {}
func (*emoteReq) isRoomRequest()            {}
func (*deleteEmoteReq) isRoomRequest()      {}

type joinReq struct {
	id     ConnectionID
	userID int64
	send   Sink
	reply  replyChan[joinResult]
}

type leaveReq struct {
	id    ConnectionID
	reply replyChan[struct{}]
}

type sendEmotesReq struct {
	id      ConnectionID
	sinceID int64
	reply   replyChan[struct{}]
}

type sendRecentPostsReq struct {
	id      ConnectionID
	sinceID int64
	reply   replyChan[struct{}]
}

type postReq struct {
	post  Post
	reply replyChan[struct{}]
}

type deletePostReq struct {
	postID int64
	reply  replyChan[struct{}]
}

type setContentReq struct {
	content model.Content
	reply   replyChan[struct{}]
}

type setAdminReq struct {
	id    ConnectionID
	reply replyChan[struct{}]
}

type setMasterReq struct {
	id    ConnectionID
	reply replyChan[struct{}]
}

type relinquishMasterReq struct {
	id    ConnectionID
	reply replyChan[struct{}]
}

type setPlaybackStateReq struct {
	id    ConnectionID
	state model.PlaybackState
	reply replyChan[struct{}]
}

type emoteReq struct {
	emote Emote
	reply replyChan[struct{}]
}

type deleteEmoteReq struct {
	emoteID int64
	reply   replyChan[struct{}]
}

// Post is the room actor's internal representation of a chat post — a
// superset of model.Post carrying the fields only the actor and store need
// (owning user, admin flag, moderation state).
type Post struct {
	ID       int64
	Name     string
	Comment  string
	IP       string
	UserID   int64
	Admin    bool
	PostedAt int64 // unix millis, avoids importing time into the wire model twice
	Image    *model.Image
}

// Emote is the room actor's internal representation of a custom emote.
type Emote struct {
	ID   int64
	Name string
	Hash string
	Ext  string
}
