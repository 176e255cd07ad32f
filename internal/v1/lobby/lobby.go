// Package lobby implements the registry of live room actors: a single
// goroutine that loads rooms from the store on first join, indexes them by
// id and by name, routes domain notifications from the core facade's bus to
// the right room, and tears a room down when it asks to unload.
package lobby

import (
	"context"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/bus"
	"github.com/aria-chat/backend/go/internal/v1/logging"
	"github.com/aria-chat/backend/go/internal/v1/model"
	"github.com/aria-chat/backend/go/internal/v1/room"
	"github.com/aria-chat/backend/go/internal/v1/store"
	"go.uber.org/zap"
)

// Membership is the successful result of joining a room: the live room
// handle and the connection id under which the caller was registered with
// it. The WebSocket session keeps both for the lifetime of its membership.
type Membership struct {
	Room         *room.Handle
	ConnectionID room.ConnectionID
}

type joinRoomReq struct {
	name   string
	connID room.ConnectionID
	userID int64
	send   room.Sink
	reply  chan joinResult
}

type joinResult struct {
	membership Membership
	err        error
}

type unloadRoomReq struct {
	roomID int64
}

// Lobby is the externally visible handle to the lobby actor.
type Lobby struct {
	reqCh    chan joinRoomReq
	unloadCh chan unloadRoomReq
}

// New spawns the lobby actor and returns its handle. ctx governs the
// actor's lifetime: cancelling it stops the loop and, transitively, every
// room actor it has spawned (each room actor is started with ctx too).
func New(ctx context.Context, st store.Store, notifications *bus.Bus) *Lobby {
	l := &Lobby{
		reqCh:    make(chan joinRoomReq, 64),
		unloadCh: make(chan unloadRoomReq, 64),
	}
	go l.run(ctx, st, notifications)
	return l
}

// UnloadRoom implements room.Unloader: a room actor calls this on itself
// deciding to self-unload after sitting idle. Never blocks the caller for
// long — the lobby loop always has this channel selected.
func (l *Lobby) UnloadRoom(ctx context.Context, roomID int64) {
	select {
	case l.unloadCh <- unloadRoomReq{roomID: roomID}:
	case <-ctx.Done():
	}
}

// JoinRoom loads the named room if it is not already live, then joins the
// caller to it. Returns a nil Membership and a NotFound error if no room
// with that name has ever been claimed.
func (l *Lobby) JoinRoom(ctx context.Context, name string, connID room.ConnectionID, userID int64, send room.Sink) (Membership, error) {
	reply := make(chan joinResult, 1)
	select {
	case l.reqCh <- joinRoomReq{name: name, connID: connID, userID: userID, send: send, reply: reply}:
	case <-ctx.Done():
		return Membership{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.membership, res.err
	case <-ctx.Done():
		return Membership{}, ctx.Err()
	}
}

func (l *Lobby) run(ctx context.Context, st store.Store, notifications *bus.Bus) {
	roomsByID := make(map[int64]*room.Handle)
	roomsByName := make(map[string]*room.Handle)

	sub := notifications.Subscribe()
	defer sub.Unsubscribe()

	for {
		select {
		case req := <-l.reqCh:
			h, err := l.handleJoinRoom(ctx, st, roomsByID, roomsByName, req)
			req.reply <- joinResult{membership: h, err: err}

		case u := <-l.unloadCh:
			if h, ok := roomsByID[u.roomID]; ok {
				delete(roomsByID, u.roomID)
				delete(roomsByName, h.Name)
				logging.Info(ctx, "room removed from lobby", zap.Int64("room_id", u.roomID), zap.String("room_name", h.Name))
			}

		case n, ok := <-sub.C():
			if !ok {
				return
			}
			l.dispatch(ctx, roomsByID, n)

		case <-ctx.Done():
			logging.Info(ctx, "lobby actor shutting down")
			return
		}
	}
}

func (l *Lobby) handleJoinRoom(ctx context.Context, st store.Store, roomsByID map[int64]*room.Handle, roomsByName map[string]*room.Handle, req joinRoomReq) (Membership, error) {
	h, ok := roomsByName[req.name]
	if !ok {
		loaded, err := room.Load(ctx, st, l, req.name)
		if err != nil {
			return Membership{}, err
		}
		if loaded == nil {
			return Membership{}, roomNotFound(req.name)
		}
		roomsByID[loaded.ID] = loaded
		roomsByName[req.name] = loaded
		h = loaded
	}

	if err := h.Join(req.connID, req.userID, req.send); err != nil {
		return Membership{}, err
	}

	return Membership{Room: h, ConnectionID: req.connID}, nil
}

func (l *Lobby) dispatch(ctx context.Context, roomsByID map[int64]*room.Handle, n bus.Notification) {
	h, ok := roomsByID[n.RoomID]
	if !ok {
		// Room isn't live (e.g. a restart skipped this event); nothing to do.
		return
	}

	var err error
	switch n.Kind {
	case bus.KindNewPost:
		if p, ok := n.Payload.(room.Post); ok {
			err = h.Post(p)
		}
	case bus.KindDeletePost:
		err = h.DeletePost(n.PostID)
	case bus.KindNewEmote:
		if e, ok := n.Payload.(room.Emote); ok {
			err = h.Emote(e)
		}
	case bus.KindDeleteEmote:
		err = h.DeleteEmote(n.EmoteID)
	case bus.KindContent:
		if c, ok := n.Payload.(model.Content); ok {
			err = h.SetContent(c)
		}
	}
	if err != nil {
		logging.Error(ctx, "dispatching notification to room", zap.Error(err), zap.Int64("room_id", n.RoomID))
	}
}

func roomNotFound(name string) error {
	return apperr.New(apperr.KindNotFound, "room '"+name+"' does not exist")
}
