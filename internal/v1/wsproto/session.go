package wsproto

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/auth"
	"github.com/aria-chat/backend/go/internal/v1/logging"
	"github.com/aria-chat/backend/go/internal/v1/lobby"
	"github.com/aria-chat/backend/go/internal/v1/metrics"
	"github.com/aria-chat/backend/go/internal/v1/model"
	"github.com/aria-chat/backend/go/internal/v1/room"
)

const (
	websocketTextMessage  = websocket.TextMessage
	websocketPingMessage  = websocket.PingMessage
	websocketCloseMessage = websocket.CloseMessage
)

// sendBuffer is how many outbound Messages may queue for a connection
// before writePump falls behind; the room actor's own broadcast never
// blocks on a slow reader past this.
const sendBuffer = 256

// joinRequest is the payload of an inbound "join" frame.
type joinRequest struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// session owns one WebSocket connection for its lifetime: the read/write
// pump goroutine pair, and whichever room it is currently joined to, if
// any.
type session struct {
	id      room.ConnectionID
	conn    wsConnection
	lobby   *lobby.Lobby
	authSvc *auth.Service

	send chan room.Message

	membership *lobby.Membership
}

func newSession(id room.ConnectionID, conn wsConnection, l *lobby.Lobby, authSvc *auth.Service) *session {
	return &session{
		id:      id,
		conn:    conn,
		lobby:   l,
		authSvc: authSvc,
		send:    make(chan room.Message, sendBuffer),
	}
}

// run drives the connection until either side closes it or ctx is
// cancelled, then leaves any joined room to avoid a dangling member.
func (s *session) run(ctx context.Context) {
	done := make(chan struct{})
	go s.writePump(done)
	s.readPump(ctx)
	close(done)

	if s.membership != nil {
		_ = s.membership.Room.Leave(s.id)
	}
}

// readPump reads frames until the connection closes or ctx is cancelled;
// each recognized tag is dispatched to the lobby or the joined room.
func (s *session) readPump(ctx context.Context) {
	defer s.conn.Close()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		f, ok := decodeFrame(raw)
		if !ok {
			continue
		}

		start := time.Now()
		status := "ok"
		if err := s.dispatch(ctx, f); err != nil {
			status = "error"
			logging.Warn(ctx, "dispatching ws frame", zap.String("tag", f.tag), zap.Error(err))
		}
		metrics.WebsocketEvents.WithLabelValues(f.tag, status).Inc()
		metrics.MessageProcessingDuration.WithLabelValues(f.tag).Observe(time.Since(start).Seconds())
	}
}

// dispatch routes one decoded frame per the tag table.
func (s *session) dispatch(ctx context.Context, f frame) error {
	switch f.tag {
	case "ping":
		s.enqueue(room.Message{Tag: "pong", Payload: rawPayload(f.data)})
		return nil

	case "join":
		return s.handleJoin(ctx, f.data)

	case "leave":
		return s.handleLeave()

	case "auth":
		return s.handleAuth(f.data)

	case "set-master":
		if s.membership == nil {
			return nil
		}
		return s.membership.Room.SetMaster(s.id)

	case "not-master":
		if s.membership == nil {
			return nil
		}
		return s.membership.Room.RelinquishMaster(s.id)

	case "master-playbackstate":
		return s.handleSetPlaybackState(f.data)

	default:
		logging.Warn(ctx, "unknown ws frame tag", zap.String("tag", f.tag))
		return nil
	}
}

func (s *session) handleJoin(ctx context.Context, data string) error {
	req, err := decodeJSON[joinRequest](data)
	if err != nil {
		return err
	}

	userClaims, err := s.authSvc.Verify(req.User)
	if err != nil {
		return apperr.Wrap(apperr.KindAuthInvalid, "verifying user token", err)
	}

	if s.membership != nil {
		if s.membership.Room.Name == req.Room {
			return nil
		}
		_ = s.membership.Room.Leave(s.id)
		s.membership = nil
	}

	m, err := s.lobby.JoinRoom(ctx, req.Room, s.id, userClaims.UserID, room.Sink(s.send))
	if err != nil {
		return err
	}
	s.membership = &m
	return nil
}

func (s *session) handleLeave() error {
	if s.membership == nil {
		return nil
	}
	err := s.membership.Room.Leave(s.id)
	s.membership = nil
	return err
}

func (s *session) handleAuth(data string) error {
	if s.membership == nil {
		return nil
	}
	token, err := decodeJSON[string](data)
	if err != nil {
		return err
	}
	claims, err := s.authSvc.Verify(token)
	if err != nil || !claims.ForRoom(s.membership.Room.ID) {
		return nil
	}
	return s.membership.Room.SetAdmin(s.id)
}

func (s *session) handleSetPlaybackState(data string) error {
	ps, err := decodeJSON[model.PlaybackState](data)
	if err != nil {
		return err
	}
	if s.membership == nil {
		return nil
	}
	return s.membership.Room.SetPlaybackState(s.id, ps)
}

// enqueue delivers to the write pump without blocking the read loop; a
// full buffer means the connection is already dead-slow, so the message
// is dropped and logged rather than stalling dispatch.
func (s *session) enqueue(msg room.Message) {
	select {
	case s.send <- msg:
	default:
		logging.Warn(context.Background(), "ws send buffer full, dropping message", zap.String("tag", msg.Tag))
	}
}

// writePump drains s.send onto the socket, interleaving a periodic ping to
// keep the connection alive, until done closes.
func (s *session) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocketCloseMessage, nil)
				return
			}
			b, err := encodeFrame(msg.Tag, msg.Payload)
			if err != nil {
				logging.Error(context.Background(), "encoding outbound frame", zap.Error(err))
				continue
			}
			if err := s.conn.WriteMessage(websocketTextMessage, b); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocketPingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// rawPayload carries data back out verbatim, as "pong" echoes "ping"'s
// data unparsed: the server never needs to understand a ping's payload,
// only reflect it.
type rawPayload string
