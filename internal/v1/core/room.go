package core

import (
	"context"
	"errors"

	"github.com/aria-chat/backend/go/internal/v1/bus"
	"github.com/aria-chat/backend/go/internal/v1/model"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

// ClaimedRoom is the result of successfully claiming a new room name: the
// generated password is returned exactly once and never persisted in the
// clear anywhere the caller can retrieve it again.
type ClaimedRoom struct {
	ID       int64
	Name     string
	Password string
}

func toAPIRoom(r *store.Room) model.Room {
	out := model.Room{ID: r.ID, Name: r.Name}
	if c, ok := model.DecodeContent(r.Content); ok {
		out.Content = &c
	}
	return out
}

// GetRoom looks up a room by id.
func (c *Core) GetRoom(ctx context.Context, roomID int64) (*model.Room, error) {
	r, err := c.st.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := toAPIRoom(r)
	return &out, nil
}

// GetRoomByName looks up a room by its claimed name.
func (c *Core) GetRoomByName(ctx context.Context, name string) (*model.Room, error) {
	r, err := c.st.GetRoomByName(ctx, name)
	if err != nil {
		return nil, err
	}
	out := toAPIRoom(r)
	return &out, nil
}

// Login reports whether password matches roomID's claim password.
func (c *Core) Login(ctx context.Context, roomID int64, password string) (bool, error) {
	r, err := c.st.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return r.Password == password, nil
}

// ClaimRoom creates a new room under name with a freshly generated
// password, returned to the caller exactly once.
func (c *Core) ClaimRoom(ctx context.Context, name string) (*ClaimedRoom, error) {
	password, err := generatePassword(roomPasswordLength)
	if err != nil {
		return nil, err
	}

	r, err := c.st.CreateRoom(ctx, name, password)
	if err != nil {
		return nil, err
	}

	return &ClaimedRoom{ID: r.ID, Name: r.Name, Password: password}, nil
}

// SetRoomContent persists a room's synchronized content URL and notifies
// any loaded room actor to adopt it. Metadata classification of the URL
// (YouTube/Twitch/Drive) is left to the client; the facade stores the URL
// verbatim.
func (c *Core) SetRoomContent(ctx context.Context, roomID int64, content model.Content) error {
	if err := c.st.SetRoomContent(ctx, roomID, model.EncodeContent(content)); err != nil {
		return err
	}
	c.publish(ctx, bus.Notification{Kind: bus.KindContent, RoomID: roomID, Payload: content})
	return nil
}

// SetRoomPlaybackState persists a room's playback state directly, for
// administrative/CLI use outside the live WebSocket master-election path;
// the room actor persists and broadcasts its own playback updates
// independently, so this is intentionally not published to the bus.
func (c *Core) SetRoomPlaybackState(ctx context.Context, roomID int64, state model.PlaybackStateAndTimestamp) error {
	return c.st.SetRoomPlaybackState(ctx, roomID, model.EncodePlaybackState(state))
}
