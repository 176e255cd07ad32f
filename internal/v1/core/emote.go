package core

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/bus"
	"github.com/aria-chat/backend/go/internal/v1/model"
	"github.com/aria-chat/backend/go/internal/v1/room"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

var validEmoteName = regexp.MustCompile(`^[\w-]+$`)

// EmoteImageUpload is a caller-supplied emote image, already written to
// Paths.Temp by the HTTP handler.
type EmoteImageUpload struct {
	TempPath string
	Filename string
}

// NewEmote is the set of caller-supplied fields for CreateEmote.
type NewEmote struct {
	Name  string
	Image EmoteImageUpload
}

func toAPIEmote(e store.Emote) model.Emote {
	return model.Emote{ID: e.ID, Name: e.Name, URL: fmt.Sprintf("/f/e/%s.%s", e.Hash, e.Ext)}
}

func toRoomEmote(e store.Emote) room.Emote {
	return room.Emote{ID: e.ID, Name: e.Name, Hash: e.Hash, Ext: e.Ext}
}

// GetEmotes lists a room's custom emotes.
func (c *Core) GetEmotes(ctx context.Context, roomID int64) ([]model.Emote, error) {
	rows, err := c.st.GetEmotes(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Emote, len(rows))
	for i, e := range rows {
		out[i] = toAPIEmote(e)
	}
	return out, nil
}

// CreateEmote validates the emote name, ingests its image, persists the
// emote, and notifies subscribers of the new emote.
func (c *Core) CreateEmote(ctx context.Context, roomID int64, emote NewEmote) (model.Emote, error) {
	if !validEmoteName.MatchString(emote.Name) {
		return model.Emote{}, apperr.New(apperr.KindBadRequest, "emote name must contain only alphanumeric characters, digits, or hyphens")
	}

	hash, ext, err := c.media.IngestEmoteImage(ctx, emote.Image.TempPath, emote.Image.Filename)
	if err != nil {
		return model.Emote{}, err
	}

	row, err := c.st.CreateEmote(ctx, roomID, &store.NewEmote{Name: emote.Name, Hash: hash, Ext: ext})
	if err != nil {
		return model.Emote{}, err
	}

	c.publish(ctx, bus.Notification{
		Kind:    bus.KindNewEmote,
		RoomID:  roomID,
		EmoteID: row.ID,
		Payload: toRoomEmote(*row),
	})

	return toAPIEmote(*row), nil
}

// DeleteEmote deletes a room emote, notifying subscribers only if a row
// was actually deleted.
func (c *Core) DeleteEmote(ctx context.Context, roomID, emoteID int64) (bool, error) {
	ok, err := c.st.DeleteEmote(ctx, roomID, emoteID)
	if err != nil {
		return false, err
	}
	if ok {
		c.publish(ctx, bus.Notification{Kind: bus.KindDeleteEmote, RoomID: roomID, EmoteID: emoteID})
	}
	return ok, nil
}
