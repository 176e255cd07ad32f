package room

import (
	"fmt"
	"time"

	"github.com/aria-chat/backend/go/internal/v1/model"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

// decodeRoomMedia parses a store.Room's JSON-encoded content and playback
// state columns back into domain values, defaulting to an unset content and
// a zeroed, now-stamped playback state for a freshly claimed room.
func decodeRoomMedia(r *store.Room) (*model.Content, model.PlaybackState, time.Time) {
	var content *model.Content
	if c, ok := model.DecodeContent(r.Content); ok {
		content = &c
	}

	ps := model.DefaultPlaybackState()
	psAt := time.Now()
	if pbsTs, ok := model.DecodePlaybackState(r.PlaybackState); ok {
		ps = pbsTs.State
		psAt = pbsTs.Timestamp
	}

	return content, ps, psAt
}

func encodePlaybackState(pbsTs model.PlaybackStateAndTimestamp) string {
	return model.EncodePlaybackState(pbsTs)
}

func fromStorePost(row store.PostAndImage) Post {
	p := Post{
		ID:       row.Post.ID,
		Name:     row.Post.Name,
		Comment:  row.Post.Comment,
		UserID:   row.Post.UserID,
		Admin:    row.Post.Admin,
		PostedAt: row.Post.CreatedAt.UnixMilli(),
	}
	if row.Image != nil {
		p.Image = &model.Image{
			Filename: row.Image.Filename,
			URL:      fmt.Sprintf("/f/i/%s.%s", row.Image.Hash, row.Image.Ext),
			TnURL:    fmt.Sprintf("/f/t/%s.%s", row.Image.Hash, row.Image.TnExt),
		}
	}
	return p
}

func toAPIPost(p Post) model.Post {
	return model.Post{
		ID:      p.ID,
		Name:    p.Name,
		Comment: p.Comment,
		Posted:  time.UnixMilli(p.PostedAt).UTC(),
		Image:   p.Image,
		Admin:   p.Admin,
	}
}

func toAPIEmote(e Emote) model.Emote {
	return model.Emote{
		ID:   e.ID,
		Name: e.Name,
		URL:  fmt.Sprintf("/f/e/%s.%s", e.Hash, e.Ext),
	}
}
