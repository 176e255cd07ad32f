package core

import (
	"context"
	"fmt"

	"github.com/aria-chat/backend/go/internal/v1/bus"
	"github.com/aria-chat/backend/go/internal/v1/model"
	"github.com/aria-chat/backend/go/internal/v1/room"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

// PostImageUpload is a caller-supplied image attached to a new post,
// already written to Paths.Temp by the HTTP handler.
type PostImageUpload struct {
	TempPath string
	Filename string
}

// NewPost is the set of caller-supplied fields for CreatePost.
type NewPost struct {
	Name    string
	Comment string
	IP      string
	UserID  int64
	Admin   bool
	Image   *PostImageUpload
}

func toAPIPost(row store.PostAndImage, forUserID int64) model.Post {
	p := model.Post{
		ID:      row.Post.ID,
		Name:    row.Post.Name,
		Comment: row.Post.Comment,
		Posted:  row.Post.CreatedAt,
		Admin:   row.Post.Admin,
		You:     row.Post.UserID == forUserID,
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

func toRoomPost(row store.PostAndImage) room.Post {
	p := room.Post{
		ID:       row.Post.ID,
		Name:     row.Post.Name,
		Comment:  row.Post.Comment,
		IP:       row.Post.IP,
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

// GetRecentPosts returns a room's recent, non-deleted posts with You set
// relative to forUserID.
func (c *Core) GetRecentPosts(ctx context.Context, roomID int64, count int, forUserID int64) ([]model.Post, error) {
	rows, err := c.st.GetRecentPosts(ctx, roomID, count)
	if err != nil {
		return nil, err
	}
	out := make([]model.Post, len(rows))
	for i, row := range rows {
		out[i] = toAPIPost(row, forUserID)
	}
	return out, nil
}

// CreatePost ingests any attached image, persists the post, and notifies
// subscribers of the new post.
func (c *Core) CreatePost(ctx context.Context, roomID int64, post NewPost) (model.Post, error) {
	var image *store.NewImage
	if post.Image != nil {
		hash, ext, tnExt, err := c.media.IngestPostImage(ctx, post.Image.TempPath, post.Image.Filename)
		if err != nil {
			return model.Post{}, err
		}
		image = &store.NewImage{
			Filename: post.Image.Filename,
			Hash:     hash,
			Ext:      ext,
			TnExt:    tnExt,
		}
	}

	row, err := c.st.CreatePost(ctx, roomID, &store.NewPost{
		Name:    post.Name,
		Comment: post.Comment,
		IP:      post.IP,
		UserID:  post.UserID,
		Admin:   post.Admin,
	}, image)
	if err != nil {
		return model.Post{}, err
	}

	c.publish(ctx, bus.Notification{
		Kind:    bus.KindNewPost,
		RoomID:  roomID,
		PostID:  row.Post.ID,
		Payload: toRoomPost(*row),
	})

	return toAPIPost(*row, post.UserID), nil
}

// DeletePost soft-deletes a post if the caller is its author or a room
// admin, notifying subscribers only if a row was actually deleted.
func (c *Core) DeletePost(ctx context.Context, roomID, postID, userID int64, isAdmin bool) (bool, error) {
	ok, err := c.st.DeletePost(ctx, roomID, postID, userID, isAdmin)
	if err != nil {
		return false, err
	}
	if ok {
		c.publish(ctx, bus.Notification{Kind: bus.KindDeletePost, RoomID: roomID, PostID: postID})
	}
	return ok, nil
}
