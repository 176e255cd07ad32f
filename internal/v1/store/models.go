// Package store persists Aria's durable state — rooms, posts, emotes, and
// refresh tokens — behind an embedded SQLite database.
package store

import "time"

// Room is a named, claimable chatroom.
type Room struct {
	ID             int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Name           string
	Password       string
	Content        string
	PlaybackState  string
	ClaimedAt      time.Time
	ExpiresAt      *time.Time
}

// Post is a single chat message, optionally carrying an attached Image.
type Post struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
	RoomID    int64
	Name      string
	Comment   string
	IP        string
	IsDeleted bool
	UserID    int64
	Admin     bool
}

// Image is a post's attached original+derivative file pair, content-addressed
// by hash.
type Image struct {
	ID        int64
	PostID    int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Filename  string
	Hash      string
	Ext       string
	TnExt     string
}

// PostAndImage is a Post joined with its optional Image.
type PostAndImage struct {
	Post  Post
	Image *Image
}

// NewPost is the set of caller-supplied fields for CreatePost.
type NewPost struct {
	Name    string
	Comment string
	IP      string
	UserID  int64
	Admin   bool
}

// NewImage is the set of caller-supplied fields for a post's attached image,
// captured before its derivative has been generated.
type NewImage struct {
	Filename string
	Hash     string
	Ext      string
	TnExt    string
}

// Emote is a room's named custom image, content-addressed by hash.
type Emote struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
	RoomID    int64
	Name      string
	Hash      string
	Ext       string
}

// NewEmote is the set of caller-supplied fields for CreateEmote.
type NewEmote struct {
	Name string
	Hash string
	Ext  string
}

// RefreshResult is the new token/claims pair produced by rotating a refresh
// token.
type RefreshResult struct {
	Token  string
	Claims string
}
