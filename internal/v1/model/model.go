// Package model holds the wire-facing shapes shared by the room actor, the
// core facade, and the HTTP/WebSocket surfaces.
package model

import (
	"encoding/json"
	"time"
)

// Content describes the media a room is currently synchronized around.
type Content struct {
	URL          string   `json:"url"`
	Duration     *float64 `json:"duration,omitempty"`
	IsLivestream *bool    `json:"is_livestream,omitempty"`
}

// PlaybackState is the shared play head: position, rate, and whether it is
// currently advancing. DefaultPlaybackState is the reset state after
// SetContent.
type PlaybackState struct {
	Time      float64 `json:"time"`
	Rate      float64 `json:"rate"`
	IsPlaying bool    `json:"is_playing"`
}

// DefaultPlaybackState is the zero state: stopped, unit rate, at time 0.
func DefaultPlaybackState() PlaybackState {
	return PlaybackState{Time: 0, Rate: 1, IsPlaying: false}
}

// PlaybackStateAndTimestamp pairs a PlaybackState with the wall-clock
// moment it was recorded, persisted by the store and used to project
// "now".
type PlaybackStateAndTimestamp struct {
	State     PlaybackState `json:"state"`
	Timestamp time.Time     `json:"timestamp"`
}

// Image is a derivative file pair's public URLs.
type Image struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	TnURL    string `json:"tn_url"`
}

// Post is the wire shape of a chat post.
type Post struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name,omitempty"`
	Comment string    `json:"comment,omitempty"`
	Posted  time.Time `json:"posted"`
	Image   *Image    `json:"image,omitempty"`
	Admin   bool      `json:"admin,omitempty"`
	You     bool      `json:"you,omitempty"`
}

// Emote is the wire shape of a room's custom emote.
type Emote struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SysConfig is the public system-configuration surface.
type SysConfig struct {
	MaxEmoteSize int64 `json:"max_emote_size"`
	MaxImageSize int64 `json:"max_image_size"`
}

// Room is the wire shape of a room's public identity and current content.
type Room struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Content *Content `json:"content,omitempty"`
}

// EncodeContent serializes a Content value for persistence in the store's
// content column.
func EncodeContent(c Content) string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeContent parses a persisted content column; ok is false if blob is
// empty or malformed (treated as "no content set").
func DecodeContent(blob string) (c Content, ok bool) {
	if blob == "" {
		return Content{}, false
	}
	if err := json.Unmarshal([]byte(blob), &c); err != nil {
		return Content{}, false
	}
	return c, true
}

// EncodePlaybackState serializes a playback state+timestamp pair for
// persistence in the store's playback_state column.
func EncodePlaybackState(pbsTs PlaybackStateAndTimestamp) string {
	b, err := json.Marshal(pbsTs)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodePlaybackState parses a persisted playback_state column; ok is
// false if blob is empty or malformed (treated as "never set").
func DecodePlaybackState(blob string) (pbsTs PlaybackStateAndTimestamp, ok bool) {
	if blob == "" {
		return PlaybackStateAndTimestamp{}, false
	}
	if err := json.Unmarshal([]byte(blob), &pbsTs); err != nil {
		return PlaybackStateAndTimestamp{}, false
	}
	return pbsTs, true
}
