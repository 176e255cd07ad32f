package wsproto

import (
	"encoding/json"
	"strings"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
)

// frame is one decoded inbound `TAG|JSON` wire message.
type frame struct {
	tag  string
	data string
}

// decodeFrame splits a raw text frame on its first '|'. A frame with no '|'
// carries no tag and is ignored by the caller, matching the original
// dispatcher's `if let Some((msg, data)) = msg.split_once('|')` guard.
func decodeFrame(raw []byte) (frame, bool) {
	tag, data, ok := strings.Cut(string(raw), "|")
	if !ok {
		return frame{}, false
	}
	return frame{tag: tag, data: data}, true
}

// encodeFrame renders an outbound Message as a `TAG|JSON` wire frame. A nil
// payload encodes as an empty data segment; a rawPayload is written
// verbatim, unquoted, as ping/pong's echoed data is not itself JSON.
func encodeFrame(tag string, payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte(tag + "|"), nil
	case rawPayload:
		return []byte(tag + "|" + string(v)), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternalBug, "marshal outbound frame", err)
	}
	return append([]byte(tag+"|"), b...), nil
}

func decodeJSON[T any](data string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		var zero T
		return zero, apperr.Wrap(apperr.KindBadRequest, "decode frame payload", err)
	}
	return v, nil
}
