package media

import (
	"encoding/hex"
	"io"
	"os"

	"lukechampine.com/blake3"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
)

// hashFile returns the hex-encoded blake3 hash of the file at path,
// streamed rather than read wholesale so a large video upload doesn't
// land entirely in memory.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperr.Wrap(apperr.KindMediaError, "open upload for hashing", err)
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", apperr.Wrap(apperr.KindMediaError, "hash upload", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
