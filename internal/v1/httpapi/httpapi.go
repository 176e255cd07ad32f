// Package httpapi implements Aria's HTTP surface: room claim/login, chat
// posts and emotes, pseudonymous user identities, and the system config
// probe. Every handler calls through the core facade; this package owns
// only request parsing, auth/rate-limit middleware wiring, and the
// error-to-status mapping.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

// respondError maps err onto the status policy every handler shares:
// apperr.Kind decides the code, and the message is whatever the
// classified error (or, failing that, err itself) carries. store.ErrNotFound
// is the one sentinel that reaches handlers unwrapped — the store's
// lookup methods return it bare rather than through apperr — so it is
// special-cased here rather than at every call site.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(apperr.StatusFor(err), gin.H{"error": err.Error()})
}
