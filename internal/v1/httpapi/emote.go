package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/core"
)

// handleCreateEmote handles POST /api/chat/:room_id/emote. requireRoomAuth
// has already verified the Bearer token; this only checks its scope.
func (a *api) handleCreateEmote(c *gin.Context) {
	roomID, err := parseRoomID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if !roomClaimsForRoom(c, roomID) {
		respondError(c, apperr.New(apperr.KindUnauthorized, "token not scoped to this room"))
		return
	}

	if err := c.Request.ParseMultipartForm(a.cfg.MaxEmoteSize); err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, "malformed multipart body", err))
		return
	}

	name := c.Request.FormValue("name")
	if name == "" {
		respondError(c, apperr.New(apperr.KindBadRequest, "emote name is required"))
		return
	}

	fh, ferr := c.FormFile("image")
	if ferr != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, "emote image is required", ferr))
		return
	}
	tempPath, filename, err := a.saveUploadToTemp(fh)
	if err != nil {
		respondError(c, err)
		return
	}

	emote, err := a.core.CreateEmote(c.Request.Context(), roomID, core.NewEmote{
		Name:  name,
		Image: core.EmoteImageUpload{TempPath: tempPath, Filename: filename},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, emote)
}

// handleDeleteEmote handles DELETE /api/chat/:room_id/emote/:emote_id.
func (a *api) handleDeleteEmote(c *gin.Context) {
	roomID, err := parseRoomID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if !roomClaimsForRoom(c, roomID) {
		respondError(c, apperr.New(apperr.KindUnauthorized, "token not scoped to this room"))
		return
	}
	emoteID, err := strconv.ParseInt(c.Param("emote_id"), 10, 64)
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, "malformed emote_id", err))
		return
	}

	ok, err := a.core.DeleteEmote(c.Request.Context(), roomID, emoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		respondError(c, apperr.New(apperr.KindNotFound, "emote not found"))
		return
	}
	c.Status(http.StatusOK)
}
