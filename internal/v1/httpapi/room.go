package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/model"
)

func parseRoomID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindBadRequest, "malformed room_id", err)
	}
	return id, nil
}

// handleGetRoomByName handles GET /api/r/room/:name.
func (a *api) handleGetRoomByName(c *gin.Context) {
	room, err := a.core.GetRoomByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type claimRequest struct {
	Name string `json:"name"`
}

type claimResponse struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Password string        `json:"password"`
	Auth     loginResponse `json:"auth"`
}

// handleClaimRoom handles POST /api/r/claim.
func (a *api) handleClaimRoom(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, "malformed claim request", err))
		return
	}

	claimed, err := a.core.ClaimRoom(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	authResp, err := a.issueRoomToken(c, claimed.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, claimResponse{
		ID:       claimed.ID,
		Name:     claimed.Name,
		Password: claimed.Password,
		Auth:     authResp,
	})
}

// handleLoggedIn handles POST /api/r/i/:room_id/loggedin: the
// requireRoomAuth middleware has already verified the Bearer token; this
// only checks it is scoped to the room in the path.
func (a *api) handleLoggedIn(c *gin.Context) {
	roomID, err := parseRoomID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if !roomClaimsForRoom(c, roomID) {
		respondError(c, apperr.New(apperr.KindUnauthorized, "token not scoped to this room"))
		return
	}
	c.Status(http.StatusOK)
}

type setContentRequest struct {
	URL          string   `json:"url"`
	Duration     *float64 `json:"duration,omitempty"`
	IsLivestream *bool    `json:"is_livestream,omitempty"`
}

// handleSetContent handles POST /api/r/i/:room_id/setcontent.
func (a *api) handleSetContent(c *gin.Context) {
	roomID, err := parseRoomID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if !roomClaimsForRoom(c, roomID) {
		respondError(c, apperr.New(apperr.KindUnauthorized, "token not scoped to this room"))
		return
	}

	var req setContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, "malformed setcontent request", err))
		return
	}

	content := model.Content{URL: req.URL, Duration: req.Duration, IsLivestream: req.IsLivestream}
	if err := a.core.SetRoomContent(c.Request.Context(), roomID, content); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
