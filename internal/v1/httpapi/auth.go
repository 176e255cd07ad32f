package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/auth"
)

// loginResponse is the shared shape every token-issuing endpoint returns:
// a fresh room access token plus the refresh token standing in for it.
type loginResponse struct {
	AccessToken  string `json:"access_token"`
	Exp          int64  `json:"exp"`
	RefreshToken string `json:"refresh_token"`
}

// issueRoomToken mints an access token for roomID and a refresh token
// standing in for the same claims, the pair every login-shaped response
// returns.
func (a *api) issueRoomToken(c *gin.Context, roomID int64) (loginResponse, error) {
	accessToken, expiresAt, err := a.authSvc.GenerateRoomToken(roomID)
	if err != nil {
		return loginResponse{}, err
	}
	refreshToken, err := a.core.CreateRefreshToken(c.Request.Context(), &auth.Claims{Level: auth.LevelRoom, RoomID: roomID})
	if err != nil {
		return loginResponse{}, err
	}
	return loginResponse{AccessToken: accessToken, Exp: expiresAt.Unix(), RefreshToken: refreshToken}, nil
}

type loginRequest struct {
	Level    string `json:"level"`
	RoomID   int64  `json:"room_id"`
	Password string `json:"password"`
}

// handleLogin handles POST /api/auth/login.
func (a *api) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, "malformed login request", err))
		return
	}

	ok, err := a.core.Login(c.Request.Context(), req.RoomID, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		respondError(c, apperr.New(apperr.KindUnauthorized, "wrong password"))
		return
	}

	resp, err := a.issueRoomToken(c, req.RoomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh handles POST /api/auth/refresh.
func (a *api) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, "malformed refresh request", err))
		return
	}

	newRefreshToken, claims, err := a.core.RefreshRefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	accessToken, expiresAt, err := a.authSvc.GenerateRoomToken(claims.RoomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken:  accessToken,
		Exp:          expiresAt.Unix(),
		RefreshToken: newRefreshToken,
	})
}

type newUserResponse struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// handleNewUser handles POST /api/user/new.
func (a *api) handleNewUser(c *gin.Context) {
	userID, token, err := a.core.GenerateUserID(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse{UserID: userID, Token: token})
}

// handleVerifyUser handles POST /api/user/verify: the requireUser
// middleware has already rejected an invalid token by the time this runs.
func (a *api) handleVerifyUser(c *gin.Context) {
	c.Status(http.StatusOK)
}
