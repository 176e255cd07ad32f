package httpapi

import (
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/core"
)

// saveUploadToTemp copies an incoming multipart file part into the
// scratch directory every ingestion path reads its input from, named by
// a fresh UUID so concurrent uploads never collide. The original
// filename is preserved separately for extension sniffing and the
// stored display name.
func (a *api) saveUploadToTemp(fh *multipart.FileHeader) (tempPath, filename string, err error) {
	filename = fh.Filename
	tempPath = filepath.Join(a.core.Paths.Temp, uuid.NewString()+filepath.Ext(filename))

	src, err := fh.Open()
	if err != nil {
		return "", "", apperr.Wrap(apperr.KindMediaError, "open uploaded file", err)
	}
	defer src.Close()

	dst, err := os.Create(tempPath)
	if err != nil {
		return "", "", apperr.Wrap(apperr.KindMediaError, "create temp upload file", err)
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(src); err != nil {
		os.Remove(tempPath)
		return "", "", apperr.Wrap(apperr.KindMediaError, "write temp upload file", err)
	}

	return tempPath, filename, nil
}

// limitBody caps the request body at maxBytes, matching the original's
// per-route body-size limiter; exceeding it ends the request with 413
// rather than letting a runaway upload exhaust disk in the temp dir.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// parsePostOptions applies the space-separated option tokens a post may
// carry; "ra" requests the admin flag, granted only if the caller also
// holds a valid room token scoped to roomID.
func parsePostOptions(raw string, isRoomAdmin bool) (admin bool) {
	for _, o := range strings.Fields(raw) {
		if o == "ra" {
			admin = isRoomAdmin
		}
	}
	return admin
}

// handleCreatePost handles POST /api/chat/:room_id/post.
func (a *api) handleCreatePost(c *gin.Context) {
	roomID, err := parseRoomID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := c.Request.ParseMultipartForm(a.cfg.MaxImageSize); err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, "malformed multipart body", err))
		return
	}

	userClaims := userClaimsOf(c)
	isRoomAdmin := roomClaimsForRoom(c, roomID)

	newPost := core.NewPost{
		Name:    c.Request.FormValue("name"),
		Comment: c.Request.FormValue("comment"),
		IP:      c.ClientIP(),
		UserID:  userClaims.UserID,
		Admin:   parsePostOptions(c.Request.FormValue("options"), isRoomAdmin),
	}

	if fh, ferr := c.FormFile("image"); ferr == nil {
		tempPath, filename, err := a.saveUploadToTemp(fh)
		if err != nil {
			respondError(c, err)
			return
		}
		newPost.Image = &core.PostImageUpload{TempPath: tempPath, Filename: filename}
	}

	post, err := a.core.CreatePost(c.Request.Context(), roomID, newPost)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": post.ID})
}

// handleDeletePost handles DELETE /api/chat/:room_id/post/:post_id.
func (a *api) handleDeletePost(c *gin.Context) {
	roomID, err := parseRoomID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	postID, err := strconv.ParseInt(c.Param("post_id"), 10, 64)
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindBadRequest, "malformed post_id", err))
		return
	}

	userClaims := userClaimsOf(c)
	isAdmin := roomClaimsForRoom(c, roomID)

	ok, err := a.core.DeletePost(c.Request.Context(), roomID, postID, userClaims.UserID, isAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		respondError(c, apperr.New(apperr.KindNotFound, "post not found"))
		return
	}
	c.Status(http.StatusOK)
}
