package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aria-chat/backend/go/internal/v1/model"
)

// handleSysConfig handles GET /api/sys/config.
func (a *api) handleSysConfig(c *gin.Context) {
	c.JSON(http.StatusOK, model.SysConfig{
		MaxEmoteSize: a.cfg.MaxEmoteSize,
		MaxImageSize: a.cfg.MaxImageSize,
	})
}
