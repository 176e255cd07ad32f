// Package health implements the liveness/readiness probe endpoints.
package health

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aria-chat/backend/go/internal/v1/logging"
	"github.com/aria-chat/backend/go/internal/v1/store"
)

// Handler serves the liveness and readiness probe endpoints.
type Handler struct {
	st        store.Store
	filesRoot string
}

// NewHandler builds a Handler. filesRoot is the root of the persisted
// media tree; readiness writes and removes a small probe file there
// to confirm the filesystem is writable.
func NewHandler(st store.Store, filesRoot string) *Handler {
	return &Handler{st: st, filesRoot: filesRoot}
}

// LivenessResponse is the liveness probe response body.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse is the readiness probe response body.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles GET /health/live: 200 as long as the process is up, with
// no dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles GET /health/ready: 200 only if every dependency check
// passes, 503 otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	storeStatus := h.checkStore(ctx)
	checks["store"] = storeStatus
	if storeStatus != "healthy" {
		allHealthy = false
	}

	filesStatus := h.checkFiles()
	checks["files"] = filesStatus
	if filesStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) checkStore(ctx context.Context) string {
	if h.st == nil {
		return "healthy"
	}
	if err := h.st.Ping(ctx); err != nil {
		logging.Error(ctx, "store health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}

// checkFiles confirms the media root is writable by creating and removing a
// probe file; a media pipeline that can't write derivatives is not ready to
// serve uploads even if the store is fine.
func (h *Handler) checkFiles() string {
	if h.filesRoot == "" {
		return "healthy"
	}
	probe := filepath.Join(h.filesRoot, ".health-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		logging.Error(context.Background(), "files health check failed", zap.Error(err))
		return "unhealthy"
	}
	_ = os.Remove(probe)
	return "healthy"
}
