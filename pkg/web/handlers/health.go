package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/pira/pkg/state"
	"github.com/urmzd/pira/pkg/web/types"
)

// SnapshotSource loads the persisted supervisor snapshot.
type SnapshotSource interface {
	Load() (*state.Snapshot, error)
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	source SnapshotSource
	maxAge time.Duration
	now    func() time.Time
}

// NewHealthHandler creates a new health handler. A snapshot older than maxAge
// counts as stale.
func NewHealthHandler(source SnapshotSource, maxAge time.Duration) *HealthHandler {
	return &HealthHandler{source: source, maxAge: maxAge, now: time.Now}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Reports whether the supervisor is saving state and talking to PiraSmart
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Station is healthy"
// @Failure      503  {object}  types.HealthResponse  "Station is degraded or its state is stale"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	now := h.now()
	resp := types.HealthResponse{
		Status:    "degraded",
		Pira:      "unknown",
		Timestamp: now,
	}

	snap, err := h.source.Load()
	if err != nil {
		if !errors.Is(err, state.ErrNoSnapshot) {
			resp.Pira = "error"
		}
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	resp.State = snap.State
	resp.SavedAt = &snap.SavedAt
	resp.Pira = "disconnected"
	if snap.PiraOK {
		resp.Pira = "connected"
	}

	fresh := h.maxAge <= 0 || now.Sub(snap.SavedAt) <= h.maxAge
	if snap.PiraOK && fresh {
		resp.Status = "healthy"
		c.JSON(http.StatusOK, resp)
		return
	}
	if !fresh {
		resp.Status = "stale"
	}
	c.JSON(http.StatusServiceUnavailable, resp)
}
