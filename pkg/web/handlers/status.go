package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/pira/pkg/db"
	"github.com/urmzd/pira/pkg/state"
	"github.com/urmzd/pira/pkg/web/types"
)

// StatusHandler serves the persisted station state
type StatusHandler struct {
	source SnapshotSource
	now    func() time.Time
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(source SnapshotSource) *StatusHandler {
	return &StatusHandler{source: source, now: time.Now}
}

// Status handles GET /api/v1/status
// @Summary      Station status
// @Description  Returns the last state snapshot saved by the supervisor
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Failure      404  {object}  types.ErrorResponse  "No snapshot saved yet"
// @Failure      500  {object}  types.ErrorResponse
// @Router       /api/v1/status [get]
func (h *StatusHandler) Status(c *gin.Context) {
	snap, err := h.source.Load()
	if errors.Is(err, state.ErrNoSnapshot) {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "Supervisor has not saved any state yet",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "state_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.StatusResponse{
		Snapshot: snap,
		Age:      h.now().Sub(snap.SavedAt).Round(time.Second).String(),
	})
}

// EntryLister lists event log entries.
type EntryLister interface {
	List(ctx context.Context, opts db.ListOptions) ([]*db.Entry, error)
}

// LogHandler serves the station event log
type LogHandler struct {
	entries EntryLister
}

// NewLogHandler creates a new log handler
func NewLogHandler(entries EntryLister) *LogHandler {
	return &LogHandler{entries: entries}
}

// List handles GET /api/v1/log?kind=&boot_id=&limit=
// @Summary      List event log
// @Description  Lists station event log entries, newest first
// @Tags         log
// @Produce      json
// @Param        kind     query     string  false  "Entry kind"  Enums(system, device.voltage)
// @Param        boot_id  query     int     false  "Only entries of this boot"
// @Param        limit    query     int     false  "Maximum number of entries"  default(100)
// @Success      200      {object}  types.ListLogResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Router       /api/v1/log [get]
func (h *LogHandler) List(c *gin.Context) {
	opts := db.ListOptions{Kind: c.Query("kind")}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:   "invalid_request",
				Message: "limit must be a positive integer",
			})
			return
		}
		opts.Limit = n
	}
	if raw := c.Query("boot_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:   "invalid_request",
				Message: "boot_id must be an integer",
			})
			return
		}
		opts.BootID = id
	}

	entries, err := h.entries.List(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "log_error",
			Message: err.Error(),
		})
		return
	}

	result := make([]types.LogEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, types.LogEntry{
			ID:        e.ID,
			BootID:    e.BootID,
			Kind:      e.Kind,
			Value:     e.Value,
			CreatedAt: e.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, types.ListLogResponse{
		Entries: result,
		Count:   len(result),
	})
}
