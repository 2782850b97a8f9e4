package types

import (
	"time"

	"github.com/urmzd/pira/pkg/state"
)

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string     `json:"status"`
	Pira      string     `json:"pira"`
	State     string     `json:"state,omitempty"`
	SavedAt   *time.Time `json:"saved_at,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// StatusResponse is returned from GET /api/v1/status
type StatusResponse struct {
	Snapshot *state.Snapshot `json:"snapshot"`
	Age      string          `json:"age"`
}

// LogEntry is one event log row
type LogEntry struct {
	ID        int64     `json:"id"`
	BootID    int64     `json:"boot_id"`
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// ListLogResponse is returned from GET /api/v1/log
type ListLogResponse struct {
	Entries []LogEntry `json:"entries"`
	Count   int        `json:"count"`
}
