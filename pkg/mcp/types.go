package mcp

import "github.com/urmzd/pira/pkg/state"

// --- Health Tool ---

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status    string `json:"status" jsonschema:"description=healthy, degraded or stale"`
	Pira      string `json:"pira" jsonschema:"description=PiraSmart link status"`
	State     string `json:"state,omitempty" jsonschema:"description=Supervisor lifecycle state"`
	SavedAt   string `json:"saved_at,omitempty" jsonschema:"description=ISO8601 time of the last snapshot"`
	Timestamp string `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// --- Status Tool ---

// GetStatusOutput is the output for the get_status tool
type GetStatusOutput struct {
	Snapshot *state.Snapshot `json:"snapshot" jsonschema:"description=Last persisted supervisor state"`
	Age      string          `json:"age" jsonschema:"description=Time since the snapshot was saved"`
}

// --- Log Tools ---

// LogEntryInfo represents an event log entry in tool outputs
type LogEntryInfo struct {
	ID        int64  `json:"id"`
	BootID    int64  `json:"boot_id"`
	Kind      string `json:"kind"`
	Value     string `json:"value"`
	CreatedAt string `json:"created_at"`
}

// ListLogEntriesOutput is the output for the list_log_entries tool
type ListLogEntriesOutput struct {
	Entries []LogEntryInfo `json:"entries"`
	Count   int            `json:"count"`
}

// BootInfo represents a boot in tool outputs
type BootInfo struct {
	ID        int64  `json:"id"`
	Session   string `json:"session"`
	Timezone  string `json:"timezone"`
	StartedAt string `json:"started_at"`
}

// ListBootsOutput is the output for the list_boots tool
type ListBootsOutput struct {
	Boots []BootInfo `json:"boots"`
	Count int        `json:"count"`
}
