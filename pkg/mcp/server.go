package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/urmzd/pira/pkg/db"
	"github.com/urmzd/pira/pkg/state"
)

// SnapshotSource loads the persisted supervisor snapshot
type SnapshotSource interface {
	Load() (*state.Snapshot, error)
}

// EntryLister lists event log entries
type EntryLister interface {
	List(ctx context.Context, opts db.ListOptions) ([]*db.Entry, error)
}

// BootLister lists recorded boots
type BootLister interface {
	List(ctx context.Context, limit int) ([]*db.Boot, error)
}

// Server wraps the MCP server with read-only station introspection
type Server struct {
	mcpServer *server.MCPServer
	snapshot  SnapshotSource
	entries   EntryLister
	boots     BootLister
	maxAge    time.Duration
	now       func() time.Time
}

// NewServer creates a new MCP server. entries and boots may be nil when no
// event log is available; the log tools then report an error.
func NewServer(snapshot SnapshotSource, entries EntryLister, boots BootLister, maxAge time.Duration) *Server {
	s := &Server{
		snapshot: snapshot,
		entries:  entries,
		boots:    boots,
		maxAge:   maxAge,
		now:      time.Now,
	}

	s.mcpServer = server.NewMCPServer(
		"pira",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
