package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/urmzd/pira/pkg/db"
	"github.com/urmzd/pira/pkg/state"
)

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := s.now()
	out := GetHealthOutput{
		Status:    "degraded",
		Pira:      "unknown",
		Timestamp: now.UTC().Format(time.RFC3339),
	}

	snap, err := s.snapshot.Load()
	if err != nil {
		if !errors.Is(err, state.ErrNoSnapshot) {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load state: %s", err)), nil
		}
		return mcp.NewToolResultText(formatJSON(out)), nil
	}

	out.State = snap.State
	out.SavedAt = snap.SavedAt.UTC().Format(time.RFC3339)
	out.Pira = "disconnected"
	if snap.PiraOK {
		out.Pira = "connected"
	}

	fresh := s.maxAge <= 0 || now.Sub(snap.SavedAt) <= s.maxAge
	switch {
	case !fresh:
		out.Status = "stale"
	case snap.PiraOK:
		out.Status = "healthy"
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.snapshot.Load()
	if errors.Is(err, state.ErrNoSnapshot) {
		return mcp.NewToolResultError("supervisor has not saved any state yet"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load state: %s", err)), nil
	}

	out := GetStatusOutput{
		Snapshot: snap,
		Age:      s.now().Sub(snap.SavedAt).Round(time.Second).String(),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListLogEntries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.entries == nil {
		return mcp.NewToolResultError("event log is not available"), nil
	}

	opts := db.ListOptions{}
	if kind, ok := request.GetArguments()["kind"].(string); ok {
		opts.Kind = kind
	}
	var err error
	if opts.BootID, err = optionalInt(request, "boot_id"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit, err := optionalInt(request, "limit")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts.Limit = int(limit)

	entries, err := s.entries.List(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list log entries: %s", err)), nil
	}

	infos := make([]LogEntryInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, LogEntryInfo{
			ID:        e.ID,
			BootID:    e.BootID,
			Kind:      e.Kind,
			Value:     e.Value,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}

	out := ListLogEntriesOutput{Entries: infos, Count: len(infos)}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListBoots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.boots == nil {
		return mcp.NewToolResultError("event log is not available"), nil
	}

	limit, err := optionalInt(request, "limit")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	boots, err := s.boots.List(ctx, int(limit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list boots: %s", err)), nil
	}

	infos := make([]BootInfo, 0, len(boots))
	for _, b := range boots {
		infos = append(infos, BootInfo{
			ID:        b.ID,
			Session:   b.Session,
			Timezone:  b.Timezone,
			StartedAt: b.StartedAt.Format(time.RFC3339),
		})
	}

	out := ListBootsOutput{Boots: infos, Count: len(infos)}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// --- helpers ---

// optionalInt returns 0 when key is absent.
func optionalInt(request mcp.CallToolRequest, key string) (int64, error) {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("parameter %q must be a non-negative integer", key)
	}
	return int64(f), nil
}

func formatJSON(v any) string {
	b, err := encodeJSON(v)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}

func encodeJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
