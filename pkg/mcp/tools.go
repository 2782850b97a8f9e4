package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check whether the Pira supervisor is saving state and talking to the PiraSmart microcontroller"),
		),
		s.handleGetHealth,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_status",
			mcp.WithDescription("Get the last state snapshot saved by the supervisor: lifecycle state, battery voltage, PiraSmart timers, charging and loaded modules"),
		),
		s.handleGetStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_log_entries",
			mcp.WithDescription("List station event log entries, newest first"),
			mcp.WithString("kind",
				mcp.Description("Filter by kind: system or device.voltage"),
				mcp.Enum("system", "device.voltage"),
			),
			mcp.WithNumber("boot_id",
				mcp.Description("Only entries of this boot"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of entries (default 100)"),
			),
		),
		s.handleListLogEntries,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_boots",
			mcp.WithDescription("List supervisor boots, newest first"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of boots (default 20)"),
			),
		),
		s.handleListBoots,
	)
}
