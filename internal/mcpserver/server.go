// Package mcpserver implements the Query Server (§4.F): exposes the store
// to the host agent mid-session via four MCP tools (search, get_observations,
// timeline, save_memory), wired the way the teacher wires its MCP tools —
// one handler method per tool, registered against a single *server.MCPServer.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/majiayu000/remem/internal/store"
)

// Server owns the store handle and the tool registrations built on top of
// it. It is created once per `remem mcp` process and served over stdio.
type Server struct {
	store   *store.Store
	project string
}

// New constructs a Server scoped to project, then registers its tools on a
// fresh *server.MCPServer instance.
func New(s *store.Store, project, version string) *server.MCPServer {
	srv := &Server{store: s, project: project}

	mcpServer := server.NewMCPServer(
		"remem",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	mcpServer.AddTool(searchTool(), srv.handleSearch)
	mcpServer.AddTool(getObservationsTool(), srv.handleGetObservations)
	mcpServer.AddTool(timelineTool(), srv.handleTimeline)
	mcpServer.AddTool(saveMemoryTool(), srv.handleSaveMemory)

	return mcpServer
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout.
func ServeStdio(mcpServer *server.MCPServer) error {
	return server.ServeStdio(mcpServer)
}

func serverInstructions() string {
	return `remem keeps a per-project memory of what past sessions discovered, decided,
and changed. Call mem_search first to find relevant observations by keyword; its results
are truncated and ranked. Only call mem_get_observations on the specific IDs you need the
full narrative for — it is more expensive than search. Observations marked "stale" were
superseded by a later change that touched the same files; treat their content as historical,
not current. mem_timeline shows what happened immediately before and after a given
observation, useful for understanding the sequence of a past investigation. mem_save_memory
lets you record something explicitly worth remembering (a decision, a user preference, a
constraint the user stated) outside the normal tool-capture pipeline; memories saved this
way are never marked stale by file-overlap.`
}
