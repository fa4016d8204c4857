package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/majiayu000/remem/internal/store"
)

func searchTool() mcp.Tool {
	return mcp.NewTool("mem_search",
		mcp.WithDescription("Full-text search over this project's memory. Call this before mem_get_observations — "+
			"it ranks by relevance and recency and returns truncated snippets, which is usually enough to decide "+
			"whether to dig further."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms. Matches titles, subtitles, narratives, facts, and concepts.")),
		mcp.WithNumber("limit", mcp.Description("Maximum results to return. Defaults to 10.")),
	)
}

func (s *Server) handleSearch(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	limit := req.GetInt("limit", 10)

	hits, err := s.store.SearchFTS(query, s.project, nil, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("No matching observations."), nil
	}

	var b strings.Builder
	for _, h := range hits {
		status := ""
		if h.Status == store.StatusStale {
			status = " (stale)"
		}
		fmt.Fprintf(&b, "#%d [%s]%s %s — %s\n  %s\n\n", h.ID, h.Kind, status, h.Title, h.Subtitle, h.Snippet)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func getObservationsTool() mcp.Tool {
	return mcp.NewTool("mem_get_observations",
		mcp.WithDescription("Fetch the full, untruncated narrative for specific observation IDs returned by "+
			"mem_search or mem_timeline. Prefer search first; this is for drilling into results you've already "+
			"identified as relevant."),
		mcp.WithString("ids", mcp.Required(), mcp.Description("Comma-separated observation IDs, e.g. \"12,47,48\".")),
	)
}

func (s *Server) handleGetObservations(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idsStr, err := req.RequireString("ids")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: ids"), nil
	}

	var ids []int64
	for _, part := range strings.Split(idsStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var id int64
		if _, err := fmt.Sscanf(part, "%d", &id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid id %q", part)), nil
		}
		ids = append(ids, id)
	}

	memories, err := s.store.GetMemories(ids)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %v", err)), nil
	}
	if len(memories) == 0 {
		return mcp.NewToolResultText("No observations found for those IDs."), nil
	}
	_ = s.store.RecordAccess(ids)

	var b strings.Builder
	for _, m := range memories {
		if m.Status == store.StatusStale {
			b.WriteString("[stale: superseded by a later change to the same files]\n")
		}
		fmt.Fprintf(&b, "#%d [%s] %s — %s\n\n%s\n\n", m.ID, m.Kind, m.Title, m.Subtitle, m.Narrative)
		if len(m.Facts) > 0 {
			fmt.Fprintf(&b, "Facts: %s\n", strings.Join(m.Facts, "; "))
		}
		if len(m.FilesModified) > 0 {
			fmt.Fprintf(&b, "Files modified: %s\n", strings.Join(m.FilesModified, ", "))
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func timelineTool() mcp.Tool {
	return mcp.NewTool("mem_timeline",
		mcp.WithDescription("Show observations recorded immediately before and after a given observation, in "+
			"creation order. Useful for reconstructing the sequence of a past investigation once mem_search has "+
			"pointed you at one relevant entry."),
		mcp.WithNumber("observation_id", mcp.Required(), mcp.Description("The observation to center the timeline on.")),
		mcp.WithNumber("window", mcp.Description("How many entries to show on each side. Defaults to 5.")),
	)
}

func (s *Server) handleTimeline(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	centerFloat, err := req.RequireFloat("observation_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: observation_id"), nil
	}
	window := req.GetInt("window", 5)

	items, err := s.store.Timeline(int64(centerFloat), window, window)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("timeline failed: %v", err)), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("No observations found around that ID."), nil
	}

	var b strings.Builder
	for _, m := range items {
		marker := "  "
		if m.ID == int64(centerFloat) {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s#%d [%s] %s — %s\n", marker, m.ID, m.Kind, m.Title, m.Subtitle)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func saveMemoryTool() mcp.Tool {
	return mcp.NewTool("mem_save_memory",
		mcp.WithDescription("Explicitly save something worth remembering: a decision, a user preference, or a "+
			"constraint stated outright. Unlike observations captured automatically from tool use, saved memories "+
			"are never marked stale by later file changes — use this for things that stay true regardless of what "+
			"the code looks like."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short title, e.g. \"Prefers tabs over spaces\".")),
		mcp.WithString("narrative", mcp.Required(), mcp.Description("The full content to remember.")),
		mcp.WithString("kind", mcp.Description("One of decision, feature, bugfix, refactor, discovery, change, other. Defaults to decision.")),
	)
}

func (s *Server) handleSaveMemory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	narrative, err := req.RequireString("narrative")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: narrative"), nil
	}
	kindStr := req.GetString("kind", string(store.KindDecision))

	m := store.Memory{
		Project:   s.project,
		Kind:      store.Kind(kindStr),
		Title:     title,
		Narrative: narrative,
	}

	ids, err := s.store.InsertMemories([]store.Memory{m})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved as observation #%d.", ids[0])), nil
}
