package mcpserver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/majiayu000/remem/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "remem.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Server{store: store.New(db), project: "proj"}
}

func callToolRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is not text: %T", res.Content[0])
	}
	return tc.Text
}

func TestHandleSaveMemoryThenGetObservations(t *testing.T) {
	s := newTestServer(t)

	saveRes, err := s.handleSaveMemory(context.Background(), callToolRequest(map[string]any{
		"title":     "user prefers tabs",
		"narrative": "The user stated a preference for tabs over spaces.",
	}))
	if err != nil {
		t.Fatalf("save memory: %v", err)
	}
	if saveRes.IsError {
		t.Fatalf("save memory returned error result: %s", resultText(t, saveRes))
	}

	memories, err := s.store.GetMemories([]int64{1})
	if err != nil || len(memories) != 1 {
		t.Fatalf("get memories: %v, %d", err, len(memories))
	}
	if memories[0].Kind != store.KindDecision {
		t.Fatalf("kind = %s, want decision default", memories[0].Kind)
	}

	getRes, err := s.handleGetObservations(context.Background(), callToolRequest(map[string]any{
		"ids": "1",
	}))
	if err != nil {
		t.Fatalf("get observations: %v", err)
	}
	if resultText(t, getRes) == "" {
		t.Fatal("expected non-empty observation text")
	}
}

func TestHandleSearchNoResults(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleSearch(context.Background(), callToolRequest(map[string]any{
		"query": "nonexistent",
	}))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resultText(t, res) != "No matching observations." {
		t.Fatalf("unexpected result: %s", resultText(t, res))
	}
}

func TestHandleGetObservationsRejectsMissingIDs(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleGetObservations(context.Background(), callToolRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("get observations: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected error result for missing ids param")
	}
}
