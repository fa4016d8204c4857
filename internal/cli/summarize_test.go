package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTranscript(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}

func TestExtractLastAssistantMessageReturnsLastTextBlock(t *testing.T) {
	path := writeTranscript(t, []string{
		`{"type":"user","message":{"content":[{"type":"text","text":"hi"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"first reply"}]}}`,
		`{"type":"user","message":{"content":[{"type":"text","text":"follow up"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"second reply"}]}}`,
	})

	got := extractLastAssistantMessage(path)
	if got != "second reply" {
		t.Fatalf("extractLastAssistantMessage() = %q, want %q", got, "second reply")
	}
}

func TestExtractLastAssistantMessageJoinsMultipleTextBlocks(t *testing.T) {
	path := writeTranscript(t, []string{
		`{"type":"assistant","message":{"content":[{"type":"text","text":"part one"},{"type":"text","text":"part two"}]}}`,
	})

	got := extractLastAssistantMessage(path)
	if got != "part one\npart two" {
		t.Fatalf("extractLastAssistantMessage() = %q", got)
	}
}

func TestExtractLastAssistantMessageSkipsToolOnlyEntries(t *testing.T) {
	path := writeTranscript(t, []string{
		`{"type":"assistant","message":{"content":[{"type":"text","text":"useful reply"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","text":""}]}}`,
	})

	got := extractLastAssistantMessage(path)
	if got != "useful reply" {
		t.Fatalf("extractLastAssistantMessage() = %q, want fallback to prior text-bearing entry", got)
	}
}

func TestExtractLastAssistantMessageMissingFile(t *testing.T) {
	if got := extractLastAssistantMessage("/nonexistent/transcript.jsonl"); got != "" {
		t.Fatalf("extractLastAssistantMessage() = %q, want empty for missing file", got)
	}
}

func TestExtractLastAssistantMessageMalformedLines(t *testing.T) {
	path := writeTranscript(t, []string{
		`not json at all`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"ok reply"}]}}`,
		`{broken`,
	})

	got := extractLastAssistantMessage(path)
	if got != "ok reply" {
		t.Fatalf("extractLastAssistantMessage() = %q, want %q", got, "ok reply")
	}
}
