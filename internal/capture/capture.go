// Package capture implements Event Capture (§4.B): the sub-millisecond,
// no-LM filter that turns one host tool-use record into a pending row.
package capture

import (
	"path/filepath"
	"strings"

	"github.com/majiayu000/remem/internal/store"
)

const maxResponseBytes = 4 * 1024

// allowedTools is the only set of tools worth remembering; every other
// tool is read-only from the system's point of view.
var allowedTools = map[string]bool{
	"Write":        true,
	"Edit":         true,
	"NotebookEdit": true,
	"Bash":         true,
}

// bashSkipPrefixes are read-only or dependency-install shells that would
// otherwise flood the pending queue with no distillable content.
var bashSkipPrefixes = []string{
	"git status", "git log", "git diff", "git show", "git branch",
	"ls", "cat", "pwd", "echo", "which",
	"npm install", "npm ci", "cargo build", "cargo check",
	"go build", "go vet", "go test",
}

// ToolEvent is one host-reported tool-use record.
type ToolEvent struct {
	SessionID    string
	CWD          string
	ToolName     string
	ToolInput    string
	ToolResponse string
	BashCommand  string
}

// ProjectFromCWD derives the scoping key: the last two path segments of the
// working directory, to disambiguate same-named repositories.
func ProjectFromCWD(cwd string) string {
	cwd = filepath.Clean(cwd)
	parts := strings.Split(cwd, string(filepath.Separator))
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return cwd
	}
	if len(nonEmpty) == 1 {
		return nonEmpty[0]
	}
	return filepath.Join(nonEmpty[len(nonEmpty)-2], nonEmpty[len(nonEmpty)-1])
}

func shouldSkipBash(command string) bool {
	trimmed := strings.TrimSpace(command)
	for _, prefix := range bashSkipPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	end := maxBytes
	for end > 0 && !isUTF8Boundary(s, end) {
		end--
	}
	return s[:end]
}

func isUTF8Boundary(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return s[i]&0xC0 != 0x80
}

// Capture applies the §4.B filter and, if the event passes, enqueues it.
// It returns (false, nil) for a deliberate skip and never blocks the host:
// callers should log a non-nil error and still exit 0.
func Capture(s *store.Store, ev ToolEvent) (captured bool, err error) {
	if !allowedTools[ev.ToolName] {
		return false, nil
	}
	if ev.ToolName == "Bash" && shouldSkipBash(ev.BashCommand) {
		return false, nil
	}

	project := ProjectFromCWD(ev.CWD)
	response := truncate(ev.ToolResponse, maxResponseBytes)

	err = s.EnqueueEvent(store.PendingEvent{
		SessionID:    ev.SessionID,
		Project:      project,
		ToolName:     ev.ToolName,
		ToolInput:    ev.ToolInput,
		ToolResponse: response,
		CWD:          ev.CWD,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
