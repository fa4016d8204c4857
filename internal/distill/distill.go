// Package distill implements the Distiller (§4.C): batches pending events
// for a session, calls the LM once to produce structured memory records,
// marks superseded records stale, and compacts when a project's active
// pool grows past its cap.
package distill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/majiayu000/remem/internal/llm"
	"github.com/majiayu000/remem/internal/store"
)

const (
	batchSize        = 15
	deltaContextSize = 10
	leaseSecs        = 240
	llmTimeout       = 90 * time.Second
	keepNewest       = 50
	compactCount     = 30
	activeCap        = 100
)

// Result reports what one Distill call did, used by CLI commands (flush,
// session-init) that print or log a summary line.
type Result struct {
	Claimed     int
	Inserted    []int64
	Staled      int
	Compacted   bool
}

// Distill runs one batch turn for (sessionID, memorySessionID, project).
// It returns a zero Result with no error when there is nothing pending —
// that is not a failure, just idle.
func Distill(ctx context.Context, s *store.Store, exec llm.Executor, sessionID, memorySessionID, project string) (Result, error) {
	events, err := s.ClaimPending(sessionID, batchSize, "distill-"+sessionID, leaseSecs)
	if err != nil {
		return Result{}, fmt.Errorf("distill: claim pending: %w", err)
	}
	if len(events) == 0 {
		return Result{}, nil
	}

	deltaContext, err := s.ListContext(project, store.ContextOptions{TotalMemories: deltaContextSize})
	if err != nil {
		return Result{}, fmt.Errorf("distill: load delta context: %w", err)
	}

	prompt := buildDistillPrompt(deltaContext.Memories, events)

	llmCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	resp, err := exec.Complete(llmCtx, llm.CompletionRequest{
		SystemPrompt: distillSystemPrompt,
		UserMessage:  prompt,
	})
	if err != nil {
		// Failure policy: pending rows are NOT deleted; they retry on the
		// next distill. The lease set by ClaimPending will simply expire.
		return Result{}, fmt.Errorf("distill: llm completion: %w", err)
	}

	parsed := parseObservations(resp.Text)
	if len(parsed) == 0 {
		return Result{}, fmt.Errorf("distill: malformed llm response: no observations parsed")
	}

	tokensPerMemory := resp.TotalTokens() / int64(len(parsed))
	memories := make([]store.Memory, 0, len(parsed))
	var unionFiles []string
	seen := make(map[string]bool)
	for _, p := range parsed {
		m := store.Memory{
			MemorySessionID: memorySessionID,
			Project:         project,
			Kind:            toKind(p.Kind),
			Title:           p.Title,
			Subtitle:        p.Subtitle,
			Narrative:       p.Narrative,
			Facts:           p.Facts,
			Concepts:        p.Concepts,
			FilesRead:       p.FilesRead,
			FilesModified:   p.FilesModified,
			DiscoveryTokens: tokensPerMemory,
		}
		memories = append(memories, m)
		for _, f := range p.FilesModified {
			if !seen[f] {
				seen[f] = true
				unionFiles = append(unionFiles, f)
			}
		}
	}

	ids, err := s.InsertMemories(memories)
	if err != nil {
		return Result{}, fmt.Errorf("distill: insert memories: %w", err)
	}

	staled, err := s.MarkStaleByFileOverlap(project, unionFiles, ids)
	if err != nil {
		return Result{}, fmt.Errorf("distill: mark stale: %w", err)
	}

	pendingIDs := make([]int64, len(events))
	for i, e := range events {
		pendingIDs[i] = e.ID
	}
	if err := s.DeletePending(pendingIDs); err != nil {
		return Result{}, fmt.Errorf("distill: delete pending: %w", err)
	}

	result := Result{Claimed: len(events), Inserted: ids, Staled: staled}

	active, err := s.CountActive(project)
	if err != nil {
		return result, fmt.Errorf("distill: count active: %w", err)
	}
	if active > activeCap {
		if err := compact(ctx, s, exec, project); err != nil {
			return result, fmt.Errorf("distill: compact: %w", err)
		}
		result.Compacted = true
	}

	return result, nil
}

func compact(ctx context.Context, s *store.Store, exec llm.Executor, project string) error {
	candidates, err := s.CompactionCandidates(project, keepNewest, compactCount)
	if err != nil {
		return fmt.Errorf("compaction candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	prompt := buildCompactPrompt(candidates)

	llmCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	resp, err := exec.Complete(llmCtx, llm.CompletionRequest{
		SystemPrompt: compactSystemPrompt,
		UserMessage:  prompt,
	})
	if err != nil {
		return fmt.Errorf("compaction llm call: %w", err)
	}

	parsed := parseObservations(resp.Text)
	if len(parsed) == 0 {
		return fmt.Errorf("compaction: no merged observations parsed")
	}

	merged := make([]store.Memory, 0, len(parsed))
	tokensPer := resp.TotalTokens() / int64(len(parsed))
	for _, p := range parsed {
		merged = append(merged, store.Memory{
			Project:         project,
			Kind:            toKind(p.Kind),
			Title:           p.Title,
			Subtitle:        p.Subtitle,
			Narrative:       p.Narrative,
			Facts:           p.Facts,
			Concepts:        p.Concepts,
			DiscoveryTokens: tokensPer,
		})
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	if _, err := s.MarkCompressedAndInsert(ids, merged); err != nil {
		return fmt.Errorf("compaction commit: %w", err)
	}
	return nil
}

const distillSystemPrompt = `You distill a batch of tool-use events from a coding session into structured
memory records. Avoid duplicating facts already present in the prior memories shown to you.
Respond with one or more <observation> blocks, each containing <type> (one of bugfix, feature,
refactor, discovery, decision, change, other), <title>, <subtitle>, <narrative>, and list tags
<facts><fact>...</fact></facts>, <concepts><concept>...</concept></concepts>,
<files_read><file>...</file></files_read>, <files_modified><file>...</file></files_modified>.`

const compactSystemPrompt = `You collapse a batch of older memory records from a coding session into
1-2 concise merged records, preserving the facts and files that still matter. Respond with the
same <observation> block format as a normal distillation.`

func buildDistillPrompt(priorMemories []store.Memory, events []store.PendingEvent) string {
	var b strings.Builder
	b.WriteString("Prior known memories (avoid duplicating):\n")
	for _, m := range priorMemories {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", m.Kind, m.Title, m.Subtitle)
	}
	b.WriteString("\nEvents to distill, in order:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "- tool=%s input=%s response=%s\n", e.ToolName, e.ToolInput, e.ToolResponse)
	}
	return b.String()
}

func buildCompactPrompt(oldest []store.Memory) string {
	var b strings.Builder
	b.WriteString("Older memories to collapse into 1-2 merged records:\n")
	for _, m := range oldest {
		fmt.Fprintf(&b, "- [%s] %s: %s\n  %s\n", m.Kind, m.Title, m.Subtitle, m.Narrative)
	}
	return b.String()
}
