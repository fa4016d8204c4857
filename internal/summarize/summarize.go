// Package summarize implements the Summarizer & Gate (§4.D): the
// three-layer gate deciding whether a session-stop deserves a summary, and
// the detached worker that runs the Distiller then produces the summary.
package summarize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/majiayu000/remem/internal/distill"
	"github.com/majiayu000/remem/internal/llm"
	"github.com/majiayu000/remem/internal/store"
)

// GateResult reports which gate, if any, rejected the request.
type GateResult struct {
	Passed bool
	Reason string
}

// HashMessage is the stable dedup key for the assistant's final message.
func HashMessage(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:])
}

// CheckGates runs Gate 1 (minimum activity) then a non-mutating soft check
// of Gates 2+3 (cooldown plus hash dedup). It never writes the cooldown
// placeholder — that write is the detached worker's job, via
// store.CooldownTryAcquire. A dispatcher that acquired here itself would
// hand the worker a hash it can never win against, since the worker
// checks the exact same (project, hash) pair.
func CheckGates(s *store.Store, sessionID, project, assistantMessage string, minPending int, cooldownSecs int64) (GateResult, error) {
	pending, err := s.CountPending(sessionID)
	if err != nil {
		return GateResult{}, fmt.Errorf("summarize: count pending: %w", err)
	}
	if pending < minPending {
		return GateResult{Passed: false, Reason: "gate1: insufficient activity"}, nil
	}

	hash := HashMessage(assistantMessage)
	wouldAcquire, err := s.CooldownWouldAcquire(project, hash, cooldownSecs, time.Now())
	if err != nil {
		return GateResult{}, fmt.Errorf("summarize: cooldown peek: %w", err)
	}
	if !wouldAcquire {
		return GateResult{Passed: false, Reason: "gate2/3: cooldown or duplicate message"}, nil
	}

	return GateResult{Passed: true}, nil
}

// RunWorker is the detached worker's body: it is the single atomic
// acquirer of the cooldown gate (the dispatcher's CheckGates only peeked),
// so in a storm every dispatcher that passed the soft check races here and
// exactly one worker wins — the rest back off. The winner runs the
// Distiller, loads the prior summary, and upserts a merged summary. The
// global 180s hard cap is enforced by the caller via ctx.
func RunWorker(ctx context.Context, s *store.Store, exec llm.Executor, sessionID, memorySessionID, project, assistantMessage string, cooldownSecs int64) error {
	hash := HashMessage(assistantMessage)
	acquired, err := s.CooldownTryAcquire(project, hash, cooldownSecs, time.Now())
	if err != nil {
		return fmt.Errorf("summarize worker: cooldown acquire: %w", err)
	}
	if !acquired {
		// Another worker already won this window; back off quietly. The
		// placeholder it wrote stands — this is correct per §5.
		return nil
	}

	if _, err := distill.Distill(ctx, s, exec, sessionID, memorySessionID, project); err != nil {
		return fmt.Errorf("summarize worker: distill: %w", err)
	}

	prior, err := s.GetSummary(memorySessionID, project)
	if err != nil {
		return fmt.Errorf("summarize worker: lookup prior summary: %w", err)
	}

	ctx2 := ctx
	prompt := buildSummaryPrompt(prior, assistantMessage)
	resp, err := exec.Complete(ctx2, llm.CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		UserMessage:  prompt,
	})
	if err != nil {
		return fmt.Errorf("summarize worker: llm completion: %w", err)
	}

	summary := parseSummary(resp.Text)
	if summary == nil {
		// <skip_summary/> or malformed response: leave no summary row for
		// this pass, but the cooldown placeholder already written stands.
		return nil
	}
	summary.MemorySessionID = memorySessionID
	summary.Project = project
	summary.DiscoveryTokens = resp.TotalTokens()

	if _, err := s.UpsertSummary(*summary); err != nil {
		return fmt.Errorf("summarize worker: upsert summary: %w", err)
	}
	return nil
}

const summarySystemPrompt = `You write a session summary for a coding assistant's memory. If the prior
summary is shown, merge it with the new information (monotonic merge, never regress to something
the prior summary already captured). Respond with <request>, <completed>, <decisions>, <learned>,
<next_steps>, <preferences> tags, or with <skip_summary/> if there is nothing worth recording.`

func buildSummaryPrompt(prior *store.Summary, assistantMessage string) string {
	var b strings.Builder
	if prior != nil {
		fmt.Fprintf(&b, "Prior summary:\nrequest=%s\ncompleted=%s\ndecisions=%s\nlearned=%s\nnext_steps=%s\npreferences=%s\n\n",
			prior.Request, prior.Completed, prior.Decisions, prior.Learned, prior.NextSteps, prior.Preferences)
	}
	b.WriteString("Assistant's final message for this session:\n")
	b.WriteString(assistantMessage)
	return b.String()
}

func parseSummary(text string) *store.Summary {
	if strings.Contains(text, "<skip_summary") {
		return nil
	}
	field := func(tag string) string {
		open := "<" + tag + ">"
		close := "</" + tag + ">"
		start := strings.Index(text, open)
		if start < 0 {
			return ""
		}
		start += len(open)
		end := strings.Index(text[start:], close)
		if end < 0 {
			return ""
		}
		return strings.TrimSpace(text[start : start+end])
	}

	s := &store.Summary{
		Request:     field("request"),
		Completed:   field("completed"),
		Decisions:   field("decisions"),
		Learned:     field("learned"),
		NextSteps:   field("next_steps"),
		Preferences: field("preferences"),
	}
	if s.Request == "" && s.Completed == "" && s.Decisions == "" && s.Learned == "" {
		return nil
	}
	return s
}
