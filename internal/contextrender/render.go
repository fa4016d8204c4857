// Package contextrender implements the Context Renderer (§4.E): selection,
// grouping, and markdown formatting of memories and session summaries for
// injection into a new session, closely following the original's
// context.rs rendering logic.
package contextrender

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/majiayu000/remem/internal/store"
)

// Options mirrors the defaults table in §4.E.
type Options struct {
	TotalMemories int
	FullCount     int
	SessionCount  int
	Kinds         []string
	ShowReadTokens bool
	ShowWorkTokens bool
	ShowLastSummary bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		TotalMemories:   50,
		FullCount:       10,
		SessionCount:    10,
		Kinds:           []string{"bugfix", "feature", "refactor", "discovery", "decision", "change"},
		ShowReadTokens:  true,
		ShowWorkTokens:  true,
		ShowLastSummary: true,
	}
}

var kindEmoji = map[store.Kind]string{
	store.KindBugfix:    "🐛",
	store.KindFeature:   "✨",
	store.KindRefactor:  "🔧",
	store.KindDiscovery: "🔍",
	store.KindDecision:  "📌",
	store.KindChange:    "🔁",
	store.KindOther:     "📝",
}

// Render produces the full markdown context document for project.
func Render(s *store.Store, project string, opts Options) (string, error) {
	data, err := s.ListContext(project, store.ContextOptions{
		TotalMemories: opts.TotalMemories,
		SessionCount:  opts.SessionCount,
		Kinds:         opts.Kinds,
	})
	if err != nil {
		return "", fmt.Errorf("contextrender: list context: %w", err)
	}

	if len(data.Memories) == 0 && len(data.Summaries) == 0 {
		return renderEmptyState(), nil
	}

	selected := selectMemories(data.Memories, opts)

	var b strings.Builder
	b.WriteString("# Project Memory\n\n")

	if opts.ShowLastSummary && len(data.Summaries) > 0 {
		renderSummary(&b, data.Summaries[0])
	}

	renderGroupedTimeline(&b, selected, opts)

	if opts.ShowReadTokens || opts.ShowWorkTokens {
		renderTokenEconomics(&b, b.String(), data.Totals, opts)
	}

	return b.String(), nil
}

func renderEmptyState() string {
	return "_No previous sessions for this project._\n"
}

// selectMemories applies §4.E's ordering (kind priority, then time
// descending) and the 20%-of-active-shown stale cap.
func selectMemories(memories []store.Memory, opts Options) []store.Memory {
	var active, stale []store.Memory
	for _, m := range memories {
		if m.Status == store.StatusStale {
			stale = append(stale, m)
		} else {
			active = append(active, m)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Kind.Priority() != active[j].Kind.Priority() {
			return active[i].Kind.Priority() < active[j].Kind.Priority()
		}
		return active[i].CreatedAtEpoch > active[j].CreatedAtEpoch
	})
	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].CreatedAtEpoch > stale[j].CreatedAtEpoch
	})

	staleCap := int(0.2 * float64(len(active)))
	if len(stale) > staleCap {
		stale = stale[:staleCap]
	}

	return append(active, stale...)
}

func renderSummary(b *strings.Builder, s store.Summary) {
	b.WriteString("## Last Session Summary\n\n")
	if s.Request != "" {
		fmt.Fprintf(b, "**Request:** %s\n\n", s.Request)
	}
	if s.Completed != "" {
		fmt.Fprintf(b, "**Completed:** %s\n\n", s.Completed)
	}
	if s.Decisions != "" {
		fmt.Fprintf(b, "**Decisions:** %s\n\n", s.Decisions)
	}
	if s.Learned != "" {
		fmt.Fprintf(b, "**Learned:** %s\n\n", s.Learned)
	}
	if s.NextSteps != "" {
		fmt.Fprintf(b, "**Next steps:** %s\n\n", s.NextSteps)
	}
	if s.Preferences != "" {
		fmt.Fprintf(b, "**Preferences:** %s\n\n", s.Preferences)
	}
}

// renderGroupedTimeline groups memories by day, then by session, rendering
// the top FullCount entries with full narrative and the rest as table rows.
func renderGroupedTimeline(b *strings.Builder, memories []store.Memory, opts Options) {
	byDay := map[string][]store.Memory{}
	var dayOrder []string
	for _, m := range memories {
		day := time.Unix(m.CreatedAtEpoch, 0).UTC().Format("2006-01-02")
		if _, ok := byDay[day]; !ok {
			dayOrder = append(dayOrder, day)
		}
		byDay[day] = append(byDay[day], m)
	}

	rendered := 0
	for _, day := range dayOrder {
		fmt.Fprintf(b, "## %s\n\n", day)

		bySession := map[string][]store.Memory{}
		var sessionOrder []string
		for _, m := range byDay[day] {
			if _, ok := bySession[m.MemorySessionID]; !ok {
				sessionOrder = append(sessionOrder, m.MemorySessionID)
			}
			bySession[m.MemorySessionID] = append(bySession[m.MemorySessionID], m)
		}

		for _, sessID := range sessionOrder {
			fmt.Fprintf(b, "### Session %s\n\n", sessID)

			var tableRows []store.Memory
			for _, m := range bySession[sessID] {
				if rendered < opts.FullCount {
					renderFullObservation(b, m)
					rendered++
				} else {
					tableRows = append(tableRows, m)
				}
			}
			if len(tableRows) > 0 {
				renderTable(b, tableRows)
			}
		}
	}
}

func renderFullObservation(b *strings.Builder, m store.Memory) {
	emoji := kindEmoji[m.Kind]
	fmt.Fprintf(b, "**%s %s** — %s\n\n%s\n\n", emoji, m.Title, m.Subtitle, m.Narrative)
	if m.Status == store.StatusStale {
		b.WriteString("_[stale: superseded by a later change to the same files]_\n\n")
	}
}

func renderTable(b *strings.Builder, rows []store.Memory) {
	b.WriteString("| Kind | Title | Subtitle |\n|---|---|---|\n")
	for _, m := range rows {
		status := ""
		if m.Status == store.StatusStale {
			status = " (stale)"
		}
		fmt.Fprintf(b, "| %s%s | %s | %s |\n", kindEmoji[m.Kind], status, m.Title, m.Subtitle)
	}
	b.WriteString("\n")
}

const charsPerToken = 4

// renderTokenEconomics reports rendered-context bytes/4 as "read tokens"
// against the cumulative discovery-token cost of every memory ListContext
// loaded, including stale ones the 20% cap left out of the rendering.
func renderTokenEconomics(b *strings.Builder, renderedSoFar string, totals store.Totals, opts Options) {
	readTokens := int64(len(renderedSoFar) / charsPerToken)

	b.WriteString("## Token Economics\n\n")
	if opts.ShowReadTokens {
		fmt.Fprintf(b, "- Read tokens (this context): ~%d\n", readTokens)
	}
	if opts.ShowWorkTokens {
		fmt.Fprintf(b, "- Discovery tokens (spent producing this memory): ~%d\n", totals.CumulativeDiscovery)
	}
	if totals.CumulativeDiscovery > 0 {
		savings := 1 - float64(readTokens)/float64(totals.CumulativeDiscovery)
		fmt.Fprintf(b, "- Savings vs. re-discovering from scratch: ~%.0f%%\n", savings*100)
	}
}
