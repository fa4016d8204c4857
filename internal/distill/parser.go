package distill

import (
	"strings"

	"github.com/majiayu000/remem/internal/store"
)

// parsedObservation mirrors one <observation> block in the LM's response.
type parsedObservation struct {
	Kind          string
	Title         string
	Subtitle      string
	Narrative     string
	Facts         []string
	Concepts      []string
	FilesRead     []string
	FilesModified []string
}

// parseObservations scans text for <observation>...</observation> blocks
// and extracts their fields. This is deliberately a tolerant string
// scanner rather than an XML parser: the LM is a single, cooperative
// producer of this format, and a strict parser would only make a slightly
// malformed response (an unescaped `&`, a missing close tag) fail the
// whole batch instead of the one field that used it.
func parseObservations(text string) []parsedObservation {
	var out []parsedObservation
	for _, block := range extractAll(text, "observation") {
		out = append(out, parsedObservation{
			Kind:          strings.TrimSpace(extractField(block, "type")),
			Title:         strings.TrimSpace(extractField(block, "title")),
			Subtitle:      strings.TrimSpace(extractField(block, "subtitle")),
			Narrative:     strings.TrimSpace(extractField(block, "narrative")),
			Facts:         extractArray(block, "facts", "fact"),
			Concepts:      extractArray(block, "concepts", "concept"),
			FilesRead:     extractArray(block, "files_read", "file"),
			FilesModified: extractArray(block, "files_modified", "file"),
		})
	}
	return out
}

// extractField returns the content of the first <tag>...</tag> in s, or ""
// if not found.
func extractField(s, tag string) string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	start := strings.Index(s, open)
	if start < 0 {
		return ""
	}
	start += len(open)
	end := strings.Index(s[start:], close)
	if end < 0 {
		return ""
	}
	return s[start : start+end]
}

// extractArray returns the content of every <item> inside the first
// <list>...</list> block.
func extractArray(s, listTag, itemTag string) []string {
	block := extractField(s, listTag)
	if block == "" {
		return nil
	}
	return extractAll(block, itemTag)
}

// extractAll returns the inner content of every <tag>...</tag> occurrence
// in s, in order.
func extractAll(s, tag string) []string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	var out []string
	rest := s
	for {
		start := strings.Index(rest, open)
		if start < 0 {
			break
		}
		rest = rest[start+len(open):]
		end := strings.Index(rest, close)
		if end < 0 {
			break
		}
		out = append(out, rest[:end])
		rest = rest[end+len(close):]
	}
	return out
}

func toKind(raw string) store.Kind {
	switch store.Kind(raw) {
	case store.KindBugfix, store.KindFeature, store.KindRefactor, store.KindDiscovery,
		store.KindDecision, store.KindChange, store.KindOther:
		return store.Kind(raw)
	default:
		return store.KindOther
	}
}
