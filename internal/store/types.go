package store

import "time"

// Kind enumerates the memory kinds named in the data model.
type Kind string

const (
	KindBugfix    Kind = "bugfix"
	KindFeature   Kind = "feature"
	KindRefactor  Kind = "refactor"
	KindDiscovery Kind = "discovery"
	KindDecision  Kind = "decision"
	KindChange    Kind = "change"
	KindOther     Kind = "other"
)

// kindPriority resolves the Open Question on ordering refactor/discovery/change:
// decision > bugfix > feature > refactor > discovery > change > other.
var kindPriority = map[Kind]int{
	KindDecision:  0,
	KindBugfix:    1,
	KindFeature:   2,
	KindRefactor:  3,
	KindDiscovery: 4,
	KindChange:    5,
	KindOther:     6,
}

// Priority returns the rendering sort priority for k; unknown kinds sort last.
func (k Kind) Priority() int {
	if p, ok := kindPriority[k]; ok {
		return p
	}
	return len(kindPriority)
}

// Status is a Memory's lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusStale      Status = "stale"
	StatusCompressed Status = "compressed"
)

// PendingEvent is one captured tool-use record awaiting distillation.
type PendingEvent struct {
	ID              int64
	SessionID       string
	Project         string
	ToolName        string
	ToolInput       string
	ToolResponse    string
	CWD             string
	CreatedAtEpoch  int64
	LeaseOwner      string
	LeaseExpires    int64
}

// Memory is a distilled, structured observation.
type Memory struct {
	ID               int64
	MemorySessionID  string
	Project          string
	Kind             Kind
	Title            string
	Subtitle         string
	Narrative        string
	Facts            []string
	Concepts         []string
	FilesRead        []string
	FilesModified    []string
	DiscoveryTokens  int64
	Status           Status
	CreatedAtEpoch   int64
	LastAccessEpoch  int64
}

// Summary is a per-session narrative rollup.
type Summary struct {
	ID              int64
	MemorySessionID string
	Project         string
	Request         string
	Completed       string
	Decisions       string
	Learned         string
	NextSteps       string
	Preferences     string
	Notes           string
	DiscoveryTokens int64
	CreatedAtEpoch  int64
}

// SearchHit is one ranked full-text match.
type SearchHit struct {
	ID       int64
	Title    string
	Subtitle string
	Kind     Kind
	Project  string
	Status   Status
	Snippet  string
	Rank     float64
}

// ContextOptions configures ListContext, mirroring §4.E's defaults table.
type ContextOptions struct {
	TotalMemories int
	FullCount     int
	SessionCount  int
	Kinds         []string
}

// ContextResult is the raw data ListContext returns; rendering lives in
// internal/contextrender.
type ContextResult struct {
	Memories  []Memory
	Summaries []Summary
	Totals    Totals
}

// Totals summarizes counts used by the renderer's token-economics block.
type Totals struct {
	ActiveCount          int
	StaleShown           int
	CumulativeDiscovery  int64
}

// CleanupStats reports what Cleanup removed.
type CleanupStats struct {
	OrphanSummaries     int
	DuplicateSummaries  int
	StalePending        int
	AgedCompressed       int
	ExpiredLeases       int
}

func nowEpoch() int64 { return time.Now().Unix() }
