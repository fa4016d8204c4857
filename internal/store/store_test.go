package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "remem.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestEnqueueAndClaimPending(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.EnqueueEvent(PendingEvent{SessionID: "sess-1", Project: "p", ToolName: "Write"}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	n, err := s.CountPending("sess-1")
	if err != nil || n != 3 {
		t.Fatalf("count pending = %d, %v, want 3", n, err)
	}

	claimed, err := s.ClaimPending("sess-1", 15, "worker-a", 240)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 3 {
		t.Fatalf("claimed %d events, want 3", len(claimed))
	}

	// A second claim before the lease expires sees nothing new.
	claimed2, err := s.ClaimPending("sess-1", 15, "worker-b", 240)
	if err != nil {
		t.Fatalf("claim2: %v", err)
	}
	if len(claimed2) != 0 {
		t.Fatalf("claimed2 = %d, want 0 (leased)", len(claimed2))
	}

	ids := make([]int64, len(claimed))
	for i, e := range claimed {
		ids[i] = e.ID
	}
	if err := s.DeletePending(ids); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
	n, _ = s.CountPending("sess-1")
	if n != 0 {
		t.Fatalf("count pending after delete = %d, want 0", n)
	}
}

// P3: concurrent cooldown_try_acquire calls for the same project and hash
// within the cooldown window — exactly one returns true.
func TestCooldownMutualExclusion(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			ok, err := s.CooldownTryAcquire("proj", "hash-a", 300, now)
			if err != nil {
				t.Errorf("acquire: %v", err)
			}
			results <- ok
		}()
	}

	acquired := 0
	for i := 0; i < 10; i++ {
		if <-results {
			acquired++
		}
	}
	if acquired != 1 {
		t.Fatalf("acquired = %d, want exactly 1", acquired)
	}
}

// P4: same hash, immediate repeat call, returns false regardless of elapsed time.
func TestCooldownHashDedup(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	ok, err := s.CooldownTryAcquire("proj", "hash-a", 300, now)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v, want true", ok, err)
	}

	ok, err = s.CooldownTryAcquire("proj", "hash-a", 300, now)
	if err != nil || ok {
		t.Fatalf("second acquire (same hash) = %v, %v, want false", ok, err)
	}

	ok, err = s.CooldownTryAcquire("proj", "hash-b", 300, now.Add(301*time.Second))
	if err != nil || !ok {
		t.Fatalf("third acquire (new hash, cooldown elapsed) = %v, %v, want true", ok, err)
	}
}

// CooldownWouldAcquire must never write, and must agree with what a
// subsequent CooldownTryAcquire call actually decides.
func TestCooldownWouldAcquireDoesNotMutate(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	would, err := s.CooldownWouldAcquire("proj", "hash-a", 300, now)
	if err != nil || !would {
		t.Fatalf("would acquire (empty) = %v, %v, want true", would, err)
	}

	// Calling the peek repeatedly must not itself consume the acquire.
	would, err = s.CooldownWouldAcquire("proj", "hash-a", 300, now)
	if err != nil || !would {
		t.Fatalf("would acquire (repeat peek) = %v, %v, want true — peek must not mutate", would, err)
	}

	ok, err := s.CooldownTryAcquire("proj", "hash-a", 300, now)
	if err != nil || !ok {
		t.Fatalf("real acquire after peeks = %v, %v, want true", ok, err)
	}

	would, err = s.CooldownWouldAcquire("proj", "hash-a", 300, now)
	if err != nil || would {
		t.Fatalf("would acquire (same hash after real acquire) = %v, %v, want false", would, err)
	}
}

// P2: last-summarize epoch is non-decreasing.
func TestCooldownEpochMonotonic(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	if _, err := s.CooldownTryAcquire("proj", "h1", 0, now); err != nil {
		t.Fatalf("acquire1: %v", err)
	}
	var firstEpoch int64
	if err := s.db.conn.QueryRow(`SELECT last_summarize_epoch FROM summarize_cooldown WHERE project = 'proj'`).Scan(&firstEpoch); err != nil {
		t.Fatalf("read epoch: %v", err)
	}

	later := now.Add(time.Second)
	if _, err := s.CooldownTryAcquire("proj", "h2", 0, later); err != nil {
		t.Fatalf("acquire2: %v", err)
	}
	var secondEpoch int64
	if err := s.db.conn.QueryRow(`SELECT last_summarize_epoch FROM summarize_cooldown WHERE project = 'proj'`).Scan(&secondEpoch); err != nil {
		t.Fatalf("read epoch: %v", err)
	}

	if secondEpoch < firstEpoch {
		t.Fatalf("epoch went backwards: %d -> %d", firstEpoch, secondEpoch)
	}
}

// P5: inserting memory M with files-modified F stales every prior active
// memory in the same project whose files-modified intersects F; M unchanged.
func TestMarkStaleByFileOverlap(t *testing.T) {
	s := newTestStore(t)

	idsA, err := s.InsertMemories([]Memory{{
		Project: "p", Kind: KindFeature, Title: "A", FilesModified: []string{"src/a.rs"},
	}})
	if err != nil {
		t.Fatalf("insert A: %v", err)
	}

	idsB, err := s.InsertMemories([]Memory{{
		Project: "p", Kind: KindBugfix, Title: "B", FilesModified: []string{"src/a.rs", "src/b.rs"},
	}})
	if err != nil {
		t.Fatalf("insert B: %v", err)
	}

	n, err := s.MarkStaleByFileOverlap("p", []string{"src/a.rs", "src/b.rs"}, idsB)
	if err != nil {
		t.Fatalf("mark stale: %v", err)
	}
	if n != 1 {
		t.Fatalf("staled %d rows, want 1", n)
	}

	mems, err := s.GetMemories(append(idsA, idsB...))
	if err != nil {
		t.Fatalf("get memories: %v", err)
	}
	for _, m := range mems {
		switch m.ID {
		case idsA[0]:
			if m.Status != StatusStale {
				t.Fatalf("A status = %s, want stale", m.Status)
			}
		case idsB[0]:
			if m.Status != StatusActive {
				t.Fatalf("B status = %s, want active", m.Status)
			}
		}
	}
}

// P6: compaction conservation — exactly compactCount oldest (beyond
// keepNewest) are candidates, and MarkCompressedAndInsert transitions them
// while inserting at least one new active memory.
func TestCompactionConservation(t *testing.T) {
	s := newTestStore(t)

	var memories []Memory
	for i := 0; i < 101; i++ {
		memories = append(memories, Memory{Project: "p", Kind: KindOther, Title: "m"})
	}
	// Insert one at a time so created_at_epoch ordering is deterministic
	// even when the clock doesn't advance between inserts (tests run fast);
	// SQLite's rowid ordering stands in as the tiebreaker via id ASC below.
	var allIDs []int64
	for _, m := range memories {
		ids, err := s.InsertMemories([]Memory{m})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		allIDs = append(allIDs, ids[0])
	}

	active, err := s.CountActive("p")
	if err != nil || active != 101 {
		t.Fatalf("active = %d, %v, want 101", active, err)
	}

	candidates, err := s.CompactionCandidates("p", 50, 30)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 30 {
		t.Fatalf("candidates = %d, want 30", len(candidates))
	}

	var candidateIDs []int64
	for _, c := range candidates {
		candidateIDs = append(candidateIDs, c.ID)
	}
	merged := []Memory{{Project: "p", Kind: KindOther, Title: "merged"}}
	newIDs, err := s.MarkCompressedAndInsert(candidateIDs, merged)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if len(newIDs) != 1 {
		t.Fatalf("new ids = %d, want 1", len(newIDs))
	}

	activeAfter, err := s.CountActive("p")
	if err != nil {
		t.Fatalf("count after: %v", err)
	}
	// 101 - 30 compressed + 1 new = 72
	if activeAfter != 72 {
		t.Fatalf("active after compaction = %d, want 72", activeAfter)
	}
}

func TestSearchRoundTrip(t *testing.T) {
	s := newTestStore(t)

	ids, err := s.InsertMemories([]Memory{{
		Project: "p", Kind: KindDecision, Title: "X-decision", Narrative: "we chose X for good reasons",
	}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	hits, err := s.SearchFTS("X-decision", "", nil, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != ids[0] {
		t.Fatalf("search did not find inserted memory: %+v", hits)
	}

	got, err := s.GetMemories([]int64{ids[0]})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].Kind != KindDecision || got[0].Narrative != "we chose X for good reasons" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCleanupRemovesStalePendingAndOrphanSummaries(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.db.conn.Exec(
		`INSERT INTO pending_observations (session_id, project, tool_name, created_at_epoch) VALUES ('s', 'p', 'Write', ?)`,
		time.Now().Add(-2*time.Hour).Unix(),
	); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	if _, err := s.UpsertSummary(Summary{MemorySessionID: "mem-orphan", Project: "p", Request: "x"}); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	stats, err := s.Cleanup()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if stats.StalePending != 1 {
		t.Fatalf("stale pending cleaned = %d, want 1", stats.StalePending)
	}
	if stats.OrphanSummaries != 1 {
		t.Fatalf("orphan summaries cleaned = %d, want 1", stats.OrphanSummaries)
	}
}

func TestGetSummaryIsReadOnly(t *testing.T) {
	s := newTestStore(t)

	if sum, err := s.GetSummary("mem-1", "p"); err != nil || sum != nil {
		t.Fatalf("get summary (none) = %+v, %v, want nil, nil", sum, err)
	}

	if _, err := s.UpsertSummary(Summary{MemorySessionID: "mem-1", Project: "p", Request: "r1"}); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	sum, err := s.GetSummary("mem-1", "p")
	if err != nil || sum == nil || sum.Request != "r1" {
		t.Fatalf("get summary = %+v, %v, want Request=r1", sum, err)
	}

	// Calling GetSummary again must not delete or alter the row.
	sum2, err := s.GetSummary("mem-1", "p")
	if err != nil || sum2 == nil || sum2.Request != "r1" {
		t.Fatalf("get summary (repeat) = %+v, %v, want Request=r1 unchanged", sum2, err)
	}
}

func TestOldestPendingAgeSecs(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.OldestPendingAgeSecs("sess-1", time.Now()); err != nil || ok {
		t.Fatalf("oldest pending age (none) = ok=%v, %v, want ok=false", ok, err)
	}

	old := time.Now().Add(-15 * time.Minute)
	if _, err := s.db.conn.Exec(
		`INSERT INTO pending_observations (session_id, project, tool_name, created_at_epoch) VALUES ('sess-1', 'p', 'Write', ?)`,
		old.Unix(),
	); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	age, ok, err := s.OldestPendingAgeSecs("sess-1", time.Now())
	if err != nil || !ok {
		t.Fatalf("oldest pending age = ok=%v, %v, want ok=true", ok, err)
	}
	if age < 14*60 || age > 16*60 {
		t.Fatalf("age = %d seconds, want ~900", age)
	}
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
