// Package store implements the durable state and every read/write
// operation the rest of remem uses to reach it. The Store performs no
// policy of its own: callers pass thresholds (batch sizes, cooldown
// seconds, keep counts) as arguments, exactly as the contract requires.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Store wraps a *DB and exposes the contractual operations.
type Store struct {
	db *DB
}

// New wraps an already-open DB.
func New(db *DB) *Store {
	return &Store{db: db}
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// EnqueueEvent inserts one pending row. Matches §4.A enqueue_event.
func (s *Store) EnqueueEvent(e PendingEvent) error {
	now := nowEpoch()
	_, err := s.db.conn.Exec(
		`INSERT INTO pending_observations
			(session_id, project, tool_name, tool_input, tool_response, cwd, created_at_epoch)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Project, e.ToolName, e.ToolInput, e.ToolResponse, e.CWD, now,
	)
	if err != nil {
		return fmt.Errorf("store: enqueue event: %w", err)
	}
	return nil
}

// ClaimPending returns up to limit oldest pending rows for session, leasing
// them to leaseOwner for leaseSecs so a crashed worker's claim can be
// recovered by ReleasePendingClaims rather than losing the events.
func (s *Store) ClaimPending(sessionID string, limit int, leaseOwner string, leaseSecs int64) ([]PendingEvent, error) {
	now := nowEpoch()
	tx, err := s.db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: claim pending: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, session_id, project, tool_name, tool_input, tool_response, cwd, created_at_epoch
		 FROM pending_observations
		 WHERE session_id = ? AND (lease_expires_epoch IS NULL OR lease_expires_epoch < ?)
		 ORDER BY id ASC LIMIT ?`,
		sessionID, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: claim pending: %w", err)
	}

	var events []PendingEvent
	var ids []int64
	for rows.Next() {
		var e PendingEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Project, &e.ToolName, &e.ToolInput, &e.ToolResponse, &e.CWD, &e.CreatedAtEpoch); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: claim pending scan: %w", err)
		}
		events = append(events, e)
		ids = append(ids, e.ID)
	}
	rows.Close()

	if len(ids) > 0 {
		expires := now + leaseSecs
		placeholders, args := inClause(ids)
		args = append([]any{leaseOwner, expires}, args...)
		if _, err := tx.Exec(
			`UPDATE pending_observations SET lease_owner = ?, lease_expires_epoch = ? WHERE id IN (`+placeholders+`)`,
			args...,
		); err != nil {
			return nil, fmt.Errorf("store: lease pending: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: claim pending commit: %w", err)
	}
	return events, nil
}

// ReleasePendingClaims clears expired leases for session, making the rows
// claimable again. Called from session-init's stale-pending-recovery pass;
// Cleanup clears expired leases for every session with its own update.
func (s *Store) ReleasePendingClaims(sessionID string) (int, error) {
	now := nowEpoch()
	res, err := s.db.conn.Exec(
		`UPDATE pending_observations SET lease_owner = NULL, lease_expires_epoch = NULL
		 WHERE session_id = ? AND lease_expires_epoch IS NOT NULL AND lease_expires_epoch < ?`,
		sessionID, now,
	)
	if err != nil {
		return 0, fmt.Errorf("store: release pending claims: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeletePending removes the given pending rows after a successful distill.
func (s *Store) DeletePending(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders, args := inClause(ids)
	if _, err := s.db.conn.Exec(`DELETE FROM pending_observations WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("store: delete pending: %w", err)
	}
	return nil
}

// CountPending returns the number of pending rows for session, used by Gate 1.
func (s *Store) CountPending(sessionID string) (int, error) {
	var n int
	if err := s.db.conn.QueryRow(`SELECT COUNT(*) FROM pending_observations WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count pending: %w", err)
	}
	return n, nil
}

// OldestPendingAgeSecs returns how long the oldest pending row for session
// has been waiting, used by session-init's stale-pending-recovery pass to
// decide whether a crashed or never-claimed batch needs flushing. ok is
// false when there is no pending row at all.
func (s *Store) OldestPendingAgeSecs(sessionID string, now time.Time) (age int64, ok bool, err error) {
	var oldest sql.NullInt64
	if e := s.db.conn.QueryRow(
		`SELECT MIN(created_at_epoch) FROM pending_observations WHERE session_id = ?`, sessionID,
	).Scan(&oldest); e != nil {
		return 0, false, fmt.Errorf("store: oldest pending age: %w", e)
	}
	if !oldest.Valid {
		return 0, false, nil
	}
	return now.Unix() - oldest.Int64, true, nil
}

// InsertMemories inserts active memories and returns their assigned ids.
// The observations_fts triggers keep the text index in sync automatically.
func (s *Store) InsertMemories(memories []Memory) ([]int64, error) {
	if len(memories) == 0 {
		return nil, nil
	}
	tx, err := s.db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: insert memories: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(memories))
	now := nowEpoch()
	for _, m := range memories {
		status := m.Status
		if status == "" {
			status = StatusActive
		}
		res, err := tx.Exec(
			`INSERT INTO observations
				(memory_session_id, project, kind, title, subtitle, narrative, facts, concepts,
				 files_read, files_modified, discovery_tokens, status, created_at_epoch)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.MemorySessionID, m.Project, string(m.Kind), m.Title, m.Subtitle, m.Narrative,
			encodeList(m.Facts), encodeList(m.Concepts), encodeList(m.FilesRead), encodeList(m.FilesModified),
			m.DiscoveryTokens, string(status), now,
		)
		if err != nil {
			return nil, fmt.Errorf("store: insert memory: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("store: insert memory id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: insert memories commit: %w", err)
	}
	return ids, nil
}

// MarkStaleByFileOverlap sets status=stale on prior active memories in the
// same project whose files_modified intersects filesModified, excluding
// excludeIDs (the rows just inserted in the same batch).
func (s *Store) MarkStaleByFileOverlap(project string, filesModified []string, excludeIDs []int64) (int, error) {
	if len(filesModified) == 0 {
		return 0, nil
	}

	rows, err := s.db.conn.Query(
		`SELECT id, files_modified FROM observations WHERE project = ? AND status = 'active'`,
		project,
	)
	if err != nil {
		return 0, fmt.Errorf("store: mark stale query: %w", err)
	}

	excluded := make(map[int64]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	newSet := make(map[string]bool, len(filesModified))
	for _, f := range filesModified {
		newSet[f] = true
	}

	var staleIDs []int64
	for rows.Next() {
		var id int64
		var filesJSON string
		if err := rows.Scan(&id, &filesJSON); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: mark stale scan: %w", err)
		}
		if excluded[id] {
			continue
		}
		for _, f := range decodeList(filesJSON) {
			if newSet[f] {
				staleIDs = append(staleIDs, id)
				break
			}
		}
	}
	rows.Close()

	if len(staleIDs) == 0 {
		return 0, nil
	}
	placeholders, args := inClause(staleIDs)
	if _, err := s.db.conn.Exec(`UPDATE observations SET status = 'stale' WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return 0, fmt.Errorf("store: mark stale update: %w", err)
	}
	return len(staleIDs), nil
}

// CountActive returns the number of active memories in project.
func (s *Store) CountActive(project string) (int, error) {
	var n int
	if err := s.db.conn.QueryRow(
		`SELECT COUNT(*) FROM observations WHERE project = ? AND status = 'active'`, project,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count active: %w", err)
	}
	return n, nil
}

// CompactionCandidates returns the ids of the `compactCount` oldest active
// memories in project beyond the newest `keepNewest`, for the caller
// (the Distiller) to pass to the LM for collapsing. It does not mutate
// anything; MarkCompressedAndInsert does the actual transition.
func (s *Store) CompactionCandidates(project string, keepNewest, compactCount int) ([]Memory, error) {
	active, err := s.CountActive(project)
	if err != nil {
		return nil, err
	}
	if active <= keepNewest {
		return nil, nil
	}

	rows, err := s.db.conn.Query(
		`SELECT id, memory_session_id, project, kind, title, subtitle, narrative, facts, concepts,
			files_read, files_modified, discovery_tokens, status, created_at_epoch, last_accessed_epoch
		 FROM observations WHERE project = ? AND status = 'active'
		 ORDER BY created_at_epoch ASC, id ASC
		 LIMIT ? OFFSET 0`,
		project, compactCount,
	)
	if err != nil {
		return nil, fmt.Errorf("store: compaction candidates: %w", err)
	}
	defer rows.Close()

	var out []Memory
	limit := active - keepNewest
	if limit > compactCount {
		limit = compactCount
	}
	for rows.Next() && len(out) < limit {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// MarkCompressedAndInsert marks compressIDs as compressed and inserts the
// caller-produced merged memories as active, in one transaction so
// P6 (compaction conservation) holds even under a mid-batch failure.
func (s *Store) MarkCompressedAndInsert(compressIDs []int64, merged []Memory) ([]int64, error) {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: compact: %w", err)
	}
	defer tx.Rollback()

	if len(compressIDs) > 0 {
		placeholders, args := inClause(compressIDs)
		if _, err := tx.Exec(`UPDATE observations SET status = 'compressed' WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return nil, fmt.Errorf("store: compact mark: %w", err)
		}
	}

	now := nowEpoch()
	var newIDs []int64
	for _, m := range merged {
		res, err := tx.Exec(
			`INSERT INTO observations
				(memory_session_id, project, kind, title, subtitle, narrative, facts, concepts,
				 files_read, files_modified, discovery_tokens, status, created_at_epoch)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'active', ?)`,
			m.MemorySessionID, m.Project, string(m.Kind), m.Title, m.Subtitle, m.Narrative,
			encodeList(m.Facts), encodeList(m.Concepts), encodeList(m.FilesRead), encodeList(m.FilesModified),
			m.DiscoveryTokens, now,
		)
		if err != nil {
			return nil, fmt.Errorf("store: compact insert: %w", err)
		}
		id, _ := res.LastInsertId()
		newIDs = append(newIDs, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: compact commit: %w", err)
	}
	return newIDs, nil
}

// UpsertSummary replaces the prior row for (memory-session, project) and
// returns the prior content, if any, so the caller can build a "merge
// prior with new" LM prompt.
func (s *Store) UpsertSummary(summary Summary) (*Summary, error) {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: upsert summary: %w", err)
	}
	defer tx.Rollback()

	var prior *Summary
	row := tx.QueryRow(
		`SELECT id, memory_session_id, project, request, completed, decisions, learned,
			next_steps, preferences, notes, discovery_tokens, created_at_epoch
		 FROM session_summaries WHERE memory_session_id = ? AND project = ?`,
		summary.MemorySessionID, summary.Project,
	)
	var p Summary
	err = row.Scan(&p.ID, &p.MemorySessionID, &p.Project, &p.Request, &p.Completed, &p.Decisions,
		&p.Learned, &p.NextSteps, &p.Preferences, &p.Notes, &p.DiscoveryTokens, &p.CreatedAtEpoch)
	if err == nil {
		prior = &p
		if _, err := tx.Exec(`DELETE FROM session_summaries WHERE id = ?`, p.ID); err != nil {
			return nil, fmt.Errorf("store: upsert summary delete prior: %w", err)
		}
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("store: upsert summary lookup: %w", err)
	}

	now := nowEpoch()
	if _, err := tx.Exec(
		`INSERT INTO session_summaries
			(memory_session_id, project, request, completed, decisions, learned,
			 next_steps, preferences, notes, discovery_tokens, created_at_epoch)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.MemorySessionID, summary.Project, summary.Request, summary.Completed, summary.Decisions,
		summary.Learned, summary.NextSteps, summary.Preferences, summary.Notes, summary.DiscoveryTokens, now,
	); err != nil {
		return nil, fmt.Errorf("store: upsert summary insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: upsert summary commit: %w", err)
	}
	return prior, nil
}

// GetOrCreateSession maps a host content-session id to a stable memory
// session id, creating the mapping on first sight.
func (s *Store) GetOrCreateSession(contentID, project string) (memoryID string, isNew bool, err error) {
	var existing string
	err = s.db.conn.QueryRow(
		`SELECT memory_session_id FROM sdk_sessions WHERE content_session_id = ?`, contentID,
	).Scan(&existing)
	if err == nil {
		if _, err := s.db.conn.Exec(
			`UPDATE sdk_sessions SET prompt_counter = prompt_counter + 1 WHERE content_session_id = ?`, contentID,
		); err != nil {
			return "", false, fmt.Errorf("store: bump prompt counter: %w", err)
		}
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return "", false, fmt.Errorf("store: get session: %w", err)
	}

	memID := "mem-" + truncate(contentID, 8)
	now := nowEpoch()
	if _, err := s.db.conn.Exec(
		`INSERT INTO sdk_sessions (content_session_id, memory_session_id, project, started_at_epoch, status)
		 VALUES (?, ?, ?, ?, 'active')`,
		contentID, memID, project, now,
	); err != nil {
		return "", false, fmt.Errorf("store: create session: %w", err)
	}
	return memID, true, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CooldownTryAcquire is the single serialization point between parallel
// workers: it atomically checks (no row exists) OR (elapsed >= cooldown AND
// hash differs), and on success writes the new epoch/hash — the
// "placeholder write" — before returning true, inside one transaction.
func (s *Store) CooldownTryAcquire(project, messageHash string, cooldownSecs int64, now time.Time) (bool, error) {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("store: cooldown acquire: %w", err)
	}
	defer tx.Rollback()

	nowEpoch := now.Unix()
	var lastEpoch int64
	var lastHash sql.NullString
	err = tx.QueryRow(
		`SELECT last_summarize_epoch, last_message_hash FROM summarize_cooldown WHERE project = ?`, project,
	).Scan(&lastEpoch, &lastHash)

	acquired := false
	switch {
	case err == sql.ErrNoRows:
		acquired = true
	case err != nil:
		return false, fmt.Errorf("store: cooldown lookup: %w", err)
	default:
		elapsed := nowEpoch - lastEpoch
		sameHash := lastHash.Valid && lastHash.String == messageHash
		acquired = elapsed >= cooldownSecs && !sameHash
	}

	if !acquired {
		return false, nil
	}

	if _, err := tx.Exec(
		`INSERT INTO summarize_cooldown (project, last_summarize_epoch, last_message_hash)
		 VALUES (?, ?, ?)
		 ON CONFLICT(project) DO UPDATE SET last_summarize_epoch = excluded.last_summarize_epoch,
			last_message_hash = excluded.last_message_hash`,
		project, nowEpoch, messageHash,
	); err != nil {
		return false, fmt.Errorf("store: cooldown write: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: cooldown commit: %w", err)
	}
	return true, nil
}

// CooldownWouldAcquire reports whether CooldownTryAcquire would currently
// succeed, without writing the placeholder. Callers that only need a soft
// pre-check (e.g. before handing off to a detached worker that will do the
// real atomic acquire) must use this instead of CooldownTryAcquire, or they
// consume the single acquire themselves and the worker's own acquire call
// always loses against its own just-written hash.
func (s *Store) CooldownWouldAcquire(project, messageHash string, cooldownSecs int64, now time.Time) (bool, error) {
	nowEpoch := now.Unix()
	var lastEpoch int64
	var lastHash sql.NullString
	err := s.db.conn.QueryRow(
		`SELECT last_summarize_epoch, last_message_hash FROM summarize_cooldown WHERE project = ?`, project,
	).Scan(&lastEpoch, &lastHash)

	switch {
	case err == sql.ErrNoRows:
		return true, nil
	case err != nil:
		return false, fmt.Errorf("store: cooldown peek: %w", err)
	default:
		elapsed := nowEpoch - lastEpoch
		sameHash := lastHash.Valid && lastHash.String == messageHash
		return elapsed >= cooldownSecs && !sameHash, nil
	}
}

// GetSummary returns the current summary row for (memory-session, project),
// or nil if none exists yet. Unlike UpsertSummary it never writes.
func (s *Store) GetSummary(memorySessionID, project string) (*Summary, error) {
	var p Summary
	err := s.db.conn.QueryRow(
		`SELECT id, memory_session_id, project, request, completed, decisions, learned,
			next_steps, preferences, notes, discovery_tokens, created_at_epoch
		 FROM session_summaries WHERE memory_session_id = ? AND project = ?`,
		memorySessionID, project,
	).Scan(&p.ID, &p.MemorySessionID, &p.Project, &p.Request, &p.Completed, &p.Decisions,
		&p.Learned, &p.NextSteps, &p.Preferences, &p.Notes, &p.DiscoveryTokens, &p.CreatedAtEpoch)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get summary: %w", err)
	}
	return &p, nil
}

// GetMemories returns full memory records for the given ids.
func (s *Store) GetMemories(ids []int64) ([]Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(ids)
	rows, err := s.db.conn.Query(
		`SELECT id, memory_session_id, project, kind, title, subtitle, narrative, facts, concepts,
			files_read, files_modified, discovery_tokens, status, created_at_epoch, last_accessed_epoch
		 FROM observations WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get memories: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// RecordAccess stamps last_accessed_epoch for the given ids.
func (s *Store) RecordAccess(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders, args := inClause(ids)
	args = append([]any{nowEpoch()}, args...)
	if _, err := s.db.conn.Exec(`UPDATE observations SET last_accessed_epoch = ? WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("store: record access: %w", err)
	}
	return nil
}

// Timeline returns `before` memories immediately preceding anchorID and
// `after` immediately following, by creation epoch, same project as anchor.
func (s *Store) Timeline(anchorID int64, before, after int) ([]Memory, error) {
	var anchorEpoch int64
	var project string
	if err := s.db.conn.QueryRow(
		`SELECT created_at_epoch, project FROM observations WHERE id = ?`, anchorID,
	).Scan(&anchorEpoch, &project); err != nil {
		return nil, fmt.Errorf("store: timeline anchor: %w", err)
	}

	var out []Memory

	beforeRows, err := s.db.conn.Query(
		`SELECT id, memory_session_id, project, kind, title, subtitle, narrative, facts, concepts,
			files_read, files_modified, discovery_tokens, status, created_at_epoch, last_accessed_epoch
		 FROM observations WHERE project = ? AND created_at_epoch < ?
		 ORDER BY created_at_epoch DESC LIMIT ?`,
		project, anchorEpoch, before,
	)
	if err != nil {
		return nil, fmt.Errorf("store: timeline before: %w", err)
	}
	var beforeList []Memory
	for beforeRows.Next() {
		m, err := scanMemory(beforeRows)
		if err != nil {
			beforeRows.Close()
			return nil, err
		}
		beforeList = append(beforeList, m)
	}
	beforeRows.Close()
	for i := len(beforeList) - 1; i >= 0; i-- {
		out = append(out, beforeList[i])
	}

	anchorRows, err := s.db.conn.Query(
		`SELECT id, memory_session_id, project, kind, title, subtitle, narrative, facts, concepts,
			files_read, files_modified, discovery_tokens, status, created_at_epoch, last_accessed_epoch
		 FROM observations WHERE id = ?`,
		anchorID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: timeline anchor row: %w", err)
	}
	for anchorRows.Next() {
		m, err := scanMemory(anchorRows)
		if err != nil {
			anchorRows.Close()
			return nil, err
		}
		out = append(out, m)
	}
	anchorRows.Close()

	afterRows, err := s.db.conn.Query(
		`SELECT id, memory_session_id, project, kind, title, subtitle, narrative, facts, concepts,
			files_read, files_modified, discovery_tokens, status, created_at_epoch, last_accessed_epoch
		 FROM observations WHERE project = ? AND created_at_epoch > ?
		 ORDER BY created_at_epoch ASC LIMIT ?`,
		project, anchorEpoch, after,
	)
	if err != nil {
		return nil, fmt.Errorf("store: timeline after: %w", err)
	}
	for afterRows.Next() {
		m, err := scanMemory(afterRows)
		if err != nil {
			afterRows.Close()
			return nil, err
		}
		out = append(out, m)
	}
	afterRows.Close()

	return out, nil
}

// SearchFTS full-text matches query, ranked by rank × time_decay with a
// stale-status penalty, falling back to a recency listing when query is
// empty (the original's search dispatcher behavior). Each whitespace-
// separated term of query is matched as a quoted FTS5 string, so
// punctuation such as the "-" in "X-decision" is treated as text, not as
// query syntax.
func (s *Store) SearchFTS(query, project string, kinds []string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	if strings.TrimSpace(query) == "" {
		return s.recentHits(project, kinds, limit)
	}

	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	args := []any{strings.Join(terms, " ")}
	where := `observations_fts MATCH ?`
	if project != "" {
		where += ` AND o.project = ?`
		args = append(args, project)
	}
	if len(kinds) > 0 {
		placeholders, kindArgs := inClauseStrings(kinds)
		where += ` AND o.kind IN (` + placeholders + `)`
		args = append(args, kindArgs...)
	}
	args = append(args, limit*4)

	rows, err := s.db.conn.Query(
		`SELECT o.id, o.title, o.subtitle, o.kind, o.project, o.status, o.created_at_epoch,
			bm25(observations_fts) AS rank,
			snippet(observations_fts, -1, '[', ']', '...', 10) AS snippet
		 FROM observations_fts
		 JOIN observations o ON o.id = observations_fts.rowid
		 WHERE `+where+`
		 ORDER BY rank LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("store: search fts: %w", err)
	}
	defer rows.Close()

	now := nowEpoch()
	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var kind, status string
		var createdAt int64
		var rank float64
		if err := rows.Scan(&h.ID, &h.Title, &h.Subtitle, &kind, &h.Project, &status, &createdAt, &rank, &h.Snippet); err != nil {
			return nil, fmt.Errorf("store: search fts scan: %w", err)
		}
		h.Kind = Kind(kind)
		h.Status = Status(status)

		ageDays := float64(now-createdAt) / 86400
		// bm25 is negative (lower is better), so a factor in (0, 1] that
		// shrinks with age moves older rows toward the end.
		timeDecay := 1 / (1 + 0.5*ageDays/30)
		score := rank * timeDecay
		if h.Status == StatusStale {
			score += 1000
		}
		h.Rank = score
		hits = append(hits, h)
	}

	sortHitsByRank(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func sortHitsByRank(hits []SearchHit) {
	for i := 1; i < len(hits); i++ {
		j := i
		for j > 0 && hits[j-1].Rank > hits[j].Rank {
			hits[j-1], hits[j] = hits[j], hits[j-1]
			j--
		}
	}
}

func (s *Store) recentHits(project string, kinds []string, limit int) ([]SearchHit, error) {
	where := `status != 'compressed'`
	var args []any
	if project != "" {
		where += ` AND project = ?`
		args = append(args, project)
	}
	if len(kinds) > 0 {
		placeholders, kindArgs := inClauseStrings(kinds)
		where += ` AND kind IN (` + placeholders + `)`
		args = append(args, kindArgs...)
	}
	args = append(args, limit)

	rows, err := s.db.conn.Query(
		`SELECT id, title, subtitle, kind, project, status FROM observations
		 WHERE `+where+` ORDER BY created_at_epoch DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("store: recent hits: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var kind, status string
		if err := rows.Scan(&h.ID, &h.Title, &h.Subtitle, &kind, &h.Project, &status); err != nil {
			return nil, fmt.Errorf("store: recent hits scan: %w", err)
		}
		h.Kind = Kind(kind)
		h.Status = Status(status)
		hits = append(hits, h)
	}
	return hits, nil
}

// ListContext loads the raw memories/summaries the Context Renderer needs;
// selection and formatting policy lives in internal/contextrender.
func (s *Store) ListContext(project string, opts ContextOptions) (ContextResult, error) {
	var result ContextResult

	kindFilter := ""
	var args []any
	args = append(args, project)
	if len(opts.Kinds) > 0 {
		placeholders, kindArgs := inClauseStrings(opts.Kinds)
		kindFilter = ` AND kind IN (` + placeholders + `)`
		args = append(args, kindArgs...)
	}
	args = append(args, opts.TotalMemories)

	rows, err := s.db.conn.Query(
		`SELECT id, memory_session_id, project, kind, title, subtitle, narrative, facts, concepts,
			files_read, files_modified, discovery_tokens, status, created_at_epoch, last_accessed_epoch
		 FROM observations
		 WHERE project = ? AND status IN ('active', 'stale') `+kindFilter+`
		 ORDER BY created_at_epoch DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return result, fmt.Errorf("store: list context memories: %w", err)
	}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			rows.Close()
			return result, err
		}
		result.Memories = append(result.Memories, m)
		if m.Status == StatusActive {
			result.Totals.ActiveCount++
		} else if m.Status == StatusStale {
			result.Totals.StaleShown++
		}
		result.Totals.CumulativeDiscovery += m.DiscoveryTokens
	}
	rows.Close()

	sumRows, err := s.db.conn.Query(
		`SELECT id, memory_session_id, project, request, completed, decisions, learned,
			next_steps, preferences, notes, discovery_tokens, created_at_epoch
		 FROM session_summaries WHERE project = ? ORDER BY created_at_epoch DESC LIMIT ?`,
		project, opts.SessionCount,
	)
	if err != nil {
		return result, fmt.Errorf("store: list context summaries: %w", err)
	}
	defer sumRows.Close()
	for sumRows.Next() {
		var sm Summary
		if err := sumRows.Scan(&sm.ID, &sm.MemorySessionID, &sm.Project, &sm.Request, &sm.Completed,
			&sm.Decisions, &sm.Learned, &sm.NextSteps, &sm.Preferences, &sm.Notes, &sm.DiscoveryTokens, &sm.CreatedAtEpoch); err != nil {
			return result, fmt.Errorf("store: list context summary scan: %w", err)
		}
		result.Summaries = append(result.Summaries, sm)
	}

	return result, nil
}

// Cleanup deletes orphan summaries, duplicate summaries per session keeping
// the newest, pending rows older than 1 hour, compressed memories older
// than 90 days, and expired leases globally.
func (s *Store) Cleanup() (CleanupStats, error) {
	var stats CleanupStats
	now := nowEpoch()

	res, err := s.db.conn.Exec(
		`DELETE FROM session_summaries
		 WHERE memory_session_id NOT IN (SELECT DISTINCT memory_session_id FROM observations)`,
	)
	if err != nil {
		return stats, fmt.Errorf("store: cleanup orphan summaries: %w", err)
	}
	n, _ := res.RowsAffected()
	stats.OrphanSummaries = int(n)

	res, err = s.db.conn.Exec(
		`DELETE FROM session_summaries
		 WHERE id NOT IN (SELECT MAX(id) FROM session_summaries GROUP BY memory_session_id, project)`,
	)
	if err != nil {
		return stats, fmt.Errorf("store: cleanup duplicate summaries: %w", err)
	}
	n, _ = res.RowsAffected()
	stats.DuplicateSummaries = int(n)

	res, err = s.db.conn.Exec(`DELETE FROM pending_observations WHERE created_at_epoch < ?`, now-3600)
	if err != nil {
		return stats, fmt.Errorf("store: cleanup stale pending: %w", err)
	}
	n, _ = res.RowsAffected()
	stats.StalePending = int(n)

	res, err = s.db.conn.Exec(`DELETE FROM observations WHERE status = 'compressed' AND created_at_epoch < ?`, now-90*86400)
	if err != nil {
		return stats, fmt.Errorf("store: cleanup aged compressed: %w", err)
	}
	n, _ = res.RowsAffected()
	stats.AgedCompressed = int(n)

	res, err = s.db.conn.Exec(
		`UPDATE pending_observations SET lease_owner = NULL, lease_expires_epoch = NULL
		 WHERE lease_expires_epoch IS NOT NULL AND lease_expires_epoch < ?`, now,
	)
	if err != nil {
		return stats, fmt.Errorf("store: cleanup expired leases: %w", err)
	}
	n, _ = res.RowsAffected()
	stats.ExpiredLeases = int(n)

	return stats, nil
}

func scanMemory(rows *sql.Rows) (Memory, error) {
	var m Memory
	var kind, status string
	var facts, concepts, filesRead, filesModified string
	var lastAccess sql.NullInt64
	if err := rows.Scan(&m.ID, &m.MemorySessionID, &m.Project, &kind, &m.Title, &m.Subtitle, &m.Narrative,
		&facts, &concepts, &filesRead, &filesModified, &m.DiscoveryTokens, &status, &m.CreatedAtEpoch, &lastAccess); err != nil {
		return m, fmt.Errorf("store: scan memory: %w", err)
	}
	m.Kind = Kind(kind)
	m.Status = Status(status)
	m.Facts = decodeList(facts)
	m.Concepts = decodeList(concepts)
	m.FilesRead = decodeList(filesRead)
	m.FilesModified = decodeList(filesModified)
	if lastAccess.Valid {
		m.LastAccessEpoch = lastAccess.Int64
	}
	return m, nil
}

func inClause(ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

func inClauseStrings(items []string) (string, []any) {
	placeholders := make([]string, len(items))
	args := make([]any, len(items))
	for i, it := range items {
		placeholders[i] = "?"
		args[i] = it
	}
	return strings.Join(placeholders, ", "), args
}
