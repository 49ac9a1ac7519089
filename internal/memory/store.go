// Package memory implements the persistent conversation graph for the
// RagForge memory engine.
//
// It uses SQLite as a small property-graph store: conversations own an
// append-only message log (with nested tool calls), compaction writes
// tiered summary nodes, and typed edges link L2 summaries to the L1
// summaries they consolidate. Embedding vectors are stored as float32
// BLOBs and compared with cosine similarity in Go; an FTS5 index over
// message text backs keyword search.
package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LuciformResearch/ragforge-sub003/internal/conversation"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Summary tiers. Raw turns are implicitly tier 0.
const (
	TierL1 = 1
	TierL2 = 2
)

// Confidence is a property of the tier, not computed per record.
const (
	ConfidenceL0 = 1.0
	ConfidenceL1 = 0.7
	ConfidenceL2 = 0.5
)

// TierConfidence maps a summary tier to its fixed confidence score.
func TierConfidence(tier int) float64 {
	switch tier {
	case TierL1:
		return ConfidenceL1
	case TierL2:
		return ConfidenceL2
	default:
		return ConfidenceL0
	}
}

// Summary is a compacted record covering a half-open turn-index range.
// Never mutated after creation; recomputing the same range produces the
// same ID, so a retried write is an overwrite, not a duplicate.
type Summary struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id"`
	Tier           int      `json:"tier"`
	Confidence     float64  `json:"confidence"`
	Summary        string   `json:"summary"`
	ActionsSummary string   `json:"actions_summary"`
	MentionedFiles []string `json:"mentioned_files,omitempty"`
	StartTurn      int      `json:"start_turn"`
	EndTurn        int      `json:"end_turn"` // exclusive
	CreatedAt      string   `json:"created_at"`
}

// Text returns the compacted free text of the summary, the unit the L2
// retention trigger measures.
func (s Summary) Text() string {
	if s.ActionsSummary == "" {
		return s.Summary
	}
	return s.Summary + "\n" + s.ActionsSummary
}

// SimilarRecord is one vector-search hit over a conversation's messages
// and summaries.
type SimilarRecord struct {
	NodeID string  `json:"node_id"`
	Label  string  `json:"label"` // "Message" or "Summary"
	Tier   int     `json:"tier"`  // 0 for messages
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

// CodeChunk is one indexed slice of a source file.
type CodeChunk struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
}

// CodeMatch is a vector-search hit over the code corpus.
type CodeMatch struct {
	Chunk CodeChunk `json:"chunk"`
	Score float64   `json:"score"`
}

// Project is a registered codebase root, consulted by the semantic
// search eligibility check.
type Project struct {
	Name       string `json:"name"`
	Root       string `json:"root"`
	IngestedAt string `json:"ingested_at"`
}

// MessageHit is one FTS5 keyword hit over message text.
type MessageHit struct {
	MessageID      string  `json:"message_id"`
	ConversationID string  `json:"conversation_id"`
	Content        string  `json:"content"`
	Rank           float64 `json:"rank"`
}

// Stats holds aggregate store statistics.
type Stats struct {
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
	ToolCalls     int `json:"tool_calls"`
	L1Summaries   int `json:"l1_summaries"`
	L2Summaries   int `json:"l2_summaries"`
	CodeChunks    int `json:"code_chunks"`
}

// ─── Config / Store ──────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".ragforge")}
}

// Store is the conversation graph backed by SQLite.
type Store struct {
	db *sql.DB
}

// New creates a Store. It creates the data directory if needed, opens
// SQLite with WAL mode, and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	// Pragmas go in the DSN so they apply to every connection
	// database/sql opens, not just the first: cascade delete depends
	// on foreign_keys being ON for whichever pooled connection runs it.
	dbPath := filepath.Join(cfg.DataDir, "ragforge.db")
	dsn := dbPath + "?" + strings.Join([]string{
		"_pragma=journal_mode(WAL)",
		"_pragma=busy_timeout(5000)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=foreign_keys(1)",
	}, "&")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("memory: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT    PRIMARY KEY,
			conversation_id TEXT    NOT NULL,
			seq             INTEGER NOT NULL,
			role            TEXT    NOT NULL,
			content         TEXT    NOT NULL DEFAULT '',
			char_count      INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT    NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_msg_conv ON messages(conversation_id, seq);

		CREATE TABLE IF NOT EXISTS tool_calls (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id  TEXT    NOT NULL,
			call_order  INTEGER NOT NULL,
			name        TEXT    NOT NULL,
			arguments   TEXT    NOT NULL DEFAULT '',
			success     INTEGER NOT NULL DEFAULT 1,
			result      TEXT    NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			result_size INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_tc_msg ON tool_calls(message_id, call_order);

		CREATE TABLE IF NOT EXISTS summaries (
			id              TEXT    PRIMARY KEY,
			conversation_id TEXT    NOT NULL,
			tier            INTEGER NOT NULL,
			confidence      REAL    NOT NULL,
			summary         TEXT    NOT NULL DEFAULT '',
			actions_summary TEXT    NOT NULL DEFAULT '',
			mentioned_files TEXT    NOT NULL DEFAULT '[]',
			start_turn      INTEGER NOT NULL,
			end_turn        INTEGER NOT NULL,
			created_at      TEXT    NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_sum_conv ON summaries(conversation_id, tier, start_turn);

		CREATE TABLE IF NOT EXISTS edges (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			type       TEXT NOT NULL,
			from_id    TEXT NOT NULL,
			to_id      TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_edge_unique ON edges(type, from_id, to_id);

		CREATE TABLE IF NOT EXISTS embeddings (
			node_id         TEXT PRIMARY KEY,
			label           TEXT NOT NULL,
			conversation_id TEXT NOT NULL DEFAULT '',
			vector          BLOB NOT NULL,
			dim             INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_emb_conv  ON embeddings(conversation_id);
		CREATE INDEX IF NOT EXISTS idx_emb_label ON embeddings(label);

		CREATE TABLE IF NOT EXISTS code_chunks (
			id         TEXT    PRIMARY KEY,
			path       TEXT    NOT NULL,
			start_line INTEGER NOT NULL,
			end_line   INTEGER NOT NULL,
			content    TEXT    NOT NULL DEFAULT ''
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_chunk_loc ON code_chunks(path, start_line, end_line);

		CREATE TABLE IF NOT EXISTS projects (
			root        TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			ingested_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
			message_id UNINDEXED,
			conversation_id UNINDEXED,
			content
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Conversations ───────────────────────────────────────────────────────────

// UpsertConversation registers a conversation node, updating the title
// if it already exists.
func (s *Store) UpsertConversation(id, title string) error {
	_, err := s.db.Exec(
		`INSERT INTO conversations (id, title) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title`,
		id, title,
	)
	return err
}

// DeleteConversation cascade-deletes a conversation: its messages, tool
// calls, summaries, edges between its summaries, embeddings, and FTS
// rows. This is the only deletion path the engine supports.
func (s *Store) DeleteConversation(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("memory: delete conversation: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	steps := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM edges WHERE from_id IN (SELECT id FROM summaries WHERE conversation_id = ?)
		    OR to_id IN (SELECT id FROM summaries WHERE conversation_id = ?)`, []any{id, id}},
		{`DELETE FROM embeddings WHERE conversation_id = ?`, []any{id}},
		{`DELETE FROM messages_fts WHERE conversation_id = ?`, []any{id}},
		{`DELETE FROM conversations WHERE id = ?`, []any{id}},
	}
	for _, st := range steps {
		if _, err := tx.Exec(st.query, st.args...); err != nil {
			return fmt.Errorf("memory: delete conversation %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// ─── Messages ────────────────────────────────────────────────────────────────

// AppendMessage stores one message with its tool calls, FTS row, and
// (when vector is non-nil) embedding. Messages are immutable: appending
// an ID that already exists is a no-op, which keeps retried writes safe.
func (s *Store) AppendMessage(m conversation.Message, vector []float32) error {
	if m.ID == "" || m.ConversationID == "" {
		return fmt.Errorf("memory: append message: id and conversation id are required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("memory: append message: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM messages WHERE conversation_id = ?`,
		m.ConversationID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("memory: append message: next seq: %w", err)
	}

	charCount := m.CharCount
	if charCount == 0 {
		charCount = len(m.Content)
	}

	res, err := tx.Exec(
		`INSERT INTO messages (id, conversation_id, seq, role, content, char_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		m.ID, m.ConversationID, seq, string(m.Role), m.Content, charCount,
		m.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("memory: append message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // already stored
	}

	for i, tc := range m.ToolCalls {
		name := tc.Name
		if name == "" {
			name = "unknown"
		}
		if _, err := tx.Exec(
			`INSERT INTO tool_calls (message_id, call_order, name, arguments, success, result, duration_ms, result_size)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, i, name, tc.Arguments, boolToInt(tc.Success), tc.Result,
			tc.Duration.Milliseconds(), tc.ResultSize,
		); err != nil {
			return fmt.Errorf("memory: append tool call: %w", err)
		}
	}

	if m.Content != "" {
		if _, err := tx.Exec(
			`INSERT INTO messages_fts (message_id, conversation_id, content) VALUES (?, ?, ?)`,
			m.ID, m.ConversationID, m.Content,
		); err != nil {
			return fmt.Errorf("memory: append message fts: %w", err)
		}
	}

	if vector != nil {
		if err := upsertEmbedding(tx, m.ID, "Message", m.ConversationID, vector); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Messages returns the full ordered message log of a conversation,
// tool calls included.
func (s *Store) Messages(conversationID string) ([]conversation.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, char_count, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY seq`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: load messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []conversation.Message
	for rows.Next() {
		var m conversation.Message
		var role, createdAt string
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.CharCount, &createdAt); err != nil {
			return nil, err
		}
		m.ConversationID = conversationID
		m.Role = conversation.Role(role)
		m.Timestamp, _ = time.Parse(timeLayout, createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range msgs {
		calls, err := s.toolCalls(msgs[i].ID)
		if err != nil {
			return nil, err
		}
		msgs[i].ToolCalls = calls
	}
	return msgs, nil
}

func (s *Store) toolCalls(messageID string) ([]conversation.ToolInvocation, error) {
	rows, err := s.db.Query(
		`SELECT name, arguments, success, result, duration_ms, result_size
		 FROM tool_calls WHERE message_id = ? ORDER BY call_order`,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: load tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var calls []conversation.ToolInvocation
	for rows.Next() {
		var tc conversation.ToolInvocation
		var success, durationMS int64
		if err := rows.Scan(&tc.Name, &tc.Arguments, &success, &tc.Result, &durationMS, &tc.ResultSize); err != nil {
			return nil, err
		}
		tc.Success = success != 0
		tc.Duration = time.Duration(durationMS) * time.Millisecond
		calls = append(calls, tc)
	}
	return calls, rows.Err()
}

// ─── Summaries ───────────────────────────────────────────────────────────────

// UpsertSummary writes a summary record keyed by its deterministic ID.
// A second write with the same ID overwrites in place — idempotent by
// construction, which is what makes concurrent compaction retries safe.
func (s *Store) UpsertSummary(sum Summary, vector []float32) error {
	files, err := json.Marshal(sum.MentionedFiles)
	if err != nil {
		return fmt.Errorf("memory: upsert summary: encode files: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("memory: upsert summary: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO summaries (id, conversation_id, tier, confidence, summary, actions_summary, mentioned_files, start_turn, end_turn)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			summary         = excluded.summary,
			actions_summary = excluded.actions_summary,
			mentioned_files = excluded.mentioned_files`,
		sum.ID, sum.ConversationID, sum.Tier, sum.Confidence,
		sum.Summary, sum.ActionsSummary, string(files), sum.StartTurn, sum.EndTurn,
	); err != nil {
		return fmt.Errorf("memory: upsert summary: %w", err)
	}

	if vector != nil {
		if err := upsertEmbedding(tx, sum.ID, "Summary", sum.ConversationID, vector); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpsertEdge writes a typed edge between two nodes. Duplicate edges are
// ignored.
func (s *Store) UpsertEdge(edgeType, fromID, toID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO edges (type, from_id, to_id) VALUES (?, ?, ?)`,
		edgeType, fromID, toID,
	)
	if err != nil {
		return fmt.Errorf("memory: upsert edge %s: %w", edgeType, err)
	}
	return nil
}

// Summaries returns a conversation's summaries ordered by covered range.
// tier 0 returns all tiers.
func (s *Store) Summaries(conversationID string, tier int) ([]Summary, error) {
	query := `
		SELECT id, conversation_id, tier, confidence, summary, actions_summary, mentioned_files, start_turn, end_turn, created_at
		FROM summaries WHERE conversation_id = ?`
	args := []any{conversationID}
	if tier != 0 {
		query += ` AND tier = ?`
		args = append(args, tier)
	}
	query += ` ORDER BY tier, start_turn`

	return s.querySummaries(query, args...)
}

// UnconsolidatedL1 returns L1 summaries that no L2 summary consolidates
// yet, oldest first. These are both the L2 compaction input and the
// continuity section of the enriched context.
func (s *Store) UnconsolidatedL1(conversationID string) ([]Summary, error) {
	return s.querySummaries(`
		SELECT s.id, s.conversation_id, s.tier, s.confidence, s.summary, s.actions_summary, s.mentioned_files, s.start_turn, s.end_turn, s.created_at
		FROM summaries s
		WHERE s.conversation_id = ? AND s.tier = 1
		  AND NOT EXISTS (
			SELECT 1 FROM edges e WHERE e.type = 'CONSOLIDATES' AND e.to_id = s.id
		  )
		ORDER BY s.start_turn`,
		conversationID,
	)
}

func (s *Store) querySummaries(query string, args ...any) ([]Summary, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: query summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Summary
	for rows.Next() {
		var sum Summary
		var files string
		if err := rows.Scan(
			&sum.ID, &sum.ConversationID, &sum.Tier, &sum.Confidence,
			&sum.Summary, &sum.ActionsSummary, &files,
			&sum.StartTurn, &sum.EndTurn, &sum.CreatedAt,
		); err != nil {
			return nil, err
		}
		if files != "" {
			_ = json.Unmarshal([]byte(files), &sum.MentionedFiles)
		}
		results = append(results, sum)
	}
	return results, rows.Err()
}

// ─── Vector search ───────────────────────────────────────────────────────────

// SearchSimilar ranks a conversation's messages and summaries by cosine
// similarity to the query vector, keeping hits at or above minScore.
func (s *Store) SearchSimilar(conversationID string, query []float32, minScore float64, limit int) ([]SimilarRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT e.node_id, e.label, e.vector,
		        COALESCE(m.content, '') AS message_text,
		        COALESCE(su.summary, '') AS summary_text,
		        COALESCE(su.tier, 0) AS tier
		 FROM embeddings e
		 LEFT JOIN messages  m  ON m.id  = e.node_id AND e.label = 'Message'
		 LEFT JOIN summaries su ON su.id = e.node_id AND e.label = 'Summary'
		 WHERE e.conversation_id = ?`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: search similar: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []SimilarRecord
	for rows.Next() {
		var rec SimilarRecord
		var blob []byte
		var msgText, sumText string
		if err := rows.Scan(&rec.NodeID, &rec.Label, &blob, &msgText, &sumText, &rec.Tier); err != nil {
			return nil, err
		}
		vec := decodeVector(blob)
		score := Cosine(query, vec)
		if score < minScore {
			continue
		}
		rec.Score = score
		if rec.Label == "Summary" {
			rec.Text = sumText
		} else {
			rec.Text = msgText
		}
		hits = append(hits, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchCodeSimilar ranks indexed code chunks by cosine similarity.
func (s *Store) SearchCodeSimilar(query []float32, minScore float64, limit int) ([]CodeMatch, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT c.id, c.path, c.start_line, c.end_line, c.content, e.vector
		 FROM embeddings e
		 JOIN code_chunks c ON c.id = e.node_id
		 WHERE e.label = 'CodeChunk'`,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: search code: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []CodeMatch
	for rows.Next() {
		var m CodeMatch
		var blob []byte
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.Path, &m.Chunk.StartLine, &m.Chunk.EndLine, &m.Chunk.Content, &blob); err != nil {
			return nil, err
		}
		score := Cosine(query, decodeVector(blob))
		if score < minScore {
			continue
		}
		m.Score = score
		hits = append(hits, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchMessages performs FTS5 keyword search over message text.
func (s *Store) SearchMessages(conversationID, query string, limit int) ([]MessageHit, error) {
	if limit <= 0 {
		limit = 20
	}
	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return nil, nil
	}

	sqlStr := `
		SELECT message_id, conversation_id, content, rank
		FROM messages_fts
		WHERE messages_fts MATCH ?`
	args := []any{ftsQuery}
	if conversationID != "" {
		sqlStr += ` AND conversation_id = ?`
		args = append(args, conversationID)
	}
	sqlStr += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: search messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []MessageHit
	for rows.Next() {
		var h MessageHit
		if err := rows.Scan(&h.MessageID, &h.ConversationID, &h.Content, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ─── Code corpus / projects ──────────────────────────────────────────────────

// IndexCodeChunk upserts a code chunk and its embedding, keyed by the
// chunk's deterministic ID.
func (s *Store) IndexCodeChunk(c CodeChunk, vector []float32) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("memory: index chunk: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO code_chunks (id, path, start_line, end_line, content)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content = excluded.content`,
		c.ID, c.Path, c.StartLine, c.EndLine, c.Content,
	); err != nil {
		return fmt.Errorf("memory: index chunk: %w", err)
	}

	if vector != nil {
		if err := upsertEmbedding(tx, c.ID, "CodeChunk", "", vector); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RegisterProject records a codebase root for eligibility checks.
func (s *Store) RegisterProject(name, root string) error {
	_, err := s.db.Exec(
		`INSERT INTO projects (root, name) VALUES (?, ?)
		 ON CONFLICT(root) DO UPDATE SET name = excluded.name, ingested_at = datetime('now')`,
		root, name,
	)
	return err
}

// Projects returns all registered project roots.
func (s *Store) Projects() ([]Project, error) {
	rows, err := s.db.Query(`SELECT name, root, ingested_at FROM projects ORDER BY ingested_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("memory: list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Name, &p.Root, &p.IngestedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ─── Stats ───────────────────────────────────────────────────────────────────

// Stats returns aggregate counts across the store.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM conversations`, &stats.Conversations},
		{`SELECT COUNT(*) FROM messages`, &stats.Messages},
		{`SELECT COUNT(*) FROM tool_calls`, &stats.ToolCalls},
		{`SELECT COUNT(*) FROM summaries WHERE tier = 1`, &stats.L1Summaries},
		{`SELECT COUNT(*) FROM summaries WHERE tier = 2`, &stats.L2Summaries},
		{`SELECT COUNT(*) FROM code_chunks`, &stats.CodeChunks},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("memory: stats: %w", err)
		}
	}
	return stats, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

const timeLayout = "2006-01-02 15:04:05"

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format(timeLayout)
}

// Truncate shortens a string to max length with ellipsis.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func upsertEmbedding(tx *sql.Tx, nodeID, label, conversationID string, vector []float32) error {
	_, err := tx.Exec(
		`INSERT INTO embeddings (node_id, label, conversation_id, vector, dim)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(node_id) DO UPDATE SET vector = excluded.vector, dim = excluded.dim`,
		nodeID, label, conversationID, encodeVector(vector), len(vector),
	)
	if err != nil {
		return fmt.Errorf("memory: upsert embedding %s: %w", nodeID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "fix auth bug" → `"fix" "auth" "bug"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}
