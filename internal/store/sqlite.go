package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements MetadataStore backed by a SQLite database.
// A single connection is used so writes serialize without SQLITE_BUSY churn.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	title TEXT,
	visit_count INTEGER DEFAULT 0,
	typed_count INTEGER DEFAULT 0,
	last_visit_time TEXT,
	domain TEXT
);
CREATE INDEX IF NOT EXISTS idx_history_domain ON history(domain);
CREATE INDEX IF NOT EXISTS idx_history_last_visit ON history(last_visit_time);

CREATE TABLE IF NOT EXISTS content (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	history_id INTEGER NOT NULL REFERENCES history(id) ON DELETE CASCADE,
	content_data TEXT
);
CREATE INDEX IF NOT EXISTS idx_content_history ON content(history_id);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content_id INTEGER NOT NULL REFERENCES content(id) ON DELETE CASCADE,
	chunk_text TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	metadata TEXT,
	UNIQUE(content_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_content ON chunks(content_id);

CREATE TABLE IF NOT EXISTS search_cache (
	query_hash TEXT PRIMARY KEY,
	results TEXT NOT NULL,
	created_at TEXT DEFAULT (datetime('now'))
);
`

// NewSQLiteStore opens (creating if needed) the metadata database at path.
// Use ":memory:" for an ephemeral database in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite serializes per connection; one connection avoids
	// writer contention entirely.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-20000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveHistory upserts a history entry keyed by URL. A repeated URL replaces
// the prior row, keeping its id.
func (s *SQLiteStore) SaveHistory(ctx context.Context, entry *HistoryEntry) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (url, title, visit_count, typed_count, last_visit_time, domain)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			visit_count = excluded.visit_count,
			typed_count = excluded.typed_count,
			last_visit_time = excluded.last_visit_time,
			domain = excluded.domain`,
		entry.URL, entry.Title, entry.VisitCount, entry.TypedCount, entry.LastVisitTime, entry.Domain)
	if err != nil {
		return 0, fmt.Errorf("failed to save history for %s: %w", entry.URL, err)
	}

	// LastInsertId is unreliable on upsert; resolve by URL.
	var rowID int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM history WHERE url = ?`, entry.URL).Scan(&rowID); err != nil {
		return 0, fmt.Errorf("failed to resolve history id for %s: %w", entry.URL, err)
	}
	return rowID, nil
}

// SaveContent stores extracted page text for a history row.
func (s *SQLiteStore) SaveContent(ctx context.Context, historyID int64, contentData string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO content (history_id, content_data) VALUES (?, ?)`,
		historyID, contentData)
	if err != nil {
		return 0, fmt.Errorf("failed to save content for history %d: %w", historyID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get content id: %w", err)
	}
	return id, nil
}

// SaveChunks stores ordered text chunks for a content row, replacing any
// chunk already stored at the same index.
func (s *SQLiteStore) SaveChunks(ctx context.Context, contentID int64, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin chunk transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (content_id, chunk_text, chunk_index)
		VALUES (?, ?, ?)
		ON CONFLICT(content_id, chunk_index) DO UPDATE SET chunk_text = excluded.chunk_text`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, text := range chunks {
		if _, err := stmt.ExecContext(ctx, contentID, text, i); err != nil {
			return fmt.Errorf("failed to save chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// GetChunksByKeys resolves chunk identity keys to full records. Keys that no
// longer have a matching row are skipped; the vector index may briefly hold
// entries for deleted content.
func (s *SQLiteStore) GetChunksByKeys(ctx context.Context, keys []string) ([]*ChunkRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	stmt, err := s.db.PrepareContext(ctx, `
		SELECT h.id, c.id, h.url, h.domain, h.title, ch.chunk_index, ch.chunk_text,
		       h.last_visit_time, h.visit_count, ch.metadata
		FROM chunks ch
		JOIN content c ON ch.content_id = c.id
		JOIN history h ON c.history_id = h.id
		WHERE h.url = ? AND ch.chunk_index = ?
		LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare chunk lookup: %w", err)
	}
	defer stmt.Close()

	results := make([]*ChunkRecord, 0, len(keys))
	for _, key := range keys {
		url, idx, ok := splitChunkKey(key)
		if !ok {
			slog.Warn("malformed chunk key", "key", key)
			continue
		}
		rec, err := scanChunkRow(stmt.QueryRowContext(ctx, url, idx))
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, fmt.Errorf("failed to look up chunk %s: %w", key, err)
		}
		results = append(results, rec)
	}
	return results, nil
}

// SearchChunksByTerms performs a two-tier substring search: first over chunk
// text only; then, if that tier comes up short of limit, over history titles
// and URLs for pages whose content never matched. Results are newest first.
func (s *SQLiteStore) SearchChunksByTerms(ctx context.Context, terms []string, limit int) ([]*ChunkRecord, error) {
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	seenURL := make(map[string]bool)
	var results []*ChunkRecord

	for _, term := range terms {
		pattern := likePattern(term)
		rows, err := s.db.QueryContext(ctx, `
			SELECT h.id, c.id, h.url, h.domain, h.title, ch.chunk_index, ch.chunk_text,
			       h.last_visit_time, h.visit_count, ch.metadata
			FROM chunks ch
			JOIN content c ON ch.content_id = c.id
			JOIN history h ON c.history_id = h.id
			WHERE ch.chunk_text LIKE ? ESCAPE '\'
			ORDER BY h.last_visit_time DESC
			LIMIT ?`,
			pattern, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to search chunks for %q: %w", term, err)
		}

		for rows.Next() {
			rec, err := scanChunkRow(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan chunk row: %w", err)
			}
			if seen[rec.Key()] {
				continue
			}
			seen[rec.Key()] = true
			seenURL[rec.URL] = true
			results = append(results, rec)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("chunk search iteration failed: %w", err)
		}
		rows.Close()
	}

	// Second tier, only when chunk text alone cannot fill the limit: pages
	// matched by title or URL. Synthesize a minimal chunk so pages with no
	// extracted content remain retrievable.
	if len(results) >= limit {
		sortChunksByRecency(results)
		return results[:limit], nil
	}

	for _, term := range terms {
		pattern := likePattern(term)
		rows, err := s.db.QueryContext(ctx, `
			SELECT h.id, h.url, h.domain, h.title, h.last_visit_time, h.visit_count
			FROM history h
			WHERE h.title LIKE ? ESCAPE '\' OR h.url LIKE ? ESCAPE '\'
			ORDER BY h.last_visit_time DESC
			LIMIT ?`,
			pattern, pattern, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to search history for %q: %w", term, err)
		}

		for rows.Next() {
			var e HistoryEntry
			var title, lastVisit, domain sql.NullString
			if err := rows.Scan(&e.ID, &e.URL, &domain, &title, &lastVisit, &e.VisitCount); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan history row: %w", err)
			}
			if seenURL[e.URL] {
				continue
			}
			seenURL[e.URL] = true

			rec := &ChunkRecord{
				HistoryID:     e.ID,
				URL:           e.URL,
				Domain:        domain.String,
				Title:         title.String,
				ChunkIndex:    0,
				ChunkText:     fmt.Sprintf("Title: %s\nURL: %s", title.String, e.URL),
				LastVisitTime: lastVisit.String,
				VisitCount:    e.VisitCount,
			}
			if !seen[rec.Key()] {
				seen[rec.Key()] = true
				results = append(results, rec)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("history search iteration failed: %w", err)
		}
		rows.Close()
	}

	sortChunksByRecency(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// RecentHistory returns the most recently visited entries.
func (s *SQLiteStore) RecentHistory(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, domain, visit_count, typed_count, last_visit_time
		FROM history
		ORDER BY last_visit_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent history: %w", err)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// DomainHistory returns entries whose URL contains the given domain.
func (s *SQLiteStore) DomainHistory(ctx context.Context, domain string, limit int) ([]*HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, domain, visit_count, typed_count, last_visit_time
		FROM history
		WHERE url LIKE ? ESCAPE '\'
		ORDER BY last_visit_time DESC
		LIMIT ?`, likePattern(domain), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query domain history for %s: %w", domain, err)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// DomainStats aggregates page and visit counts per domain.
func (s *SQLiteStore) DomainStats(ctx context.Context, limit int) ([]*DomainStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, COUNT(*), COALESCE(SUM(visit_count), 0)
		FROM history
		WHERE domain IS NOT NULL AND domain != ''
		GROUP BY domain
		ORDER BY COUNT(*) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query domain stats: %w", err)
	}
	defer rows.Close()

	var stats []*DomainStat
	for rows.Next() {
		var st DomainStat
		if err := rows.Scan(&st.Domain, &st.PageCount, &st.TotalVisits); err != nil {
			return nil, fmt.Errorf("failed to scan domain stat: %w", err)
		}
		stats = append(stats, &st)
	}
	return stats, rows.Err()
}

// GetSearchCache returns the cached result blob for a query hash.
func (s *SQLiteStore) GetSearchCache(ctx context.Context, queryHash string) ([]byte, error) {
	var results string
	err := s.db.QueryRowContext(ctx,
		`SELECT results FROM search_cache WHERE query_hash = ?`, queryHash).Scan(&results)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read search cache: %w", err)
	}
	return []byte(results), nil
}

// PutSearchCache stores (or overwrites) the cached result blob. Entries are
// never invalidated; re-indexing the same content leaves stale snapshots
// behind until overwritten by the same query.
func (s *SQLiteStore) PutSearchCache(ctx context.Context, queryHash string, results []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_cache (query_hash, results, created_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(query_hash) DO UPDATE SET
			results = excluded.results,
			created_at = excluded.created_at`,
		queryHash, string(results))
	if err != nil {
		return fmt.Errorf("failed to write search cache: %w", err)
	}
	return nil
}

// likePattern wraps a term for substring matching, escaping LIKE wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// splitChunkKey parses "url#index". The index is everything after the LAST
// '#' so URLs containing fragments still round-trip.
func splitChunkKey(key string) (url string, idx int, ok bool) {
	pos := strings.LastIndex(key, "#")
	if pos < 0 || pos == len(key)-1 {
		return "", 0, false
	}
	n := 0
	for _, r := range key[pos+1:] {
		if r < '0' || r > '9' {
			return "", 0, false
		}
		n = n*10 + int(r-'0')
	}
	return key[:pos], n, true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunkRow(row rowScanner) (*ChunkRecord, error) {
	var rec ChunkRecord
	var domain, title, lastVisit, metadata sql.NullString
	err := row.Scan(&rec.HistoryID, &rec.ContentID, &rec.URL, &domain, &title,
		&rec.ChunkIndex, &rec.ChunkText, &lastVisit, &rec.VisitCount, &metadata)
	if err != nil {
		return nil, err
	}
	rec.Domain = domain.String
	rec.Title = title.String
	rec.LastVisitTime = lastVisit.String
	if metadata.Valid && metadata.String != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(metadata.String), &m); err == nil {
			rec.Metadata = m
		}
	}
	return &rec, nil
}

func scanHistoryRows(rows *sql.Rows) ([]*HistoryEntry, error) {
	var entries []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var title, domain, lastVisit sql.NullString
		if err := rows.Scan(&e.ID, &e.URL, &title, &domain, &e.VisitCount, &e.TypedCount, &lastVisit); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Title = title.String
		e.Domain = domain.String
		e.LastVisitTime = lastVisit.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// sortChunksByRecency sorts newest first by the lexicographic visit
// timestamp, which is stored in sortable "YYYY-MM-DD HH:MM:SS" form.
func sortChunksByRecency(chunks []*ChunkRecord) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].LastVisitTime > chunks[j].LastVisitTime
	})
}
