package lookup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Compile-time check that Store satisfies Recorder.
var _ Recorder = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS cached_pages (
	id                       TEXT PRIMARY KEY,
	cache_key                TEXT NOT NULL UNIQUE,
	lookup_identifier        TEXT NOT NULL,
	supplementary_identifier TEXT NOT NULL DEFAULT '',
	version                  TEXT NOT NULL DEFAULT '',
	created_at               TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cached_pages_lookup
	ON cached_pages (lookup_identifier, supplementary_identifier);
`

// Store is the SQLite-backed lookup-record store.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the lookup database at path.
// Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts rec or refreshes the row already holding its cache
// key. The identifiers and version are overwritten on conflict so the
// record always reflects the latest write.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if rec.CacheKey == "" {
		return fmt.Errorf("cache key is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cached_pages
			(id, cache_key, lookup_identifier, supplementary_identifier, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			lookup_identifier        = excluded.lookup_identifier,
			supplementary_identifier = excluded.supplementary_identifier,
			version                  = excluded.version`,
		uuid.NewString(),
		rec.CacheKey,
		rec.LookupIdentifier,
		rec.SupplementaryIdentifier,
		rec.Version,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// ListByIdentifier returns all records in a lookup-identifier scope,
// optionally narrowed by supplementary identifier. This is the read
// surface consumed by the invalidation subsystem.
func (s *Store) ListByIdentifier(ctx context.Context, identifier, supplementary string) ([]Record, error) {
	query := `
		SELECT id, cache_key, lookup_identifier, supplementary_identifier, version, created_at
		FROM cached_pages
		WHERE lookup_identifier = ?`
	args := []any{identifier}
	if supplementary != "" {
		query += ` AND supplementary_identifier = ?`
		args = append(args, supplementary)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// DeleteByIdentifier removes every record in a scope and returns the
// cache keys of the removed rows, so the caller can purge the shared
// store to match.
func (s *Store) DeleteByIdentifier(ctx context.Context, identifier, supplementary string) ([]string, error) {
	records, err := s.ListByIdentifier(ctx, identifier, supplementary)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	query := `DELETE FROM cached_pages WHERE lookup_identifier = ?`
	args := []any{identifier}
	if supplementary != "" {
		query += ` AND supplementary_identifier = ?`
		args = append(args, supplementary)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("delete records: %w", err)
	}

	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = rec.CacheKey
	}
	return keys, nil
}

// DeleteByKey removes the record for a single cache key.
func (s *Store) DeleteByKey(ctx context.Context, cacheKey string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cached_pages WHERE cache_key = ?`, cacheKey)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var createdAt string
	if err := rows.Scan(
		&rec.ID,
		&rec.CacheKey,
		&rec.LookupIdentifier,
		&rec.SupplementaryIdentifier,
		&rec.Version,
		&createdAt,
	); err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}
