// Package storage persists the small amount of state generators keep across
// sessions.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SeenStore remembers which items (news headlines, for instance) have
// already been shown, grouped by scope.
type SeenStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSeenStore(dataDir string) (*SeenStore, error) {
	return openSeenStore(filepath.Join(dataDir, "seen.db"))
}

func openSeenStore(dsn string) (*SeenStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; modernc serializes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SeenStore{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func (s *SeenStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		seen_at INTEGER NOT NULL,
		PRIMARY KEY (scope, key)
	);
	CREATE INDEX IF NOT EXISTS idx_seen_at ON seen(seen_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// migrateSchema adds columns introduced after the first release.
func (s *SeenStore) migrateSchema() error {
	hasTitle, err := s.columnExists("seen", "title")
	if err != nil {
		return fmt.Errorf("failed to check for title column: %w", err)
	}
	if !hasTitle {
		if _, err := s.db.Exec(`ALTER TABLE seen ADD COLUMN title TEXT DEFAULT ''`); err != nil {
			return fmt.Errorf("failed to add title column: %w", err)
		}
	}
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (s *SeenStore) columnExists(tableName, columnName string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid          int
			name         string
			dataType     string
			notNull      int
			defaultValue any
			pk           int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

func (s *SeenStore) Seen(ctx context.Context, scope, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM seen WHERE scope = ? AND key = ?`, scope, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen %s/%s: %w", scope, key, err)
	}
	return true, nil
}

// MarkSeen records key under scope. Marking an item again refreshes its
// timestamp.
func (s *SeenStore) MarkSeen(ctx context.Context, scope, key, title string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO seen (scope, key, seen_at, title) VALUES (?, ?, ?, ?)
	ON CONFLICT(scope, key) DO UPDATE SET seen_at = excluded.seen_at, title = excluded.title
	`, scope, key, s.now().Unix(), title)
	if err != nil {
		return fmt.Errorf("mark seen %s/%s: %w", scope, key, err)
	}
	return nil
}

// Count reports how many items scope holds.
func (s *SeenStore) Count(ctx context.Context, scope string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen WHERE scope = ?`, scope).Scan(&n); err != nil {
		return 0, fmt.Errorf("count seen %s: %w", scope, err)
	}
	return n, nil
}

// Prune deletes every item recorded more than olderThan ago and returns how
// many were removed.
func (s *SeenStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM seen WHERE seen_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

func (s *SeenStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
