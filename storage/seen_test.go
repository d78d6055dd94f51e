package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SeenStore {
	t.Helper()
	s, err := NewSeenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeenStoreMarkAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seen, err := s.Seen(ctx, "news", "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkSeen(ctx, "news", "https://example.com/a", "A"))
	require.NoError(t, s.MarkSeen(ctx, "news", "https://example.com/a", "A again"))

	seen, err = s.Seen(ctx, "news", "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.Seen(ctx, "other", "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, seen, "scopes are independent")

	n, err := s.Count(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSeenStorePrune(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now.Add(-72 * time.Hour) }
	require.NoError(t, s.MarkSeen(ctx, "news", "old", ""))
	s.now = func() time.Time { return now }
	require.NoError(t, s.MarkSeen(ctx, "news", "fresh", ""))

	removed, err := s.Prune(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	seen, err := s.Seen(ctx, "news", "old")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = s.Seen(ctx, "news", "fresh")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSeenStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewSeenStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.MarkSeen(ctx, "news", "k", "t"))
	require.NoError(t, s.Close())

	assert.FileExists(t, filepath.Join(dir, "seen.db"))

	s, err = NewSeenStore(dir)
	require.NoError(t, err)
	defer s.Close()

	seen, err := s.Seen(ctx, "news", "k")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSeenStoreMigratesLegacySchema(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := openSeenStore(dsn)
	require.NoError(t, err)
	_, err = legacy.db.Exec(`DROP TABLE seen; CREATE TABLE seen (scope TEXT NOT NULL, key TEXT NOT NULL, seen_at INTEGER NOT NULL, PRIMARY KEY (scope, key));`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	s, err := openSeenStore(dsn)
	require.NoError(t, err)
	defer s.Close()

	has, err := s.columnExists("seen", "title")
	require.NoError(t, err)
	assert.True(t, has)
	require.NoError(t, s.MarkSeen(ctx, "news", "k", "title"))
}
