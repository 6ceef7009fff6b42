package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/nowplaying/pkg/trackmeta"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: ":memory:"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, title := range []string{"One", "Two", "Three", "Four"} {
		_, err := s.InsertHistory(ctx, HistoryEntry{
			Title:    title,
			Artist:   "Band",
			PlayedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	recent, err := s.RecentHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Four", recent[0].Title)
	assert.Equal(t, "Three", recent[1].Title)
	assert.NotEmpty(t, recent[0].ID)
	assert.Equal(t, base.Add(3*time.Minute), recent[0].PlayedAt)

	played, err := s.PlayedSince(ctx, "Band", "Two", base)
	require.NoError(t, err)
	assert.True(t, played)

	played, err = s.PlayedSince(ctx, "Band", "One", base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, played)

	since, err := s.HistorySince(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, since, 2)

	require.NoError(t, s.SetHistoryArtwork(ctx, recent[0].ID, "https://example.com/a.jpg"))
	all, err := s.RecentHistory(ctx, -1)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "https://example.com/a.jpg", all[0].ArtworkURL)

	n, err := s.TrimHistory(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.TrimHistory(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.DeleteHistory(ctx, all[0].ID))
	n, err = s.ClearHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, ok, err := s.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, title := range []string{"First", "Second"} {
		require.NoError(t, s.SaveCurrent(ctx, trackmeta.Track{
			Title:     title,
			Artist:    "Band",
			IsLive:    true,
			Timestamp: now,
		}))
	}

	got, ok, err := s.Current(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, trackmeta.Track{Title: "Second", Artist: "Band", IsLive: true, Timestamp: now}, got)
}

func TestArtworkCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	old := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutArtwork(ctx, ArtworkEntry{Key: "k1", Artist: "a", Title: "t", URL: "u1", CachedAt: old}))
	require.NoError(t, s.PutArtwork(ctx, ArtworkEntry{Key: "k1", Artist: "a", Title: "t", URL: "u2", CachedAt: old}))
	require.NoError(t, s.PutArtwork(ctx, ArtworkEntry{Key: "k2", Artist: "b", Title: "t", URL: "u3", CachedAt: old.Add(48 * time.Hour)}))

	e, ok, err := s.Artwork(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u2", e.URL)
	assert.Equal(t, old, e.CachedAt)

	n, err := s.DeleteArtworkBefore(ctx, old.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err = s.Artwork(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}
