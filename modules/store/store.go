// Package store persists play history, the current track and the artwork
// cache in SQLite.
package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/zachfi/nowplaying/pkg/trackmeta"
)

const module = "store"

// HistoryEntry is one row of the play history.
type HistoryEntry struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	PlayedAt   time.Time
}

// ArtworkEntry is a cached artwork lookup. URL may hold a placeholder for
// lookups that found nothing.
type ArtworkEntry struct {
	Key      string
	Artist   string
	Title    string
	URL      string
	CachedAt time.Time
}

type Store struct {
	services.Service

	cfg    *Config
	logger *slog.Logger
	db     *sql.DB
}

// New opens the database and creates the schema.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// One connection keeps writes serialised and :memory: databases intact.
	db.SetMaxOpenConns(1)

	if err := initSchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialise schema")
	}

	s := &Store{
		cfg:    &cfg,
		logger: logger.With("module", module),
		db:     db,
	}
	s.Service = services.NewIdleService(nil, s.stopping)

	return s, nil
}

func (s *Store) stopping(_ error) error {
	s.logger.Info("stopping")
	return s.Close()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertHistory appends e, assigning an ID when it has none.
func (s *Store) InsertHistory(ctx context.Context, e HistoryEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO track_history (id, title, artist, album, artwork_url, played_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.Title, e.Artist, e.Album, e.ArtworkURL, e.PlayedAt.UnixNano())
	if err != nil {
		return "", errors.Wrap(err, "failed to insert history")
	}
	return e.ID, nil
}

// PlayedSince reports whether artist/title was recorded at or after since.
func (s *Store) PlayedSince(ctx context.Context, artist, title string, since time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM track_history
		WHERE artist = ? AND title = ? AND played_at >= ?
	`, artist, title, since.UnixNano()).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "failed to query history")
	}
	return n > 0, nil
}

// RecentHistory returns up to limit entries, newest first. A negative limit
// returns everything.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	return s.queryHistory(ctx, `
		SELECT id, title, artist, album, artwork_url, played_at
		FROM track_history
		ORDER BY played_at DESC
		LIMIT ?
	`, limit)
}

// HistorySince returns entries played at or after since, newest first.
func (s *Store) HistorySince(ctx context.Context, since time.Time) ([]HistoryEntry, error) {
	return s.queryHistory(ctx, `
		SELECT id, title, artist, album, artwork_url, played_at
		FROM track_history
		WHERE played_at >= ?
		ORDER BY played_at DESC
	`, since.UnixNano())
}

func (s *Store) queryHistory(ctx context.Context, query string, args ...any) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e        HistoryEntry
			playedAt int64
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Artist, &e.Album, &e.ArtworkURL, &playedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan history")
		}
		e.PlayedAt = time.Unix(0, playedAt).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetHistoryArtwork updates the artwork of one entry.
func (s *Store) SetHistoryArtwork(ctx context.Context, id, url string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE track_history SET artwork_url = ? WHERE id = ?`, url, id)
	return errors.Wrap(err, "failed to update history artwork")
}

// DeleteHistory removes one entry.
func (s *Store) DeleteHistory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM track_history WHERE id = ?`, id)
	return errors.Wrap(err, "failed to delete history")
}

// TrimHistory deletes entries older than the newest keep entries.
func (s *Store) TrimHistory(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM track_history
		WHERE played_at < (
			SELECT played_at FROM track_history
			ORDER BY played_at DESC
			LIMIT 1 OFFSET ?
		)
	`, keep-1)
	if err != nil {
		return 0, errors.Wrap(err, "failed to trim history")
	}
	return res.RowsAffected()
}

// ClearHistory deletes every entry.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM track_history`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to clear history")
	}
	return res.RowsAffected()
}

// SaveCurrent overwrites the current track.
func (s *Store) SaveCurrent(ctx context.Context, t trackmeta.Track) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO current_track (id, title, artist, album, artwork_url, is_live, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			artwork_url = excluded.artwork_url,
			is_live = excluded.is_live,
			updated_at = excluded.updated_at
	`, t.Title, t.Artist, t.Album, t.ArtworkURL, t.IsLive, t.Timestamp.UnixNano())
	return errors.Wrap(err, "failed to save current track")
}

// Current returns the last saved track.
func (s *Store) Current(ctx context.Context) (trackmeta.Track, bool, error) {
	var (
		t         trackmeta.Track
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT title, artist, album, artwork_url, is_live, updated_at
		FROM current_track WHERE id = 1
	`).Scan(&t.Title, &t.Artist, &t.Album, &t.ArtworkURL, &t.IsLive, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return trackmeta.Track{}, false, nil
	}
	if err != nil {
		return trackmeta.Track{}, false, errors.Wrap(err, "failed to load current track")
	}
	t.Timestamp = time.Unix(0, updatedAt).UTC()
	return t, true, nil
}

// Artwork returns the cached entry for key.
func (s *Store) Artwork(ctx context.Context, key string) (ArtworkEntry, bool, error) {
	var (
		e        ArtworkEntry
		cachedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT cache_key, artist, title, artwork_url, cached_at
		FROM artwork_cache WHERE cache_key = ?
	`, key).Scan(&e.Key, &e.Artist, &e.Title, &e.URL, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ArtworkEntry{}, false, nil
	}
	if err != nil {
		return ArtworkEntry{}, false, errors.Wrap(err, "failed to load artwork")
	}
	e.CachedAt = time.Unix(0, cachedAt).UTC()
	return e, true, nil
}

// PutArtwork inserts or replaces a cache entry.
func (s *Store) PutArtwork(ctx context.Context, e ArtworkEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artwork_cache (cache_key, artist, title, artwork_url, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			artist = excluded.artist,
			title = excluded.title,
			artwork_url = excluded.artwork_url,
			cached_at = excluded.cached_at
	`, e.Key, e.Artist, e.Title, e.URL, e.CachedAt.UnixNano())
	return errors.Wrap(err, "failed to save artwork")
}

// DeleteArtworkBefore drops cache entries older than cutoff.
func (s *Store) DeleteArtworkBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artwork_cache WHERE cached_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, errors.Wrap(err, "failed to clean artwork cache")
	}
	return res.RowsAffected()
}
