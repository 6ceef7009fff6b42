package store

import (
	"context"
	"database/sql"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS track_history (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		artist      TEXT NOT NULL,
		album       TEXT NOT NULL DEFAULT '',
		artwork_url TEXT NOT NULL DEFAULT '',
		played_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_track_history_played_at ON track_history (played_at)`,
	`CREATE INDEX IF NOT EXISTS idx_track_history_track ON track_history (artist, title)`,
	`CREATE TABLE IF NOT EXISTS current_track (
		id          INTEGER PRIMARY KEY CHECK (id = 1),
		title       TEXT NOT NULL,
		artist      TEXT NOT NULL,
		album       TEXT NOT NULL DEFAULT '',
		artwork_url TEXT NOT NULL DEFAULT '',
		is_live     INTEGER NOT NULL DEFAULT 0,
		updated_at  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS artwork_cache (
		cache_key   TEXT PRIMARY KEY,
		artist      TEXT NOT NULL,
		title       TEXT NOT NULL,
		artwork_url TEXT NOT NULL,
		cached_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_artwork_cache_cached_at ON artwork_cache (cached_at)`,
}

func initSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
