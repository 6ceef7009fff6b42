// Package history records live tracks and serves the recent and today views.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zachfi/nowplaying/modules/store"
	"github.com/zachfi/nowplaying/pkg/trackmeta"
)

const module = "history"

var metricRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nowplaying",
	Subsystem: module,
	Name:      "records_total",
	Help:      "Tracks offered to the history, by outcome.",
}, []string{"outcome"})

// Store is the persistence the history needs.
type Store interface {
	InsertHistory(ctx context.Context, e store.HistoryEntry) (string, error)
	PlayedSince(ctx context.Context, artist, title string, since time.Time) (bool, error)
	RecentHistory(ctx context.Context, limit int) ([]store.HistoryEntry, error)
	HistorySince(ctx context.Context, since time.Time) ([]store.HistoryEntry, error)
	SetHistoryArtwork(ctx context.Context, id, url string) error
	DeleteHistory(ctx context.Context, id string) error
	TrimHistory(ctx context.Context, keep int) (int64, error)
	ClearHistory(ctx context.Context) (int64, error)
}

// Artwork finds cover art for entries recorded without it. URL returns false
// when the lookup failed outright.
type Artwork interface {
	URL(ctx context.Context, artist, title string) (string, bool)
}

// Entry is a history row formatted for display.
type Entry struct {
	Title             string    `json:"title"`
	Artist            string    `json:"artist"`
	Album             string    `json:"album,omitempty"`
	PlayedAt          time.Time `json:"played_at"`
	PlayedAtFormatted string    `json:"played_at_formatted"`
	ArtworkURL        string    `json:"artwork_url"`
}

type History struct {
	services.Service

	cfg     *Config
	logger  *slog.Logger
	store   Store
	artwork Artwork
	now     func() time.Time
}

func New(cfg Config, logger *slog.Logger, s Store, artwork Artwork) (*History, error) {
	if cfg.MaxEntries < 1 {
		return nil, fmt.Errorf("max entries must be positive, got %d", cfg.MaxEntries)
	}

	h := &History{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		store:   s,
		artwork: artwork,
		now:     time.Now,
	}
	h.Service = services.NewIdleService(nil, nil)

	return h, nil
}

// IsFallback reports whether a title/artist pair is a station ident or
// placeholder rather than a song.
func (h *History) IsFallback(title, artist string) bool {
	title = strings.ToLower(strings.TrimSpace(title))
	artist = strings.ToLower(strings.TrimSpace(artist))

	if utf8.RuneCountInString(title) < 2 || utf8.RuneCountInString(artist) < 2 {
		return true
	}

	for _, p := range h.cfg.FallbackPatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.Contains(title, p) || strings.Contains(artist, p) {
			return true
		}
	}

	return artist == "radio station"
}

// Record appends t unless it is a fallback or was already recorded within
// the duplicate window, then trims the history.
func (h *History) Record(ctx context.Context, t trackmeta.Track) error {
	if h.IsFallback(t.Title, t.Artist) {
		h.logger.Debug("skipping fallback track", "title", t.Title, "artist", t.Artist)
		metricRecorded.WithLabelValues("fallback").Inc()
		return nil
	}

	now := h.now()
	dup, err := h.store.PlayedSince(ctx, t.Artist, t.Title, now.Add(-h.cfg.DuplicateWindow))
	if err != nil {
		return err
	}
	if dup {
		h.logger.Info("skipping duplicate track", "title", t.Title, "artist", t.Artist)
		metricRecorded.WithLabelValues("duplicate").Inc()
		return nil
	}

	_, err = h.store.InsertHistory(ctx, store.HistoryEntry{
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		ArtworkURL: t.ArtworkURL,
		PlayedAt:   now,
	})
	if err != nil {
		return err
	}
	h.logger.Info("added track to history", "title", t.Title, "artist", t.Artist)
	metricRecorded.WithLabelValues("recorded").Inc()

	n, err := h.store.TrimHistory(ctx, h.cfg.MaxEntries)
	if err != nil {
		return err
	}
	if n > 0 {
		h.logger.Info("trimmed history", "deleted", n)
	}
	return nil
}

// Recent returns up to limit real tracks, newest first. Missing artwork is
// looked up and plain http artwork is upgraded to https; both are written
// back.
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := h.store.RecentHistory(ctx, limit*2)
	if err != nil {
		return nil, err
	}

	now := h.now()
	entries := make([]Entry, 0, limit)
	for _, r := range rows {
		if len(entries) >= limit {
			break
		}
		if h.IsFallback(r.Title, r.Artist) {
			continue
		}

		e := Entry{
			Title:             r.Title,
			Artist:            r.Artist,
			Album:             r.Album,
			PlayedAt:          r.PlayedAt,
			PlayedAtFormatted: humanize.RelTime(r.PlayedAt, now, "ago", "from now"),
			ArtworkURL:        r.ArtworkURL,
		}

		switch {
		case e.ArtworkURL == "":
			url, ok := h.artwork.URL(ctx, r.Artist, r.Title)
			if !ok {
				e.ArtworkURL = trackmeta.ArtworkPlaceholder
				break
			}
			e.ArtworkURL = url
			h.saveArtwork(ctx, r.ID, url)
		case strings.HasPrefix(e.ArtworkURL, "http://"):
			e.ArtworkURL = "https://" + strings.TrimPrefix(e.ArtworkURL, "http://")
			h.saveArtwork(ctx, r.ID, e.ArtworkURL)
		}

		entries = append(entries, e)
	}

	return entries, nil
}

func (h *History) saveArtwork(ctx context.Context, id, url string) {
	if err := h.store.SetHistoryArtwork(ctx, id, url); err != nil {
		h.logger.Error("failed to update history artwork", "id", id, "err", err)
	}
}

// Today returns the tracks played since midnight UTC, grouped by "HH:00".
func (h *History) Today(ctx context.Context) (map[string][]Entry, error) {
	midnight := h.now().UTC().Truncate(24 * time.Hour)

	rows, err := h.store.HistorySince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	hours := make(map[string][]Entry)
	for _, r := range rows {
		playedAt := r.PlayedAt.UTC()
		artwork := r.ArtworkURL
		if artwork == "" {
			artwork = trackmeta.ArtworkPlaceholder
		}

		key := fmt.Sprintf("%02d:00", playedAt.Hour())
		hours[key] = append(hours[key], Entry{
			Title:             r.Title,
			Artist:            r.Artist,
			Album:             r.Album,
			PlayedAt:          r.PlayedAt,
			PlayedAtFormatted: playedAt.Format("03:04pm"),
			ArtworkURL:        artwork,
		})
	}
	return hours, nil
}

// CleanupFallback removes stored fallback tracks and returns how many were
// removed.
func (h *History) CleanupFallback(ctx context.Context) (int, error) {
	rows, err := h.store.RecentHistory(ctx, -1)
	if err != nil {
		return 0, err
	}

	var removed int
	for _, r := range rows {
		if !h.IsFallback(r.Title, r.Artist) {
			continue
		}
		if err := h.store.DeleteHistory(ctx, r.ID); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		h.logger.Info("cleaned up fallback tracks", "removed", removed)
	}
	return removed, nil
}

// Clear deletes the whole history.
func (h *History) Clear(ctx context.Context) (int64, error) {
	n, err := h.store.ClearHistory(ctx)
	if err != nil {
		return 0, err
	}
	h.logger.Info("cleared history", "deleted", n)
	return n, nil
}
