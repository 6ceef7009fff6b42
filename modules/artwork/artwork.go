// Package artwork finds album cover art for a track and caches the result.
package artwork

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shkh/lastfm-go/lastfm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/zachfi/nowplaying/internal/tracing"
	"github.com/zachfi/nowplaying/modules/store"
	"github.com/zachfi/nowplaying/pkg/trackmeta"
	"github.com/zachfi/nowplaying/pkg/variations"
)

const module = "artwork"

var (
	metricLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nowplaying",
		Subsystem: module,
		Name:      "lookups_total",
		Help:      "Artwork lookups by source and result.",
	}, []string{"source", "result"})

	metricCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nowplaying",
		Subsystem: module,
		Name:      "cache_requests_total",
		Help:      "Artwork cache requests by result.",
	}, []string{"result"})
)

// Cache persists lookup results.
type Cache interface {
	Artwork(ctx context.Context, key string) (store.ArtworkEntry, bool, error)
	PutArtwork(ctx context.Context, e store.ArtworkEntry) error
	DeleteArtworkBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Artwork struct {
	services.Service

	cfg     *Config
	logger  *slog.Logger
	tracer  trace.Tracer
	cache   Cache
	client  *http.Client
	limiter *rate.Limiter
	lastfm  *lastfm.Api
	group   singleflight.Group
	sources []variations.Source[string]
	now     func() time.Time
}

func New(cfg Config, logger *slog.Logger, cache Cache) (*Artwork, error) {
	if cfg.RequestsPerSecond <= 0 {
		return nil, errors.New("requests per second must be positive")
	}

	a := &Artwork{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		tracer:  otel.Tracer(module),
		cache:   cache,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		now:     time.Now,
	}

	a.sources = []variations.Source[string]{
		{Name: "musicbrainz", Lookup: a.musicBrainz},
	}
	if cfg.LastFMAPIKey != "" {
		a.lastfm = lastfm.New(cfg.LastFMAPIKey, cfg.LastFMAPISecret)
		a.sources = append(a.sources, variations.Source[string]{Name: "lastfm", Lookup: a.lastFM})
	}

	a.Service = services.NewTimerService(cfg.CleanupInterval, nil, a.cleanup, nil)

	return a, nil
}

// CacheKey identifies an artist/title pair in the cache.
func CacheKey(artist, title string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(title))))
	return hex.EncodeToString(sum[:])
}

// URL returns cover art for the track. When nothing is found, or the lookup
// fails, the placeholder is returned with false. Misses are cached like hits.
func (a *Artwork) URL(ctx context.Context, artist, title string) (string, bool) {
	key := CacheKey(artist, title)

	v, _, _ := a.group.Do(key, func() (any, error) {
		return a.lookup(ctx, key, artist, title), nil
	})

	url := v.(string)
	return url, url != trackmeta.ArtworkPlaceholder
}

func (a *Artwork) lookup(ctx context.Context, key, artist, title string) string {
	ctx, span := a.tracer.Start(ctx, "Artwork.lookup", trace.WithAttributes(
		attribute.String("artist", artist),
		attribute.String("title", title),
	))

	var err error
	defer func() { _ = tracing.ErrHandler(span, err, "artwork lookup failed", a.logger) }()

	entry, ok, err := a.cache.Artwork(ctx, key)
	if err != nil {
		a.logger.Error("failed to read artwork cache", "err", err)
	}
	if ok && a.now().Sub(entry.CachedAt) < a.cfg.CacheTTL {
		metricCache.WithLabelValues("hit").Inc()
		return entry.URL
	}
	metricCache.WithLabelValues("miss").Inc()

	lookupCtx, cancel := context.WithTimeout(ctx, a.cfg.LookupTimeout)
	defer cancel()

	vars := variations.Generate(artist, title)
	if len(vars) > a.cfg.MaxVariations {
		vars = vars[:a.cfg.MaxVariations]
	}

	url := trackmeta.ArtworkPlaceholder
	hit, _, found := variations.Try(lookupCtx, vars, a.sources, a.logger)
	if found {
		url = hit.Value
		metricLookups.WithLabelValues(hit.Source, "hit").Inc()
		a.logger.Info("found artwork", "artist", artist, "title", title, "source", hit.Source, "variation", hit.Index+1)
	} else {
		metricLookups.WithLabelValues("all", "miss").Inc()
		a.logger.Info("no artwork found", "artist", artist, "title", title)
	}

	if lookupCtx.Err() != nil && !found {
		// Do not remember a miss caused by running out of time.
		err = lookupCtx.Err()
		return url
	}

	err = a.cache.PutArtwork(ctx, store.ArtworkEntry{
		Key:      key,
		Artist:   artist,
		Title:    title,
		URL:      url,
		CachedAt: a.now(),
	})
	if err != nil {
		a.logger.Error("failed to write artwork cache", "err", err)
	}

	return url
}

func (a *Artwork) cleanup(ctx context.Context) error {
	n, err := a.cache.DeleteArtworkBefore(ctx, a.now().Add(-a.cfg.CacheTTL))
	if err != nil {
		a.logger.Error("failed to clean up artwork cache", "err", err)
		return nil
	}
	a.logger.Info("cleaned up artwork cache", "deleted", n)
	return nil
}

func upgradeHTTPS(url string) string {
	if strings.HasPrefix(url, "http://") {
		return "https://" + strings.TrimPrefix(url, "http://")
	}
	return url
}
