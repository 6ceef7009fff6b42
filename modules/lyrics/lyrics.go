// Package lyrics fetches song lyrics from public providers, trying a ladder
// of search variations against each, and caches both hits and misses.
package lyrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/zachfi/nowplaying/internal/tracing"
	"github.com/zachfi/nowplaying/pkg/normalize"
	"github.com/zachfi/nowplaying/pkg/variations"
)

const module = "lyrics"

var (
	ErrNotFound     = errors.New("no lyrics found")
	ErrMissingTerms = errors.New("artist and title are required")
)

var (
	metricLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nowplaying",
		Subsystem: module,
		Name:      "lookups_total",
		Help:      "Lyrics lookups by source and result.",
	}, []string{"source", "result"})

	metricCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nowplaying",
		Subsystem: module,
		Name:      "cache_requests_total",
		Help:      "Lyrics cache requests by result.",
	}, []string{"result"})
)

// Result is a successful lookup.
type Result struct {
	Lyrics     []Line  `json:"lyrics"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	// SearchVariation is the 1-based position of the variation that matched.
	SearchVariation int    `json:"search_variation"`
	SearchTerms     string `json:"search_terms"`
}

// MissError describes a lookup that found nothing. It matches ErrNotFound.
type MissError struct {
	TriedVariations int      `json:"tried_variations"`
	TriedAPIs       []string `json:"tried_apis"`
	Errors          []string `json:"errors"`
}

func (e *MissError) Error() string { return ErrNotFound.Error() }

func (e *MissError) Is(target error) bool { return target == ErrNotFound }

type entry struct {
	result  Result
	miss    *MissError
	expires time.Time
}

type Lyrics struct {
	services.Service

	cfg     *Config
	logger  *slog.Logger
	tracer  trace.Tracer
	client  *http.Client
	backoff backoff.Config
	sources []variations.Source[Result]
	group   singleflight.Group
	now     func() time.Time

	mtx   sync.Mutex
	cache map[string]entry
}

func New(cfg Config, logger *slog.Logger) (*Lyrics, error) {
	if cfg.MaxAttempts < 1 {
		return nil, errors.New("max attempts must be at least 1")
	}

	l := &Lyrics{
		cfg:    &cfg,
		logger: logger.With("module", module),
		tracer: otel.Tracer(module),
		client: &http.Client{Timeout: cfg.RequestTimeout},
		backoff: backoff.Config{
			MinBackoff: cfg.MinBackoff,
			MaxBackoff: cfg.MaxBackoff,
			MaxRetries: cfg.MaxAttempts,
		},
		now:   time.Now,
		cache: make(map[string]entry),
	}

	l.sources = []variations.Source[Result]{
		l.retrying("lyrics_ovh", l.ovh),
		l.retrying("lrclib", l.lrclib),
		l.retrying("chartlyrics", l.chartLyrics),
	}

	l.Service = services.NewTimerService(cfg.CleanupInterval, nil, l.cleanup, nil)

	return l, nil
}

// CacheKey identifies an artist/title pair in the cache.
func CacheKey(artist, title string) string {
	return strings.ToLower(normalize.CleanBasic(artist)) + "-" + strings.ToLower(normalize.CleanBasic(title))
}

// Lookup returns lyrics for the track. A miss returns a *MissError.
func (l *Lyrics) Lookup(ctx context.Context, artist, title string) (Result, error) {
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(title) == "" {
		return Result{}, ErrMissingTerms
	}

	key := CacheKey(artist, title)
	if e, ok := l.cached(key); ok {
		metricCache.WithLabelValues("hit").Inc()
		l.logger.Debug("lyrics found in cache", "artist", artist, "title", title)
		if e.miss != nil {
			return Result{}, e.miss
		}
		return e.result, nil
	}
	metricCache.WithLabelValues("miss").Inc()

	v, err, _ := l.group.Do(key, func() (any, error) {
		return l.lookup(ctx, key, artist, title)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (l *Lyrics) lookup(ctx context.Context, key, artist, title string) (res Result, err error) {
	ctx, span := l.tracer.Start(ctx, "Lyrics.lookup", trace.WithAttributes(
		attribute.String("artist", artist),
		attribute.String("title", title),
	))
	defer func() {
		if errors.Is(err, ErrNotFound) {
			span.End()
			return
		}
		_ = tracing.ErrHandler(span, err, "lyrics lookup failed", l.logger)
	}()

	lookupCtx, cancel := context.WithTimeout(ctx, l.cfg.LookupTimeout)
	defer cancel()

	l.logger.Info("fetching lyrics", "artist", artist, "title", title)

	vars := variations.Generate(artist, title)
	hit, attempts, found := variations.Try(lookupCtx, vars, l.sources, l.logger)
	if found {
		res = hit.Value
		res.SearchVariation = hit.Index + 1
		res.SearchTerms = hit.Variation.Artist + " - " + hit.Variation.Title

		metricLookups.WithLabelValues(hit.Source, "hit").Inc()
		l.logger.Info("lyrics found", "source", hit.Source, "variation", res.SearchVariation, "lines", len(res.Lyrics))
		l.store(key, entry{result: res, expires: l.now().Add(l.cfg.CacheTTL)})
		return res, nil
	}

	miss := &MissError{
		TriedVariations: len(vars),
		TriedAPIs:       make([]string, 0, len(l.sources)),
		Errors:          []string{},
	}
	for _, src := range l.sources {
		miss.TriedAPIs = append(miss.TriedAPIs, src.Name)
	}
	for _, a := range attempts {
		if a.Err != nil {
			miss.Errors = append(miss.Errors, fmt.Sprintf("%s failed: %s", a.Source, a.Err))
		}
	}

	metricLookups.WithLabelValues("all", "miss").Inc()
	l.logger.Info("no lyrics found", "artist", artist, "title", title, "variations", len(vars), "apis", len(l.sources))

	if lookupCtx.Err() != nil {
		return Result{}, errors.Wrap(lookupCtx.Err(), "lyrics lookup interrupted")
	}

	l.store(key, entry{miss: miss, expires: l.now().Add(l.cfg.MissTTL)})
	return Result{}, miss
}

func (l *Lyrics) cached(key string) (entry, bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	e, ok := l.cache[key]
	if !ok {
		return entry{}, false
	}
	if !l.now().Before(e.expires) {
		delete(l.cache, key)
		return entry{}, false
	}
	return e, true
}

func (l *Lyrics) store(key string, e entry) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.cache[key] = e
}

func (l *Lyrics) cleanup(_ context.Context) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	now := l.now()
	var n int
	for key, e := range l.cache {
		if !now.Before(e.expires) {
			delete(l.cache, key)
			n++
		}
	}
	l.logger.Debug("cleaned up lyrics cache", "deleted", n, "remaining", len(l.cache))
	return nil
}
