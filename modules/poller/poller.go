// Package poller keeps the station's now-playing track current. A background
// loop polls the stream at a fixed interval; readers get a snapshot and
// trigger a fetch themselves when it has gone stale.
package poller

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/zachfi/nowplaying/pkg/shoutcast"
	"github.com/zachfi/nowplaying/pkg/trackmeta"
)

const module = "poller"

var (
	metricPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nowplaying",
		Subsystem: module,
		Name:      "fetches_total",
		Help:      "Metadata fetches by source and result.",
	}, []string{"source", "result"})

	metricChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nowplaying",
		Subsystem: module,
		Name:      "track_changes_total",
		Help:      "Number of times a new track was detected.",
	})

	metricFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nowplaying",
		Subsystem: module,
		Name:      "fallback_served_total",
		Help:      "Number of reads answered with a fallback track.",
	})
)

// Transport talks to the stream server.
type Transport interface {
	Open(ctx context.Context, url string) (*shoutcast.Stream, error)
	Probe(ctx context.Context, url string) (int, error)
	FetchText(ctx context.Context, url string, limit int64) (string, error)
}

// Artwork finds cover art for a new track.
type Artwork interface {
	URL(ctx context.Context, artist, title string) (string, bool)
}

// Store persists the current track.
type Store interface {
	SaveCurrent(ctx context.Context, t trackmeta.Track) error
	Current(ctx context.Context) (trackmeta.Track, bool, error)
}

// History records played tracks.
type History interface {
	Record(ctx context.Context, t trackmeta.Track) error
}

// Health is the result of a stream reachability check.
type Health struct {
	Status      string    `json:"status"`
	StatusCode  int       `json:"statusCode,omitempty"`
	Error       string    `json:"error,omitempty"`
	StreamURL   string    `json:"streamUrl"`
	LastChecked time.Time `json:"lastChecked"`
}

type Poller struct {
	services.Service

	cfg       *Config
	logger    *slog.Logger
	tracer    trace.Tracer
	transport Transport
	parser    *trackmeta.Parser
	artwork   Artwork
	store     Store
	history   History
	group     singleflight.Group
	now       func() time.Time

	mtx       sync.RWMutex
	current   *trackmeta.Track
	fetchedAt time.Time
	lastKey   string
}

func New(cfg Config, logger *slog.Logger, transport Transport, artwork Artwork, store Store, history History) (*Poller, error) {
	if strings.TrimSpace(cfg.StationName) == "" {
		return nil, errors.New("station name must not be empty")
	}

	p := &Poller{
		cfg:       &cfg,
		logger:    logger.With("module", module),
		tracer:    otel.Tracer(module),
		transport: transport,
		artwork:   artwork,
		store:     store,
		history:   history,
		now:       time.Now,
	}

	p.parser = trackmeta.NewParser(
		trackmeta.WithDefaultArtist(cfg.StationName),
		trackmeta.WithLogger(p.logger),
	)

	p.Service = services.NewTimerService(cfg.Interval, p.starting, p.poll, nil)

	return p, nil
}

func (p *Poller) starting(ctx context.Context) error {
	p.logger.Info("starting", "url", p.cfg.URL, "interval", p.cfg.Interval)
	p.restore(ctx)
	_ = p.poll(ctx)
	return nil
}

// restore loads the track saved by a previous run. It is served as the last
// good track, already stale, so the first read still goes to the stream.
func (p *Poller) restore(ctx context.Context) {
	t, ok, err := p.store.Current(ctx)
	if err != nil {
		p.logger.Error("failed to load saved track", "err", err)
		return
	}
	if !ok {
		return
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.current != nil {
		return
	}
	p.current = &t
	p.lastKey = t.Key()
	p.logger.Info("restored saved track", "title", t.Title, "artist", t.Artist)
}

// poll never fails; a bad fetch leaves the last good state in place.
func (p *Poller) poll(ctx context.Context) error {
	if _, err := p.Refresh(ctx); err != nil {
		p.logger.Warn("no metadata available from stream", "err", err)
	}
	return nil
}

// CurrentTrack returns the last fetched track while it is fresh. A stale
// track is fetched again; if that fails the last good track is returned, or
// the fallback rotation when there has never been one.
func (p *Poller) CurrentTrack(ctx context.Context) trackmeta.Track {
	if t, ok := p.snapshot(true); ok {
		return t
	}

	if t, err := p.Refresh(ctx); err == nil {
		return t
	}

	if t, ok := p.snapshot(false); ok {
		return t
	}

	metricFallbacks.Inc()
	return FallbackTrack(p.now())
}

// snapshot copies the current track. With fresh set, a track older than the
// stale window is not returned.
func (p *Poller) snapshot(fresh bool) (trackmeta.Track, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	if p.current == nil {
		return trackmeta.Track{}, false
	}
	if fresh && p.now().Sub(p.fetchedAt) >= p.cfg.StaleAfter {
		return trackmeta.Track{}, false
	}
	return *p.current, true
}

// Refresh fetches the stream metadata now. Concurrent callers share one
// fetch. When the track differs from the last one seen, its artwork is
// looked up, it is saved as the current track and it is added to the
// history.
//
// The fetch does not stop when ctx ends; a caller that goes away gets
// ctx.Err() and the fetch and its side effects finish on their own budget.
func (p *Poller) Refresh(ctx context.Context) (trackmeta.Track, error) {
	ch := p.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FetchTimeout+p.cfg.ChangeTimeout)
		defer cancel()
		return p.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return trackmeta.Track{}, errors.Wrap(ctx.Err(), "refresh abandoned")
	case res := <-ch:
		if res.Err != nil {
			return trackmeta.Track{}, res.Err
		}
		return res.Val.(trackmeta.Track), nil
	}
}

func (p *Poller) refresh(ctx context.Context) (trackmeta.Track, error) {
	c, album, source, err := p.fetch(ctx)
	if err != nil {
		metricPolls.WithLabelValues(source, "failed").Inc()
		return trackmeta.Track{}, err
	}
	metricPolls.WithLabelValues(source, "success").Inc()

	now := p.now()
	t := trackmeta.Track{
		Title:     c.Title,
		Artist:    c.Artist,
		Album:     album,
		IsLive:    true,
		Timestamp: now,
	}

	p.mtx.Lock()
	changed := t.Key() != p.lastKey
	if !changed && p.current != nil {
		t.ArtworkURL = p.current.ArtworkURL
	}
	p.current = &t
	p.fetchedAt = now
	if changed {
		p.lastKey = t.Key()
	}
	p.mtx.Unlock()

	if !changed {
		return t, nil
	}

	metricChanges.Inc()
	p.logger.Info("new track detected", "track", t.Key(), "source", source)

	return p.trackChanged(ctx, t), nil
}

func (p *Poller) trackChanged(ctx context.Context, t trackmeta.Track) trackmeta.Track {
	if url, ok := p.artwork.URL(ctx, t.Artist, t.Title); ok {
		t.ArtworkURL = url

		p.mtx.Lock()
		if p.current != nil && p.current.Key() == t.Key() {
			p.current.ArtworkURL = url
		}
		p.mtx.Unlock()
	}

	var failed bool
	if err := p.store.SaveCurrent(ctx, t); err != nil {
		p.logger.Error("failed to save current track", "err", err)
		failed = true
	}
	if err := p.history.Record(ctx, t); err != nil {
		p.logger.Error("failed to record track history", "err", err)
		failed = true
	}

	// Forget the key so the next poll treats the track as new and tries again.
	if failed {
		p.mtx.Lock()
		if p.lastKey == t.Key() {
			p.lastKey = ""
		}
		p.mtx.Unlock()
	}

	return t
}

// Health checks that the stream answers. 200 and 302 count as online.
func (p *Poller) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	h := Health{
		Status:    "offline",
		StreamURL: p.cfg.URL,
	}

	code, err := p.transport.Probe(ctx, p.cfg.URL)
	h.LastChecked = p.now().UTC()
	if err != nil {
		p.logger.Error("stream health check failed", "err", err)
		h.Error = err.Error()
		return h
	}

	h.StatusCode = code
	if code == http.StatusOK || code == http.StatusFound {
		h.Status = "online"
	}
	return h
}

// FallbackIndex picks the catalog entry for a minute of the hour.
func FallbackIndex(minute int) int {
	return minute % len(trackmeta.Classics)
}

// FallbackTrack is the classic rotated in for the minute of now. It is the
// same for the whole minute.
func FallbackTrack(now time.Time) trackmeta.Track {
	return trackmeta.Classics[FallbackIndex(now.UTC().Minute())].Track(now)
}
