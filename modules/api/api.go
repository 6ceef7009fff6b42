// Package api serves the now-playing, history, artwork and lyrics endpoints
// on the server's router.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zachfi/nowplaying/modules/history"
	"github.com/zachfi/nowplaying/modules/lyrics"
	"github.com/zachfi/nowplaying/modules/poller"
	"github.com/zachfi/nowplaying/pkg/trackmeta"
)

const module = "api"

var metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "nowplaying",
	Subsystem: module,
	Name:      "requests_total",
	Help:      "API requests by route and outcome.",
}, []string{"route", "outcome"})

type Poller interface {
	CurrentTrack(ctx context.Context) trackmeta.Track
	Refresh(ctx context.Context) (trackmeta.Track, error)
	Health(ctx context.Context) poller.Health
}

type Artwork interface {
	URL(ctx context.Context, artist, title string) (string, bool)
}

type History interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Today(ctx context.Context) (map[string][]history.Entry, error)
	Clear(ctx context.Context) (int64, error)
	CleanupFallback(ctx context.Context) (int, error)
}

type Lyrics interface {
	Lookup(ctx context.Context, artist, title string) (lyrics.Result, error)
}

type API struct {
	services.Service

	cfg     *Config
	logger  *slog.Logger
	poller  Poller
	artwork Artwork
	history History
	lyrics  Lyrics
}

func New(cfg Config, logger *slog.Logger, p Poller, a Artwork, h History, l Lyrics) (*API, error) {
	api := &API{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		poller:  p,
		artwork: a,
		history: h,
		lyrics:  l,
	}
	api.Service = services.NewIdleService(nil, nil)

	return api, nil
}

// RegisterRoutes mounts the API under the configured prefix.
func (a *API) RegisterRoutes(r *mux.Router) {
	sub := r.PathPrefix(a.cfg.PathPrefix).Subrouter()
	sub.Use(cors(a.cfg.AllowedOrigin))

	route := func(path, method string, h http.HandlerFunc) {
		sub.HandleFunc(path, h).Methods(method, http.MethodOptions)
	}

	route("/", http.MethodGet, a.root)
	route("/current-track", http.MethodGet, a.currentTrack)
	route("/stream/health", http.MethodGet, a.streamHealth)
	route("/refresh-metadata", http.MethodPost, a.refreshMetadata)
	route("/artwork/{artist}/{title}", http.MethodGet, a.trackArtwork)
	route("/recent-tracks", http.MethodGet, a.recentTracks)
	route("/todays-tracks", http.MethodGet, a.todaysTracks)
	route("/track-history", http.MethodDelete, a.clearHistory)
	route("/cleanup-fallback-tracks", http.MethodPost, a.cleanupFallback)
	route("/lyrics/{artist}/{title}", http.MethodGet, a.trackLyrics)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to write response", "err", err)
	}
}
