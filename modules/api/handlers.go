package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/zachfi/nowplaying/modules/history"
	"github.com/zachfi/nowplaying/modules/lyrics"
	"github.com/zachfi/nowplaying/pkg/trackmeta"
)

func (a *API) root(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{
		"message": a.cfg.StationName + " Streaming API",
	})
}

// currentTrack always answers with a track, filling in artwork or the
// placeholder when the track has none yet.
func (a *API) currentTrack(w http.ResponseWriter, r *http.Request) {
	t := a.poller.CurrentTrack(r.Context())
	if t.ArtworkURL == "" {
		t.ArtworkURL = trackmeta.ArtworkPlaceholder
		if url, ok := a.artwork.URL(r.Context(), t.Artist, t.Title); ok {
			t.ArtworkURL = url
		}
	}

	metricRequests.WithLabelValues("current-track", "ok").Inc()
	a.writeJSON(w, http.StatusOK, t)
}

func (a *API) streamHealth(w http.ResponseWriter, r *http.Request) {
	h := a.poller.Health(r.Context())
	metricRequests.WithLabelValues("stream-health", h.Status).Inc()
	a.writeJSON(w, http.StatusOK, h)
}

func (a *API) refreshMetadata(w http.ResponseWriter, r *http.Request) {
	t, err := a.poller.Refresh(r.Context())
	if err != nil {
		a.logger.Error("failed to refresh metadata", "err", err)
		metricRequests.WithLabelValues("refresh-metadata", "error").Inc()
		a.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if t.ArtworkURL == "" {
		if url, ok := a.artwork.URL(r.Context(), t.Artist, t.Title); ok {
			t.ArtworkURL = url
		}
	}

	metricRequests.WithLabelValues("refresh-metadata", "ok").Inc()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Metadata and artwork refreshed successfully",
		"track":   t,
	})
}

func (a *API) trackArtwork(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	url, ok := a.artwork.URL(r.Context(), vars["artist"], vars["title"])
	if !ok {
		metricRequests.WithLabelValues("artwork", "fallback").Inc()
		a.writeJSON(w, http.StatusOK, map[string]any{
			"artwork_url": trackmeta.ArtworkPlaceholder,
			"fallback":    true,
		})
		return
	}

	metricRequests.WithLabelValues("artwork", "ok").Inc()
	a.writeJSON(w, http.StatusOK, map[string]any{"artwork_url": url})
}

func (a *API) recentTracks(w http.ResponseWriter, r *http.Request) {
	limit := a.cfg.RecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			metricRequests.WithLabelValues("recent-tracks", "bad-request").Inc()
			a.writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   fmt.Sprintf("invalid limit %q", raw),
				"tracks":  []history.Entry{},
			})
			return
		}
		limit = n
	}

	tracks, err := a.history.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Error("failed to get recent tracks", "err", err)
		metricRequests.WithLabelValues("recent-tracks", "error").Inc()
		a.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
			"tracks":  []history.Entry{},
		})
		return
	}
	if tracks == nil {
		tracks = []history.Entry{}
	}

	metricRequests.WithLabelValues("recent-tracks", "ok").Inc()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tracks":  tracks,
		"count":   len(tracks),
	})
}

func (a *API) todaysTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := a.history.Today(r.Context())
	if err != nil {
		a.logger.Error("failed to get today's tracks", "err", err)
		metricRequests.WithLabelValues("todays-tracks", "error").Inc()
		a.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
			"tracks":  map[string][]history.Entry{},
		})
		return
	}
	if tracks == nil {
		tracks = map[string][]history.Entry{}
	}

	metricRequests.WithLabelValues("todays-tracks", "ok").Inc()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tracks":  tracks,
	})
}

func (a *API) clearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := a.history.Clear(r.Context())
	if err != nil {
		a.logger.Error("failed to clear track history", "err", err)
		metricRequests.WithLabelValues("track-history", "error").Inc()
		a.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	metricRequests.WithLabelValues("track-history", "ok").Inc()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Cleared %d track history entries", n),
	})
}

func (a *API) cleanupFallback(w http.ResponseWriter, r *http.Request) {
	n, err := a.history.CleanupFallback(r.Context())
	if err != nil {
		a.logger.Error("failed to clean up fallback tracks", "err", err)
		metricRequests.WithLabelValues("cleanup-fallback-tracks", "error").Inc()
		a.writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	metricRequests.WithLabelValues("cleanup-fallback-tracks", "ok").Inc()
	a.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       fmt.Sprintf("Removed %d fallback tracks from history", n),
		"removed_count": n,
	})
}

func (a *API) trackLyrics(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	artist, title := vars["artist"], vars["title"]

	resp := map[string]any{
		"success": true,
		"artist":  artist,
		"title":   title,
	}

	res, err := a.lyrics.Lookup(r.Context(), artist, title)
	var miss *lyrics.MissError
	switch {
	case err == nil:
		resp["lyrics"] = res.Lyrics
		resp["source"] = res.Source
		resp["confidence"] = res.Confidence
		resp["search_variation"] = res.SearchVariation
		resp["search_terms"] = res.SearchTerms
		metricRequests.WithLabelValues("lyrics", "ok").Inc()

	case errors.As(err, &miss):
		resp["error"] = "No lyrics found"
		resp["tried_variations"] = miss.TriedVariations
		resp["tried_apis"] = miss.TriedAPIs
		resp["errors"] = miss.Errors
		metricRequests.WithLabelValues("lyrics", "not-found").Inc()

	case errors.Is(err, lyrics.ErrMissingTerms):
		resp["error"] = "Artist and title are required"
		metricRequests.WithLabelValues("lyrics", "bad-request").Inc()

	default:
		a.logger.Error("failed to fetch lyrics", "artist", artist, "title", title, "err", err)
		resp["success"] = false
		resp["error"] = "Failed to fetch lyrics"
		metricRequests.WithLabelValues("lyrics", "error").Inc()
	}

	a.writeJSON(w, http.StatusOK, resp)
}
