package poller

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/nowplaying/pkg/shoutcast"
	"github.com/zachfi/nowplaying/pkg/trackmeta"
)

const metaint = 16

// icyServer serves an ICY stream whose metadata block can be swapped.
type icyServer struct {
	*httptest.Server
	requests atomic.Int32

	mtx  sync.Mutex
	meta string
}

func (s *icyServer) setMeta(meta string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.meta = meta
}

func newICYServer(t *testing.T, meta string) *icyServer {
	t.Helper()

	s := &icyServer{meta: meta}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		assert.Equal(t, "1", r.Header.Get("Icy-MetaData"))

		s.mtx.Lock()
		meta := s.meta
		s.mtx.Unlock()

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-metaint", "16")
		w.Header().Set("icy-name", "Greatest Hits Non-Stop")
		_, _ = w.Write(icyBlock(meta))
	}))
	t.Cleanup(s.Close)
	return s
}

// icyBlock is metaint bytes of audio followed by one padded metadata block.
func icyBlock(meta string) []byte {
	n := (len(meta) + 15) / 16
	body := make([]byte, metaint, metaint+1+n*16)
	body = append(body, byte(n))
	block := make([]byte, n*16)
	copy(block, meta)
	return append(body, block...)
}

type fakeArtwork struct {
	mtx      sync.Mutex
	lookups  []string
	onLookup func()
}

func (a *fakeArtwork) URL(_ context.Context, artist, title string) (string, bool) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.lookups = append(a.lookups, artist+" - "+title)
	if a.onLookup != nil {
		a.onLookup()
	}
	return "https://art.example/" + artist + ".jpg", true
}

type recorder struct {
	mtx    sync.Mutex
	tracks []trackmeta.Track
}

func (r *recorder) add(t trackmeta.Track) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.tracks = append(r.tracks, t)
	return nil
}

func (r *recorder) len() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.tracks)
}

type fakeStore struct {
	recorder
	saved *trackmeta.Track
}

func (s *fakeStore) SaveCurrent(ctx context.Context, t trackmeta.Track) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.add(t)
}

func (s *fakeStore) Current(context.Context) (trackmeta.Track, bool, error) {
	if s.saved == nil {
		return trackmeta.Track{}, false, nil
	}
	return *s.saved, true, nil
}

type fakeHistory struct {
	recorder
	err error
}

func (h *fakeHistory) Record(ctx context.Context, t trackmeta.Track) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.err != nil {
		return h.err
	}
	return h.add(t)
}

type fixture struct {
	poller  *Poller
	artwork *fakeArtwork
	store   *fakeStore
	history *fakeHistory
	now     time.Time
}

func newFixture(t *testing.T, url string) *fixture {
	t.Helper()

	cfg := Config{}
	cfg.RegisterFlagsAndApplyDefaults("poller", flag.NewFlagSet("test", flag.PanicOnError))
	cfg.URL = url
	cfg.ProbeTimeout = time.Second
	cfg.FetchTimeout = 2 * time.Second

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		artwork: &fakeArtwork{},
		store:   &fakeStore{},
		history: &fakeHistory{},
		now:     time.Date(2024, 5, 1, 12, 7, 10, 0, time.UTC),
	}

	p, err := New(cfg, logger, shoutcast.NewClient(logger, time.Second), f.artwork, f.store, f.history)
	require.NoError(t, err)
	p.now = func() time.Time { return f.now }
	f.poller = p

	return f
}

func TestRefreshICY(t *testing.T) {
	srv := newICYServer(t, "StreamTitle='Queen - Bohemian Rhapsody';")
	f := newFixture(t, srv.URL)

	track, err := f.poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Queen", track.Artist)
	assert.Equal(t, "Bohemian Rhapsody", track.Title)
	assert.True(t, track.IsLive)
	assert.Equal(t, "https://art.example/Queen.jpg", track.ArtworkURL)
	assert.Equal(t, f.now, track.Timestamp)

	require.Equal(t, 1, f.store.len())
	assert.Equal(t, track, f.store.tracks[0])
	require.Equal(t, 1, f.history.len())

	// Same key: no side effects, artwork carried over.
	f.now = f.now.Add(5 * time.Second)
	track, err = f.poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://art.example/Queen.jpg", track.ArtworkURL)
	assert.Equal(t, 1, f.store.len())
	assert.Equal(t, 1, f.history.len())
	assert.Len(t, f.artwork.lookups, 1)

	srv.setMeta("StreamTitle='Take On Me - a-ha';")
	track, err = f.poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a-ha", track.Artist)
	assert.Equal(t, "Take On Me", track.Title)
	assert.Equal(t, 2, f.store.len())
	assert.Equal(t, 2, f.history.len())
}

func TestChangeDetectionIsExact(t *testing.T) {
	srv := newICYServer(t, "StreamTitle='Queen - Bohemian Rhapsody';")
	f := newFixture(t, srv.URL)

	_, err := f.poller.Refresh(context.Background())
	require.NoError(t, err)

	srv.setMeta("StreamTitle='queen - bohemian rhapsody';")
	_, err = f.poller.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.history.len())
}

func TestCurrentTrackStaleness(t *testing.T) {
	srv := newICYServer(t, "StreamTitle='Queen - Bohemian Rhapsody';")
	f := newFixture(t, srv.URL)

	track := f.poller.CurrentTrack(context.Background())
	assert.Equal(t, "Queen", track.Artist)
	assert.Equal(t, int32(1), srv.requests.Load())

	// Fresh for 30 seconds.
	f.now = f.now.Add(29 * time.Second)
	track = f.poller.CurrentTrack(context.Background())
	assert.Equal(t, "Queen", track.Artist)
	assert.Equal(t, int32(1), srv.requests.Load())

	f.now = f.now.Add(time.Second)
	srv.setMeta("StreamTitle='Eagles - Hotel California';")
	track = f.poller.CurrentTrack(context.Background())
	assert.Equal(t, "Eagles", track.Artist)
	assert.Equal(t, int32(2), srv.requests.Load())
}

func TestCurrentTrackFallback(t *testing.T) {
	srv := newICYServer(t, "StreamTitle='Queen - Bohemian Rhapsody';")
	srv.Close()
	f := newFixture(t, srv.URL)

	track := f.poller.CurrentTrack(context.Background())
	assert.Equal(t, trackmeta.Classics[7].Title, track.Title)
	assert.Equal(t, trackmeta.Classics[7].Artist, track.Artist)
	assert.Equal(t, trackmeta.Classics[7].Album, track.Album)
	assert.False(t, track.IsLive)
	assert.Equal(t, 0, f.history.len())
	assert.Equal(t, 0, f.store.len())
}

func TestCurrentTrackKeepsLastGood(t *testing.T) {
	srv := newICYServer(t, "StreamTitle='Queen - Bohemian Rhapsody';")
	f := newFixture(t, srv.URL)

	_ = f.poller.CurrentTrack(context.Background())

	srv.setMeta("StreamTitle='';")
	f.now = f.now.Add(time.Minute)
	track := f.poller.CurrentTrack(context.Background())
	assert.Equal(t, "Queen", track.Artist)
	assert.Equal(t, "Bohemian Rhapsody", track.Title)
}

func TestRefreshOutlivesCanceledReader(t *testing.T) {
	srv := newICYServer(t, "StreamTitle='Queen - Bohemian Rhapsody';")
	f := newFixture(t, srv.URL)

	// The reader goes away while the artwork for the new track is looked up.
	ctx, cancel := context.WithCancel(context.Background())
	f.artwork.onLookup = cancel

	track := f.poller.CurrentTrack(ctx)
	assert.Equal(t, "Queen", track.Artist)

	require.Eventually(t, func() bool {
		return f.history.len() == 1 && f.store.len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err := f.poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.history.len())
	assert.Equal(t, 1, f.store.len())
}

func TestRefreshRetriesFailedSideEffects(t *testing.T) {
	srv := newICYServer(t, "StreamTitle='Queen - Bohemian Rhapsody';")
	f := newFixture(t, srv.URL)

	f.history.err = errors.New("database is locked")
	_, err := f.poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, f.history.len())

	f.history.err = nil
	_, err = f.poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.history.len())
	assert.Equal(t, 2, f.store.len())

	_, err = f.poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.history.len())
}

func TestNewRequiresStationName(t *testing.T) {
	cfg := Config{}
	cfg.RegisterFlagsAndApplyDefaults("poller", flag.NewFlagSet("test", flag.PanicOnError))
	cfg.StationName = " "

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(cfg, logger, shoutcast.NewClient(logger, time.Second), &fakeArtwork{}, &fakeStore{}, &fakeHistory{})
	require.Error(t, err)
}

func TestRestoreSavedTrack(t *testing.T) {
	srv := newICYServer(t, "StreamTitle='Queen - Bohemian Rhapsody';")
	f := newFixture(t, srv.URL)
	f.store.saved = &trackmeta.Track{
		Title:      "Bohemian Rhapsody",
		Artist:     "Queen",
		ArtworkURL: "https://covers.example/queen.jpg",
		IsLive:     true,
		Timestamp:  f.now.Add(-time.Hour),
	}

	f.poller.restore(context.Background())

	// The stream still plays the saved track, so nothing downstream fires
	// and the saved artwork is kept.
	track := f.poller.CurrentTrack(context.Background())
	assert.Equal(t, "Queen", track.Artist)
	assert.Equal(t, "https://covers.example/queen.jpg", track.ArtworkURL)
	assert.Equal(t, 0, f.store.len())
	assert.Equal(t, 0, f.history.len())

	srv.Close()
	f.now = f.now.Add(time.Minute)
	track = f.poller.CurrentTrack(context.Background())
	assert.Equal(t, "Queen", track.Artist)
}

func TestRefreshHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-name", "Test FM")
		w.Header().Set("icy-description", "All the hits")
		_, _ = w.Write(make([]byte, 64))
	}))
	t.Cleanup(srv.Close)
	f := newFixture(t, srv.URL)

	track, err := f.poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Test FM", track.Title)
	assert.Equal(t, "Live Radio", track.Artist)
	assert.Equal(t, "All the hits", track.Album)
}

func TestRefreshNoMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(make([]byte, 64))
	}))
	t.Cleanup(srv.Close)
	f := newFixture(t, srv.URL)

	_, err := f.poller.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoMetadata)
}

func TestRefreshAlternative(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/audio", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/currentsong", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Journey - Don't Stop Believin'\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := newFixture(t, srv.URL+"/audio")

	track, err := f.poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Journey", track.Artist)
	assert.Equal(t, "Don't Stop Believin'", track.Title)
	assert.True(t, track.IsLive)
}

func TestAlternativeURLs(t *testing.T) {
	assert.Equal(t, []string{
		"http://radio.example/currentsong",
		"http://radio.example/stats",
		"http://radio.example/audio?metadata=1",
	}, alternativeURLs("http://radio.example/audio"))

	assert.Equal(t, []string{
		"http://radio.example/listen.mp3?sid=1&metadata=1",
	}, alternativeURLs("http://radio.example/listen.mp3?sid=1"))
}

func TestFallbackRotation(t *testing.T) {
	n := len(trackmeta.Classics)
	for minute := 0; minute < 60; minute++ {
		assert.Equal(t, minute%n, FallbackIndex(minute))
	}

	start := time.Date(2024, 5, 1, 12, 7, 0, 0, time.UTC)
	end := start.Add(59 * time.Second)
	assert.Equal(t, FallbackTrack(start).Key(), FallbackTrack(end).Key())
	assert.NotEqual(t, FallbackTrack(start).Key(), FallbackTrack(start.Add(time.Minute)).Key())
	assert.Equal(t, "Bob Dylan - Like a Rolling Stone", FallbackTrack(start).Key())
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		status string
	}{
		{"ok", http.StatusOK, "online"},
		{"redirect", http.StatusFound, "online"},
		{"unavailable", http.StatusServiceUnavailable, "offline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				if tt.code == http.StatusFound {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			f := newFixture(t, srv.URL)
			h := f.poller.Health(context.Background())
			assert.Equal(t, tt.status, h.Status)
			assert.Equal(t, tt.code, h.StatusCode)
			assert.Equal(t, srv.URL, h.StreamURL)
			assert.Equal(t, f.now, h.LastChecked)
			assert.Empty(t, h.Error)
		})
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	f := newFixture(t, srv.URL)
	h := f.poller.Health(context.Background())
	assert.Equal(t, "offline", h.Status)
	assert.Zero(t, h.StatusCode)
	assert.NotEmpty(t, h.Error)
}
