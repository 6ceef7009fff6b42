package app

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{}
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("test", flag.PanicOnError))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, All, cfg.Target)
	assert.Equal(t, 3030, cfg.Server.HTTPListenPort)
	assert.Equal(t, "https://s8.myradiostream.com/58238/listen.mp3", cfg.Poller.URL)
	assert.Equal(t, 5*time.Second, cfg.Poller.Interval)
	assert.Equal(t, 30*time.Second, cfg.Poller.StaleAfter)
	assert.Equal(t, "nowplaying.db", cfg.Store.Path)
	assert.Equal(t, 24*time.Hour, cfg.Artwork.CacheTTL)
	assert.Equal(t, time.Hour, cfg.Lyrics.MissTTL)
	assert.Equal(t, 50, cfg.History.MaxEntries)
	assert.Equal(t, "/api", cfg.API.PathPrefix)
}

func TestApplyEnv(t *testing.T) {
	cfg := defaultConfig(t)

	env := map[string]string{
		"STREAM_URL":     "http://radio.example/audio",
		"DB_PATH":        "/var/lib/nowplaying/np.db",
		"LASTFM_API_KEY": "key",
		"IGNORED":        "x",
	}
	cfg.ApplyEnv(func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	})

	assert.Equal(t, "http://radio.example/audio", cfg.Poller.URL)
	assert.Equal(t, "/var/lib/nowplaying/np.db", cfg.Store.Path)
	assert.Equal(t, "key", cfg.Artwork.LastFMAPIKey)
	assert.Empty(t, cfg.Artwork.LastFMAPISecret)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
target: api
poller:
  url: http://radio.example/audio
  interval: 10s
store:
  path: /tmp/np.db
`), 0o600))

	cfg := defaultConfig(t)
	require.NoError(t, cfg.LoadFile(file))
	assert.Equal(t, "api", cfg.Target)
	assert.Equal(t, "http://radio.example/audio", cfg.Poller.URL)
	assert.Equal(t, 10*time.Second, cfg.Poller.Interval)
	assert.Equal(t, "/tmp/np.db", cfg.Store.Path)
	// Untouched settings keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Poller.StaleAfter)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("poller:\n  bogus: 1\n"), 0o600))
	assert.Error(t, defaultConfig(t).LoadFile(bad))

	assert.Error(t, defaultConfig(t).LoadFile(filepath.Join(dir, "missing.yaml")))
}

func TestModuleManager(t *testing.T) {
	a, err := New(*defaultConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.True(t, a.ModuleManager.IsUserVisibleModule(API))
	assert.True(t, a.ModuleManager.IsUserVisibleModule(Poller))
	assert.False(t, a.ModuleManager.IsUserVisibleModule(Store))
	assert.False(t, a.ModuleManager.IsUserVisibleModule(Server))
}

func TestModuleName(t *testing.T) {
	poll := services.NewIdleService(nil, nil)
	api := services.NewIdleService(nil, nil)
	serviceMap := map[string]services.Service{
		Poller: poll,
		API:    api,
	}

	assert.Equal(t, Poller, moduleName(serviceMap, poll))
	assert.Equal(t, API, moduleName(serviceMap, api))
	assert.Equal(t, "unknown", moduleName(serviceMap, services.NewIdleService(nil, nil)))
}
