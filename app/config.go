package app

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/server"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/zachfi/nowplaying/internal/tracing"
	"github.com/zachfi/nowplaying/modules/api"
	"github.com/zachfi/nowplaying/modules/artwork"
	"github.com/zachfi/nowplaying/modules/history"
	"github.com/zachfi/nowplaying/modules/lyrics"
	"github.com/zachfi/nowplaying/modules/poller"
	"github.com/zachfi/nowplaying/modules/store"
)

type Config struct {
	Target  string         `yaml:"target"`
	Tracing tracing.Config `yaml:"tracing,omitempty"`
	Server  server.Config  `yaml:"server,omitempty"`
	Store   store.Config   `yaml:"store,omitempty"`
	Poller  poller.Config  `yaml:"poller,omitempty"`
	History history.Config `yaml:"history,omitempty"`
	Artwork artwork.Config `yaml:"artwork,omitempty"`
	Lyrics  lyrics.Config  `yaml:"lyrics,omitempty"`
	API     api.Config     `yaml:"api,omitempty"`
}

// LoadFile overlays the YAML file at file onto c. Unknown keys are an error.
func (c *Config) LoadFile(file string) error {
	filename, _ := filepath.Abs(file)

	buff, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", file)
	}

	if err := yaml.UnmarshalStrict(buff, c); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", file)
	}

	return nil
}

// envOverrides maps environment variables onto the settings they replace.
func (c *Config) envOverrides() map[string]*string {
	return map[string]*string{
		"STREAM_URL":        &c.Poller.URL,
		"DB_PATH":           &c.Store.Path,
		"LASTFM_API_KEY":    &c.Artwork.LastFMAPIKey,
		"LASTFM_API_SECRET": &c.Artwork.LastFMAPISecret,
	}
}

// ApplyEnv replaces defaults with the values of any override variables that
// are set. The config file and flags still win over them.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for name, target := range c.envOverrides() {
		if v, ok := lookup(name); ok && v != "" {
			*target = v
		}
	}
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Target, "target", All, "The module to run.")

	flagext.DefaultValues(&c.Server)
	f.IntVar(&c.Server.HTTPListenPort, "server.http-listen-port", 3030, "HTTP server listen port.")
	f.IntVar(&c.Server.GRPCListenPort, "server.grpc-listen-port", 9090, "gRPC server listen port.")

	c.Tracing.RegisterFlagsAndApplyDefaults("tracing", f)
	c.Store.RegisterFlagsAndApplyDefaults("store", f)
	c.Poller.RegisterFlagsAndApplyDefaults("poller", f)
	c.History.RegisterFlagsAndApplyDefaults("history", f)
	c.Artwork.RegisterFlagsAndApplyDefaults("artwork", f)
	c.Lyrics.RegisterFlagsAndApplyDefaults("lyrics", f)
	c.API.RegisterFlagsAndApplyDefaults("api", f)
}
