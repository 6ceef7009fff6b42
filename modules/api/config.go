package api

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultPathPrefix  = "/api"
	defaultRecentLimit = 20
)

type Config struct {
	PathPrefix string `yaml:"path-prefix,omitempty"`
	// AllowedOrigin is the CORS origin; "*" allows any, empty disables CORS.
	AllowedOrigin string `yaml:"allowed-origin,omitempty"`
	RecentLimit   int    `yaml:"recent-limit,omitempty"`

	// StationName is filled in from the poller configuration.
	StationName string `yaml:"-"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.PathPrefix, util.PrefixConfig(prefix, "path-prefix"), defaultPathPrefix, "Path prefix for the HTTP API.")
	f.StringVar(&cfg.AllowedOrigin, util.PrefixConfig(prefix, "allowed-origin"), "*", "CORS origin allowed to call the API. Empty disables CORS headers.")
	f.IntVar(&cfg.RecentLimit, util.PrefixConfig(prefix, "recent-limit"), defaultRecentLimit, "Number of recent tracks returned when no limit is given.")
}
