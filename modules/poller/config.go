package poller

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/nowplaying/pkg/trackmeta"
)

const (
	defaultURL           = "https://s8.myradiostream.com/58238/listen.mp3"
	defaultInterval      = 5 * time.Second
	defaultStaleAfter    = 30 * time.Second
	defaultFetchTimeout  = 15 * time.Second
	defaultProbeTimeout  = 5 * time.Second
	defaultChangeTimeout = 30 * time.Second
)

type Config struct {
	URL         string `yaml:"url,omitempty"`
	StationName string `yaml:"station-name,omitempty"`
	// Interval between background polls.
	Interval time.Duration `yaml:"interval,omitempty"`
	// StaleAfter is how long a fetched track is served before a reader
	// triggers a new fetch.
	StaleAfter   time.Duration `yaml:"stale-after,omitempty"`
	FetchTimeout time.Duration `yaml:"fetch-timeout,omitempty"`
	ProbeTimeout time.Duration `yaml:"probe-timeout,omitempty"`
	// ChangeTimeout bounds the artwork lookup and persistence that follow a
	// track change.
	ChangeTimeout time.Duration `yaml:"change-timeout,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), defaultURL, "The stream URL to poll for now-playing metadata.")
	f.StringVar(&cfg.StationName, util.PrefixConfig(prefix, "station-name"), trackmeta.DefaultArtist, "Credited as the artist when the stream title has none.")
	f.DurationVar(&cfg.Interval, util.PrefixConfig(prefix, "interval"), defaultInterval, "How often the stream is polled.")
	f.DurationVar(&cfg.StaleAfter, util.PrefixConfig(prefix, "stale-after"), defaultStaleAfter, "Age after which the current track is fetched again on read.")
	f.DurationVar(&cfg.FetchTimeout, util.PrefixConfig(prefix, "fetch-timeout"), defaultFetchTimeout, "Upper bound on one metadata fetch.")
	f.DurationVar(&cfg.ProbeTimeout, util.PrefixConfig(prefix, "probe-timeout"), defaultProbeTimeout, "Timeout for health checks and alternative metadata endpoints.")
	f.DurationVar(&cfg.ChangeTimeout, util.PrefixConfig(prefix, "change-timeout"), defaultChangeTimeout, "Upper bound on the artwork lookup and persistence after a track change.")
}
