package lyrics

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultOVHURL          = "https://api.lyrics.ovh/v1"
	defaultLRCLibURL       = "https://lrclib.net/api"
	defaultChartLyricsURL  = "http://api.chartlyrics.com/apiv1.asmx"
	defaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultRequestTimeout  = 8 * time.Second
	defaultLookupTimeout   = 60 * time.Second
	defaultCacheTTL        = 24 * time.Hour
	defaultMissTTL         = time.Hour
	defaultCleanupInterval = time.Hour
	defaultMaxAttempts     = 2
	defaultMinBackoff      = 500 * time.Millisecond
	defaultMaxBackoff      = 5 * time.Second
)

type Config struct {
	OVHURL          string        `yaml:"ovh-url,omitempty"`
	LRCLibURL       string        `yaml:"lrclib-url,omitempty"`
	ChartLyricsURL  string        `yaml:"chartlyrics-url,omitempty"`
	UserAgent       string        `yaml:"user-agent,omitempty"`
	RequestTimeout  time.Duration `yaml:"request-timeout,omitempty"`
	LookupTimeout   time.Duration `yaml:"lookup-timeout,omitempty"`
	CacheTTL        time.Duration `yaml:"cache-ttl,omitempty"`
	MissTTL         time.Duration `yaml:"miss-ttl,omitempty"`
	CleanupInterval time.Duration `yaml:"cleanup-interval,omitempty"`

	// Retry settings for transient network failures, per source request.
	MaxAttempts int           `yaml:"max-attempts,omitempty"`
	MinBackoff  time.Duration `yaml:"min-backoff,omitempty"`
	MaxBackoff  time.Duration `yaml:"max-backoff,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.OVHURL, util.PrefixConfig(prefix, "ovh-url"), defaultOVHURL, "lyrics.ovh API root.")
	f.StringVar(&cfg.LRCLibURL, util.PrefixConfig(prefix, "lrclib-url"), defaultLRCLibURL, "LRCLIB API root.")
	f.StringVar(&cfg.ChartLyricsURL, util.PrefixConfig(prefix, "chartlyrics-url"), defaultChartLyricsURL, "ChartLyrics API root.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), defaultUserAgent, "User agent sent to lyrics providers.")
	f.DurationVar(&cfg.RequestTimeout, util.PrefixConfig(prefix, "request-timeout"), defaultRequestTimeout, "Timeout for a single provider request.")
	f.DurationVar(&cfg.LookupTimeout, util.PrefixConfig(prefix, "lookup-timeout"), defaultLookupTimeout, "Upper bound on one lyrics lookup across all variations and providers.")
	f.DurationVar(&cfg.CacheTTL, util.PrefixConfig(prefix, "cache-ttl"), defaultCacheTTL, "How long found lyrics are cached.")
	f.DurationVar(&cfg.MissTTL, util.PrefixConfig(prefix, "miss-ttl"), defaultMissTTL, "How long a failed lookup is cached.")
	f.DurationVar(&cfg.CleanupInterval, util.PrefixConfig(prefix, "cleanup-interval"), defaultCleanupInterval, "How often expired cache entries are dropped.")
	f.IntVar(&cfg.MaxAttempts, util.PrefixConfig(prefix, "max-attempts"), defaultMaxAttempts, "Attempts per provider request on network errors.")
	f.DurationVar(&cfg.MinBackoff, util.PrefixConfig(prefix, "min-backoff"), defaultMinBackoff, "Initial retry delay.")
	f.DurationVar(&cfg.MaxBackoff, util.PrefixConfig(prefix, "max-backoff"), defaultMaxBackoff, "Maximum retry delay.")
}
