package artwork

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultMusicBrainzURL  = "https://musicbrainz.org/ws/2"
	defaultCoverArtURL     = "https://coverartarchive.org"
	defaultUserAgent       = "nowplaying/1.0 (https://github.com/zachfi/nowplaying)"
	defaultCacheTTL        = 24 * time.Hour
	defaultCleanupInterval = time.Hour
	defaultLookupTimeout   = 15 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxVariations   = 3
)

type Config struct {
	MusicBrainzURL  string        `yaml:"musicbrainz-url,omitempty"`
	CoverArtURL     string        `yaml:"coverart-url,omitempty"`
	UserAgent       string        `yaml:"user-agent,omitempty"`
	LastFMAPIKey    string        `yaml:"lastfm-api-key,omitempty"`
	LastFMAPISecret string        `yaml:"lastfm-api-secret,omitempty"`
	CacheTTL        time.Duration `yaml:"cache-ttl,omitempty"`
	CleanupInterval time.Duration `yaml:"cleanup-interval,omitempty"`
	LookupTimeout   time.Duration `yaml:"lookup-timeout,omitempty"`
	RequestTimeout  time.Duration `yaml:"request-timeout,omitempty"`
	MaxVariations   int           `yaml:"max-variations,omitempty"`
	// MusicBrainz allows one request per second per client.
	RequestsPerSecond float64 `yaml:"requests-per-second,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.MusicBrainzURL, util.PrefixConfig(prefix, "musicbrainz-url"), defaultMusicBrainzURL, "MusicBrainz web service root.")
	f.StringVar(&cfg.CoverArtURL, util.PrefixConfig(prefix, "coverart-url"), defaultCoverArtURL, "Cover Art Archive root.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), defaultUserAgent, "User agent sent to MusicBrainz, which rejects anonymous clients.")
	f.StringVar(&cfg.LastFMAPIKey, util.PrefixConfig(prefix, "lastfm-api-key"), "", "Last.fm API key. Last.fm is skipped when empty.")
	f.StringVar(&cfg.LastFMAPISecret, util.PrefixConfig(prefix, "lastfm-api-secret"), "", "Last.fm API secret.")
	f.DurationVar(&cfg.CacheTTL, util.PrefixConfig(prefix, "cache-ttl"), defaultCacheTTL, "How long a lookup result, including a miss, is cached.")
	f.DurationVar(&cfg.CleanupInterval, util.PrefixConfig(prefix, "cleanup-interval"), defaultCleanupInterval, "How often expired cache entries are deleted.")
	f.DurationVar(&cfg.LookupTimeout, util.PrefixConfig(prefix, "lookup-timeout"), defaultLookupTimeout, "Upper bound on one artwork lookup across all sources.")
	f.DurationVar(&cfg.RequestTimeout, util.PrefixConfig(prefix, "request-timeout"), defaultRequestTimeout, "Timeout for a single upstream request.")
	f.IntVar(&cfg.MaxVariations, util.PrefixConfig(prefix, "max-variations"), defaultMaxVariations, "Number of search variations tried per lookup.")
	f.Float64Var(&cfg.RequestsPerSecond, util.PrefixConfig(prefix, "requests-per-second"), 1, "MusicBrainz request rate limit.")
}
