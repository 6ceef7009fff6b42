package history

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultMaxEntries      = 50
	defaultDuplicateWindow = 5 * time.Minute
)

// defaultFallbackPatterns mark station idents and placeholders that never
// belong in the history.
var defaultFallbackPatterns = []string{
	"legendary radio from scotland",
	"greatest hits non-stop",
	"live radio from scotland",
	"radio stream",
	"now playing",
	"station identifier",
	"commercial break",
	"advertisement",
}

type Config struct {
	MaxEntries       int                   `yaml:"max-entries,omitempty"`
	DuplicateWindow  time.Duration         `yaml:"duplicate-window,omitempty"`
	FallbackPatterns flagext.StringSliceCSV `yaml:"fallback-patterns,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.MaxEntries, util.PrefixConfig(prefix, "max-entries"), defaultMaxEntries, "Number of history entries to keep.")
	f.DurationVar(&cfg.DuplicateWindow, util.PrefixConfig(prefix, "duplicate-window"), defaultDuplicateWindow, "A track played again within this window is not recorded twice.")

	cfg.FallbackPatterns = append(flagext.StringSliceCSV{}, defaultFallbackPatterns...)
	f.Var(&cfg.FallbackPatterns, util.PrefixConfig(prefix, "fallback-patterns"), "Comma separated, lower case substrings that mark a title or artist as a station ident rather than a song.")
}
