// Package trackmeta extracts a track candidate from a SHOUTcast/Icecast
// in-band metadata block.
package trackmeta

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/zachfi/nowplaying/pkg/normalize"
)

// Placeholder is what some encoders send when no title is configured.
const Placeholder = "streamtitle"

// Candidate is the artist and title recovered from a stream.
type Candidate struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Key identifies a candidate for change detection.
func (c Candidate) Key() string {
	return c.Artist + " - " + c.Title
}

type titlePattern struct {
	name string
	re   *regexp.Regexp
}

// titlePatterns are tried in order and the first match wins.
var titlePatterns = []titlePattern{
	{"streamtitle-single-terminated", regexp.MustCompile(`(?i)StreamTitle='(.*?)';`)},
	{"streamtitle-single", regexp.MustCompile(`(?i)StreamTitle='([^']*)'`)},
	{"streamtitle-double", regexp.MustCompile(`(?i)StreamTitle="([^"]*)"`)},
	{"streamtitle-bare", regexp.MustCompile(`(?i)StreamTitle=([^;]*);`)},
	{"streamtitle-rest", regexp.MustCompile(`(?i)StreamTitle=([^$]*)`)},
	{"title-single-terminated", regexp.MustCompile(`(?i)title='(.*?)';`)},
	{"title-single", regexp.MustCompile(`(?i)title='([^']*)'`)},
	{"title-double", regexp.MustCompile(`(?i)title="([^"]*)"`)},
	{"streamtitle-colon", regexp.MustCompile(`(?i)StreamTitle:\s*([^\n\r]*)`)},
	{"title-upper-bare", regexp.MustCompile(`(?i)TITLE=([^;]*);`)},
	{"title-colon", regexp.MustCompile(`(?i)Title:\s*([^\n\r]*)`)},
}

var (
	salvage = regexp.MustCompile(`[A-Za-z0-9][^=;]*[A-Za-z0-9]`)

	// separators split "Artist - Title", in priority order.
	separators = []string{" - ", " – ", " — ", " | ", ": ", " / "}

	collabIndicator = regexp.MustCompile(`(?i)(?:\bfeat\.|\bft\.|\bfeaturing\b|&|\band\b|\bvs\b\.?)`)

	quotes = strings.NewReplacer(`"`, "", "'", "")
)

// Parser turns metadata into candidates. It is safe for concurrent use.
type Parser struct {
	defaultArtist string
	knownArtists  map[string]struct{}
	logger        *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithDefaultArtist sets the artist credited when a title carries none. A
// blank name keeps the current default.
func WithDefaultArtist(artist string) Option {
	return func(p *Parser) {
		if artist = strings.TrimSpace(artist); artist != "" {
			p.defaultArtist = artist
		}
	}
}

// WithKnownArtists adds names used to recognise "Title - Artist" ordering.
func WithKnownArtists(names ...string) Option {
	return func(p *Parser) {
		for _, n := range names {
			if k := artistKey(n); k != "" {
				p.knownArtists[k] = struct{}{}
			}
		}
	}
}

// WithLogger logs the heuristic choices the parser makes.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser returns a Parser that knows the classic catalog artists.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		defaultArtist: DefaultArtist,
		knownArtists:  make(map[string]struct{}),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	WithKnownArtists(ClassicArtists()...)(p)

	for _, o := range opts {
		o(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse extracts a candidate from raw using the default parser.
func Parse(raw []byte) (Candidate, error) {
	return defaultParser.Parse(raw)
}

// Parse extracts a candidate from a raw metadata block.
func (p *Parser) Parse(raw []byte) (Candidate, error) {
	text, enc, err := Decode(raw)
	if err != nil {
		return Candidate{}, err
	}

	title, pattern := extractTitle(text)
	if title == "" {
		return Candidate{}, errors.Wrapf(ErrPatternMiss, "metadata %q", preview(text))
	}
	p.logger.Debug("extracted stream title", "title", title, "pattern", pattern, "encoding", enc)

	return p.ParseText(title)
}

// ParseText splits an already extracted stream title into artist and title.
func (p *Parser) ParseText(s string) (Candidate, error) {
	s = strings.TrimSpace(invisibles.Replace(s))
	if s == "" {
		return Candidate{}, ErrPatternMiss
	}
	if utf8.RuneCountInString(s) < 2 {
		return Candidate{}, errors.Wrapf(ErrTooShort, "title %q", s)
	}
	if strings.EqualFold(s, Placeholder) {
		return Candidate{}, ErrPlaceholder
	}

	c := p.split(s)

	switch {
	case utf8.RuneCountInString(c.Title) < 2:
		return Candidate{}, errors.Wrapf(ErrTooShort, "title %q", c.Title)
	case strings.EqualFold(c.Title, Placeholder), strings.EqualFold(c.Artist, Placeholder):
		return Candidate{}, ErrPlaceholder
	}
	return c, nil
}

// extractTitle returns the trimmed stream title and the name of the rule that
// found it. An empty capture falls through to salvage.
func extractTitle(text string) (string, string) {
	for _, tp := range titlePatterns {
		m := tp.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			return v, tp.name
		}
		break
	}

	var best string
	for _, m := range salvage.FindAllString(text, -1) {
		if utf8.RuneCountInString(m) > utf8.RuneCountInString(best) {
			best = m
		}
	}
	if utf8.RuneCountInString(best) > 3 {
		return strings.TrimSpace(best), "salvage"
	}
	return "", ""
}

func (p *Parser) split(s string) Candidate {
	for _, sep := range separators {
		before, after, ok := strings.Cut(s, sep)
		if !ok {
			continue
		}
		artist, title := strings.TrimSpace(before), strings.TrimSpace(after)
		if artist == "" || title == "" {
			continue
		}

		if p.transposed(artist, title) {
			p.logger.Debug("stream title is transposed", "artist", title, "title", artist)
			artist, title = title, artist
		}
		return Candidate{Title: normalize.TrimVersionSuffix(title), Artist: artist}
	}

	if i := strings.Index(s, "("); i >= 0 && strings.Contains(s, ")") {
		if main := strings.TrimSpace(s[:i]); main != "" {
			return Candidate{Title: normalize.TrimVersionSuffix(main), Artist: p.defaultArtist}
		}
	}

	if strings.ContainsAny(s, `"'`) {
		if clean := strings.TrimSpace(quotes.Replace(s)); clean != "" {
			return Candidate{Title: normalize.TrimVersionSuffix(clean), Artist: p.defaultArtist}
		}
	}

	return Candidate{Title: normalize.TrimVersionSuffix(s), Artist: p.defaultArtist}
}

// transposed reports whether "first - second" is really "Title - Artist".
// The leading part is the artist unless only the trailing part is a known
// artist and the leading part reads as a single song name.
func (p *Parser) transposed(first, second string) bool {
	if collabIndicator.MatchString(first) {
		return false
	}
	return p.isKnownArtist(second) && !p.isKnownArtist(first)
}

func (p *Parser) isKnownArtist(name string) bool {
	_, ok := p.knownArtists[artistKey(name)]
	return ok
}

func artistKey(name string) string {
	return strings.ToLower(normalize.CleanBasic(normalize.StripDiacritics(name)))
}

func preview(s string) string {
	const limit = 64
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
