package poller

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/nowplaying/internal/tracing"
	"github.com/zachfi/nowplaying/pkg/shoutcast"
	"github.com/zachfi/nowplaying/pkg/trackmeta"
)

// Where a track came from.
const (
	sourceICY         = "icy"
	sourceHeaders     = "headers"
	sourceAlternative = "alternative"
)

const (
	liveArtist = "Live Radio"

	// Status endpoints answer with a short line; anything shorter than this
	// is noise.
	minAlternativeLen = 6
	maxAlternativeLen = 4 << 10
)

// ErrNoMetadata means every source came back empty.
var ErrNoMetadata = errors.New("no metadata available from stream")

// fetch walks the source chain once: the ICY metadata block, the station
// headers when the stream has no metadata interval, and the alternative
// status endpoints when the stream cannot be reached at all.
func (p *Poller) fetch(ctx context.Context) (c trackmeta.Candidate, album, source string, err error) {
	ctx, span := p.tracer.Start(ctx, "Poller.fetch", trace.WithAttributes(
		attribute.String("url", p.cfg.URL),
	))
	defer func() { _ = tracing.ErrHandler(span, err, "metadata fetch failed", p.logger) }()

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	stream, err := p.transport.Open(fetchCtx, p.cfg.URL)
	if err != nil {
		p.logger.Warn("failed to open stream, trying alternative sources", "err", err)
		c, err = p.alternative(ctx)
		return c, "", sourceAlternative, err
	}
	defer stream.Close()

	raw, err := stream.ReadMetadata()
	switch {
	case err == nil:
		c, err = p.parser.Parse(raw)
		if err != nil {
			return c, "", sourceICY, errors.Wrap(err, "failed to parse metadata block")
		}
		span.SetAttributes(attribute.String("raw", string(raw)))
		return c, "", sourceICY, nil

	case errors.Is(err, shoutcast.ErrNoMetaint):
		c, album, ok := p.fromHeaders(stream)
		if !ok {
			return c, "", sourceHeaders, ErrNoMetadata
		}
		return c, album, sourceHeaders, nil

	default:
		return c, "", sourceICY, errors.Wrap(err, "failed to read metadata block")
	}
}

// fromHeaders describes the station itself when the stream carries no
// per-track metadata.
func (p *Poller) fromHeaders(s *shoutcast.Stream) (trackmeta.Candidate, string, bool) {
	if s.Name == "" && s.Description == "" && s.Genre == "" {
		return trackmeta.Candidate{}, "", false
	}

	c := trackmeta.Candidate{Title: s.Name, Artist: liveArtist}
	if c.Title == "" {
		c.Title = p.cfg.StationName
	}
	album := s.Description
	if album == "" {
		album = p.cfg.StationName
	}
	return c, album, true
}

// alternativeURLs lists the status endpoints some servers publish next to
// the stream.
func alternativeURLs(streamURL string) []string {
	var urls []string
	for _, alt := range []string{"/currentsong", "/stats"} {
		if u := strings.ReplaceAll(streamURL, "/audio", alt); u != streamURL {
			urls = append(urls, u)
		}
	}

	sep := "?"
	if u, err := url.Parse(streamURL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return append(urls, streamURL+sep+"metadata=1")
}

func (p *Poller) alternative(ctx context.Context) (trackmeta.Candidate, error) {
	for _, u := range alternativeURLs(p.cfg.URL) {
		c, err := p.fetchAlternative(ctx, u)
		if err != nil {
			p.logger.Debug("alternative source failed", "url", u, "err", err)
			continue
		}
		p.logger.Info("alternative metadata found", "url", u, "title", c.Title, "artist", c.Artist)
		return c, nil
	}
	return trackmeta.Candidate{}, ErrNoMetadata
}

func (p *Poller) fetchAlternative(ctx context.Context, u string) (trackmeta.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	text, err := p.transport.FetchText(ctx, u, maxAlternativeLen)
	if err != nil {
		return trackmeta.Candidate{}, err
	}

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minAlternativeLen {
		return trackmeta.Candidate{}, errors.Errorf("response too short: %q", text)
	}
	return p.parser.ParseText(text)
}
