package shoutcast

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// UserAgent is sent with every request; some servers only emit ICY metadata
// to players they recognise.
const UserAgent = "iTunes/12.9.2 (Macintosh; OS X 10.14.3) AppleWebKit/606.4.5"

var (
	// ErrNoMetaint means the server did not announce a metadata interval, so
	// only the station headers are available.
	ErrNoMetaint = errors.New("stream has no icy-metaint")
	// ErrEmptyMetadata means the metadata block had zero length.
	ErrEmptyMetadata = errors.New("empty metadata block")
	// ErrNotStream means the URL served neither audio nor a playlist.
	ErrNotStream = errors.New("not a stream or playlist")
)

// Stream represents an open shoutcast stream.
type Stream struct {
	// The name of the server
	Name string

	// What category the server falls under
	Genre string

	// The description of the stream
	Description string

	// Homepage of the server
	URL string

	// Bitrate of the server
	Bitrate int

	// Header holds every response header.
	Header http.Header

	// Amount of bytes to read before expecting a metadata block
	metaint int

	// The underlying data stream
	rc io.ReadCloser
}

// Client opens streams. The zero value is not usable; see NewClient.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient returns a Client whose connections time out after dialTimeout.
// Overall request time is bounded by the context passed to each call.
func NewClient(logger *slog.Logger, dialTimeout time.Duration) *Client {
	dialer := &net.Dialer{Timeout: dialTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

// Open connects to url, following one level of playlist indirection.
func (c *Client) Open(ctx context.Context, url string) (*Stream, error) {
	resp, err := c.get(ctx, url, true)
	if err != nil {
		return nil, err
	}

	if resp.Header.Get("icy-metaint") != "" {
		return newStream(resp)
	}

	kind := declaredPlaylist(url, resp.Header)
	var content string
	if kind != notPlaylist || sniffable(resp.Header) {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistSize))
		_ = resp.Body.Close()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read response body")
		}
		content = string(data)
		if kind == notPlaylist {
			kind = sniffPlaylist(content)
		}
		if kind == notPlaylist {
			return nil, errors.Wrapf(ErrNotStream, "content type %q", resp.Header.Get("Content-Type"))
		}
	} else {
		// Audio without a metadata interval; the headers are still useful.
		return newStream(resp)
	}

	streamURL, err := resolvePlaylist(kind, content)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve playlist %s", url)
	}
	c.logger.Debug("resolved playlist", "playlist", url, "stream", streamURL)

	resp, err = c.get(ctx, streamURL, true)
	if err != nil {
		return nil, err
	}
	return newStream(resp)
}

// Probe issues a HEAD request without following redirects and returns the
// status code.
func (c *Client) Probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", UserAgent)

	client := *c.httpClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// FetchText reads at most limit bytes of a plain response, for servers that
// publish the current song on a status endpoint.
func (c *Client) FetchText(ctx context.Context, url string, limit int64) (string, error) {
	resp, err := c.get(ctx, url, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}
	return string(data), nil
}

func (c *Client) get(ctx context.Context, url string, icy bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", UserAgent)
	if icy {
		req.Header.Set("Icy-MetaData", "1")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", url)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_ = resp.Body.Close()
		return nil, errors.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	return resp, nil
}

func newStream(resp *http.Response) (*Stream, error) {
	var bitrate int
	if raw := resp.Header.Get("icy-br"); raw != "" {
		// Some servers send "128,128".
		raw, _, _ = strings.Cut(raw, ",")
		bitrate, _ = strconv.Atoi(strings.TrimSpace(raw))
	}

	var metaint int
	if raw := resp.Header.Get("icy-metaint"); raw != "" {
		var err error
		metaint, err = strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || metaint < 0 {
			_ = resp.Body.Close()
			return nil, errors.Errorf("cannot parse metaint %q", raw)
		}
	}

	return &Stream{
		Name:        resp.Header.Get("icy-name"),
		Genre:       resp.Header.Get("icy-genre"),
		Description: resp.Header.Get("icy-description"),
		URL:         resp.Header.Get("icy-url"),
		Bitrate:     bitrate,
		Header:      resp.Header,
		metaint:     metaint,
		rc:          resp.Body,
	}, nil
}

// ReadMetadata skips the audio preceding the first metadata block and
// returns the block as sent, including any NUL padding.
func (s *Stream) ReadMetadata() ([]byte, error) {
	if s.metaint == 0 {
		return nil, ErrNoMetaint
	}

	if _, err := io.CopyN(io.Discard, s.rc, int64(s.metaint)); err != nil {
		return nil, errors.Wrap(err, "failed to skip audio")
	}

	var length [1]byte
	if _, err := io.ReadFull(s.rc, length[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read metadata length")
	}

	n := int(length[0]) * 16
	if n == 0 {
		return nil, ErrEmptyMetadata
	}

	block := make([]byte, n)
	if _, err := io.ReadFull(s.rc, block); err != nil {
		return nil, errors.Wrap(err, "failed to read metadata block")
	}
	return block, nil
}

// Close closes the stream
func (s *Stream) Close() error {
	return s.rc.Close()
}
