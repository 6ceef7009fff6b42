package lyrics

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/grafana/dskit/backoff"
	"github.com/pkg/errors"

	"github.com/zachfi/nowplaying/pkg/variations"
)

const maxBody = 1 << 20

type fetchFunc func(ctx context.Context, v variations.Variation) (Result, bool, error)

func (l *Lyrics) ovh(ctx context.Context, v variations.Variation) (Result, bool, error) {
	u := strings.TrimSuffix(l.cfg.OVHURL, "/") + "/" + url.PathEscape(v.Artist) + "/" + url.PathEscape(v.Title)

	var resp struct {
		Lyrics string `json:"lyrics"`
	}
	ok, err := l.getJSON(ctx, u, &resp)
	if err != nil || !ok || strings.TrimSpace(resp.Lyrics) == "" {
		return Result{}, false, err
	}

	return Result{Lyrics: Process(resp.Lyrics), Source: "lyrics.ovh", Confidence: 0.9}, true, nil
}

func (l *Lyrics) lrclib(ctx context.Context, v variations.Variation) (Result, bool, error) {
	q := url.Values{}
	q.Set("artist_name", v.Artist)
	q.Set("track_name", v.Title)
	u := strings.TrimSuffix(l.cfg.LRCLibURL, "/") + "/search?" + q.Encode()

	var resp []struct {
		PlainLyrics  string `json:"plainLyrics"`
		SyncedLyrics string `json:"syncedLyrics"`
	}
	ok, err := l.getJSON(ctx, u, &resp)
	if err != nil || !ok || len(resp) == 0 {
		return Result{}, false, err
	}

	text := resp[0].PlainLyrics
	if strings.TrimSpace(text) == "" {
		text = stripTimestamps(resp[0].SyncedLyrics)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, false, nil
	}

	return Result{Lyrics: Process(text), Source: "lrclib.net", Confidence: 0.85}, true, nil
}

type chartLyric struct {
	Lyric string `xml:"Lyric"`
}

func (l *Lyrics) chartLyrics(ctx context.Context, v variations.Variation) (Result, bool, error) {
	q := url.Values{}
	q.Set("artist", v.Artist)
	q.Set("song", v.Title)
	u := strings.TrimSuffix(l.cfg.ChartLyricsURL, "/") + "/SearchLyricDirect?" + q.Encode()

	body, ok, err := l.get(ctx, u)
	if err != nil || !ok {
		return Result{}, false, err
	}

	var resp chartLyric
	if err := xml.Unmarshal(body, &resp); err != nil {
		return Result{}, false, errors.Wrap(err, "failed to decode chartlyrics response")
	}

	text := strings.TrimSpace(resp.Lyric)
	if text == "" || text == "Not found" {
		return Result{}, false, nil
	}

	return Result{Lyrics: Process(text), Source: "chartlyrics", Confidence: 0.8}, true, nil
}

// get returns the body of a 200 response. Any other status is a miss.
func (l *Lyrics) get(ctx context.Context, u string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, false, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read response")
	}
	return body, true, nil
}

func (l *Lyrics) getJSON(ctx context.Context, u string, v any) (bool, error) {
	body, ok, err := l.get(ctx, u)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return false, errors.Wrap(err, "failed to decode response")
	}
	return true, nil
}

// retrying repeats fetch while it fails with a network error.
func (l *Lyrics) retrying(name string, fetch fetchFunc) variations.Source[Result] {
	return variations.Source[Result]{
		Name: name,
		Lookup: func(ctx context.Context, v variations.Variation) (Result, bool, error) {
			var (
				res Result
				ok  bool
				err error
			)

			b := backoff.New(ctx, l.backoff)
			for b.Ongoing() {
				res, ok, err = fetch(ctx, v)
				if err == nil || !transient(err) {
					return res, ok, err
				}
				l.logger.Warn("lyrics request failed", "source", name, "attempt", b.NumRetries()+1, "err", err)
				b.Wait()
			}

			if err == nil {
				err = b.Err()
			}
			return res, false, err
		},
	}
}

func transient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
