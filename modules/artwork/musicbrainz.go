package artwork

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/zachfi/nowplaying/pkg/variations"
)

type recordingSearch struct {
	Recordings []recording `json:"recordings"`
}

type recording struct {
	Releases []release `json:"releases"`
}

type release struct {
	ID string `json:"id"`
}

type coverArt struct {
	Images []struct {
		Image string   `json:"image"`
		Front bool     `json:"front"`
		Types []string `json:"types"`
	} `json:"images"`
}

var primarySeparators = []string{" & ", " and ", ", ", " feat. ", " ft. ", " featuring "}

// primaryArtist returns the first artist of a collaboration.
func primaryArtist(artist string) string {
	lower := strings.ToLower(artist)
	for _, sep := range primarySeparators {
		if i := strings.Index(lower, sep); i >= 0 {
			artist = artist[:i]
			break
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(artist, "&", ""))
}

// recordingQueries are tried from strict to loose.
func recordingQueries(artist, title string) []string {
	q := func(s string) string { return strings.ReplaceAll(s, `"`, "") }
	primary := q(primaryArtist(artist))
	artist, title = q(artist), q(title)

	return []string{
		fmt.Sprintf(`recording:"%s" AND artist:"%s"`, title, primary),
		fmt.Sprintf(`recording:"%s" AND artist:"%s"`, title, artist),
		fmt.Sprintf(`"%s" AND "%s"`, title, primary),
		fmt.Sprintf(`recording:"%s"`, title),
	}
}

// musicBrainz searches recordings and returns the cover of the first release
// that has one.
func (a *Artwork) musicBrainz(ctx context.Context, v variations.Variation) (string, bool, error) {
	var lastErr error
	for i, query := range recordingQueries(v.Artist, v.Title) {
		releases, err := a.searchRecordings(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			a.logger.Debug("musicbrainz search failed", "strategy", i+1, "query", query, "err", err)
			lastErr = err
			continue
		}

		for _, id := range releases {
			if img, ok := a.coverArt(ctx, id); ok {
				a.logger.Debug("musicbrainz cover found", "strategy", i+1, "release", id)
				return img, true, nil
			}
		}
	}
	return "", false, lastErr
}

func (a *Artwork) searchRecordings(ctx context.Context, query string) ([]string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", "5")
	params.Set("inc", "releases")
	params.Set("fmt", "json")

	var result recordingSearch
	if err := a.getJSON(ctx, strings.TrimRight(a.cfg.MusicBrainzURL, "/")+"/recording/?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	var ids []string
	for _, rec := range result.Recordings {
		for _, rel := range rec.Releases {
			if rel.ID != "" {
				ids = append(ids, rel.ID)
			}
		}
	}
	return ids, nil
}

// coverArt returns the front image of a release, or its first image.
func (a *Artwork) coverArt(ctx context.Context, releaseID string) (string, bool) {
	var result coverArt
	if err := a.getJSON(ctx, strings.TrimRight(a.cfg.CoverArtURL, "/")+"/release/"+url.PathEscape(releaseID), &result); err != nil {
		return "", false
	}

	for _, img := range result.Images {
		if img.Image == "" {
			continue
		}
		if img.Front || contains(img.Types, "Front") {
			return upgradeHTTPS(img.Image), true
		}
	}
	for _, img := range result.Images {
		if img.Image != "" {
			return upgradeHTTPS(img.Image), true
		}
	}
	return "", false
}

func (a *Artwork) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: unexpected status %d", req.URL.Host, resp.StatusCode)
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(v), "failed to decode response")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
