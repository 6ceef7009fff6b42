package artwork

import (
	"context"

	"github.com/shkh/lastfm-go/lastfm"

	"github.com/zachfi/nowplaying/pkg/variations"
)

// lastFMSizes ranks image sizes, largest first.
var lastFMSizes = []string{"mega", "extralarge", "large", "medium", "small"}

// lastFM uses the album image from track.getInfo. The client takes no
// context, so the call is abandoned rather than cancelled when ctx ends.
func (a *Artwork) lastFM(ctx context.Context, v variations.Variation) (string, bool, error) {
	type result struct {
		info lastfm.TrackGetInfo
		err  error
	}

	done := make(chan result, 1)
	go func() {
		info, err := a.lastfm.Track.GetInfo(lastfm.P{"artist": v.Artist, "track": v.Title, "autocorrect": 1})
		done <- result{info, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return "", false, r.err
	}

	images := make(map[string]string)
	for _, img := range r.info.Album.Images {
		if img.Url != "" {
			images[img.Size] = img.Url
		}
	}
	for _, size := range lastFMSizes {
		if u, ok := images[size]; ok {
			return upgradeHTTPS(u), true, nil
		}
	}
	return "", false, nil
}
