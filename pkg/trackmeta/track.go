package trackmeta

import "time"

// Track is a now-playing record as served to clients and persisted.
type Track struct {
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album,omitempty"`
	ArtworkURL string    `json:"artwork_url,omitempty"`
	IsLive     bool      `json:"is_live"`
	Timestamp  time.Time `json:"timestamp"`
}

// Key identifies a track for change detection: "artist - title", compared
// exactly.
func (t Track) Key() string {
	return t.Artist + " - " + t.Title
}

// Track converts a classic into a fallback track.
func (c Classic) Track(now time.Time) Track {
	return Track{
		Title:     c.Title,
		Artist:    c.Artist,
		Album:     c.Album,
		IsLive:    false,
		Timestamp: now,
	}
}

// ArtworkPlaceholder stands in for missing cover art; clients render a vinyl
// graphic for it.
const ArtworkPlaceholder = "vinyl-fallback-placeholder"
