package shoutcast

import (
	"bufio"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// maxPlaylistSize bounds how much of a response is read looking for a
// playlist.
const maxPlaylistSize = 64 << 10

var errNoPlaylistEntry = errors.New("no stream URL found in playlist")

type playlistKind int

const (
	notPlaylist playlistKind = iota
	plsPlaylist
	m3uPlaylist
)

// parsePLS returns the first FileN= entry of a PLS playlist.
func parsePLS(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "File") {
			continue
		}
		if _, url, ok := strings.Cut(line, "="); ok {
			if url = strings.TrimSpace(url); url != "" {
				return url, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "failed to read playlist")
	}
	return "", errNoPlaylistEntry
}

// parseM3U returns the first http(s) entry of an M3U playlist.
func parseM3U(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "failed to read playlist")
	}
	return "", errNoPlaylistEntry
}

// declaredPlaylist classifies a response by content type and URL suffix.
func declaredPlaylist(url string, h http.Header) playlistKind {
	contentType := strings.ToLower(h.Get("Content-Type"))
	path := strings.ToLower(url)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	switch {
	case strings.Contains(contentType, "audio/x-scpls"),
		strings.Contains(contentType, "application/pls+xml"),
		strings.HasSuffix(path, ".pls"):
		return plsPlaylist
	case strings.Contains(contentType, "mpegurl"),
		strings.HasSuffix(path, ".m3u"),
		strings.HasSuffix(path, ".m3u8"):
		return m3uPlaylist
	}
	return notPlaylist
}

// sniffable reports whether a body may be read to look for a playlist. Audio
// bodies never end and are left alone.
func sniffable(h http.Header) bool {
	contentType := strings.ToLower(h.Get("Content-Type"))
	return contentType == "" || strings.HasPrefix(contentType, "text/")
}

// sniffPlaylist classifies a body by its content.
func sniffPlaylist(content string) playlistKind {
	trimmed := strings.TrimSpace(content)
	switch {
	case strings.Contains(content, "[playlist]"), strings.Contains(content, "File1="):
		return plsPlaylist
	case strings.Contains(content, "#EXTM3U"),
		strings.HasPrefix(trimmed, "http://"),
		strings.HasPrefix(trimmed, "https://"):
		return m3uPlaylist
	}
	return notPlaylist
}

func resolvePlaylist(kind playlistKind, content string) (string, error) {
	switch kind {
	case plsPlaylist:
		return parsePLS(strings.NewReader(content))
	case m3uPlaylist:
		return parseM3U(strings.NewReader(content))
	}
	return "", errNoPlaylistEntry
}
