package shoutcast

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMetaint = 32

func metadataBlock(s string) []byte {
	n := (len(s) + 15) / 16
	block := make([]byte, 1+n*16)
	block[0] = byte(n)
	copy(block[1:], s)
	return block
}

func icyHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Icy-MetaData") != "1" {
			http.Error(w, "metadata not requested", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-metaint", fmt.Sprint(testMetaint))
		w.Header().Set("icy-name", "Test FM")
		w.Header().Set("icy-genre", "Rock")
		w.Header().Set("icy-br", "128,128")
		_, _ = w.Write(bytes.Repeat([]byte{0xff}, testMetaint))
		if title == "" {
			_, _ = w.Write([]byte{0})
			return
		}
		_, _ = w.Write(metadataBlock("StreamTitle='" + title + "';"))
	}
}

func newTestClient() *Client {
	return NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
}

func TestReadMetadata(t *testing.T) {
	srv := httptest.NewServer(icyHandler("Queen - Bohemian Rhapsody"))
	defer srv.Close()

	s, err := newTestClient().Open(context.Background(), srv.URL)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "Test FM", s.Name)
	assert.Equal(t, "Rock", s.Genre)
	assert.Equal(t, 128, s.Bitrate)

	block, err := s.ReadMetadata()
	require.NoError(t, err)
	assert.Zero(t, len(block)%16)
	assert.Equal(t, "StreamTitle='Queen - Bohemian Rhapsody';", strings.TrimRight(string(block), "\x00"))
}

func TestReadMetadataEmpty(t *testing.T) {
	srv := httptest.NewServer(icyHandler(""))
	defer srv.Close()

	s, err := newTestClient().Open(context.Background(), srv.URL)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReadMetadata()
	assert.ErrorIs(t, err, ErrEmptyMetadata)
}

func TestReadMetadataNoMetaint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-name", "Header Only FM")
		w.Header().Set("icy-description", "The best hits")
		_, _ = w.Write(bytes.Repeat([]byte{0xff}, 64))
	}))
	defer srv.Close()

	s, err := newTestClient().Open(context.Background(), srv.URL)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "Header Only FM", s.Name)
	assert.Equal(t, "The best hits", s.Description)

	_, err = s.ReadMetadata()
	assert.ErrorIs(t, err, ErrNoMetaint)
}

func TestOpenPlaylist(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.Handle("/stream", icyHandler("Eagles - Hotel California"))
	mux.HandleFunc("/listen.pls", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/x-scpls")
		fmt.Fprintf(w, "[playlist]\nNumberOfEntries=1\nFile1=%s/stream\nTitle1=Test\n", srv.URL)
	})
	mux.HandleFunc("/listen.m3u", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/mpegurl")
		fmt.Fprintf(w, "#EXTM3U\n#EXTINF:-1,Test\n%s/stream\n", srv.URL)
	})
	mux.HandleFunc("/sniff", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "%s/stream\n", srv.URL)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>hello</html>")
	})

	for _, path := range []string{"/listen.pls", "/listen.m3u", "/sniff"} {
		t.Run(path, func(t *testing.T) {
			s, err := newTestClient().Open(context.Background(), srv.URL+path)
			require.NoError(t, err)
			defer s.Close()

			block, err := s.ReadMetadata()
			require.NoError(t, err)
			assert.Contains(t, string(block), "Eagles - Hotel California")
		})
	}

	_, err := newTestClient().Open(context.Background(), srv.URL+"/page")
	assert.ErrorIs(t, err, ErrNotStream)
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/moved" {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient()

	code, err := c.Probe(context.Background(), srv.URL+"/listen")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	code, err = c.Probe(context.Background(), srv.URL+"/moved")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, code)
}

func TestFetchText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/currentsong" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "Queen - Bohemian Rhapsody")
	}))
	defer srv.Close()

	c := newTestClient()

	text, err := c.FetchText(context.Background(), srv.URL+"/currentsong", 1024)
	require.NoError(t, err)
	assert.Equal(t, "Queen - Bohemian Rhapsody", text)

	_, err = c.FetchText(context.Background(), srv.URL+"/stats", 1024)
	assert.Error(t, err)
}

func TestParsePlaylists(t *testing.T) {
	url, err := parsePLS(strings.NewReader("[playlist]\nFile1 = http://a/stream\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://a/stream", url)

	_, err = parseM3U(strings.NewReader("#EXTM3U\n# nothing here\n"))
	assert.ErrorIs(t, err, errNoPlaylistEntry)
}
