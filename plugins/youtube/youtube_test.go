package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/liuran001/SongShare-Go/bot/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
		ok    bool
	}{
		{"Song Title - Artist | Spotify", "Song Title - Artist", true},
		{"Song Title - song and lyrics by Artist | Spotify", "Song Title Artist", true},
		{"Song by Artist on Apple Music", "Song by Artist", true},
		{"Song - Artist - YouTube Music", "Song - Artist", true},
		{"Track Name - Deezer", "Track Name", true},
		{"Track Name | TIDAL", "Track Name", true},
		{"Rock &amp; Roll - Band | SoundCloud", "Rock & Roll - Band", true},
		{"Song &#39;Quoted&#39; | spotify", "Song 'Quoted'", true},
		{"Track   with   spaces - Bandcamp", "Track with spaces", true},
		{"Song | Spotify | Spotify", "Song", true},
		{"Spotify", "", false},
		{"abc | Spotify", "", false},
		{"", "", false},
		{"   ", "", false},
		{"Plain Title", "Plain Title", true},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, ok := QueryFromTitle(tt.title)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTitleFromDocument(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"title tag", `<html><head><title>Song - Artist | Spotify</title></head></html>`, "Song - Artist | Spotify"},
		{"og fallback", `<html><head><title>  </title><meta property="og:title" content="OG Song"></head></html>`, "OG Song"},
		{"nothing", `<html><head></head><body>hi</body></html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, TitleFromDocument(doc))
		})
	}
}

func TestFetchTitleSendsCrawlerUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`<html><head><title>Song Title - Artist | Spotify</title></head></html>`))
	}))
	defer srv.Close()

	title, err := NewPageClient("", time.Second).FetchTitle(context.Background(), srv.URL+"/track/1")
	require.NoError(t, err)
	assert.Equal(t, "Song Title - Artist | Spotify", title)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestFetchTitleBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewPageClient("custom-agent", time.Second).FetchTitle(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrNoFallback))
}

// newFakeServices serves both the streaming page and the search API.
func newFakeServices(t *testing.T, pageTitle, videoID string, gotQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/page"):
			_, _ = w.Write([]byte(`<html><head><title>` + pageTitle + `</title></head></html>`))
		case strings.HasSuffix(r.URL.Path, "/search"):
			q := r.URL.Query()
			if gotQuery != nil {
				*gotQuery = q.Get("q")
			}
			if q.Get("key") != "test-key" || q.Get("type") != "video" || q.Get("videoCategoryId") != "10" || q.Get("maxResults") != "1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad params"}}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if videoID == "" {
				_, _ = w.Write([]byte(`{"kind":"youtube#searchListResponse","items":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"kind":"youtube#searchListResponse","items":[{"kind":"youtube#searchResult","id":{"kind":"youtube#video","videoId":"` + videoID + `"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFallbackResolve(t *testing.T) {
	var gotQuery string
	srv := newFakeServices(t, "Song Title - Artist | Spotify", "vid123", &gotQuery)

	fb, err := New(context.Background(), Options{APIKey: "test-key", APIURL: srv.URL, Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)
	require.True(t, fb.Enabled())

	res, err := fb.Resolve(context.Background(), srv.URL+"/page/track/1")
	require.NoError(t, err)
	assert.Equal(t, platform.OutcomeFallback, res.Outcome)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid123", res.VideoURL)
	assert.Equal(t, "Song Title - Artist", res.Title)
	assert.Empty(t, res.CanonicalURL)
	assert.Equal(t, "Song Title - Artist", gotQuery)
}

func TestFallbackNoResults(t *testing.T) {
	srv := newFakeServices(t, "Song Title - Artist | Spotify", "", nil)

	fb, err := New(context.Background(), Options{APIKey: "test-key", APIURL: srv.URL, Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)

	_, err = fb.Resolve(context.Background(), srv.URL+"/page/x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrNoFallback))
}

func TestFallbackShortTitle(t *testing.T) {
	srv := newFakeServices(t, "abc - Spotify", "vid", nil)

	fb, err := New(context.Background(), Options{APIKey: "test-key", APIURL: srv.URL, Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)

	_, err = fb.Resolve(context.Background(), srv.URL+"/page/x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, platform.ErrNoFallback))
}

func TestFallbackDisabledWithoutKey(t *testing.T) {
	fb, err := New(context.Background(), Options{}, nil)
	require.NoError(t, err)
	assert.False(t, fb.Enabled())

	_, err = fb.Resolve(context.Background(), "https://open.spotify.com/track/1")
	assert.True(t, errors.Is(err, platform.ErrNoFallback))

	var nilFallback *Fallback
	assert.False(t, nilFallback.Enabled())
}

func TestSearchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
	}))
	defer srv.Close()

	search, err := NewSearchClient(context.Background(), "test-key", srv.URL, time.Second)
	require.NoError(t, err)

	_, err = search.SearchVideo(context.Background(), "anything")
	require.Error(t, err)
	var svcErr *platform.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusForbidden, svcErr.Status)
	assert.True(t, errors.Is(err, platform.ErrNoFallback))
}

func TestNewSearchClientRequiresKey(t *testing.T) {
	_, err := NewSearchClient(context.Background(), " ", "", time.Second)
	assert.Error(t, err)
}
