package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryMetadataCache struct {
	mu      sync.Mutex
	entries map[string]*model.EmbedMetadata
}

func newMemoryMetadataCache() *memoryMetadataCache {
	return &memoryMetadataCache{entries: make(map[string]*model.EmbedMetadata)}
}

func (c *memoryMetadataCache) Get(ctx context.Context, url string) (*model.EmbedMetadata, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[url]
	return m, ok, nil
}

func (c *memoryMetadataCache) Set(ctx context.Context, url string, meta *model.EmbedMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = meta
	return nil
}

const ogPage = `<!doctype html>
<html><head>
<title>Plain title</title>
<meta property="og:title" content="OG &lt;b&gt;Title&lt;/b&gt; 😀">
<meta name="twitter:description" content="Twitter   description">
<meta name="description" content="Plain description">
<meta property="og:image" content="https://example.com/cover.jpg">
<meta property="og:type" content="article">
</head><body><p>ignored</p></body></html>`

func TestMetadataFetchReadsOpenGraph(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		assert.Contains(t, r.Header.Get("User-Agent"), "Safari")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(ogPage))
	}))
	defer srv.Close()

	cache := newMemoryMetadataCache()
	s := NewMetadataService(5*time.Second, cache, "", "")

	meta, err := s.Fetch(context.Background(), srv.URL+"/post?utm_source=x#top", false)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/post", meta.URL)
	assert.Equal(t, "OG Title", meta.Title)
	assert.Equal(t, "Twitter description", meta.Description)
	assert.Equal(t, "https://example.com/cover.jpg", meta.Image)
	assert.Equal(t, "127.0.0.1", meta.Site)
	assert.Equal(t, "article", meta.OGType)

	again, err := s.Fetch(context.Background(), srv.URL+"/post", false)
	require.NoError(t, err)
	assert.Equal(t, meta, again)
	mu.Lock()
	assert.Equal(t, 1, hits)
	mu.Unlock()
}

func TestMetadataFetchFallsBackToTitleTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title> Only a title </title><meta property="og:site_name" content="Blog"></head></html>`))
	}))
	defer srv.Close()

	s := NewMetadataService(5*time.Second, nil, "", "")
	meta, err := s.Fetch(context.Background(), srv.URL, false)
	require.NoError(t, err)
	assert.Equal(t, "Only a title", meta.Title)
	assert.Equal(t, "Blog", meta.Site)
	assert.False(t, meta.Complete())
}

func TestMetadataFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewMetadataService(5*time.Second, nil, "", "")

	_, err := s.Fetch(context.Background(), "ftp://example.com", false)
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = s.Fetch(context.Background(), srv.URL+"/json", false)
	assert.ErrorIs(t, err, ErrNotHTML)

	_, err = s.Fetch(context.Background(), srv.URL+"/missing", false)
	assert.Error(t, err)
}

func TestMetadataFallbackCompletesMissingFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Sparse</title></head></html>`))
	})
	mux.HandleFunc("GET /preview/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"Full title","description":"From the API","image":"https://img.test/a.png"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cache := newMemoryMetadataCache()
	s := NewMetadataService(5*time.Second, cache, "", "secret")
	s.linkPreviewURL = srv.URL + "/preview/"

	sparse, err := s.Fetch(context.Background(), srv.URL+"/page", false)
	require.NoError(t, err)
	assert.Equal(t, "Sparse", sparse.Title)
	assert.Empty(t, sparse.Description)

	// an incomplete cache entry does not satisfy a fallback request
	full, err := s.Fetch(context.Background(), srv.URL+"/page", true)
	require.NoError(t, err)
	assert.Equal(t, "Full title", full.Title)
	assert.Equal(t, "From the API", full.Description)
	assert.Equal(t, "https://img.test/a.png", full.Image)
	assert.True(t, full.Complete())

	cached, ok, err := cache.Get(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, full, cached)
}

func TestCheckReferer(t *testing.T) {
	open := NewMetadataService(time.Second, nil, "", "")
	assert.NoError(t, open.CheckReferer(""))

	s := NewMetadataService(time.Second, nil, "loopfeed.app", "")
	assert.NoError(t, s.CheckReferer("https://loopfeed.app/create"))
	assert.ErrorIs(t, s.CheckReferer("https://evil.test/"), ErrRefererNotAllowed)
	assert.ErrorIs(t, s.CheckReferer(""), ErrRefererNotAllowed)
}

func TestStripBadContent(t *testing.T) {
	assert.Equal(t, "Hello world", stripBadContent("  <em>Hello</em>\n\t world 😀 "))
	assert.Equal(t, "", stripBadContent("<br/>"))
}
