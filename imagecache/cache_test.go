package imagecache

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tolelom/cardtable/internal/testutil"
	"github.com/tolelom/cardtable/namespace"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	root := namespace.NewRoot(testutil.NewMemDB())
	cacheMap, err := root.Namespace("CacheMap", 0)
	if err != nil {
		t.Fatalf("Namespace: %v", err)
	}
	c, err := New(filepath.Join(dir, "cache"), "http://localhost:8080", "/cache/", cacheMap)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCachedFetchesOnceAndIsIdempotent(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("fake-jpeg-bytes"))
	}))
	defer srv.Close()

	c := newTestCache(t)

	p1, err := c.Cached(srv.URL + "/card.jpg")
	if err != nil {
		t.Fatalf("Cached: %v", err)
	}
	if _, err := os.Stat(p1); err != nil {
		t.Fatalf("cached file missing: %v", err)
	}

	p2, err := c.Cached(srv.URL + "/card.jpg")
	if err != nil {
		t.Fatalf("Cached (second call): %v", err)
	}
	if p1 != p2 {
		t.Fatalf("Cached paths differ: %q vs %q", p1, p2)
	}
	if hits != 1 {
		t.Fatalf("server received %d requests, want 1", hits)
	}

	if name := c.CachePeek(srv.URL + "/card.jpg"); name == "" {
		t.Fatalf("CachePeek returned empty after caching")
	}
}

func TestCachedIfPresentMissReturnsOriginalURL(t *testing.T) {
	c := newTestCache(t)
	url := "http://example.com/never-fetched.jpg"
	if got := c.CachedIfPresent(url); got != url {
		t.Fatalf("CachedIfPresent(miss) = %q, want %q", got, url)
	}
}

func TestCachedSkipsLocalURLs(t *testing.T) {
	c := newTestCache(t)
	for _, url := range []string{"/already/local.jpg", "../relative.jpg", "/cache/abc.jpg"} {
		got, err := c.Cached(url)
		if err != nil {
			t.Fatalf("Cached(%q): %v", url, err)
		}
		if got != url {
			t.Fatalf("Cached(%q) = %q, want unchanged", url, got)
		}
	}
}
