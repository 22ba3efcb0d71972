// Package imagecache implements the url → local file mapping described
// in spec §4.2: deduplicating remote image fetches, keyed by a hash of
// the url, and persisting the inverse mapping so it survives restarts.
package imagecache

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tolelom/cardtable/crypto"
	"github.com/tolelom/cardtable/namespace"
)

// Cache caches remote images on the local filesystem under CacheDir,
// recording the url → filename mapping in the CacheMap namespace.
type Cache struct {
	cacheDir string
	client   *http.Client

	// localPrefixes are url prefixes considered "already local": the
	// cache directory itself, the serving address another process
	// mounts it under, and relative/absolute filesystem paths.
	localPrefixes []string

	cacheMap *namespace.Namespace
}

// New constructs a Cache rooted at cacheDir. localServingAddress and
// cacheServingPrefix identify urls that are already local and should
// be returned unchanged rather than re-fetched.
func New(cacheDir, localServingAddress, cacheServingPrefix string, cacheMap *namespace.Namespace) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("imagecache: create cache dir %q: %w", cacheDir, err)
	}
	return &Cache{
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 30 * time.Second},
		localPrefixes: []string{
			cacheDir,
			localServingAddress,
			cacheServingPrefix,
			"/",
			"..",
		},
		cacheMap: cacheMap,
	}, nil
}

func (c *Cache) isLocal(url string) bool {
	for _, p := range c.localPrefixes {
		if p != "" && strings.HasPrefix(url, p) {
			return true
		}
	}
	return false
}

func (c *Cache) hashName(url string) string {
	return crypto.Hash([]byte(url)) + ".jpg"
}

// Cached returns the local path for url, fetching and caching it if
// this is the first time it has been seen. Urls that are already
// local (see isLocal) are returned unchanged.
func (c *Cache) Cached(url string) (string, error) {
	if url == "" {
		return url, nil
	}
	if c.isLocal(url) {
		return url, nil
	}

	name := c.hashName(url)
	path := filepath.Join(c.cacheDir, name)

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("imagecache: stat %q: %w", path, err)
	}

	if err := c.fetch(url, path); err != nil {
		return "", err
	}
	if err := c.cacheMap.Put(url, name); err != nil {
		return "", fmt.Errorf("imagecache: record CacheMap entry for %q: %w", url, err)
	}
	return path, nil
}

// CachedIfPresent returns the cached local path for url if it has
// already been fetched, or the original url unchanged on a miss. It
// never performs a fetch.
func (c *Cache) CachedIfPresent(url string) string {
	if url == "" || c.isLocal(url) {
		return url
	}
	path := filepath.Join(c.cacheDir, c.hashName(url))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return url
}

// CachePeek returns the cached filename CacheMap has on record for
// url, or "" if none has ever been recorded.
func (c *Cache) CachePeek(url string) string {
	var name string
	if err := c.cacheMap.Get(url, &name); err != nil {
		return ""
	}
	return name
}

// fetch downloads url's body and writes it to path, using a
// temp-file-then-rename so concurrent fetches of the same url never
// leave a half-written file visible to readers. Duplicate concurrent
// fetches are permitted — the last writer to rename wins, and the
// CacheMap entry they both record is identical.
func (c *Cache) fetch(url, path string) error {
	resp, err := c.client.Get(url)
	if err != nil {
		return fmt.Errorf("imagecache: GET %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("imagecache: GET %q: status %s", url, resp.Status)
	}

	tmp := path + "." + uuid.NewString() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("imagecache: create temp file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("imagecache: write %q: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("imagecache: close %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("imagecache: rename %q -> %q: %w", tmp, path, err)
	}
	return nil
}
