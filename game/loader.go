package game

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"

	"github.com/tolelom/cardtable/imagecache"
)

// AssetLoader is the split-out service spec §9 calls for: a Game's
// data record stays a plain struct, and everything that knows how to
// resolve and download art lives here instead (spec §4.5,
// "CachingLoader"). One AssetLoader is shared by every game that
// belongs to the same sourceid.
type AssetLoader struct {
	images        *imagecache.Cache
	localPrefixes []string
	smallWidth    int
	smallHeight   int
}

// NewAssetLoader builds a loader backed by images. localPrefixes are
// url prefixes ("/", "http:", a known local serving address) that
// should never be rewritten against a resource prefix.
func NewAssetLoader(images *imagecache.Cache, localPrefixes []string, smallWidth, smallHeight int) *AssetLoader {
	return &AssetLoader{images: images, localPrefixes: localPrefixes, smallWidth: smallWidth, smallHeight: smallHeight}
}

// ResolveResourceURL implements spec §4.5's resource URL resolution:
// urls that are already absolute or local pass through unchanged;
// everything else is resolved against prefix.
func (l *AssetLoader) ResolveResourceURL(frontURL, prefix string) string {
	if strings.HasPrefix(frontURL, "http:") || strings.HasPrefix(frontURL, "https:") {
		return frontURL
	}
	for _, p := range l.localPrefixes {
		if p != "" && strings.HasPrefix(frontURL, p) {
			return frontURL
		}
	}
	return prefix + frontURL
}

// NewCard implements spec §4.5's new_card: mint a new id, cache the
// large image locally, derive and cache a resized small image, and
// initialize the card's entries in s's attribute maps. Orientation
// starts at -1 (face down, per spec's stated default).
func (l *AssetLoader) NewCard(s *State, frontURL string) (int, error) {
	resolved := l.ResolveResourceURL(frontURL, s.ResourcePrefix)
	localPath, err := l.images.Cached(resolved)
	if err != nil {
		return 0, fmt.Errorf("game: cache large image %q: %w", resolved, err)
	}

	s.HighestID++
	id := s.HighestID

	smallPath, err := l.smallImagePath(localPath)
	if err != nil {
		return 0, fmt.Errorf("game: resize %q: %w", localPath, err)
	}

	s.URLs[id] = localPath
	s.URLsSmall[id] = smallPath
	s.Orientations[id] = -1
	return id, nil
}

// smallImagePath derives a "@WxH" sibling of largePath, resizing with
// nfnt/resize if it does not already exist. A decode failure (e.g. the
// source is not a JPEG the stdlib image/jpeg codec handles) degrades
// to returning the large path unchanged, matching spec §4.5's "MAY be
// a no-op returning the large path" allowance.
func (l *AssetLoader) smallImagePath(largePath string) (string, error) {
	ext := filepath.Ext(largePath)
	smallPath := fmt.Sprintf("%s@%dx%d%s", strings.TrimSuffix(largePath, ext), l.smallWidth, l.smallHeight, ext)

	if _, err := os.Stat(smallPath); err == nil {
		return smallPath, nil
	}

	src, err := os.Open(largePath)
	if err != nil {
		return largePath, nil
	}
	defer src.Close()

	img, err := jpeg.Decode(src)
	if err != nil {
		return largePath, nil
	}
	resized := resize.Resize(uint(l.smallWidth), uint(l.smallHeight), img, resize.Lanczos3)

	dst, err := os.Create(smallPath)
	if err != nil {
		return largePath, nil
	}
	defer dst.Close()
	if err := jpeg.Encode(dst, resized, nil); err != nil {
		return largePath, nil
	}
	return smallPath, nil
}
