package search

import (
	"errors"
	"testing"

	"github.com/tolelom/cardtable/imagecache"
	"github.com/tolelom/cardtable/internal/testutil"
	"github.com/tolelom/cardtable/namespace"
)

type fakePlugin struct {
	fetchCalls int
	fetchErr   error
	cards      []Card
}

func (f *fakePlugin) Fetch(term string, exact bool, limit int) ([]Card, Meta, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, Meta{}, f.fetchErr
	}
	return f.cards, Meta{}, nil
}
func (f *fakePlugin) GetBackURL() string                             { return "back.jpg" }
func (f *fakePlugin) Sample() (Card, error)                          { return f.cards[0], nil }
func (f *fakePlugin) SampleDeck(term string, n int) ([]Deck, error)  { return nil, nil }
func (f *fakePlugin) Complete(term string) []string                  { return nil }

func newTestQueryCache(t *testing.T, plugin Plugin) *QueryCache {
	t.Helper()
	root := namespace.NewRoot(testutil.NewMemDB())
	qcNS, err := root.Namespace("QueryCache", 0)
	if err != nil {
		t.Fatalf("Namespace: %v", err)
	}
	cacheMapNS, err := root.Namespace("CacheMap", 0)
	if err != nil {
		t.Fatalf("Namespace: %v", err)
	}
	imgs, err := imagecache.New(t.TempDir(), "http://localhost", "/cache/", cacheMapNS)
	if err != nil {
		t.Fatalf("imagecache.New: %v", err)
	}
	reg := NewRegistry()
	reg.Register("poker", plugin)
	return NewQueryCache(reg, imgs, qcNS)
}

func TestFindCachesSecondCallDoesNotRefetch(t *testing.T) {
	plugin := &fakePlugin{cards: []Card{{Name: "Ace", ImgURL: "/local/ace.jpg"}}}
	qc := newTestQueryCache(t, plugin)

	cards1, _, err := qc.Find("poker", "ace", true, 0)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	cards2, _, err := qc.Find("poker", "ace", true, 0)
	if err != nil {
		t.Fatalf("Find (second): %v", err)
	}
	if plugin.fetchCalls != 1 {
		t.Fatalf("plugin.Fetch called %d times, want 1", plugin.fetchCalls)
	}
	if len(cards1) != 1 || len(cards2) != 1 || cards1[0].Name != cards2[0].Name {
		t.Fatalf("results differ between calls: %v vs %v", cards1, cards2)
	}
}

func TestFindDoesNotCacheFailure(t *testing.T) {
	plugin := &fakePlugin{fetchErr: errors.New("network down")}
	qc := newTestQueryCache(t, plugin)

	if _, _, err := qc.Find("poker", "ace", true, 0); err == nil {
		t.Fatalf("Find: want error, got nil")
	}
	plugin.fetchErr = nil
	plugin.cards = []Card{{Name: "Ace", ImgURL: "/local/ace.jpg"}}
	if _, _, err := qc.Find("poker", "ace", true, 0); err != nil {
		t.Fatalf("Find (retry after fixed upstream): %v", err)
	}
	if plugin.fetchCalls != 2 {
		t.Fatalf("plugin.Fetch called %d times, want 2 (failure must not be cached)", plugin.fetchCalls)
	}
}

func TestFindUnknownSourceFails(t *testing.T) {
	qc := newTestQueryCache(t, &fakePlugin{})
	if _, _, err := qc.Find("nonexistent", "ace", true, 0); err == nil {
		t.Fatalf("Find(unknown source): want error, got nil")
	}
}
