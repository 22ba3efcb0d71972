package search

import (
	"fmt"

	"github.com/tolelom/cardtable/imagecache"
	"github.com/tolelom/cardtable/namespace"
	"github.com/tolelom/cardtable/protoerr"
)

// result is the value stored under a QueryCache key.
type result struct {
	Cards []Card `json:"cards"`
	Meta  Meta   `json:"meta"`
}

// QueryCache memoizes (source, term, exact, limit) -> (cards, meta), as
// spec §4.3 describes, and dispatches cache misses to the Registry.
type QueryCache struct {
	registry *Registry
	images   *imagecache.Cache
	ns       *namespace.Namespace
}

// NewQueryCache builds a QueryCache backed by the QueryCache namespace.
func NewQueryCache(registry *Registry, images *imagecache.Cache, ns *namespace.Namespace) *QueryCache {
	return &QueryCache{registry: registry, images: images, ns: ns}
}

func cacheKey(source, term string, exact bool, limit int) string {
	return fmt.Sprintf("%s\x00%s\x00%t\x00%d", source, term, exact, limit)
}

// Find implements spec §4.3's lookup pipeline: cache lookup, plugin
// fetch on miss (never caching a failure so the next call retries),
// then rewriting every result's image url through CachedIfPresent so
// clients see a local path when the image has already been cached.
func (q *QueryCache) Find(source, term string, exact bool, limit int) ([]Card, Meta, error) {
	if !q.registry.IsValid(source) {
		return nil, Meta{}, protoerr.Protocol("unknown datasource %q", source)
	}

	key := cacheKey(source, term, exact, limit)
	var cached result
	if err := q.ns.Get(key, &cached); err == nil {
		return q.rewriteImages(cached.Cards), cached.Meta, nil
	}

	plugin, err := q.registry.requirePlugin(source)
	if err != nil {
		return nil, Meta{}, err
	}
	cards, meta, err := plugin.Fetch(term, exact, limit)
	if err != nil {
		// Per spec §9 open question: do NOT cache failures.
		return nil, Meta{}, protoerr.Upstream(err)
	}

	if err := q.ns.Put(key, result{Cards: cards, Meta: meta}); err != nil {
		return nil, Meta{}, protoerr.Fatal(err)
	}
	return q.rewriteImages(cards), meta, nil
}

func (q *QueryCache) rewriteImages(cards []Card) []Card {
	out := make([]Card, len(cards))
	for i, c := range cards {
		c.ImgURL = q.images.CachedIfPresent(c.ImgURL)
		out[i] = c
	}
	return out
}

// AllSources forwards to the registry.
func (q *QueryCache) AllSources() []string { return q.registry.AllSources() }

// IsValid forwards to the registry.
func (q *QueryCache) IsValid(source string) bool { return q.registry.IsValid(source) }

// BackURL forwards to the named plugin.
func (q *QueryCache) BackURL(source string) (string, error) {
	p, err := q.registry.requirePlugin(source)
	if err != nil {
		return "", err
	}
	return p.GetBackURL(), nil
}

// Sample forwards to the named plugin.
func (q *QueryCache) Sample(source string) (Card, error) {
	p, err := q.registry.requirePlugin(source)
	if err != nil {
		return Card{}, err
	}
	c, err := p.Sample()
	if err != nil {
		return Card{}, protoerr.Upstream(err)
	}
	return c, nil
}

// SampleDeck forwards to the named plugin.
func (q *QueryCache) SampleDeck(source, term string, numDecks int) ([]Deck, error) {
	p, err := q.registry.requirePlugin(source)
	if err != nil {
		return nil, err
	}
	decks, err := p.SampleDeck(term, numDecks)
	if err != nil {
		return nil, protoerr.Upstream(err)
	}
	return decks, nil
}
