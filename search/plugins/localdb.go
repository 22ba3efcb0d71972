package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tolelom/cardtable/catalog"
	"github.com/tolelom/cardtable/search"
)

// LocalDBPlugin serves a directory of per-card images ranked against a
// Catalog of metadata, per spec §4.4.1: at construction it scans dir
// once, building slug -> path/name maps; Fetch(exact=false) ranks the
// full catalog and returns only the entries that also have a local
// image.
type LocalDBPlugin struct {
	backURL string
	catalog *catalog.Catalog

	pathBySlug     map[string]string
	nameBySlug     map[string]string
	filenameBySlug map[string]string
}

// NewLocalDBPlugin scans dir for per-card images (named after the
// card, e.g. "Lightning Bolt.jpg") and joins them against cat by slug.
func NewLocalDBPlugin(dir string, cat *catalog.Catalog, backURL string) (*LocalDBPlugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("plugins: localdb: read dir %q: %w", dir, err)
	}
	p := &LocalDBPlugin{
		backURL:        backURL,
		catalog:        cat,
		pathBySlug:     make(map[string]string),
		nameBySlug:     make(map[string]string),
		filenameBySlug: make(map[string]string),
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		ext := filepath.Ext(ent.Name())
		name := strings.TrimSuffix(ent.Name(), ext)
		slug := catalog.Normalize(name)
		p.pathBySlug[slug] = filepath.Join(dir, ent.Name())
		p.nameBySlug[slug] = name
		p.filenameBySlug[slug] = ent.Name()
	}
	return p, nil
}

// Fetch implements search.Plugin. exact matches a single slug exactly
// against the directory scan; otherwise it delegates ranking to the
// Catalog and filters down to entries with a local image.
func (p *LocalDBPlugin) Fetch(term string, exact bool, limit int) ([]search.Card, search.Meta, error) {
	if exact {
		slug := catalog.Normalize(term)
		path, ok := p.pathBySlug[slug]
		if !ok {
			return nil, search.Meta{}, nil
		}
		return []search.Card{{Name: p.nameBySlug[slug], ImgURL: path}}, search.Meta{}, nil
	}

	ranked := p.catalog.Search(term, 0)
	var out []search.Card
	for _, e := range ranked {
		path, ok := p.pathBySlug[e.Slug]
		if !ok {
			continue
		}
		out = append(out, search.Card{Name: p.nameBySlug[e.Slug], ImgURL: path})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, search.Meta{}, nil
}

// GetBackURL implements search.Plugin.
func (p *LocalDBPlugin) GetBackURL() string { return p.backURL }

// Sample implements search.Plugin.
func (p *LocalDBPlugin) Sample() (search.Card, error) {
	for slug, path := range p.pathBySlug {
		return search.Card{Name: p.nameBySlug[slug], ImgURL: path}, nil
	}
	return search.Card{}, fmt.Errorf("plugins: localdb: no cards available")
}

// SampleDeck implements search.Plugin, delegating theme synthesis to
// the Catalog and seeding its PRNG with deckSeed(term), derived here
// from the term alone, so the same term always yields the same decks.
func (p *LocalDBPlugin) SampleDeck(term string, numDecks int) ([]search.Deck, error) {
	seed := deckSeed(term)
	return p.catalog.SampleDeck(term, numDecks, seed)
}

// Complete implements search.Plugin.
func (p *LocalDBPlugin) Complete(term string) []string {
	needle := catalog.Normalize(term)
	var out []string
	for slug, name := range p.nameBySlug {
		if strings.HasPrefix(slug, needle) {
			out = append(out, name)
		}
	}
	return out
}
