// Package catalog loads the CSV-backed card metadata index used to
// rank local search results (spec §4.4.1) and to synthesize themed
// decks (spec §4.4.2).
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// Entry is one catalog card's metadata.
type Entry struct {
	Name        string   // display name, e.g. "Lightning Bolt"
	Slug        string   // Normalize(Name), used as the join key with plugin image maps
	Cost        int      // converted mana cost
	Colors      []string // lowercase color names, empty means colorless
	Tokens      []string // theme-pool membership tags
	SearchText  string   // free text matched for substring tokens (e.g. oracle text)
	SearchType  string   // type line, e.g. "creature", "instant"
	GoodQuality bool     // known modern card, not from a joke/un-set
}

// Catalog indexes a set of Entry records for ranking and deck
// synthesis.
type Catalog struct {
	entries []Entry
	bySlug  map[string]*Entry
	byColor map[string][]*Entry // "colorless" included
	byToken map[string][]*Entry
}

// New builds a Catalog from already-loaded entries.
func New(entries []Entry) *Catalog {
	c := &Catalog{
		entries: entries,
		bySlug:  make(map[string]*Entry, len(entries)),
		byColor: make(map[string][]*Entry),
		byToken: make(map[string][]*Entry),
	}
	for i := range c.entries {
		e := &c.entries[i]
		c.bySlug[e.Slug] = e
		if len(e.Colors) == 0 {
			c.byColor["colorless"] = append(c.byColor["colorless"], e)
		}
		for _, col := range e.Colors {
			c.byColor[col] = append(c.byColor[col], e)
		}
		for _, tok := range e.Tokens {
			c.byToken[tok] = append(c.byToken[tok], e)
		}
	}
	return c
}

// Load reads a CSV catalog from path. Expected columns:
// name,slug,cost,colors,tokens,searchtext,searchtype,goodquality
// (colors and tokens are "|"-separated; slug defaults to
// Normalize(name) when blank).
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var entries []Entry
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: read row: %w", err)
		}
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		name := get("name")
		if name == "" {
			continue
		}
		slug := get("slug")
		if slug == "" {
			slug = Normalize(name)
		}
		cost, _ := strconv.Atoi(get("cost"))
		entries = append(entries, Entry{
			Name:        name,
			Slug:        slug,
			Cost:        cost,
			Colors:      splitPipe(get("colors")),
			Tokens:      splitPipe(get("tokens")),
			SearchText:  strings.ToLower(get("searchtext")),
			SearchType:  strings.ToLower(get("searchtype")),
			GoodQuality: get("goodquality") == "1" || strings.EqualFold(get("goodquality"), "true"),
		})
	}
	return New(entries), nil
}

func splitPipe(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize ASCII-folds and lowercases s into a stable slug, the join
// key plugins use between their own directory-scanned image maps and
// this catalog.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		r = foldASCII(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// foldASCII maps common accented Latin letters to their plain ASCII
// equivalent; anything else passes through unchanged.
func foldASCII(r rune) rune {
	const accented = "àáâãäåèéêëìíîïòóôõöùúûüñç"
	const plain = "aaaaaaeeeeiiiiooooouuuunc"
	lr := unicode.ToLower(r)
	for i, a := range []rune(accented) {
		if a == lr {
			return rune(plain[i])
		}
	}
	return r
}

// Lookup returns the entry for slug, if any.
func (c *Catalog) Lookup(slug string) (Entry, bool) {
	e, ok := c.bySlug[slug]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns every catalog entry.
func (c *Catalog) Entries() []Entry { return c.entries }
