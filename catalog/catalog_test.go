package catalog

import (
	"strings"
	"testing"
)

const sampleCSV = `name,slug,cost,colors,tokens,searchtext,searchtype,goodquality
Lightning Bolt,lightningbolt,1,red,burn,deal 3 damage to any target,instant,1
Counterspell,counterspell,2,blue,control,counter target spell,instant,1
Plains,plains,0,,land,,land,1
Goblin Guide,goblinguide,1,red,burn|aggro,haste,creature,1
Serra Angel,serraangel,5,white,angel,flying vigilance,creature,1
`

func buildTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return c
}

func TestLoadIndexesBySlug(t *testing.T) {
	c := buildTestCatalog(t)
	e, ok := c.Lookup("lightningbolt")
	if !ok {
		t.Fatalf("Lookup(lightningbolt): not found")
	}
	if e.Cost != 1 || len(e.Colors) != 1 || e.Colors[0] != "red" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestSearchCostPredicate(t *testing.T) {
	c := buildTestCatalog(t)
	results := c.Search("cmc=1", 0)
	if len(results) != 2 {
		t.Fatalf("Search(cmc=1): got %d results, want 2: %+v", len(results), results)
	}
	for _, e := range results {
		if e.Cost != 1 {
			t.Fatalf("Search(cmc=1) returned non-matching cost: %+v", e)
		}
	}
}

func TestSearchExactSlugRanksFirst(t *testing.T) {
	c := buildTestCatalog(t)
	results := c.Search("counterspell", 0)
	if len(results) == 0 || results[0].Slug != "counterspell" {
		t.Fatalf("Search(counterspell): exact match not ranked first: %+v", results)
	}
}

func TestSearchMonoColorFilter(t *testing.T) {
	c := buildTestCatalog(t)
	results := c.Search("mono red", 0)
	for _, e := range results {
		if len(e.Colors) != 1 || e.Colors[0] != "red" {
			t.Fatalf("Search(mono red) returned non-mono-red entry: %+v", e)
		}
	}
	if len(results) == 0 {
		t.Fatalf("Search(mono red): want at least one result")
	}
}

func TestSampleDeckIsDeterministicForSameSeed(t *testing.T) {
	c := buildTestCatalog(t)
	d1, err := c.SampleDeck("burn deck", 1, 42)
	if err != nil {
		t.Fatalf("SampleDeck: %v", err)
	}
	d2, err := c.SampleDeck("burn deck", 1, 42)
	if err != nil {
		t.Fatalf("SampleDeck (second): %v", err)
	}
	if len(d1) != 1 || len(d2) != 1 {
		t.Fatalf("want 1 deck each, got %d and %d", len(d1), len(d2))
	}
	if strings.Join(d1[0].Lines, "|") != strings.Join(d2[0].Lines, "|") {
		t.Fatalf("decks differ for the same seed:\n%v\nvs\n%v", d1[0].Lines, d2[0].Lines)
	}
}

func TestSampleDeckFallsBackToATopThemeForUnknownTerm(t *testing.T) {
	c := buildTestCatalog(t)
	decks, err := c.SampleDeck("zzz nonexistent theme", 1, 1)
	if err != nil {
		t.Fatalf("SampleDeck: %v", err)
	}
	if len(decks) != 1 || len(decks[0].Lines) == 0 {
		t.Fatalf("SampleDeck: want a non-empty fallback deck, got %+v", decks)
	}
}

func TestVoteColorsFavorsTheThemeTokenPoolColor(t *testing.T) {
	c := buildTestCatalog(t)
	// "burn" only resolves to red cards (Lightning Bolt, Goblin Guide),
	// so the weighted vote must pick red, not an unrelated color.
	c1, c2 := c.voteColors([]string{"burn"})
	if c1 != "red" || c2 != "red" {
		t.Fatalf("voteColors([burn]) = (%q, %q), want a mono-red result", c1, c2)
	}
}

func TestVoteColorsReturnsEmptyForAColorlessPool(t *testing.T) {
	c := buildTestCatalog(t)
	// "land" only resolves to Plains, which carries no colors to vote
	// with, so the vote must come back empty rather than fabricating a
	// color.
	c1, c2 := c.voteColors([]string{"land"})
	if c1 != "" || c2 != "" {
		t.Fatalf("voteColors([land]) = (%q, %q), want (\"\", \"\")", c1, c2)
	}
}

func TestSampleDeckIncludesABasicLand(t *testing.T) {
	c := buildTestCatalog(t)
	decks, err := c.SampleDeck("burn", 1, 7)
	if err != nil {
		t.Fatalf("SampleDeck: %v", err)
	}
	joined := strings.Join(decks[0].Lines, "\n")
	hasLand := false
	for _, land := range basicLandNames {
		if strings.Contains(joined, land) {
			hasLand = true
			break
		}
	}
	if !hasLand {
		t.Fatalf("SampleDeck: deck has no basic lands: %v", decks[0].Lines)
	}
}
