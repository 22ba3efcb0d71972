package catalog

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/tolelom/cardtable/search"
)

// Deck is the synthesized deck type SampleDeck returns, shared with
// the search plugins that serve it.
type Deck = search.Deck

// basicLandNames maps a color to the basic land that produces it.
var basicLandNames = map[string]string{
	"white": "Plains",
	"blue":  "Island",
	"black": "Swamp",
	"red":   "Mountain",
	"green": "Forest",
}

var basicLandColors = []string{"white", "blue", "black", "red", "green"}

// themeStopWords are too generic to anchor a themed deck around and
// are dropped from a query term before theme selection (spec §4.4.2).
var themeStopWords = map[string]bool{
	"deck": true, "cards": true, "card": true, "the": true, "a": true, "an": true,
	"of": true, "and": true, "for": true, "with": true, "sample": true, "theme": true,
}

// costBucket is one of the seven fixed ranges §4.4.2's complement()
// samples non-land spells from.
type costBucket struct {
	count        int
	min, max     int
}

var complementBuckets = []costBucket{
	{4, 1, 2},
	{3, 1, 3},
	{3, 2, 4},
	{3, 3, 4},
	{3, 5, 7},
	{1, 6, 1 << 30},
	{1, 6, 1 << 30},
}

// SampleDeck synthesizes numDecks decks, seeded from seed so the same
// term always produces the same decks (spec §8 determinism).
func (c *Catalog) SampleDeck(term string, numDecks int, seed int64) ([]Deck, error) {
	rng := rand.New(rand.NewSource(seed))
	tokens := survivingTokens(term)

	decks := make([]Deck, numDecks)
	for i := 0; i < numDecks; i++ {
		theme := c.pickTheme(tokens, i == 0, rng)
		decks[i] = c.makeThemedDeck(theme, rng)
	}
	return decks, nil
}

func survivingTokens(term string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(term)) {
		tok = strings.Trim(tok, ".,!?\"'")
		if tok != "" && !themeStopWords[tok] {
			out = append(out, tok)
		}
	}
	return out
}

// pickTheme implements spec §4.4.2's theme-selection algorithm: deck 0
// uses the surviving tokens directly when they are all known theme
// keys; otherwise (and for every later deck) it builds a 2-3 word
// theme anchored on a random surviving token, falling back to a random
// top-level theme key when nothing matches.
func (c *Catalog) pickTheme(tokens []string, isFirstDeck bool, rng *rand.Rand) []string {
	keys := c.themeKeys()
	if len(keys) == 0 {
		return nil
	}
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}

	if isFirstDeck && len(tokens) >= 2 {
		allKnown := true
		for _, t := range tokens {
			if !keySet[t] {
				allKnown = false
				break
			}
		}
		if allKnown {
			return tokens
		}
	}

	theme := []string{keys[rng.Intn(len(keys))]}
	if len(tokens) > 0 {
		anchor := tokens[rng.Intn(len(tokens))]
		if keySet[anchor] {
			theme = append(theme, anchor)
		} else {
			// Randomized scan for a theme key containing the anchor token.
			order := rng.Perm(len(keys))
			for _, idx := range order {
				if strings.Contains(keys[idx], anchor) {
					theme = append(theme, keys[idx])
					break
				}
			}
		}
	}
	if len(theme) == 1 {
		theme = append(theme, keys[rng.Intn(len(keys))])
	}
	if rng.Float64() < 0.5 {
		theme = append(theme, keys[rng.Intn(len(keys))])
	}
	return theme
}

func (c *Catalog) themeKeys() []string {
	keys := make([]string, 0, len(c.byToken))
	for k := range c.byToken {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// makeThemedDeck implements spec §4.4.2's makeThemedDeck: it weighs
// each color by summing, over every card in every theme token's pool,
// `1 / (numColorsOfCard + poolSize)` for each of that card's colors.
// The two top-voted colors are used unless the runner-up's vote ratio
// to the leader is below 0.5, in which case both land slots go to the
// single leading color (a mono-color deck); with no votes at all
// (e.g. a theme whose tokens have empty or colorless-only pools) the
// two land colors are chosen uniformly at random instead.
func (c *Catalog) makeThemedDeck(theme []string, rng *rand.Rand) Deck {
	c1, c2 := c.voteColors(theme)
	if c1 == "" {
		c1 = basicLandColors[rng.Intn(len(basicLandColors))]
		c2 = basicLandColors[rng.Intn(len(basicLandColors))]
	}
	return c.makeDeck(theme, c1, c2, rng)
}

// voteColors runs the weighted color vote over theme's token pools and
// returns the chosen land colors, or ("", "") if no card in any pool
// carried a color to vote with.
func (c *Catalog) voteColors(theme []string) (string, string) {
	votes := make(map[string]float64, len(basicLandColors))
	for _, word := range theme {
		pool := c.byToken[word]
		poolSize := len(pool)
		for _, card := range pool {
			numColors := len(card.Colors)
			if numColors == 0 {
				continue
			}
			share := 1 / float64(numColors+poolSize)
			for _, color := range card.Colors {
				votes[color] += share
			}
		}
	}

	ranked := make([]string, 0, len(basicLandColors))
	for _, color := range basicLandColors {
		if votes[color] > 0 {
			ranked = append(ranked, color)
		}
	}
	if len(ranked) == 0 {
		return "", ""
	}
	sort.Slice(ranked, func(i, j int) bool { return votes[ranked[i]] > votes[ranked[j]] })

	top1 := ranked[0]
	if len(ranked) == 1 {
		return top1, top1
	}
	top2 := ranked[1]
	if votes[top2]/votes[top1] >= 0.5 {
		return top1, top2
	}
	return top1, top1
}

// makeDeck builds one deck around theme with the given land colors,
// plus a complement of themed/colored spells for each.
func (c *Catalog) makeDeck(theme []string, c1, c2 string, rng *rand.Rand) Deck {
	var lines []string
	if c1 == c2 {
		lines = append(lines, fmt.Sprintf("24 %s", basicLandNames[c1]))
	} else {
		lines = append(lines, fmt.Sprintf("12 %s", basicLandNames[c1]))
		lines = append(lines, fmt.Sprintf("12 %s", basicLandNames[c2]))
	}

	taken := make(map[string]bool)
	allowed := []string{c1, c2}
	for _, color := range []string{c1, c2} {
		lines = append(lines, c.complement(color, allowed, theme, taken, rng)...)
	}
	return Deck{Name: strings.Join(theme, " "), Lines: lines}
}

// complement samples spells for one color across the seven fixed cost
// buckets spec §4.4.2 defines.
func (c *Catalog) complement(color string, allowed []string, theme []string, taken map[string]bool, rng *rand.Rand) []string {
	var lines []string
	for _, b := range complementBuckets {
		for i := 0; i < b.count; i++ {
			name := c.chooseSpell(color, allowed, b.min, b.max, taken, theme, rng)
			if name != "" {
				lines = append(lines, fmt.Sprintf("1 %s", name))
			}
		}
	}
	return lines
}

func colorsSubsetOf(cardColors, allowed []string) bool {
	for _, cc := range cardColors {
		ok := false
		for _, a := range allowed {
			if cc == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func acceptableSpell(e *Entry, allowed []string, minCost, maxCost int, taken map[string]bool) bool {
	if e.SearchType == "land" || strings.Contains(e.SearchType, "land") {
		return false
	}
	if !e.GoodQuality || taken[e.Name] {
		return false
	}
	if e.Cost < minCost || e.Cost > maxCost {
		return false
	}
	return colorsSubsetOf(e.Colors, allowed)
}

// chooseSpell implements spec §4.4.2's chooseSpell: a themed attempt
// first (when a theme is supplied), then a color-pool attempt, each
// bounded by a retry budget; per the resolved Open Question #2, the
// last candidate examined is returned even if it never satisfied the
// acceptance test, matching the original Kansas implementation rather
// than failing the deck build outright.
func (c *Catalog) chooseSpell(color string, allowed []string, minCost, maxCost int, taken map[string]bool, theme []string, rng *rand.Rand) string {
	var candidate *Entry

	if len(theme) > 0 {
		for try := 0; try < 10; try++ {
			word := theme[rng.Intn(len(theme))]
			pool := c.byToken[word]
			if len(pool) == 0 {
				continue
			}
			candidate = pool[rng.Intn(len(pool))]
			if acceptableSpell(candidate, allowed, minCost, maxCost, taken) {
				taken[candidate.Name] = true
				return candidate.Name
			}
		}
	}

	for try := 0; try < 30; try++ {
		var pool []*Entry
		if rng.Float64() < 0.1 {
			pool = c.byColor["colorless"]
		} else {
			pool = c.byColor[color]
		}
		if len(pool) == 0 {
			continue
		}
		candidate = pool[rng.Intn(len(pool))]
		if acceptableSpell(candidate, allowed, minCost, maxCost, taken) {
			taken[candidate.Name] = true
			return candidate.Name
		}
	}

	if candidate == nil {
		return ""
	}
	taken[candidate.Name] = true
	return candidate.Name
}
