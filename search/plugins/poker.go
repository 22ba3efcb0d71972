// Package plugins implements the three search.Plugin sources spec
// §4.4 names: a fixed 52-card poker deck, a locally scanned card image
// directory ranked against a catalog, and the remote magiccards.info
// HTML endpoint.
package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tolelom/cardtable/search"
)

// PokerCardsPlugin serves a fixed directory of 52 (+ joker) card
// images, named "<rank><suit>.png" (e.g. "Ah.png", "Tc.png"), filtered
// by substring or exact match on the card's display name.
type PokerCardsPlugin struct {
	backURL string
	cards   []search.Card
	byName  map[string]search.Card
}

// NewPokerCardsPlugin scans dir for card images and builds the fixed
// deck. backURL is the card-back art path returned by GetBackURL.
func NewPokerCardsPlugin(dir, backURL string) (*PokerCardsPlugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("plugins: poker: read dir %q: %w", dir, err)
	}
	p := &PokerCardsPlugin{backURL: backURL, byName: make(map[string]search.Card)}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(strings.ToLower(ent.Name()), ".png") {
			continue
		}
		base := strings.TrimSuffix(ent.Name(), filepath.Ext(ent.Name()))
		name := pokerDisplayName(base)
		card := search.Card{Name: name, ImgURL: filepath.Join(dir, ent.Name())}
		p.cards = append(p.cards, card)
		p.byName[strings.ToLower(name)] = card
	}
	sort.Slice(p.cards, func(i, j int) bool { return p.cards[i].Name < p.cards[j].Name })
	return p, nil
}

var rankNames = map[byte]string{
	'2': "2", '3': "3", '4': "4", '5': "5", '6': "6", '7': "7", '8': "8", '9': "9",
	'T': "10", 'J': "Jack", 'Q': "Queen", 'K': "King", 'A': "Ace",
}

var suitNames = map[byte]string{'s': "Spades", 'h': "Hearts", 'd': "Diamonds", 'c': "Clubs"}

// pokerDisplayName turns a filename stem like "Ah" into "Ace of
// Hearts"; anything not matching the two-character rank+suit shape
// (e.g. "Joker") passes through unchanged.
func pokerDisplayName(stem string) string {
	if len(stem) == 2 {
		rank, ok1 := rankNames[stem[0]]
		suit, ok2 := suitNames[stem[1]]
		if ok1 && ok2 {
			return fmt.Sprintf("%s of %s", rank, suit)
		}
	}
	return stem
}

// Fetch implements search.Plugin.
func (p *PokerCardsPlugin) Fetch(term string, exact bool, limit int) ([]search.Card, search.Meta, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return p.limited(p.cards, limit), search.Meta{}, nil
	}
	if exact {
		if c, ok := p.byName[needle]; ok {
			return []search.Card{c}, search.Meta{}, nil
		}
		return nil, search.Meta{}, nil
	}
	var out []search.Card
	for _, c := range p.cards {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
		}
	}
	return p.limited(out, limit), search.Meta{}, nil
}

func (p *PokerCardsPlugin) limited(cards []search.Card, limit int) []search.Card {
	if limit > 0 && len(cards) > limit {
		return cards[:limit]
	}
	return cards
}

// GetBackURL implements search.Plugin.
func (p *PokerCardsPlugin) GetBackURL() string { return p.backURL }

// Sample implements search.Plugin.
func (p *PokerCardsPlugin) Sample() (search.Card, error) {
	if len(p.cards) == 0 {
		return search.Card{}, fmt.Errorf("plugins: poker: no cards loaded")
	}
	return p.cards[0], nil
}

// SampleDeck implements search.Plugin. A poker deck has no concept of
// a themed sub-deck: term is ignored, and each of the numDecks decks
// returned lists every loaded card once.
func (p *PokerCardsPlugin) SampleDeck(term string, numDecks int) ([]search.Deck, error) {
	lines := make([]string, len(p.cards))
	for i, c := range p.cards {
		lines[i] = fmt.Sprintf("1 %s", c.Name)
	}
	decks := make([]search.Deck, numDecks)
	for i := range decks {
		decks[i] = search.Deck{Name: "Poker deck", Lines: lines}
	}
	return decks, nil
}

// Complete implements search.Plugin.
func (p *PokerCardsPlugin) Complete(term string) []string {
	needle := strings.ToLower(term)
	var out []string
	for _, c := range p.cards {
		if strings.HasPrefix(strings.ToLower(c.Name), needle) {
			out = append(out, c.Name)
		}
	}
	return out
}
