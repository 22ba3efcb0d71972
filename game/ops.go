package game

import (
	"fmt"

	"github.com/tolelom/cardtable/search"
)

// Finder is the subset of search.QueryCache that AddCard needs to
// resolve a card name to art. Declared narrowly here so the game
// package can be tested with a fake instead of a full QueryCache.
type Finder interface {
	Find(source, term string, exact bool, limit int) ([]search.Card, search.Meta, error)
}

// AddCard implements spec §4.6's add_card: resolve name via
// Find(sourceid, name, exact=true), mint a new card from the first
// result's image, and append it to the board stack at loc.
func (s *State) AddCard(loader *AssetLoader, finder Finder, loc int, name string) (int, error) {
	cards, _, err := finder.Find(s.SourceID, name, true, 1)
	if err != nil {
		return 0, fmt.Errorf("game: resolve card %q: %w", name, err)
	}
	if len(cards) == 0 {
		return 0, fmt.Errorf("game: no asset found for %q", name)
	}

	id, err := loader.NewCard(s, cards[0].ImgURL)
	if err != nil {
		return 0, err
	}
	s.Titles[id] = cards[0].Name
	s.Board[loc] = append(s.Board[loc], id)
	s.Index[id] = BoardLocation(loc)
	return id, nil
}
