package plugins

import "github.com/tolelom/cardtable/crypto"

// deckSeed derives a deterministic PRNG seed from a deck-synthesis
// query term, so SampleDeck(term, n) always returns the same decks for
// the same term (spec §8 determinism).
func deckSeed(term string) int64 {
	return crypto.Seed64([]byte(term))
}
