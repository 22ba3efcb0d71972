// Package crypto provides the hashing primitives used to name cache
// entries and to seed deterministic randomness from a query term.
package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
// Used to derive image-cache filenames from a source URL.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw SHA-256 bytes of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Seed64 derives a 64-bit PRNG seed from data, so that the same term
// always produces the same sequence of synthesized decks.
func Seed64(data []byte) int64 {
	sum := HashBytes(data)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
