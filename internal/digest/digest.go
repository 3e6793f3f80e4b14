// Package digest derives the short identifiers used by every store.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// idLength is the number of hex characters kept from the full digest.
// Collisions are possible but acceptable at this system's scale.
const idLength = 16

// ShortID derives a deterministic id from its parts via a one-way digest,
// truncated to 16 hex characters.
func ShortID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "_")))
	return hex.EncodeToString(sum[:])[:idLength]
}

// Hex returns the full hex digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
