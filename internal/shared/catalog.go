package shared

import (
	"fmt"
	"strings"
)

const maxCatalogIDLength = 40

var catalogURIPrefixes = []string{"spotify:artist:", "spotify:track:"}

// IsCatalogID reports whether id has the shape of an external catalog identifier: a short, purely alphanumeric token.
//
// Persistence surrogate keys (UUIDs, composite keys) contain separators and never pass.
func IsCatalogID(id string) bool {
	if id == "" || len(id) > maxCatalogIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// NormalizeCatalogID strips a catalog URI prefix and validates the remainder with [IsCatalogID].
func NormalizeCatalogID(id string) (string, error) {
	id = strings.TrimSpace(id)
	for _, prefix := range catalogURIPrefixes {
		id = strings.TrimPrefix(id, prefix)
	}
	if !IsCatalogID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCatalogID, id)
	}
	return id, nil
}
