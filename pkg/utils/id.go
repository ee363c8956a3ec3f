package utils

import "github.com/google/uuid"

// GenerateID returns a new unique identifier string with a type prefix,
// e.g. "bid-6ba7b810-...".
func GenerateID(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
