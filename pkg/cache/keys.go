package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	maxKeyLen       = 230
	truncatedPrefix = 180
)

// Friendly makes an arbitrary logical key safe for the cache store: runes
// outside [A-Za-z0-9_-] become underscores, and keys longer than maxKeyLen
// are cut to a fixed prefix suffixed with the SHA-256 of the elided tail so
// distinct long keys stay distinct.
func Friendly(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) <= maxKeyLen {
		return s
	}
	sum := sha256.Sum256([]byte(s[truncatedPrefix:]))
	return s[:truncatedPrefix] + hex.EncodeToString(sum[:])
}
