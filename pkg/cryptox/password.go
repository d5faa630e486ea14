package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// GeneratePassword returns an alphanumeric password of exactly length
// characters. Users created in the IDM get one of these as a placeholder
// until they complete registration, so it is never shown to anyone.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("password length must be positive, got %d", length)
	}

	var b strings.Builder
	b.Grow(length)

	// Stripping non-alphanumerics loses roughly 1/32 of the alphabet, so keep
	// drawing until we have enough.
	for b.Len() < length {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		for _, c := range base64.StdEncoding.EncodeToString(buf) {
			if isAlphanumeric(c) {
				b.WriteRune(c)
				if b.Len() == length {
					break
				}
			}
		}
	}

	return b.String(), nil
}

func isAlphanumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
