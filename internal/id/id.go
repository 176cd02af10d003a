package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// JoinCodeLength is the length of a jam join code.
	JoinCodeLength = 6

	// joinCodeAlphabet leaves out characters that are easy to confuse when typed (0/O, 1/I/L).
	joinCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "user-V1StGXR8_Z5jdHi6B-myT").
//
// Host and user ids double as bearer identifiers on the real-time channel,
// so they use the full 21 character URL-safe alphabet.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// JoinCode creates a short, human-typable jam code such as "K7QX2M".
// Uniqueness is not guaranteed; callers retry on collision.
func JoinCode() (string, error) {
	code, err := gonanoid.Generate(joinCodeAlphabet, JoinCodeLength)
	if err != nil {
		return "", fmt.Errorf("generate join code: %w", err)
	}
	return code, nil
}

// IsJoinCode reports whether s has the shape of a join code.
func IsJoinCode(s string) bool {
	if len(s) != JoinCodeLength {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
