package recitals

import (
	"crypto/rand"
	"fmt"
)

// sessionIDAlphabet is the 64-symbol set used for session identifiers.
// URL-safe, sorts cleanly, and one random byte masks to exactly one symbol.
const sessionIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

const sessionIDLength = 21

// NewSessionID generates a collision-resistant session identifier.
// Uniqueness is not guaranteed; CreateSession retries on the rare collision.
func NewSessionID() (string, error) {
	buf := make([]byte, sessionIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	for i, b := range buf {
		buf[i] = sessionIDAlphabet[int(b)&63]
	}
	return string(buf), nil
}
