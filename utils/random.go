package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateTicketID returns a random hex identifier for a new ticket record.
// n is the number of random bytes, so the result is 2n characters long.
func GenerateTicketID(n int) (string, error) {
	byt := make([]byte, n)

	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	return strings.ToLower(hex.EncodeToString(byt)), nil
}
