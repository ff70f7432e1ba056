package shortener

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// alphabet is the full set of characters a short code may contain.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultShortLength is the length of auto-generated short codes.
const DefaultShortLength = 6

var alphabetLen = big.NewInt(int64(len(alphabet)))

// GenerateShort draws a random code of n characters from the alphabet.
// Codes are public and must not be guessable, so the draw uses crypto/rand —
// a predictable source would let one user enumerate another's links.
func GenerateShort(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("draw random index: %w", err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
