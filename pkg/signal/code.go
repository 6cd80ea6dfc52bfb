package signal

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// CodeLength is the number of digits in a pairing code.
const CodeLength = 4

// GeneratePairCode creates a random 4-digit numeric pairing code. Codes are
// not globally unique; they scope a single active negotiation and collisions
// between unrelated sessions are accepted rather than enforced server-side.
func GeneratePairCode() string {
	digits := make([]byte, CodeLength)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits)
}

// NormalizePairCode trims surrounding whitespace from a user-entered code.
func NormalizePairCode(code string) string {
	return strings.TrimSpace(code)
}

// ValidatePairCode reports whether a code is exactly four digits.
func ValidatePairCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TopicForCode derives the signaling topic name for a pairing code.
func TopicForCode(code string) string {
	return "pair-" + code
}
