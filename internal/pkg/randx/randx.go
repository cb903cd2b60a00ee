/*
Package randx provides cryptographically secure identifiers for games, participants and
connections, plus validation of client-supplied identifiers.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// Base36Chars is the alphabet used for shareable game codes (0-9, a-z).
	Base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

	// GameCodeLength is the length of a minted game code.
	GameCodeLength = 8

	// MaxGameIDLength bounds client-chosen game identifiers, in bytes.
	MaxGameIDLength = 64

	// UserIDPrefix prefixes every server-minted participant identifier.
	UserIDPrefix = "user_"

	// MaxUserIDLength bounds client-supplied participant identifiers, in bytes.
	MaxUserIDLength = 128
)

var base36Len = big.NewInt(int64(len(Base36Chars)))

// GameCode generates a random lowercase base36 game code of GameCodeLength characters.
func GameCode() (string, error) {
	result := make([]byte, GameCodeLength)

	for i := range GameCodeLength {
		num, err := rand.Int(rand.Reader, base36Len)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for game code: %w", err)
		}
		result[i] = Base36Chars[num.Int64()]
	}

	return string(result), nil
}

// UserID mints a durable participant identifier.
func UserID() string {
	return UserIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ConnID mints an identifier for a single transport connection.
func ConnID() string {
	return uuid.NewString()
}

// IsValidGameID reports whether id is a usable game identifier: 1 to MaxGameIDLength
// bytes of valid UTF-8 with no control or whitespace-only content. Callers trim first.
func IsValidGameID(id string) bool {
	return isPrintableID(id, MaxGameIDLength)
}

// IsValidUserID reports whether a client-supplied participant identifier can be trusted
// as an opaque key.
func IsValidUserID(id string) bool {
	return isPrintableID(id, MaxUserIDLength)
}

func isPrintableID(id string, maxLen int) bool {
	if id == "" || len(id) > maxLen || !utf8.ValidString(id) {
		return false
	}

	if strings.TrimSpace(id) != id {
		return false
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}

	return true
}
