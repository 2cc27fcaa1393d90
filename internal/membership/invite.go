package membership

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// InviteCodeLength is the number of characters in an invite code.
	InviteCodeLength = 6

	inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var alphabetSize = big.NewInt(int64(len(inviteAlphabet)))

// NewInviteCode draws a code uniformly from the 36-symbol alphabet.
func NewInviteCode() (string, error) {
	var b strings.Builder
	b.Grow(InviteCodeLength)
	for range InviteCodeLength {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("read random index: %w", err)
		}
		b.WriteByte(inviteAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeInviteCode is how user input is compared against stored codes.
func NormalizeInviteCode(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}
