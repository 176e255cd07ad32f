package core

import (
	"crypto/rand"
	"math/big"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const roomPasswordLength = 6

// generatePassword produces a random room-claim password drawn from
// passwordAlphabet. Uses crypto/rand rather than a non-cryptographic
// source, since the result is a standing room secret.
func generatePassword(length int) (string, error) {
	alphabetLen := big.NewInt(int64(len(passwordAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", apperr.Wrap(apperr.KindInternalBug, "generate room password", err)
		}
		b[i] = passwordAlphabet[n.Int64()]
	}
	return string(b), nil
}
