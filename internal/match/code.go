package match

import (
	"crypto/rand"
	"math/big"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// generateJoinCode returns a random 6 character code over [A-Z0-9]
func generateJoinCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, codeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
