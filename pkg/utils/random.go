package utils

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// Charset is lowercase so generated codes live in the same namespace as
// normalized custom aliases.
const Charset = "abcdefghijklmnopqrstuvwxyz0123456789"

var charsetLen = big.NewInt(int64(len(Charset)))

// GenerateShortCode generates a random string of fixed length
func GenerateShortCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		b[i] = Charset[n.Int64()]
	}
	return string(b), nil
}

// GenerateAPIKey generates a UUID string to be used as an API keys
func GenerateAPIKey() string {
	return uuid.NewString()
}
