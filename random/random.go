// Package random produces short alphanumeric identifiers.
package random

import (
	crand "crypto/rand"
	"math/big"
	mrand "math/rand"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var charsetLen = big.NewInt(int64(len(charset)))

// String returns length random characters. It prefers crypto/rand and falls
// back to math/rand if the system source fails.
func String(length int) string {
	s, err := StringSecure(length)
	if err == nil {
		return s
	}

	b := make([]byte, length)
	for i := range b {
		b[i] = charset[mrand.Intn(len(charset))]
	}
	return string(b)
}

func StringSecure(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := crand.Int(crand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}
