package domain

import (
	"crypto/rand"
	"math/big"
)

// CodeLength is the length of a session code.
const CodeLength = 12

const codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewCode returns a pseudo-random alphanumeric session code used to
// correlate an anonymous browser with its server-side bookmark record.
func NewCode() string {
	buf := make([]byte, CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the platform RNG is broken;
			// fall back to a fixed character rather than crash a widget.
			buf[i] = codeAlphabet[0]
			continue
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf)
}
