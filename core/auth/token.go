package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// NewToken returns n random bytes base64-RawURL encoded. Session and
// challenge tokens are opaque; nothing is derivable from them.
func NewToken(n int) (string, error) {
	if n <= 0 {
		n = 32
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
