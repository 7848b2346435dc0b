package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// CookieSigner appends an HMAC-SHA256 tag to cookie values so a session id
// cannot be forged or swapped by the client.
type CookieSigner struct {
	secret []byte
}

func NewCookieSigner(secret string) *CookieSigner {
	return &CookieSigner{secret: []byte(secret)}
}

// Sign returns "<value>.<tag>".
func (s *CookieSigner) Sign(value string) string {
	return value + "." + s.tag(value)
}

// Unsign returns the value carried by signed, or ErrInvalidSignature. The tag
// comparison is constant time.
func (s *CookieSigner) Unsign(signed string) (string, error) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 || i == len(signed)-1 {
		return "", ErrInvalidSignature
	}
	value, tag := signed[:i], signed[i+1:]
	if !hmac.Equal([]byte(tag), []byte(s.tag(value))) {
		return "", ErrInvalidSignature
	}
	return value, nil
}

func (s *CookieSigner) tag(value string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
