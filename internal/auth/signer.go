package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Signer creates and checks temporary signed URLs. The signature covers the
// request path and the expiry, not the host.
type Signer struct {
	key     []byte
	baseURL string
}

func NewSigner(key, baseURL string) *Signer {
	return &Signer{key: []byte(key), baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Sign returns the absolute URL for path, valid until expires.
func (s *Signer) Sign(path string, expires time.Time) string {
	exp := strconv.FormatInt(expires.Unix(), 10)
	return s.baseURL + path + "?expires=" + exp + "&signature=" + s.mac(path, exp)
}

// Check reports whether signature is valid for path and has not expired.
func (s *Signer) Check(path, expires, signature string, now time.Time) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || signature == "" {
		return false
	}
	if !hmac.Equal([]byte(s.mac(path, expires)), []byte(signature)) {
		return false
	}
	return now.Unix() < exp
}

func (s *Signer) mac(path, expires string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(path + "?expires=" + expires))
	return hex.EncodeToString(h.Sum(nil))
}

// EmailHash is the hex sha1 of an email, the {hash} segment of a
// verification link.
func EmailHash(email string) string {
	sum := sha1.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}

// MatchEmailHash compares a link hash with the user's email in constant time.
func MatchEmailHash(hash, email string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(EmailHash(email))) == 1
}
