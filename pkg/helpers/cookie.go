package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieManager sets and clears cookies under a fixed security policy and
// signs every value it writes with the transport-level cookie secret.
// Signed values are encoded as "value.signature" so tampering with either
// half invalidates the cookie.
type CookieManager struct {
	Secret   string
	Domain   string
	Secure   bool
	HTTPOnly bool
}

func NewCookieManager(secret, domain string, secure, httpOnly bool) *CookieManager {
	return &CookieManager{Secret: secret, Domain: domain, Secure: secure, HTTPOnly: httpOnly}
}

// SignValue signs value with an HMAC-SHA256 keyed by secret.
func SignValue(secret, value string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return value + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyValue checks a signed cookie value and returns the raw value.
// The second result is false when the signature is missing or does not match.
func VerifyValue(secret, signed string) (string, bool) {
	idx := strings.LastIndexByte(signed, '.')
	if idx < 0 {
		return "", false
	}
	value, sig := signed[:idx], signed[idx+1:]

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", false
	}
	return value, true
}

// Set writes a signed cookie with the manager's security attributes.
func (m *CookieManager) Set(c *gin.Context, name, value string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, SignValue(m.Secret, value), int(maxAge.Seconds()), "/", m.Domain, m.Secure, m.HTTPOnly)
}

// Get reads a signed cookie and verifies its signature.
func (m *CookieManager) Get(c *gin.Context, name string) (string, bool) {
	raw, err := c.Cookie(name)
	if err != nil || raw == "" {
		return "", false
	}
	return VerifyValue(m.Secret, raw)
}

// Clear expires the named cookie.
func (m *CookieManager) Clear(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", m.Domain, m.Secure, m.HTTPOnly)
}
