package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/sessionkit/identity-service/pkg/helpers"
)

const signedCookiePrefix = "signed_cookie:"

// CookieParser verifies every signed request cookie against the transport-level
// cookie secret and exposes the verified values in the Gin context under
// "signed_cookie:<name>". Cookies with a bad or missing signature are simply
// not exposed; the raw cookie jar is left untouched for plain cookies.
func CookieParser(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, ck := range c.Request.Cookies() {
			if value, ok := helpers.VerifyValue(secret, ck.Value); ok {
				c.Set(signedCookiePrefix+ck.Name, value)
			}
		}
		c.Next()
	}
}

// SignedCookie returns the verified value of a signed request cookie.
func SignedCookie(c *gin.Context, name string) (string, bool) {
	v, ok := c.Get(signedCookiePrefix + name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
