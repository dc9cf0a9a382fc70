package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyBearerToken holds the caller's vendor access token
const ContextKeyBearerToken = "bearerToken"

// ContextKeyAction holds the proxy action being served, for logging
const ContextKeyAction = "action"

// BearerToken extracts "Authorization: Bearer <token>" into the context. It
// never rejects a request: whether a token is required depends on the action.
func BearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := ParseBearer(c.GetHeader("Authorization")); token != "" {
			c.Set(ContextKeyBearerToken, token)
		}
		c.Next()
	}
}

// ParseBearer returns the token of a bearer Authorization header value, or ""
func ParseBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetBearerToken returns the token stored by BearerToken
func GetBearerToken(c *gin.Context) string {
	return c.GetString(ContextKeyBearerToken)
}
