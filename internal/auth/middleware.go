package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	sessionKey = "session"

	// ExecutorTokenHeader carries the shared secret on executor callbacks.
	ExecutorTokenHeader = "X-Executor-Token"
)

// Session identifies the caller of a request.
type Session struct {
	Subject  string `json:"subject"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
}

// StaticSession attaches the same session to every request (auth disabled).
func StaticSession(tenantID string) gin.HandlerFunc {
	session := &Session{Subject: "anonymous", TenantID: tenantID}
	return func(c *gin.Context) {
		c.Set(sessionKey, session)
		c.Next()
	}
}

// JWT requires a valid bearer token and attaches the session it describes.
func JWT(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(sessionKey, &Session{Subject: claims.Sub, TenantID: claims.TenantID, Role: claims.Role})
		c.Next()
	}
}

// ExecutorToken guards executor callbacks with a shared secret. An empty
// token leaves the routes open.
func ExecutorToken(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := []byte(c.GetHeader(ExecutorTokenHeader))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			abortUnauthorized(c, "invalid executor token")
			return
		}
		c.Next()
	}
}

// GetSession returns the session attached by StaticSession or JWT.
func GetSession(c *gin.Context) (*Session, bool) {
	value, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}
	s, ok := value.(*Session)
	return s, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"kind": "unauthorized", "message": message},
	})
}
