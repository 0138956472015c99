package auth_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UninstallAll/AIDAscraper/internal/auth"
)

const secret = "test-secret-key-32-chars-minimum"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	mgr := auth.NewTokenManager(secret, time.Hour)

	token, err := mgr.GenerateToken("alice", "tenant-a", "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Sub)
	assert.Equal(t, "tenant-a", claims.TenantID)
	assert.Equal(t, "admin", claims.Role)
}

func TestTokenManager_ValidateToken_Failures(t *testing.T) {
	mgr := auth.NewTokenManager(secret, time.Hour)

	wrongSecret, err := auth.NewTokenManager("another-secret", time.Hour).GenerateToken("alice", "tenant-a", "")
	require.NoError(t, err)

	expired, err := auth.NewTokenManager(secret, -time.Hour).GenerateToken("alice", "tenant-a", "")
	require.NoError(t, err)

	noTenant, err := mgr.GenerateToken("alice", "", "")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{Sub: "alice", TenantID: "tenant-a"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not.a.token"},
		{"wrong secret", wrongSecret},
		{"expired", expired},
		{"missing tenant", noTenant},
		{"unsigned", unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.ValidateToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func newRouter(middleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware...)
	r.GET("/whoami", func(c *gin.Context) {
		session, ok := auth.GetSession(c)
		if !ok {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, session)
	})
	return r
}

func TestStaticSession(t *testing.T) {
	r := newRouter(auth.StaticSession("default"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tenant_id":"default"`)
}

func TestJWTMiddleware(t *testing.T) {
	mgr := auth.NewTokenManager(secret, time.Hour)
	token, err := mgr.GenerateToken("alice", "tenant-a", "editor")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + token, http.StatusOK, `"tenant_id":"tenant-a"`},
		{"missing header", "", http.StatusUnauthorized, "missing authorization header"},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, "invalid authorization header format"},
		{"bad token", "Bearer garbage", http.StatusUnauthorized, "invalid token"},
	}

	r := newRouter(auth.JWT(mgr))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestExecutorToken(t *testing.T) {
	r := newRouter(auth.ExecutorToken("s3cret"))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(auth.ExecutorTokenHeader, "s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"unauthorized"`)
}

func TestExecutorToken_EmptyTokenIsOpen(t *testing.T) {
	r := newRouter(auth.ExecutorToken(""))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}
