package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/auth"
)

func setupRouter(t *testing.T) (*gin.Engine, *auth.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens, err := auth.NewTokenService("middleware-secret", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/private", RequireToken(tokens), func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.Username)
	})
	return r, tokens
}

func TestRequireTokenFromQuery(t *testing.T) {
	r, tokens := setupRouter(t)
	token, err := tokens.Issue(1, "alice")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private?token="+token, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestRequireTokenFromBearerHeader(t *testing.T) {
	r, tokens := setupRouter(t)
	token, err := tokens.Issue(2, "bob")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", rec.Body.String())
}

func TestRequireTokenRejects(t *testing.T) {
	r, _ := setupRouter(t)

	for name, req := range map[string]*http.Request{
		"missing":    httptest.NewRequest(http.MethodGet, "/private", nil),
		"garbage":    httptest.NewRequest(http.MethodGet, "/private?token=abc", nil),
		"basic auth": func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			req.Header.Set("Authorization", "Basic YWxpY2U6cHc=")
			return req
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"Authentication error"}`, rec.Body.String())
		})
	}
}

func TestClaimsFromContextMissing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := ClaimsFromContext(c)
	assert.False(t, ok)
}
