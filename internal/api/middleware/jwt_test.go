package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() JWTConfig {
	return JWTConfig{
		SigningKey: []byte("test-signing-key-1234567890123456"),
		Issuer:     "courier",
		ExpiresIn:  time.Hour,
	}
}

func authRequest(t *testing.T, signingKey []byte, authHeader string) (*httptest.ResponseRecorder, int64) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var gotUserID int64
	r := gin.New()
	r.Use(JWTAuth(signingKey))
	r.GET("/probe", func(c *gin.Context) {
		gotUserID = GetUserID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, gotUserID
}

func TestJWTAuth_ValidToken(t *testing.T) {
	cfg := testJWTConfig()
	token, expiresAt, err := GenerateToken(cfg, 42, "alice")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	w, userID := authRequest(t, cfg.SigningKey, "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(42), userID)
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	w, _ := authRequest(t, testJWTConfig().SigningKey, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestJWTAuth_MalformedHeader(t *testing.T) {
	w, _ := authRequest(t, testJWTConfig().SigningKey, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_WrongKey(t *testing.T) {
	cfg := testJWTConfig()
	token, _, err := GenerateToken(cfg, 42, "alice")
	require.NoError(t, err)

	w, _ := authRequest(t, []byte("other-key-9876543210987654321098"), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.ExpiresIn = -time.Minute
	token, _, err := GenerateToken(cfg, 42, "alice")
	require.NoError(t, err)

	w, _ := authRequest(t, cfg.SigningKey, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestJWTAuth_RejectsNoneSigningMethod(t *testing.T) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	w, _ := authRequest(t, testJWTConfig().SigningKey, "Bearer "+tokenString)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_RejectsZeroUserID(t *testing.T) {
	cfg := testJWTConfig()
	token, _, err := GenerateToken(cfg, 0, "nobody")
	require.NoError(t, err)

	w, _ := authRequest(t, cfg.SigningKey, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token claims")
}
