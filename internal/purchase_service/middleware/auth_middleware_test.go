package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-access-secret"

func signedToken(t *testing.T, secret string, expiry time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "081234561234",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func runAuthed(t *testing.T, authHeader string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	called := false
	var subject any
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		subject = r.Context().Value(AuthenticatedSubjectContextKey)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/purchases", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	AuthMiddleware(testSecret, logger)(next).ServeHTTP(rr, req)

	if called {
		assert.Equal(t, "081234561234", subject)
	}
	return rr, called
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	rr, called := runAuthed(t, "Bearer "+signedToken(t, testSecret, time.Hour))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, called)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	rr, called := runAuthed(t, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}

func TestAuthMiddleware_WrongScheme(t *testing.T) {
	rr, called := runAuthed(t, "ApiKey something")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	rr, called := runAuthed(t, "Bearer "+signedToken(t, testSecret, -time.Hour))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	rr, called := runAuthed(t, "Bearer "+signedToken(t, "other-secret", time.Hour))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}
