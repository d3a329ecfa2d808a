package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveAdmin(secret, authHeader string) (*httptest.ResponseRecorder, string) {
	var operator string
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reminders", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator, _ = OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, operator
}

func TestAdminJWTMissingSecret(t *testing.T) {
	rec, _ := serveAdmin("", "Bearer "+signedToken(t, "secret", jwt.SigningMethodHS256, time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTMissingHeader(t *testing.T) {
	rec, _ := serveAdmin("secret", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTWrongSecret(t *testing.T) {
	rec, _ := serveAdmin("secret", "Bearer "+signedToken(t, "wrong", jwt.SigningMethodHS256, time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTExpired(t *testing.T) {
	rec, _ := serveAdmin("secret", "Bearer "+signedToken(t, "secret", jwt.SigningMethodHS256, -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTRequiresExpiry(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "front-desk"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	rec, _ := serveAdmin("secret", "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTRejectsOtherAlgorithms(t *testing.T) {
	rec, _ := serveAdmin("secret", "Bearer "+signedToken(t, "secret", jwt.SigningMethodHS512, time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTValidToken(t *testing.T) {
	rec, operator := serveAdmin("secret", "Bearer "+signedToken(t, "secret", jwt.SigningMethodHS256, time.Minute))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "front-desk", operator)
}

func signedToken(t *testing.T, secret string, method jwt.SigningMethod, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "front-desk",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
