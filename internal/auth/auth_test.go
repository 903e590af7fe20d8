package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"threat-cache/internal/auth"
	"threat-cache/internal/common/errors"
	"threat-cache/internal/common/logging"
)

const testSecret = "test-secret-key-that-is-long-enough"

func TestGenerateJWT(t *testing.T) {
	a := auth.New(testSecret, logging.NewNopLogger())

	token, err := a.GenerateJWT("ops-1", "admin", time.Hour)
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(token, &auth.Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(*auth.Claims)
	require.True(t, ok)
	assert.Equal(t, "ops-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, auth.Issuer, claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestGenerateJWT_DefaultTTL(t *testing.T) {
	a := auth.New(testSecret, logging.NewNopLogger())

	token, err := a.GenerateJWT("ops-1", "", 0)
	require.NoError(t, err)

	claims, err := a.ValidateJWT(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultTokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestGenerateJWT_Disabled(t *testing.T) {
	a := auth.New("", logging.NewNopLogger())

	assert.False(t, a.Enabled())
	_, err := a.GenerateJWT("ops-1", "", time.Hour)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestValidateJWT(t *testing.T) {
	a := auth.New(testSecret, logging.NewNopLogger())

	validToken, _ := a.GenerateJWT("ops-1", "admin", time.Hour)
	wrongSecretToken, _ := auth.New("different-secret-key-that-is-wrong", nil).GenerateJWT("ops-1", "", time.Hour)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID: "ops-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    auth.Issuer,
		},
	})
	expiredToken, _ := expired.SignedString([]byte(testSecret))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID: "ops-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
	})
	foreignToken, _ := foreign.SignedString([]byte(testSecret))

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID:           "ops-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: auth.Issuer},
	})
	noExpiryToken, _ := noExpiry.SignedString([]byte(testSecret))

	// alg "none"
	noneToken := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJ1c2VyX2lkIjoib3BzLTEiLCJpc3MiOiJ0aHJlYXQtY2FjaGUiLCJleHAiOjQxMDI0NDQ4MDB9."

	tests := []struct {
		name          string
		token         string
		expectedError bool
	}{
		{name: "valid token", token: validToken},
		{name: "invalid token", token: "invalid.token.here", expectedError: true},
		{name: "wrong secret", token: wrongSecretToken, expectedError: true},
		{name: "expired token", token: expiredToken, expectedError: true},
		{name: "foreign issuer", token: foreignToken, expectedError: true},
		{name: "no expiry", token: noExpiryToken, expectedError: true},
		{name: "none algorithm", token: noneToken, expectedError: true},
		{name: "empty token", token: "", expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := a.ValidateJWT(tt.token)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, claims)
				assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "ops-1", claims.UserID)
			}
		})
	}
}

func TestRequireJWT(t *testing.T) {
	a := auth.New(testSecret, logging.NewNopLogger())
	validToken, _ := a.GenerateJWT("ops-1", "admin", time.Hour)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ops-1", r.Header.Get("X-User-ID"))
		w.WriteHeader(http.StatusNoContent)
	})
	protected := a.RequireJWT(next)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"valid bearer token", "Bearer " + validToken, http.StatusNoContent},
		{"lower case scheme", "bearer " + validToken, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + validToken, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/cache/keys/x", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error": "Authentication required"}`, rec.Body.String())
			}
		})
	}
}

func TestRequireJWT_DisabledPassesThrough(t *testing.T) {
	a := auth.New("", logging.NewNopLogger())

	called := false
	protected := a.RequireJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cache/cleanup", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}
