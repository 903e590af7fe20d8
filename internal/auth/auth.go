// Package auth guards the mutating admin endpoints with HS256 bearer tokens.
package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"threat-cache/internal/common/errors"
	"threat-cache/internal/common/logging"
)

const (
	// Issuer is stamped on every token this service generates.
	Issuer = "threat-cache"

	// DefaultTokenTTL is used by GenerateJWT when ttl is not positive.
	DefaultTokenTTL = 24 * time.Hour
)

// Claims are the JWT claims of an admin token.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Auth signs and verifies admin tokens. With an empty secret it is disabled
// and RequireJWT lets every request through.
type Auth struct {
	secret []byte
	logger logging.Logger
}

func New(secret string, logger logging.Logger) *Auth {
	return &Auth{
		secret: []byte(secret),
		logger: logging.OrGlobal(logger),
	}
}

// Enabled reports whether a signing secret is configured.
func (a *Auth) Enabled() bool {
	return len(a.secret) > 0
}

// GenerateJWT issues a token for userID.
func (a *Auth) GenerateJWT(userID, role string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.ConfigError("admin JWT secret is not configured")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign token", err)
	}
	return signed, nil
}

// ValidateJWT parses tokenString and returns its claims. Only HS256 tokens
// signed with the configured secret are accepted.
func (a *Auth) ValidateJWT(tokenString string) (*Claims, error) {
	if !a.Enabled() {
		return nil, errors.ConfigError("admin JWT secret is not configured")
	}
	if tokenString == "" {
		return nil, errors.AuthError("missing token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.AuthError("invalid token").WithContext("reason", err.Error())
	}
	if !token.Valid {
		return nil, errors.AuthError("invalid token")
	}
	return claims, nil
}

// RequireJWT rejects requests without a valid bearer token. The caller's id
// is forwarded in the X-User-ID header.
func (a *Auth) RequireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.ValidateJWT(bearerToken(r))
		if err != nil {
			a.logger.Warn("Rejected admin request",
				logging.Field{Key: "path", Value: r.URL.Path},
				logging.Err(err),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "Authentication required"}`))
			return
		}

		r.Header.Set("X-User-ID", claims.UserID)
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
