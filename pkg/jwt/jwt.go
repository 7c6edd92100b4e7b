// Package jwt issues and validates the single service-to-service
// bearer token the API accepts (spec.md has no end-user auth model;
// the façade only needs to confirm a caller holds the shared secret).
// Adapted from the teacher's user/org access+refresh token manager,
// trimmed to one token type with no claims beyond standard registered
// ones.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the service token's claim set.
type Claims struct {
	jwt.RegisteredClaims
}

// Manager issues and validates service tokens signed with a shared
// secret (config.APIConfig.ServiceToken).
type Manager struct {
	secret []byte
	expiry time.Duration
	issuer string
}

// NewManager creates a service-token manager.
func NewManager(secret string, expiry time.Duration) *Manager {
	return &Manager{secret: []byte(secret), expiry: expiry, issuer: "budgetloop-optimizer"}
}

// GenerateToken issues a new service token.
func (m *Manager) GenerateToken() (string, time.Time, error) {
	expiry := time.Now().Add(m.expiry)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   "service",
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign service token: %w", err)
	}
	return signed, expiry, nil
}

// ValidateToken validates a service token and returns its claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrTokenMalformed
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotValidYet
		}
		return nil, fmt.Errorf("parse service token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ExtractTokenFromHeader extracts the bearer token from an
// Authorization header.
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingToken
	}
	const bearerPrefix = "Bearer "
	if len(authHeader) < len(bearerPrefix) || authHeader[:len(bearerPrefix)] != bearerPrefix {
		return "", ErrInvalidAuthHeader
	}
	token := authHeader[len(bearerPrefix):]
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenMalformed    = errors.New("token is malformed")
	ErrTokenNotValidYet  = errors.New("token is not valid yet")
	ErrTokenInvalid      = errors.New("token is invalid")
	ErrMissingToken      = errors.New("missing authentication token")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
)

// IsTokenExpired checks if the error is a token expired error.
func IsTokenExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

// IsTokenInvalid checks if the error indicates an invalid token.
func IsTokenInvalid(err error) bool {
	return errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenMalformed)
}
