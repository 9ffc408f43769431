// Package auth issues and verifies the application bearer tokens handed to
// the mobile client after a successful OAuth login.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an app token stays valid after login.
const TokenTTL = 7 * 24 * time.Hour

type Claims struct {
	DID string `json:"did"`
	jwt.RegisteredClaims
}

func GenerateToken(secret, did string, ttl time.Duration) (string, error) {
	c := Claims{
		DID: did,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString([]byte(secret))
}

func ParseToken(secret, tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.DID == "" {
		return nil, errors.New("token missing did claim")
	}
	return claims, nil
}

// IsExpired reports whether err from ParseToken was caused by expiry, so the
// HTTP layer can distinguish 401 from 403.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
