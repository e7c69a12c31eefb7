package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long an issued token remains valid.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrTokenExpired is returned when a token's expiry is in the past.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken is returned when a token is malformed or its
	// signature does not match the configured secret.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the identity assertions carried by an issued token.
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Issue signs a token carrying the given identity, valid for ttl from now.
func Issue(userID, email string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Email:  email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Verify checks a token's signature and expiry against the secret and
// returns the embedded claims. It has no side effects.
func Verify(tokenString string, secret []byte) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
