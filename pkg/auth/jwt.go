package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidJWT = errors.New("invalid admin JWT token")
	ErrExpiredJWT = errors.New("admin JWT token expired")
)

// AdminClaims is the JWT payload for a short-lived admin session, the
// alternative accepted alongside the static ADMIN_TOKEN bearer (§4.11).
type AdminClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// GenerateAdminJWT issues a signed admin session token for subject (an
// operator identifier), valid for ttl.
func GenerateAdminJWT(subject string, secret []byte, ttl time.Duration) (string, error) {
	claims := &AdminClaims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateAdminJWT validates a presented admin session token against secret.
func ValidateAdminJWT(tokenString string, secret []byte) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredJWT
		}
		return nil, ErrInvalidJWT
	}
	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidJWT
}
