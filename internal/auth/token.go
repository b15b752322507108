// Package auth issues and parses the signed bearer tokens handed out to
// admin sessions.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "lexshelf"

type Claims struct {
	Role string
	JTI  string
	Iat  int64
	Exp  int64
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs claims as an HS256 JWT.
func IssueToken(secret []byte, claims Claims) (string, error) {
	registered := jwt.RegisteredClaims{
		Issuer:    issuer,
		ID:        claims.JTI,
		ExpiresAt: jwt.NewNumericDate(time.Unix(claims.Exp, 0)),
	}
	if claims.Iat > 0 {
		registered.IssuedAt = jwt.NewNumericDate(time.Unix(claims.Iat, 0))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{Role: claims.Role, RegisteredClaims: registered})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature, issuer and expiry of token.
func ParseToken(secret []byte, token string) (Claims, error) {
	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.Role == "" || parsed.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	claims := Claims{Role: parsed.Role, JTI: parsed.ID, Exp: parsed.ExpiresAt.Unix()}
	if parsed.IssuedAt != nil {
		claims.Iat = parsed.IssuedAt.Unix()
	}
	return claims, nil
}

// HashToken is the key under which a session id is stored.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
