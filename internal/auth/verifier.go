// Package auth verifies identity tokens presented on user:join. Verification
// is optional: when the relay has no secret configured, the announced
// identity is trusted as-is and this package is bypassed.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUserMismatch = errors.New("token subject does not match announced user")
)

// Claims are the identity claims the relay understands.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Verifier checks HMAC-signed identity tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates token and checks that it was issued for
// userID. Both the `user_id` claim and the registered subject are accepted
// as the token's user binding.
func (v *Verifier) Verify(token, userID string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	tokenUser := claims.UserID
	if tokenUser == "" {
		tokenUser = claims.Subject
	}
	if tokenUser == "" || tokenUser != userID {
		return nil, ErrUserMismatch
	}
	return claims, nil
}
