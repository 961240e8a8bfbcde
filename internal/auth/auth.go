// server/internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrUnexpectedCaller = errors.New("token subject is not the invoker identity")
)

// InvokerClaims defines the payload of tokens minted for the go-live invoker identity.
type InvokerClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// InvokerTokens signs and verifies OIDC-style tokens for machine identities.
// Tokens are HS256 with a shared secret between the scheduler worker and the executor.
type InvokerTokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewInvokerTokens(secret, issuer string, ttl time.Duration) (*InvokerTokens, error) {
	if secret == "" {
		return nil, errors.New("invoker secret is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &InvokerTokens{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Sign mints a token for the given identity scoped to one audience.
func (t *InvokerTokens) Sign(email, audience string) (string, error) {
	now := t.now()
	claims := &InvokerClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   email,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign invoker token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry, and that the subject is the expected identity.
func (t *InvokerTokens) Verify(tokenString, audience, expectedEmail string) (*InvokerClaims, error) {
	claims := &InvokerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject != expectedEmail {
		return nil, ErrUnexpectedCaller
	}
	return claims, nil
}
