// Package jwt signs and verifies the admin bearer tokens. Tokens are HS256
// with the owner name as subject.
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const issuer = "mdx-core"

var ErrNoSecret = errors.New("jwt: secret is empty")

// Claims is the JWT payload.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwtlib.RegisteredClaims
}

// Signer holds the shared HMAC secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// Sign creates a token for subject valid for ttl.
func (s *Signer) Sign(subject, role string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates a token string and returns the claims.
func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwtlib.WithIssuer(issuer), jwtlib.WithTimeFunc(s.now), jwtlib.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
