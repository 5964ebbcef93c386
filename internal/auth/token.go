// Package auth verifies the bearer tokens issued by the identity provider.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleCaja  Role = "caja"
	// RoleNone is an anonymous caller (public ordering form).
	RoleNone Role = ""
)

// IsStaff reports whether the role may operate the cash register.
func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleCaja }

type Claims struct {
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

var signingMethod = jwt.SigningMethodHS256

type Verifier struct {
	Secret []byte
	Issuer string
}

func (v Verifier) Parse(token string) (*Claims, error) {
	if len(v.Secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{signingMethod.Alg()})}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
		}
		return v.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !claims.Role.IsStaff() {
		return nil, fmt.Errorf("invalid role %q", claims.Role)
	}
	return claims, nil
}

// Sign mints a token for tests and local tooling; production tokens come from
// the identity provider.
func (v Verifier) Sign(subject string, role Role, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(v.Secret)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

type ctxKey struct{}

type Identity struct {
	Subject string
	Role    Role
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller identity; anonymous callers get the zero value.
func FromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}
