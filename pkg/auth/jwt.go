// Package auth verifies bearer tokens and carries the caller identity in the
// request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMissingToken     = errors.New("missing authentication token")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// Claims are the token claims the catalog reads. Cognito puts group
// membership in cognito:groups, other issuers in groups.
type Claims struct {
	CognitoGroups []string `json:"cognito:groups,omitempty"`
	Groups        []string `json:"groups,omitempty"`
	Email         string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AllGroups returns the union of both group claims.
func (c *Claims) AllGroups() []string {
	groups := append([]string{}, c.CognitoGroups...)
	for _, g := range c.Groups {
		if !slices.Contains(groups, g) {
			groups = append(groups, g)
		}
	}
	return groups
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey string
	Issuer    string
	Audience  string
}

// JWTValidator validates HS256 tokens. The issuer can be swapped at runtime.
type JWTValidator struct {
	mu       sync.RWMutex
	secret   []byte
	issuer   string
	audience string
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	if config.SecretKey == "" {
		return nil, errors.New("secret key required for HS256")
	}
	return &JWTValidator{
		secret:   []byte(config.SecretKey),
		issuer:   config.Issuer,
		audience: config.Audience,
	}, nil
}

// SetIssuer replaces the expected issuer.
func (v *JWTValidator) SetIssuer(issuer string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.issuer = issuer
}

// Issuer returns the expected issuer.
func (v *JWTValidator) Issuer() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.issuer
}

// ValidateToken validates a JWT token and returns the claims
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer := v.Issuer(); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	return claims, nil
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Groups []string
}

// InGroup reports whether the caller belongs to group.
func (i Identity) InGroup(group string) bool {
	return group != "" && slices.Contains(i.Groups, group)
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity stores the caller in ctx.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the caller, if the request was authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
