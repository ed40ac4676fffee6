package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AnonymousUserID identifies unauthenticated callers. The watchlist is
// shared, so anonymous access reads and writes the same data as any other
// caller; identity only scopes delivery channels and audit trails.
const AnonymousUserID = "anon"

// UserContext carries the authenticated caller through a request.
type UserContext struct {
	UserID string
	Email  string
}

// IsAnonymous reports whether the caller presented no valid identity.
func (u UserContext) IsAnonymous() bool {
	return u.UserID == AnonymousUserID
}

type contextKey struct{}

// ContextWithUser attaches a user context to ctx.
func ContextWithUser(ctx context.Context, user UserContext) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// GetUserFromContext extracts the user context. Requests that skipped the
// auth middleware resolve to the anonymous user.
func GetUserFromContext(ctx context.Context) UserContext {
	if user, ok := ctx.Value(contextKey{}).(UserContext); ok {
		return user
	}
	return UserContext{UserID: AnonymousUserID}
}

// JWTConfig configures token validation.
type JWTConfig struct {
	SecretKey string
	Issuer    string
}

// JWTValidator validates bearer tokens.
type JWTValidator struct {
	config JWTConfig
}

// NewJWTValidator creates a validator. An empty secret is rejected so a
// misconfigured deployment fails closed.
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	if config.SecretKey == "" {
		return nil, errors.New("jwt secret key is required")
	}
	return &JWTValidator{config: config}, nil
}

// claims is the token payload shape.
type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validate parses and verifies a token string and returns the caller it
// identifies.
func (v *JWTValidator) Validate(tokenString string) (UserContext, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(v.config.SecretKey), nil
	},
		jwt.WithIssuer(v.config.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return UserContext{}, fmt.Errorf("invalid token: %w", err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" {
		return UserContext{}, errors.New("token has no subject")
	}

	return UserContext{UserID: c.Subject, Email: c.Email}, nil
}
