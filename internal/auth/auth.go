// Package auth verifies bearer tokens and maps them to chat identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/Veraticus/the-spice-must-talk/internal/common"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/service"
)

// Verification errors.
var (
	ErrMissingSecret = errors.New("jwt secret is required")
	ErrInvalidToken  = errors.New("invalid token")
	ErrUnknownUser   = errors.New("token subject is not a known user")
)

// Claims are the token fields the chat service reads.
type Claims struct {
	Username string `json:"username,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// subject returns the user ID carried by the token.
func (c *Claims) subject() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithUserDirectory requires verified subjects to exist in users.
func WithUserDirectory(users service.UserDirectory) Option {
	return func(v *Verifier) {
		v.users = users
	}
}

// WithClock overrides the time source used when issuing tokens.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// Verifier checks HS256 tokens.
type Verifier struct {
	users  service.UserDirectory
	now    func() time.Time
	secret []byte
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	v := &Verifier{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify parses token and returns the signed-in identity it names.
func (v *Verifier) Verify(ctx context.Context, token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return model.Identity{}, ErrInvalidToken
	}

	id := claims.subject()
	if id == "" {
		return model.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	identity := model.Identity{
		ID:       id,
		Username: claims.Username,
		Kind:     model.IdentityAuthenticated,
	}

	if v.users != nil {
		user, err := v.users.GetUser(ctx, id)
		if errors.Is(err, common.ErrNotFound) {
			return model.Identity{}, fmt.Errorf("%w: %s", ErrUnknownUser, id)
		}
		if err != nil {
			return model.Identity{}, fmt.Errorf("failed to look up user: %w", err)
		}
		if identity.Username == "" {
			identity.Username = user.Username
		}
	}

	return identity, nil
}

// Resolve returns the identity for token, or a fresh guest when the token is
// missing or fails verification.
func (v *Verifier) Resolve(ctx context.Context, token string) (model.Identity, error) {
	if token == "" {
		return NewGuest(), nil
	}
	identity, err := v.Verify(ctx, token)
	if err != nil {
		return NewGuest(), err
	}
	return identity, nil
}

// Issue signs a token for a user. Used by local tooling and tests.
func (v *Verifier) Issue(userID, username string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// NewGuest returns an anonymous identity with a per-connection ID.
func NewGuest() model.Identity {
	return model.Identity{
		ID:   "guest-" + uuid.NewString(),
		Kind: model.IdentityGuest,
	}
}
