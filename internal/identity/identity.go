// Package identity provides user records, authentication, and token handling.
package identity

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid token")
)

// Identity is an authenticated user record. The connection graph and the
// message relay consume it as-is; they never mutate it.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"photoURL,omitempty"`
}

// Provider resolves bearer tokens and email addresses to identities.
// The core treats it as an external collaborator: any backend that can
// answer these two questions can be wired in.
type Provider interface {
	// VerifyToken validates a bearer token and returns the identity it
	// represents. Returns ErrInvalidToken for malformed, forged, or
	// expired tokens.
	VerifyToken(ctx context.Context, bearer string) (Identity, error)

	// GetByEmail resolves an email address to a known identity.
	// Returns ErrUserNotFound if no account matches.
	GetByEmail(ctx context.Context, email string) (Identity, error)
}

// NormalizeEmail lowercases and trims an email for use as a store key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
