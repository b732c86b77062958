package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/contacthub/contacthub/internal/store"
)

// LocalProvider is a Provider backed by the application's own user store.
// It owns account registration and credential verification; deployments that
// delegate identity to an external service replace it behind the Provider
// interface.
type LocalProvider struct {
	users  store.UserStore
	auth   *UserAuth
	tokens *TokenIssuer
}

// NewLocalProvider creates a provider over the given user store.
func NewLocalProvider(users store.UserStore, auth *UserAuth, tokens *TokenIssuer) *LocalProvider {
	return &LocalProvider{
		users:  users,
		auth:   auth,
		tokens: tokens,
	}
}

// Register creates a new account and returns its identity.
// Returns ErrUserExists if the email is already taken.
func (p *LocalProvider) Register(ctx context.Context, email, password, displayName string) (Identity, error) {
	email = NormalizeEmail(email)

	hash, err := p.auth.HashPassword(password)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	user := &store.User{
		UID:          uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    store.Now(),
	}
	if err := p.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return Identity{}, ErrUserExists
		}
		return Identity{}, fmt.Errorf("create user: %w", err)
	}

	return toIdentity(user), nil
}

// Login verifies credentials and mints a bearer token for the account.
func (p *LocalProvider) Login(ctx context.Context, email, password string) (Identity, string, error) {
	user, err := p.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Indistinguishable from a wrong password on purpose.
			return Identity{}, "", ErrInvalidPassword
		}
		return Identity{}, "", fmt.Errorf("lookup user: %w", err)
	}

	if err := p.auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return Identity{}, "", err
	}

	id := toIdentity(user)
	token, err := p.tokens.Issue(id)
	if err != nil {
		return Identity{}, "", fmt.Errorf("issue token: %w", err)
	}
	return id, token, nil
}

// VerifyToken implements Provider.
func (p *LocalProvider) VerifyToken(ctx context.Context, bearer string) (Identity, error) {
	return p.tokens.Verify(bearer)
}

// GetByEmail implements Provider.
func (p *LocalProvider) GetByEmail(ctx context.Context, email string) (Identity, error) {
	user, err := p.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	return toIdentity(user), nil
}

func toIdentity(user *store.User) Identity {
	return Identity{
		UID:         user.UID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
	}
}
