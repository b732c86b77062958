package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contacthub/contacthub/internal/identity"
	"github.com/contacthub/contacthub/internal/store"
	"github.com/contacthub/contacthub/internal/store/memory"
)

func newProvider(t *testing.T) (*identity.LocalProvider, store.Driver) {
	t.Helper()
	db, err := memory.NewDriver(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("failed to create memory driver: %v", err)
	}
	tokens := identity.NewTokenIssuer([]byte("test-secret"), time.Hour)
	return identity.NewLocalProvider(db, identity.NewUserAuthFast(), tokens), db
}

func TestUserAuth_HashAndVerify(t *testing.T) {
	auth := identity.NewUserAuthFast()

	password := "secret123"
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == password {
		t.Error("hash should not equal password")
	}

	// Correct password
	if err := auth.VerifyPassword(hash, password); err != nil {
		t.Errorf("VerifyPassword failed for correct password: %v", err)
	}

	// Wrong password
	err = auth.VerifyPassword(hash, "wrongpassword")
	if !errors.Is(err, identity.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := identity.NewTokenIssuer([]byte("test-secret"), time.Hour)

	id := identity.Identity{
		UID:         "uid-1",
		Email:       "alice@example.com",
		DisplayName: "Alice",
		AvatarURL:   "https://example.com/a.png",
	}
	token, err := issuer.Issue(id)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got != id {
		t.Errorf("identity round-trip mismatch: %+v != %+v", got, id)
	}
}

func TestTokenIssuer_RejectsForgedAndExpired(t *testing.T) {
	issuer := identity.NewTokenIssuer([]byte("test-secret"), time.Hour)

	if _, err := issuer.Verify("not-a-token"); !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for garbage, got %v", err)
	}

	// Token signed with a different secret
	other := identity.NewTokenIssuer([]byte("other-secret"), time.Hour)
	forged, _ := other.Issue(identity.Identity{UID: "uid-1", Email: "a@example.com"})
	if _, err := issuer.Verify(forged); !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	// Expired token
	expired := identity.NewTokenIssuer([]byte("test-secret"), -time.Minute)
	stale, _ := expired.Issue(identity.Identity{UID: "uid-1", Email: "a@example.com"})
	if _, err := issuer.Verify(stale); !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestLocalProvider_RegisterLoginVerify(t *testing.T) {
	ctx := context.Background()
	provider, _ := newProvider(t)

	id, err := provider.Register(ctx, "Alice@Example.com ", "correct horse", "Alice")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if id.Email != "alice@example.com" {
		t.Errorf("email should be normalized, got %q", id.Email)
	}

	// Duplicate registration
	if _, err := provider.Register(ctx, "alice@example.com", "x", "Alice Again"); !errors.Is(err, identity.ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}

	// Login round-trips through a verifiable token
	got, token, err := provider.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got.UID != id.UID {
		t.Errorf("expected uid %q, got %q", id.UID, got.UID)
	}

	verified, err := provider.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if verified.UID != id.UID || verified.Email != id.Email {
		t.Errorf("verified identity mismatch: %+v", verified)
	}

	// Wrong password and unknown user both fail the same way
	if _, _, err := provider.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, identity.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	if _, _, err := provider.Login(ctx, "nobody@example.com", "wrong"); !errors.Is(err, identity.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword for unknown user, got %v", err)
	}
}

func TestLocalProvider_GetByEmail(t *testing.T) {
	ctx := context.Background()
	provider, _ := newProvider(t)

	if _, err := provider.GetByEmail(ctx, "ghost@example.com"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	id, err := provider.Register(ctx, "bob@example.com", "pw", "Bob")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := provider.GetByEmail(ctx, " BOB@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.UID != id.UID {
		t.Errorf("expected uid %q, got %q", id.UID, got.UID)
	}
}
