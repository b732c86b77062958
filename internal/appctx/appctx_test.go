package appctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/contacthub/contacthub/internal/identity"
)

func TestWithLogger_And_LoggerFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := WithLogger(context.Background(), logger)

	got, ok := LoggerFromContext(ctx)
	if !ok {
		t.Fatal("Expected LoggerFromContext to return true")
	}
	if got != logger {
		t.Error("Expected same logger instance")
	}
}

func TestGetLogger_FallsBackToDefault(t *testing.T) {
	if GetLogger(context.Background()) == nil {
		t.Error("Expected a non-nil fallback logger")
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	id := identity.Identity{UID: "u1", Email: "a@example.com", DisplayName: "A"}
	ctx := WithIdentity(context.Background(), id)

	got, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatal("Expected IdentityFromContext to return true")
	}
	if got != id {
		t.Errorf("Expected %+v, got %+v", id, got)
	}
}

func TestIdentityFromContext_Missing(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("Expected false for context without identity")
	}
	ctx := WithIdentity(context.Background(), identity.Identity{})
	if _, ok := IdentityFromContext(ctx); ok {
		t.Error("Expected false for zero identity")
	}
}
