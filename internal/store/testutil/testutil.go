// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/contacthub/contacthub/internal/store"
)

// TestRequest creates a pending connection request from alice to bob.
func TestRequest() *store.ConnectionRequest {
	return &store.ConnectionRequest{
		ID:        store.NewRequestID(),
		FromUID:   "uid-alice",
		FromEmail: "alice@example.com",
		FromName:  "Alice",
		ToUID:     "uid-bob",
		ToEmail:   "bob@example.com",
		CreatedAt: store.Now(),
	}
}

// TestDocument creates a contact document for the given owner.
func TestDocument(owner string, contacts ...store.ContactEntry) *store.ContactDocument {
	return &store.ContactDocument{
		OwnerEmail: owner,
		Contacts:   contacts,
	}
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if driver.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, driver.Name())
	}

	t.Run("ContactDocuments", func(t *testing.T) {
		TestContactDocuments(t, ctx, driver)
	})

	t.Run("ConnectionRequests", func(t *testing.T) {
		TestConnectionRequests(t, ctx, driver)
	})

	t.Run("Users", func(t *testing.T) {
		TestUsers(t, ctx, driver)
	})

	t.Run("TransactionAtomicity", func(t *testing.T) {
		TestTransactionAtomicity(t, ctx, driver)
	})
}

// TestContactDocuments tests contact document reads and writes.
func TestContactDocuments(t *testing.T, ctx context.Context, s store.Store) {
	owner := "carol@example.com"

	if _, err := s.GetContacts(ctx, owner); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing document, got %v", err)
	}

	doc := TestDocument(owner, store.ContactEntry{
		DisplayName: "Dave", Email: "dave@example.com", UID: "uid-dave",
	})
	if err := s.PutContacts(ctx, doc); err != nil {
		t.Fatalf("PutContacts failed: %v", err)
	}

	got, err := s.GetContacts(ctx, owner)
	if err != nil {
		t.Fatalf("GetContacts failed: %v", err)
	}
	if len(got.Contacts) != 1 || got.Contacts[0].Email != "dave@example.com" {
		t.Errorf("unexpected contacts: %+v", got.Contacts)
	}
	if !got.HasContact("dave@example.com") {
		t.Error("HasContact should report dave@example.com")
	}
	if got.HasContact("carol@example.com") {
		t.Error("HasContact should not report the owner's own email")
	}

	// Replace with an extended list
	got.Contacts = append(got.Contacts, store.ContactEntry{
		DisplayName: "Erin", Email: "erin@example.com", UID: "uid-erin",
	})
	if err := s.PutContacts(ctx, got); err != nil {
		t.Fatalf("PutContacts (update) failed: %v", err)
	}

	got, err = s.GetContacts(ctx, owner)
	if err != nil {
		t.Fatalf("GetContacts after update failed: %v", err)
	}
	if len(got.Contacts) != 2 {
		t.Errorf("expected 2 contacts after update, got %d", len(got.Contacts))
	}
}

// TestConnectionRequests tests request CRUD and scoped lookups.
func TestConnectionRequests(t *testing.T, ctx context.Context, s store.Store) {
	req := TestRequest()

	if err := s.CreateRequest(ctx, req); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	got, err := s.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if got.FromEmail != req.FromEmail || got.ToEmail != req.ToEmail {
		t.Errorf("request round-trip mismatch: %+v", got)
	}

	// Directional lookup finds the request only in its own direction
	if _, err := s.FindRequest(ctx, req.FromEmail, req.ToEmail); err != nil {
		t.Errorf("FindRequest (forward) failed: %v", err)
	}
	if _, err := s.FindRequest(ctx, req.ToEmail, req.FromEmail); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindRequest (reverse) should be ErrNotFound, got %v", err)
	}

	// Recipient-scoped listing
	reqs, err := s.ListRequestsTo(ctx, req.ToEmail)
	if err != nil {
		t.Fatalf("ListRequestsTo failed: %v", err)
	}
	if len(reqs) != 1 || reqs[0].ID != req.ID {
		t.Errorf("unexpected request list: %+v", reqs)
	}
	reqs, err = s.ListRequestsTo(ctx, req.FromEmail)
	if err != nil {
		t.Fatalf("ListRequestsTo (sender) failed: %v", err)
	}
	if len(reqs) != 0 {
		t.Errorf("sender should have no incoming requests, got %d", len(reqs))
	}

	// Deletion is idempotent
	if err := s.DeleteRequest(ctx, req.ID); err != nil {
		t.Fatalf("DeleteRequest failed: %v", err)
	}
	if err := s.DeleteRequest(ctx, req.ID); err != nil {
		t.Errorf("second DeleteRequest should be a no-op, got %v", err)
	}
	if _, err := s.GetRequest(ctx, req.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleted request should be ErrNotFound, got %v", err)
	}
}

// TestUsers tests account creation and lookup.
func TestUsers(t *testing.T, ctx context.Context, s store.Store) {
	user := &store.User{
		UID:          "uid-frank",
		Email:        "frank@example.com",
		DisplayName:  "Frank",
		PasswordHash: "$argon2id$...",
		CreatedAt:    store.Now(),
	}

	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	dup := *user
	dup.UID = "uid-frank-2"
	if err := s.CreateUser(ctx, &dup); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate email should be ErrAlreadyExists, got %v", err)
	}

	got, err := s.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.UID != user.UID {
		t.Errorf("expected uid %q, got %q", user.UID, got.UID)
	}

	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing user should be ErrNotFound, got %v", err)
	}
}

// TestTransactionAtomicity verifies that a failed transaction leaves no
// partial writes behind: the accept path depends on this to never commit an
// asymmetric contact graph.
func TestTransactionAtomicity(t *testing.T, ctx context.Context, s store.Store) {
	req := TestRequest()
	req.FromEmail = "gail@example.com"
	req.ToEmail = "hank@example.com"
	if err := s.CreateRequest(ctx, req); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx store.Store) error {
		if err := tx.PutContacts(ctx, TestDocument("gail@example.com", store.ContactEntry{
			DisplayName: "Hank", Email: "hank@example.com", UID: "uid-hank",
		})); err != nil {
			return err
		}
		if err := tx.DeleteRequest(ctx, req.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("transaction should surface fn error, got %v", err)
	}

	// Nothing inside the failed transaction may have persisted
	if _, err := s.GetContacts(ctx, "gail@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rolled-back document should be ErrNotFound, got %v", err)
	}
	if _, err := s.GetRequest(ctx, req.ID); err != nil {
		t.Errorf("rolled-back deletion should leave the request, got %v", err)
	}

	// A committed transaction persists both writes
	err = s.Transaction(ctx, func(tx store.Store) error {
		if err := tx.PutContacts(ctx, TestDocument("gail@example.com", store.ContactEntry{
			DisplayName: "Hank", Email: "hank@example.com", UID: "uid-hank",
		})); err != nil {
			return err
		}
		return tx.DeleteRequest(ctx, req.ID)
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	if _, err := s.GetContacts(ctx, "gail@example.com"); err != nil {
		t.Errorf("committed document should exist, got %v", err)
	}
	if _, err := s.GetRequest(ctx, req.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("committed deletion should remove the request, got %v", err)
	}
}
