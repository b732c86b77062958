// Package graph implements the connection lifecycle over the contact and
// request stores: sending, dismissing, and accepting connection requests,
// and the read-side queries derived from them.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/contacthub/contacthub/internal/identity"
	"github.com/contacthub/contacthub/internal/notify"
	"github.com/contacthub/contacthub/internal/store"
)

var (
	ErrSelfRequest        = errors.New("cannot send a request to yourself")
	ErrAlreadyConnected   = errors.New("already connected")
	ErrRequestAlreadySent = errors.New("request already sent")
	ErrRequestNotFound    = errors.New("request not found")
)

// LookupResult describes a user from the caller's point of view.
type LookupResult struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoURL,omitempty"`
	IsFriend     bool   `json:"isFriend"`
	HasRequested bool   `json:"hasRequested"`
}

// AcceptedEvent is the payload published to the original sender when their
// request is accepted.
type AcceptedEvent struct {
	Message     string `json:"message"`
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// ConnectionGraph enforces the contact-graph invariants: no self requests,
// one pending request per pair, email-unique contact lists, and symmetric
// acceptance. All dependencies are injected; the graph holds no ambient
// state.
type ConnectionGraph struct {
	store      store.Store
	provider   identity.Provider
	dispatcher *notify.Dispatcher
	log        *slog.Logger
}

// New creates a connection graph over the given store, identity provider,
// and notification dispatcher.
func New(st store.Store, provider identity.Provider, dispatcher *notify.Dispatcher, log *slog.Logger) *ConnectionGraph {
	return &ConnectionGraph{
		store:      st,
		provider:   provider,
		dispatcher: dispatcher,
		log:        log,
	}
}

// SendRequest creates a pending connection request from the requester to the
// user behind targetEmail and notifies the target's private channel.
func (g *ConnectionGraph) SendRequest(ctx context.Context, requester identity.Identity, targetEmail string) (*store.ConnectionRequest, error) {
	targetEmail = identity.NormalizeEmail(targetEmail)
	if targetEmail == requester.Email {
		return nil, ErrSelfRequest
	}

	target, err := g.provider.GetByEmail(ctx, targetEmail)
	if err != nil {
		return nil, err
	}

	doc, err := g.store.GetContacts(ctx, requester.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	if doc != nil && doc.HasContact(target.Email) {
		return nil, ErrAlreadyConnected
	}

	// One pending request per pair, regardless of direction.
	if _, err := g.store.FindRequest(ctx, requester.Email, target.Email); err == nil {
		return nil, ErrRequestAlreadySent
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check pending request: %w", err)
	}
	if _, err := g.store.FindRequest(ctx, target.Email, requester.Email); err == nil {
		return nil, ErrRequestAlreadySent
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check reverse request: %w", err)
	}

	req := &store.ConnectionRequest{
		ID:        store.NewRequestID(),
		FromUID:   requester.UID,
		FromEmail: requester.Email,
		FromName:  requester.DisplayName,
		ToUID:     target.UID,
		ToEmail:   target.Email,
		CreatedAt: store.Now(),
	}
	if err := g.store.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	g.log.Info("connection request created", "id", req.ID, "from", req.FromEmail, "to", req.ToEmail)
	g.dispatcher.Publish(target.UID, notify.EventFriendRequestReceived, req)
	return req, nil
}

// DismissRequest deletes a pending request. The caller must be a party to
// the request; dismissing an id that no longer exists is a no-op, which
// makes the operation idempotent.
func (g *ConnectionGraph) DismissRequest(ctx context.Context, caller identity.Identity, requestID string) (*store.ConnectionRequest, error) {
	req, err := g.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load request: %w", err)
	}

	if req.FromEmail != caller.Email && req.ToEmail != caller.Email {
		// Foreign ids look exactly like missing ones.
		return nil, ErrRequestNotFound
	}

	if err := g.store.DeleteRequest(ctx, requestID); err != nil {
		return nil, fmt.Errorf("delete request: %w", err)
	}
	g.log.Info("connection request dismissed", "id", requestID, "by", caller.Email)
	return req, nil
}

// AcceptRequest merges both sides of the connection and consumes the
// request. The two contact-document updates and the request deletion commit
// as one transaction: a crash can never leave an asymmetric graph. Only the
// request's recipient may accept it.
func (g *ConnectionGraph) AcceptRequest(ctx context.Context, accepter identity.Identity, requestID string) (*store.ContactDocument, error) {
	var (
		merged *store.ContactDocument
		req    *store.ConnectionRequest
	)

	err := g.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		req, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("load request: %w", err)
		}
		if req.ToEmail != accepter.Email {
			return ErrRequestNotFound
		}

		merged, err = mergeContact(ctx, tx, accepter.Email, store.ContactEntry{
			DisplayName: req.FromName,
			Email:       req.FromEmail,
			UID:         req.FromUID,
		})
		if err != nil {
			return err
		}

		if _, err := mergeContact(ctx, tx, req.FromEmail, store.ContactEntry{
			DisplayName: accepter.DisplayName,
			Email:       accepter.Email,
			UID:         accepter.UID,
		}); err != nil {
			return err
		}

		return tx.DeleteRequest(ctx, requestID)
	})
	if err != nil {
		return nil, err
	}

	g.log.Info("connection request accepted", "id", requestID, "from", req.FromEmail, "to", req.ToEmail)
	g.dispatcher.Publish(req.FromUID, notify.EventFriendRequestAccepted, AcceptedEvent{
		Message:     "accepted",
		UID:         accepter.UID,
		Email:       accepter.Email,
		DisplayName: accepter.DisplayName,
	})
	return merged, nil
}

// mergeContact appends the entry to the owner's contact document, creating
// the document if it does not exist yet. The append is skipped when an entry
// with the same email is already present, so repeated accepts never produce
// duplicates.
func mergeContact(ctx context.Context, tx store.Store, owner string, entry store.ContactEntry) (*store.ContactDocument, error) {
	doc, err := tx.GetContacts(ctx, owner)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load contacts: %w", err)
		}
		doc = &store.ContactDocument{OwnerEmail: owner}
	}

	present := lo.ContainsBy(doc.Contacts, func(c store.ContactEntry) bool {
		return c.Email == entry.Email
	})
	if !present {
		doc.Contacts = append(doc.Contacts, entry)
	}
	doc.UpdatedAt = store.Now()

	if err := tx.PutContacts(ctx, doc); err != nil {
		return nil, fmt.Errorf("store contacts: %w", err)
	}
	return doc, nil
}

// ListRequests returns all pending requests addressed to the caller.
func (g *ConnectionGraph) ListRequests(ctx context.Context, current identity.Identity) ([]*store.ConnectionRequest, error) {
	reqs, err := g.store.ListRequestsTo(ctx, current.Email)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}

// ListContacts returns the caller's contact document, or an empty one if the
// caller has no accepted connections yet.
func (g *ConnectionGraph) ListContacts(ctx context.Context, current identity.Identity) (*store.ContactDocument, error) {
	doc, err := g.store.GetContacts(ctx, current.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &store.ContactDocument{
				OwnerEmail: current.Email,
				Contacts:   []store.ContactEntry{},
			}, nil
		}
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	return doc, nil
}

// Lookup resolves a user by email and reports the caller's relationship to
// them. Read-only.
func (g *ConnectionGraph) Lookup(ctx context.Context, current identity.Identity, targetEmail string) (*LookupResult, error) {
	targetEmail = identity.NormalizeEmail(targetEmail)
	if targetEmail == current.Email {
		return nil, ErrSelfRequest
	}

	target, err := g.provider.GetByEmail(ctx, targetEmail)
	if err != nil {
		return nil, err
	}

	isFriend := false
	doc, err := g.store.GetContacts(ctx, current.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	if doc != nil {
		// The comparison runs against the resolved target's email, never
		// against the entry itself.
		isFriend = lo.ContainsBy(doc.Contacts, func(c store.ContactEntry) bool {
			return c.Email == target.Email
		})
	}

	hasRequested := false
	if _, err := g.store.FindRequest(ctx, current.Email, target.Email); err == nil {
		hasRequested = true
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check pending request: %w", err)
	}

	return &LookupResult{
		UID:          target.UID,
		Email:        target.Email,
		DisplayName:  target.DisplayName,
		PhotoURL:     target.AvatarURL,
		IsFriend:     isFriend,
		HasRequested: hasRequested,
	}, nil
}

// IsConnected reports whether both directions of the mutual-contact relation
// hold between the two emails.
func (g *ConnectionGraph) IsConnected(ctx context.Context, aEmail, bEmail string) (bool, error) {
	forward, err := g.hasContact(ctx, aEmail, bEmail)
	if err != nil {
		return false, err
	}
	if !forward {
		return false, nil
	}
	return g.hasContact(ctx, bEmail, aEmail)
}

func (g *ConnectionGraph) hasContact(ctx context.Context, owner, target string) (bool, error) {
	doc, err := g.store.GetContacts(ctx, owner)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load contacts: %w", err)
	}
	return lo.ContainsBy(doc.Contacts, func(c store.ContactEntry) bool {
		return c.Email == target
	}), nil
}
