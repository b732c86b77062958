// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// ContactEntry is one directional edge in the contact graph: the owner of the
// enclosing document knows this person. Entries are compared by email.
type ContactEntry struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	UID         string `json:"uid"`
}

// ContactDocument holds a user's accepted connections, keyed by the owner's
// email. Created lazily on the first accepted connection, never deleted.
// The contacts list is ordered and contains at most one entry per email.
type ContactDocument struct {
	OwnerEmail string         `json:"email" gorm:"primaryKey;column:owner_email"`
	Contacts   []ContactEntry `json:"contacts" gorm:"serializer:json"`
	UpdatedAt  int64          `json:"updated_at"`
}

// HasContact reports whether the document lists the given email.
func (d *ContactDocument) HasContact(email string) bool {
	for _, c := range d.Contacts {
		if c.Email == email {
			return true
		}
	}
	return false
}

// ConnectionRequest is a pending, not-yet-accepted connection proposal.
// Terminal states are absence: accept and dismiss both delete the record.
type ConnectionRequest struct {
	ID        string `json:"_id" gorm:"primaryKey"`
	FromUID   string `json:"fromUid"`
	FromEmail string `json:"fromEmail" gorm:"index"`
	FromName  string `json:"fromName"`
	ToUID     string `json:"toUid"`
	ToEmail   string `json:"toEmail" gorm:"index"`
	CreatedAt int64  `json:"created_at"`
}

// User is an account record for the built-in identity provider.
type User struct {
	UID          string `json:"uid" gorm:"primaryKey"`
	Email        string `json:"email" gorm:"uniqueIndex"`
	DisplayName  string `json:"display_name"`
	AvatarURL    string `json:"avatar_url"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"created_at"`
}

// NewRequestID returns a time-ordered UUIDv7 for a connection request.
func NewRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the entropy source does; fall back to v4.
		return uuid.NewString()
	}
	return id.String()
}

// Now returns the current time as a unix timestamp for model fields.
func Now() int64 {
	return time.Now().Unix()
}

// ContactStore defines operations over contact documents.
type ContactStore interface {
	// GetContacts retrieves a contact document by owner email.
	// Returns ErrNotFound if the owner has no document yet.
	GetContacts(ctx context.Context, ownerEmail string) (*ContactDocument, error)

	// PutContacts creates or replaces a contact document.
	PutContacts(ctx context.Context, doc *ContactDocument) error
}

// RequestStore defines operations over pending connection requests.
type RequestStore interface {
	// CreateRequest inserts a new pending request.
	CreateRequest(ctx context.Context, req *ConnectionRequest) error

	// GetRequest retrieves a request by id. Returns ErrNotFound if absent.
	GetRequest(ctx context.Context, id string) (*ConnectionRequest, error)

	// DeleteRequest removes a request by id. Deleting a missing id is not
	// an error.
	DeleteRequest(ctx context.Context, id string) error

	// ListRequestsTo returns all pending requests addressed to the given
	// email, oldest first.
	ListRequestsTo(ctx context.Context, toEmail string) ([]*ConnectionRequest, error)

	// FindRequest returns the pending request from one email to another.
	// Returns ErrNotFound if no such request exists.
	FindRequest(ctx context.Context, fromEmail, toEmail string) (*ConnectionRequest, error)
}

// UserStore defines operations over identity provider accounts.
type UserStore interface {
	// CreateUser inserts a new account. Returns ErrAlreadyExists if the
	// email is taken.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByEmail retrieves an account by email. Returns ErrNotFound
	// if absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// Store combines the collection interfaces with a transaction primitive.
// Implementations must be safe for concurrent use.
type Store interface {
	ContactStore
	RequestStore
	UserStore

	// Transaction runs fn against a transactional view of the store.
	// All writes made through the view persist if and only if fn returns
	// nil. The accept path relies on this to keep the contact graph
	// symmetric: both contact documents and the request deletion commit
	// as one unit.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// Driver is a persistence backend that can be opened and closed.
type Driver interface {
	Store

	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (sqlite, memory).
	Name() string
}
