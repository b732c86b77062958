// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/contacthub/contacthub/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
	queries
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "contacthub.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db
	d.queries = queries{db: db}

	// AutoMigrate creates/updates tables based on model structs
	if err := db.AutoMigrate(
		&store.ContactDocument{},
		&store.ConnectionRequest{},
		&store.User{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn inside a database transaction. GORM rolls back if fn
// returns an error, so the accept path's two contact-document writes and the
// request deletion commit or fail as one unit.
func (d *Driver) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txStore{queries{db: tx}})
	})
}

// txStore is the Store view handed to Transaction callbacks.
type txStore struct {
	queries
}

// Transaction on an already-transactional view runs fn directly.
func (t *txStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// queries implements the collection interfaces over a *gorm.DB handle,
// which may be the root connection or an open transaction.
type queries struct {
	db *gorm.DB
}

// GetContacts retrieves a contact document by owner email.
func (q queries) GetContacts(ctx context.Context, ownerEmail string) (*store.ContactDocument, error) {
	var doc store.ContactDocument
	result := q.db.WithContext(ctx).First(&doc, "owner_email = ?", ownerEmail)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &doc, nil
}

// PutContacts creates or replaces a contact document.
func (q queries) PutContacts(ctx context.Context, doc *store.ContactDocument) error {
	doc.UpdatedAt = store.Now()
	result := q.db.WithContext(ctx).Save(doc)
	return result.Error
}

// CreateRequest inserts a new pending connection request.
func (q queries) CreateRequest(ctx context.Context, req *store.ConnectionRequest) error {
	result := q.db.WithContext(ctx).Create(req)
	return result.Error
}

// GetRequest retrieves a connection request by id.
func (q queries) GetRequest(ctx context.Context, id string) (*store.ConnectionRequest, error) {
	var req store.ConnectionRequest
	result := q.db.WithContext(ctx).First(&req, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &req, nil
}

// DeleteRequest removes a connection request by id. Missing ids are not an
// error, which makes dismissal idempotent.
func (q queries) DeleteRequest(ctx context.Context, id string) error {
	result := q.db.WithContext(ctx).Delete(&store.ConnectionRequest{}, "id = ?", id)
	return result.Error
}

// ListRequestsTo returns all pending requests addressed to the given email.
func (q queries) ListRequestsTo(ctx context.Context, toEmail string) ([]*store.ConnectionRequest, error) {
	var reqs []*store.ConnectionRequest
	result := q.db.WithContext(ctx).
		Where("to_email = ?", toEmail).
		Order("created_at asc, id asc").
		Find(&reqs)
	if result.Error != nil {
		return nil, result.Error
	}
	return reqs, nil
}

// FindRequest returns the pending request from one email to another.
func (q queries) FindRequest(ctx context.Context, fromEmail, toEmail string) (*store.ConnectionRequest, error) {
	var req store.ConnectionRequest
	result := q.db.WithContext(ctx).
		First(&req, "from_email = ? AND to_email = ?", fromEmail, toEmail)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &req, nil
}

// CreateUser inserts a new account record.
func (q queries) CreateUser(ctx context.Context, user *store.User) error {
	result := q.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return store.ErrAlreadyExists
		}
		// SQLite reports unique violations as generic errors; probe by email.
		if _, err := q.GetUserByEmail(ctx, user.Email); err == nil {
			return store.ErrAlreadyExists
		}
		return result.Error
	}
	return nil
}

// GetUserByEmail retrieves an account record by email.
func (q queries) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	var user store.User
	result := q.db.WithContext(ctx).First(&user, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}
