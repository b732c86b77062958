// Package memory implements an in-memory persistence driver.
// It backs tests and dev mode; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/contacthub/contacthub/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// state holds the three collections. A transaction operates on a deep copy
// that is swapped in atomically on commit.
type state struct {
	contacts map[string]*store.ContactDocument // by owner email
	requests map[string]*store.ConnectionRequest
	users    map[string]*store.User // by email
}

func newState() *state {
	return &state{
		contacts: make(map[string]*store.ContactDocument),
		requests: make(map[string]*store.ConnectionRequest),
		users:    make(map[string]*store.User),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.contacts {
		c.contacts[k] = cloneDocument(v)
	}
	for k, v := range s.requests {
		r := *v
		c.requests[k] = &r
	}
	for k, v := range s.users {
		u := *v
		c.users[k] = &u
	}
	return c
}

func cloneDocument(doc *store.ContactDocument) *store.ContactDocument {
	d := *doc
	d.Contacts = append([]store.ContactEntry(nil), doc.Contacts...)
	return &d
}

// Driver implements store.Driver with mutex-guarded maps.
type Driver struct {
	mu     sync.RWMutex
	state  *state
	closed bool
}

// NewDriver creates a new in-memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	return &Driver{state: newState()}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op for the in-memory driver.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close marks the driver closed; further operations fail with ErrClosed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Driver) GetContacts(ctx context.Context, ownerEmail string) (*store.ContactDocument, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	return getContacts(d.state, ownerEmail)
}

func (d *Driver) PutContacts(ctx context.Context, doc *store.ContactDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	putContacts(d.state, doc)
	return nil
}

func (d *Driver) CreateRequest(ctx context.Context, req *store.ConnectionRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	return createRequest(d.state, req)
}

func (d *Driver) GetRequest(ctx context.Context, id string) (*store.ConnectionRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	return getRequest(d.state, id)
}

func (d *Driver) DeleteRequest(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	delete(d.state.requests, id)
	return nil
}

func (d *Driver) ListRequestsTo(ctx context.Context, toEmail string) ([]*store.ConnectionRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	return listRequestsTo(d.state, toEmail), nil
}

func (d *Driver) FindRequest(ctx context.Context, fromEmail, toEmail string) (*store.ConnectionRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	return findRequest(d.state, fromEmail, toEmail)
}

func (d *Driver) CreateUser(ctx context.Context, user *store.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}
	return createUser(d.state, user)
}

func (d *Driver) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, store.ErrClosed
	}
	return getUserByEmail(d.state, email)
}

// Transaction runs fn against a deep copy of the state under the write lock.
// The copy replaces the live state only if fn returns nil.
func (d *Driver) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return store.ErrClosed
	}

	staged := d.state.clone()
	if err := fn(&txView{state: staged}); err != nil {
		return err
	}
	d.state = staged
	return nil
}

// txView is the transactional view handed to Transaction callbacks.
// The enclosing driver already holds the write lock, so the view accesses
// its staged state without further locking.
type txView struct {
	state *state
}

func (t *txView) GetContacts(ctx context.Context, ownerEmail string) (*store.ContactDocument, error) {
	return getContacts(t.state, ownerEmail)
}

func (t *txView) PutContacts(ctx context.Context, doc *store.ContactDocument) error {
	putContacts(t.state, doc)
	return nil
}

func (t *txView) CreateRequest(ctx context.Context, req *store.ConnectionRequest) error {
	return createRequest(t.state, req)
}

func (t *txView) GetRequest(ctx context.Context, id string) (*store.ConnectionRequest, error) {
	return getRequest(t.state, id)
}

func (t *txView) DeleteRequest(ctx context.Context, id string) error {
	delete(t.state.requests, id)
	return nil
}

func (t *txView) ListRequestsTo(ctx context.Context, toEmail string) ([]*store.ConnectionRequest, error) {
	return listRequestsTo(t.state, toEmail), nil
}

func (t *txView) FindRequest(ctx context.Context, fromEmail, toEmail string) (*store.ConnectionRequest, error) {
	return findRequest(t.state, fromEmail, toEmail)
}

func (t *txView) CreateUser(ctx context.Context, user *store.User) error {
	return createUser(t.state, user)
}

func (t *txView) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return getUserByEmail(t.state, email)
}

// Transaction on a view runs fn directly: the outer transaction already
// provides atomicity.
func (t *txView) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Shared accessors over a state. Callers hold the appropriate lock.

func getContacts(s *state, ownerEmail string) (*store.ContactDocument, error) {
	doc, ok := s.contacts[ownerEmail]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneDocument(doc), nil
}

func putContacts(s *state, doc *store.ContactDocument) {
	s.contacts[doc.OwnerEmail] = cloneDocument(doc)
}

func createRequest(s *state, req *store.ConnectionRequest) error {
	if _, ok := s.requests[req.ID]; ok {
		return store.ErrAlreadyExists
	}
	r := *req
	s.requests[req.ID] = &r
	return nil
}

func getRequest(s *state, id string) (*store.ConnectionRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r := *req
	return &r, nil
}

func listRequestsTo(s *state, toEmail string) []*store.ConnectionRequest {
	var out []*store.ConnectionRequest
	for _, req := range s.requests {
		if req.ToEmail == toEmail {
			r := *req
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func findRequest(s *state, fromEmail, toEmail string) (*store.ConnectionRequest, error) {
	for _, req := range s.requests {
		if req.FromEmail == fromEmail && req.ToEmail == toEmail {
			r := *req
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func createUser(s *state, user *store.User) error {
	if _, ok := s.users[user.Email]; ok {
		return store.ErrAlreadyExists
	}
	u := *user
	s.users[user.Email] = &u
	return nil
}

func getUserByEmail(s *state, email string) (*store.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := *user
	return &u, nil
}
