// Package store is an in-memory document store with explicit multi-document
// transactions. Reads outside a transaction observe the last committed state;
// writes staged inside a transaction become visible only on commit.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sproutworks/nursery/internal/domain/catalog"
	"github.com/sproutworks/nursery/internal/domain/identity"
	"github.com/sproutworks/nursery/internal/domain/order"
)

var (
	// ErrLockWait means a contended document lock could not be acquired in
	// time. Retryable by the caller.
	ErrLockWait = errors.New("store: timed out waiting for document lock")
	// ErrTxDone means the transaction was already committed or rolled back.
	ErrTxDone = errors.New("store: transaction already finished")
)

const defaultLockWait = 2 * time.Second

type Store struct {
	mu        sync.RWMutex
	products  map[string]*catalog.Product
	orders    map[string]*order.Order
	suppliers map[string]*catalog.Supplier
	users     map[string]*identity.User

	locks    *lockTable
	lockWait time.Duration
}

func New(lockWait time.Duration) *Store {
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	return &Store{
		products:  make(map[string]*catalog.Product),
		orders:    make(map[string]*order.Order),
		suppliers: make(map[string]*catalog.Supplier),
		users:     make(map[string]*identity.User),
		locks:     newLockTable(),
		lockWait:  lockWait,
	}
}

// Begin opens a unit of work. The caller must finish it with Commit or
// Rollback; deferring Rollback after Begin is the expected pattern.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		s:        s,
		locked:   make(map[string]struct{}),
		products: make(map[string]*catalog.Product),
		orders:   make(map[string]*order.Order),
	}, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) ListProducts(ctx context.Context) []*catalog.Product {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PutProduct writes a product directly. Reserved for creation; quantity
// mutation on existing products goes through the ledger inside a Tx.
func (s *Store) PutProduct(ctx context.Context, p *catalog.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return errors.New("store: product id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p.Clone()
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *Store) ListOrders(ctx context.Context) []*order.Order {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) UpdateOrder(ctx context.Context, o *order.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return errors.New("store: order id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; !ok {
		return order.ErrNotFound
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*catalog.Supplier, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliers[id]
	if !ok {
		return nil, catalog.ErrSupplierNotFound
	}
	return sup.Clone(), nil
}

func (s *Store) ListSuppliers(ctx context.Context) []*catalog.Supplier {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*catalog.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		out = append(out, sup.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) PutSupplier(ctx context.Context, sup *catalog.Supplier) error {
	_ = ctx
	if sup == nil || sup.ID == "" {
		return errors.New("store: supplier id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.suppliers[sup.ID] = sup.Clone()
	return nil
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliers[id]; !ok {
		return catalog.ErrSupplierNotFound
	}
	delete(s.suppliers, id)
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*identity.User, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *Store) PutUser(ctx context.Context, u *identity.User) error {
	_ = ctx
	if u == nil || u.ID == "" {
		return errors.New("store: user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = u.Clone()
	return nil
}
