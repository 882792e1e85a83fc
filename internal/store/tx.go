package store

import (
	"context"
	"errors"

	"github.com/sproutworks/nursery/internal/domain/catalog"
	"github.com/sproutworks/nursery/internal/domain/order"
)

// Tx is an explicit unit of work. Locks on documents read for-update are held
// until Commit or Rollback; staged writes are invisible to other callers
// until Commit applies them all at once.
//
// A Tx is owned by a single goroutine and must not be shared.
type Tx struct {
	s      *Store
	locked map[string]struct{}

	products map[string]*catalog.Product
	orders   map[string]*order.Order

	done bool
}

// ProductForUpdate returns the product under an exclusive document lock.
// Within the same Tx it returns the staged version, so repeated reservations
// of one product accumulate. Lock acquisition is bounded; a contended product
// yields ErrLockWait.
func (tx *Tx) ProductForUpdate(ctx context.Context, id string) (*catalog.Product, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	if id == "" {
		return nil, catalog.ErrNotFound
	}

	if staged, ok := tx.products[id]; ok {
		return staged.Clone(), nil
	}

	if _, held := tx.locked[id]; !held {
		if err := tx.s.locks.acquire(ctx, id, tx.s.lockWait); err != nil {
			return nil, err
		}
		tx.locked[id] = struct{}{}
	}

	tx.s.mu.RLock()
	p, ok := tx.s.products[id]
	tx.s.mu.RUnlock()
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p.Clone(), nil
}

// SaveProduct stages a product write. The caller must have obtained the
// product through ProductForUpdate in this Tx.
func (tx *Tx) SaveProduct(p *catalog.Product) error {
	if tx.done {
		return ErrTxDone
	}
	if p == nil || p.ID == "" {
		return errors.New("store: product id is required")
	}
	if _, held := tx.locked[p.ID]; !held {
		return errors.New("store: product was not read for update in this transaction")
	}
	tx.products[p.ID] = p.Clone()
	return nil
}

// InsertOrder stages a new order.
func (tx *Tx) InsertOrder(o *order.Order) error {
	if tx.done {
		return ErrTxDone
	}
	if o == nil || o.ID == "" {
		return errors.New("store: order id is required")
	}
	tx.orders[o.ID] = o.Clone()
	return nil
}

// Commit applies every staged write atomically and releases held locks.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}

	tx.s.mu.Lock()
	for id, p := range tx.products {
		tx.s.products[id] = p.Clone()
	}
	for id, o := range tx.orders {
		tx.s.orders[id] = o.Clone()
	}
	tx.s.mu.Unlock()

	tx.finish()
	return nil
}

// Rollback drops staged writes and releases held locks. Calling it after
// Commit is a no-op, so `defer tx.Rollback()` is always safe.
func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.finish()
	return nil
}

func (tx *Tx) finish() {
	for id := range tx.locked {
		tx.s.locks.release(id)
	}
	tx.locked = map[string]struct{}{}
	tx.products = map[string]*catalog.Product{}
	tx.orders = map[string]*order.Order{}
	tx.done = true
}
