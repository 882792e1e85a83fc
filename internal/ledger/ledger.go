// Package ledger is the single owner of product stock. Every quantity
// mutation in the system funnels through Reserve, Release, or Adjust, each
// executed against an explicit store transaction so multi-item operations
// commit or roll back as one.
package ledger

import (
	"context"
	"fmt"

	"github.com/sproutworks/nursery/internal/domain/catalog"
	"github.com/sproutworks/nursery/internal/observability"
	"github.com/sproutworks/nursery/internal/observability/logctx"
	"github.com/sproutworks/nursery/internal/store"
)

const componentLedger = "inventory_ledger"

type Ledger struct {
	log     observability.Logger
	reserve observability.Counter // stock_reservations_total{outcome}
}

func New(tel observability.Observability) *Ledger {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Ledger{
		log:     tel.Logger().With(observability.F("component", componentLedger)),
		reserve: tel.Metrics().Counter(observability.MStockReservations),
	}
}

// Reserve deducts quantity from the product's stock inside tx. The change is
// staged, not committed; callers own the commit/rollback decision. Returns
// the product as seen at reservation time so callers can capture its price.
func (l *Ledger) Reserve(ctx context.Context, tx *store.Tx, productID string, quantity int) (*catalog.Product, error) {
	if quantity < 1 {
		l.count("invalid")
		return nil, catalog.ErrInvalidQuantity
	}

	p, err := tx.ProductForUpdate(ctx, productID)
	if err != nil {
		l.count("error")
		return nil, lookupError(productID, err)
	}

	if err := p.Deduct(quantity); err != nil {
		l.count("insufficient")
		logctx.FromOr(ctx, l.log).Info("reservation_rejected",
			observability.F("product_id", productID),
			observability.F("requested", quantity),
			observability.F("available", p.Quantity),
		)
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}

	if err := tx.SaveProduct(p); err != nil {
		l.count("error")
		return nil, fmt.Errorf("ledger: stage reservation: %w", err)
	}

	l.count("success")
	return p, nil
}

// Release returns quantity to stock, the inverse of Reserve. Used by
// cancellation and refund flows.
func (l *Ledger) Release(ctx context.Context, tx *store.Tx, productID string, quantity int) (*catalog.Product, error) {
	if quantity < 1 {
		return nil, catalog.ErrInvalidQuantity
	}

	p, err := tx.ProductForUpdate(ctx, productID)
	if err != nil {
		return nil, lookupError(productID, err)
	}

	if err := p.Restock(quantity); err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}

	if err := tx.SaveProduct(p); err != nil {
		return nil, fmt.Errorf("ledger: stage release: %w", err)
	}
	return p, nil
}

// Adjust applies a signed administrative correction under the same locking
// discipline as reservations. The result may not go negative.
func (l *Ledger) Adjust(ctx context.Context, tx *store.Tx, productID string, delta int) (*catalog.Product, error) {
	if delta == 0 {
		return nil, catalog.ErrInvalidQuantity
	}

	p, err := tx.ProductForUpdate(ctx, productID)
	if err != nil {
		return nil, lookupError(productID, err)
	}

	if err := p.Adjust(delta); err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}

	if err := tx.SaveProduct(p); err != nil {
		return nil, fmt.Errorf("ledger: stage adjustment: %w", err)
	}

	logctx.FromOr(ctx, l.log).Info("stock_adjusted",
		observability.F("product_id", productID),
		observability.F("delta", delta),
		observability.F("quantity", p.Quantity),
	)
	return p, nil
}

func (l *Ledger) count(outcome string) {
	if l.reserve != nil {
		l.reserve.Add(1, observability.L("outcome", outcome))
	}
}

func lookupError(productID string, err error) error {
	return fmt.Errorf("product %s: %w", productID, err)
}
