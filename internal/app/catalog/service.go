// Package catalog manages products and suppliers. Attribute edits are plain
// document writes; stock never changes here except through CorrectStock,
// which routes the delta through the inventory ledger.
package catalog

import (
	"context"

	domcatalog "github.com/sproutworks/nursery/internal/domain/catalog"
	"github.com/sproutworks/nursery/internal/domain/event"
	"github.com/sproutworks/nursery/internal/domain/identity"
	"github.com/sproutworks/nursery/internal/events"
	"github.com/sproutworks/nursery/internal/ledger"
	"github.com/sproutworks/nursery/internal/observability"
	"github.com/sproutworks/nursery/internal/observability/logctx"
	"github.com/sproutworks/nursery/internal/pkg/id"
	"github.com/sproutworks/nursery/internal/store"
)

const componentCatalogService = "catalog_service"

type Service struct {
	store     *store.Store
	ledger    *ledger.Ledger
	ids       id.Generator
	publisher events.Publisher
	log       observability.Logger
}

func NewService(st *store.Store, led *ledger.Ledger, ids id.Generator, publisher events.Publisher, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		store:     st,
		ledger:    led,
		ids:       ids,
		publisher: publisher,
		log:       tel.Logger().With(observability.F("component", componentCatalogService)),
	}
}

type ProductInput struct {
	Name           string
	Type           string
	Batch          string
	Quantity       int
	UnitPriceCents int64
	SupplierID     string
}

func (s *Service) CreateProduct(ctx context.Context, actor identity.Actor, input ProductInput) (*domcatalog.Product, error) {
	if !actor.Privileged() {
		return nil, identity.ErrForbidden
	}

	typ, err := domcatalog.ParseType(input.Type)
	if err != nil {
		return nil, err
	}
	if input.SupplierID != "" {
		if _, err := s.store.GetSupplier(ctx, input.SupplierID); err != nil {
			return nil, err
		}
	}

	p, err := domcatalog.NewProduct(s.ids.NewID(), input.Name, typ, input.Batch, input.Quantity, input.UnitPriceCents, input.SupplierID)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutProduct(ctx, p); err != nil {
		return nil, err
	}

	logctx.FromOr(ctx, s.log).Info("product_created",
		observability.F("product_id", p.ID),
		observability.F("type", string(p.Type)),
		observability.F("quantity", p.Quantity),
	)
	return p, nil
}

// UpdateProduct edits non-quantity attributes. It reads the product for
// update so a concurrent reservation cannot be clobbered: the committed
// quantity always wins over whatever the caller sends.
func (s *Service) UpdateProduct(ctx context.Context, actor identity.Actor, productID string, input ProductInput) (*domcatalog.Product, error) {
	if !actor.Privileged() {
		return nil, identity.ErrForbidden
	}

	typ, err := domcatalog.ParseType(input.Type)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, domcatalog.ErrNameRequired
	}
	if input.UnitPriceCents < 0 {
		return nil, domcatalog.ErrInvalidPrice
	}
	if input.SupplierID != "" {
		if _, err := s.store.GetSupplier(ctx, input.SupplierID); err != nil {
			return nil, err
		}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := tx.ProductForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	p.Name = input.Name
	p.Type = typ
	p.Batch = input.Batch
	p.UnitPriceCents = input.UnitPriceCents
	p.SupplierID = input.SupplierID

	if err := tx.SaveProduct(p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// CorrectStock applies a signed administrative correction through the
// ledger's locking discipline, the only sanctioned quantity edit outside
// order placement.
func (s *Service) CorrectStock(ctx context.Context, actor identity.Actor, productID string, delta int) (*domcatalog.Product, error) {
	if !actor.Privileged() {
		return nil, identity.ErrForbidden
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := s.ledger.Adjust(ctx, tx, productID, delta)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event.NewStockAdjusted(p.ID, delta, p.Quantity, actor.UserID)); err != nil {
			logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
				observability.F("event", "inventory.adjusted"),
				observability.F("error", err),
			)
		}
	}
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (*domcatalog.Product, error) {
	return s.store.GetProduct(ctx, productID)
}

func (s *Service) ListProducts(ctx context.Context) []*domcatalog.Product {
	return s.store.ListProducts(ctx)
}

func (s *Service) DeleteProduct(ctx context.Context, actor identity.Actor, productID string) error {
	if !actor.Privileged() {
		return identity.ErrForbidden
	}
	return s.store.DeleteProduct(ctx, productID)
}

type SupplierInput struct {
	Name    string
	Contact string
}

func (s *Service) CreateSupplier(ctx context.Context, actor identity.Actor, input SupplierInput) (*domcatalog.Supplier, error) {
	if !actor.Privileged() {
		return nil, identity.ErrForbidden
	}
	sup, err := domcatalog.NewSupplier(s.ids.NewID(), input.Name, input.Contact)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutSupplier(ctx, sup); err != nil {
		return nil, err
	}
	return sup, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, actor identity.Actor, supplierID string, input SupplierInput) (*domcatalog.Supplier, error) {
	if !actor.Privileged() {
		return nil, identity.ErrForbidden
	}
	if input.Name == "" {
		return nil, domcatalog.ErrNameRequired
	}

	sup, err := s.store.GetSupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	sup.Name = input.Name
	sup.Contact = input.Contact
	if err := s.store.PutSupplier(ctx, sup); err != nil {
		return nil, err
	}
	return sup, nil
}

func (s *Service) GetSupplier(ctx context.Context, supplierID string) (*domcatalog.Supplier, error) {
	return s.store.GetSupplier(ctx, supplierID)
}

func (s *Service) ListSuppliers(ctx context.Context) []*domcatalog.Supplier {
	return s.store.ListSuppliers(ctx)
}

func (s *Service) DeleteSupplier(ctx context.Context, actor identity.Actor, supplierID string) error {
	if !actor.Privileged() {
		return identity.ErrForbidden
	}
	return s.store.DeleteSupplier(ctx, supplierID)
}
