package order

import (
	"context"
	"time"

	"github.com/sproutworks/nursery/internal/domain/catalog"
	"github.com/sproutworks/nursery/internal/domain/identity"
	domorder "github.com/sproutworks/nursery/internal/domain/order"
)

// View is an order with its customer and product references resolved for
// display. Line item prices are the captured ones, never the live catalog's.
type CustomerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ProductView struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Type           catalog.Type `json:"type"`
	UnitPriceCents int64        `json:"unit_price_cents"`
}

type LineItemView struct {
	Product        ProductView `json:"product"`
	Quantity       int         `json:"quantity"`
	UnitPriceCents int64       `json:"unit_price_cents"`
}

type View struct {
	ID           string           `json:"id"`
	Customer     CustomerView     `json:"customer"`
	PlacedByRole identity.Role    `json:"placed_by_role"`
	Items        []LineItemView   `json:"items"`
	TotalCents   int64            `json:"total_cents"`
	Status       domorder.Status  `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (s *Service) populate(ctx context.Context, o *domorder.Order) *View {
	v := &View{
		ID:           o.ID,
		Customer:     CustomerView{ID: o.CustomerID},
		PlacedByRole: o.PlacedByRole,
		Items:        make([]LineItemView, 0, len(o.Items)),
		TotalCents:   o.TotalCents,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}

	if u, err := s.store.GetUser(ctx, o.CustomerID); err == nil {
		v.Customer.Name = u.Name
	}

	for _, it := range o.Items {
		iv := LineItemView{
			Product:        ProductView{ID: it.ProductID, UnitPriceCents: it.UnitPriceCents},
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		}
		// Display attributes come from the live catalog; the captured price
		// stays on the line item even when the product has since changed.
		if p, err := s.store.GetProduct(ctx, it.ProductID); err == nil {
			iv.Product.Name = p.Name
			iv.Product.Type = p.Type
			iv.Product.UnitPriceCents = p.UnitPriceCents
		}
		v.Items = append(v.Items, iv)
	}
	return v
}
