package catalog

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("catalog: product not found")
	ErrInvalidQuantity   = errors.New("catalog: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrInvalidPrice      = errors.New("catalog: unit price must be zero or greater")
	ErrInvalidType       = errors.New("catalog: unrecognized product type")
	ErrNameRequired      = errors.New("catalog: name is required")
	ErrNegativeStock     = errors.New("catalog: adjustment would drive stock negative")
)

type Type string

const (
	TypeSeed    Type = "seed"
	TypeSapling Type = "sapling"
	TypePlant   Type = "plant"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeSeed, TypeSapling, TypePlant:
		return Type(s), nil
	default:
		return "", ErrInvalidType
	}
}

// Product is a catalog line. Quantity is owned by the inventory ledger and
// must only change through Deduct/Restock/Adjust inside a transaction.
type Product struct {
	ID             string
	Name           string
	Type           Type
	Batch          string
	Quantity       int
	UnitPriceCents int64
	SupplierID     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewProduct(id, name string, typ Type, batch string, quantity int, unitPriceCents int64, supplierID string) (*Product, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if _, err := ParseType(string(typ)); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if unitPriceCents < 0 {
		return nil, ErrInvalidPrice
	}
	now := time.Now().UTC()
	return &Product{
		ID:             id,
		Name:           name,
		Type:           typ,
		Batch:          batch,
		Quantity:       quantity,
		UnitPriceCents: unitPriceCents,
		SupplierID:     supplierID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Deduct removes quantity from stock, refusing to go negative.
func (p *Product) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.Quantity {
		return ErrInsufficientStock
	}
	p.Quantity -= quantity
	p.touch()
	return nil
}

// Restock returns quantity to stock.
func (p *Product) Restock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.Quantity += quantity
	p.touch()
	return nil
}

// Adjust applies a signed administrative correction.
func (p *Product) Adjust(delta int) error {
	if p.Quantity+delta < 0 {
		return ErrNegativeStock
	}
	p.Quantity += delta
	p.touch()
	return nil
}

// DisplayStatus is a derived label for presentation only; availability
// decisions always go through the ledger.
func (p *Product) DisplayStatus() string {
	switch {
	case p.Quantity == 0:
		return "out_of_stock"
	case p.Quantity <= 5:
		return "low_stock"
	default:
		return "in_stock"
	}
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
