package catalog

import (
	"errors"
	"time"
)

var ErrSupplierNotFound = errors.New("catalog: supplier not found")

// Supplier is a plain reference record; products point at it by id.
type Supplier struct {
	ID        string
	Name      string
	Contact   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewSupplier(id, name, contact string) (*Supplier, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	now := time.Now().UTC()
	return &Supplier{
		ID:        id,
		Name:      name,
		Contact:   contact,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Supplier) Clone() *Supplier {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}
