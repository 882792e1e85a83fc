package order

import (
	"errors"
	"time"

	"github.com/sproutworks/nursery/internal/domain/identity"
)

var (
	ErrNotFound         = errors.New("order: not found")
	ErrEmptyCart        = errors.New("order: at least one item is required")
	ErrInvalidQuantity  = errors.New("order: quantity must be greater than zero")
	ErrProductRequired  = errors.New("order: item product id is required")
	ErrCustomerRequired = errors.New("order: customer id is required")
	ErrInvalidStatus    = errors.New("order: unrecognized status")
	ErrTerminalStatus   = errors.New("order: status is terminal and cannot change")
)

type Status string

const (
	StatusPlaced    Status = "placed"
	StatusConfirmed Status = "confirmed"
	StatusPacked    Status = "packed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPlaced, StatusConfirmed, StatusPacked, StatusShipped,
		StatusDelivered, StatusCompleted, StatusCancelled:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// LineItem captures the unit price at reservation time; it is never
// recomputed from the live catalog afterward.
type LineItem struct {
	ProductID      string
	Quantity       int
	UnitPriceCents int64
}

type Order struct {
	ID           string
	CustomerID   string
	PlacedByRole identity.Role
	Items        []LineItem
	TotalCents   int64
	Status       Status
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New builds a placed order from priced line items, deriving the total from
// the captured prices.
func New(id, customerID string, placedBy identity.Role, items []LineItem) (*Order, error) {
	if customerID == "" {
		return nil, ErrCustomerRequired
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	var total int64
	for _, it := range items {
		if it.ProductID == "" {
			return nil, ErrProductRequired
		}
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		total += it.UnitPriceCents * int64(it.Quantity)
	}

	now := time.Now().UTC()
	return &Order{
		ID:           id,
		CustomerID:   customerID,
		PlacedByRole: placedBy,
		Items:        append([]LineItem(nil), items...),
		TotalCents:   total,
		Status:       StatusPlaced,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SetStatus moves the order to the given status. Transitions between
// non-terminal statuses are unconstrained; terminal statuses are final.
func (o *Order) SetStatus(s Status) error {
	if _, err := ParseStatus(string(s)); err != nil {
		return err
	}
	if o.Status.Terminal() {
		return ErrTerminalStatus
	}
	o.Status = s
	o.touch()
	return nil
}

func (o *Order) SoftDelete() {
	now := time.Now().UTC()
	o.DeletedAt = &now
	o.touch()
}

func (o *Order) Deleted() bool {
	return o.DeletedAt != nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]LineItem(nil), o.Items...)
	if o.DeletedAt != nil {
		t := *o.DeletedAt
		clone.DeletedAt = &t
	}
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
