package event

import (
	"context"
	"time"

	"github.com/sproutworks/nursery/internal/domain/order"
)

// Event is anything the bus can carry.
type Event interface {
	EventName() string
}

// Handler consumes a single event; errors are logged, not retried.
type Handler func(ctx context.Context, e Event) error

// OrderPlaced is emitted after an order commits.
type OrderPlaced struct {
	OrderID    string
	CustomerID string
	ItemCount  int
	TotalCents int64
	OccurredAt time.Time
}

func (OrderPlaced) EventName() string { return "order.placed" }

func NewOrderPlaced(o *order.Order) OrderPlaced {
	return OrderPlaced{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		ItemCount:  len(o.Items),
		TotalCents: o.TotalCents,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderStatusChanged is emitted after a lifecycle transition commits.
type OrderStatusChanged struct {
	OrderID    string
	From       order.Status
	To         order.Status
	ActorID    string
	OccurredAt time.Time
}

func (OrderStatusChanged) EventName() string { return "order.status_changed" }

func NewOrderStatusChanged(orderID string, from, to order.Status, actorID string) OrderStatusChanged {
	return OrderStatusChanged{
		OrderID:    orderID,
		From:       from,
		To:         to,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

// StockAdjusted is emitted after an administrative stock correction commits.
type StockAdjusted struct {
	ProductID  string
	Delta      int
	Quantity   int
	ActorID    string
	OccurredAt time.Time
}

func (StockAdjusted) EventName() string { return "inventory.adjusted" }

func NewStockAdjusted(productID string, delta, quantity int, actorID string) StockAdjusted {
	return StockAdjusted{
		ProductID:  productID,
		Delta:      delta,
		Quantity:   quantity,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}
