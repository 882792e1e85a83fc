package events

import (
	"context"

	"github.com/sproutworks/nursery/internal/domain/event"
	"github.com/sproutworks/nursery/internal/observability"
)

const componentAudit = "audit_worker"

// Auditor writes a structured audit line for every commerce event. It is the
// in-process stand-in for a downstream notification/reporting consumer.
type Auditor struct {
	log observability.Logger
}

func NewAuditor(tel observability.Observability) *Auditor {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Auditor{log: tel.Logger().With(observability.F("component", componentAudit))}
}

// Register subscribes the auditor to every event it understands.
func (a *Auditor) Register(sub Subscriber) {
	sub.Subscribe(event.OrderPlaced{}.EventName(), a.handle)
	sub.Subscribe(event.OrderStatusChanged{}.EventName(), a.handle)
	sub.Subscribe(event.StockAdjusted{}.EventName(), a.handle)
}

func (a *Auditor) handle(ctx context.Context, e event.Event) error {
	_ = ctx

	switch evt := e.(type) {
	case event.OrderPlaced:
		a.log.Info("audit_order_placed",
			observability.F("order_id", evt.OrderID),
			observability.F("customer_id", evt.CustomerID),
			observability.F("items", evt.ItemCount),
			observability.F("total_cents", evt.TotalCents),
		)
	case event.OrderStatusChanged:
		a.log.Info("audit_order_status_changed",
			observability.F("order_id", evt.OrderID),
			observability.F("from", string(evt.From)),
			observability.F("to", string(evt.To)),
			observability.F("actor_id", evt.ActorID),
		)
	case event.StockAdjusted:
		a.log.Info("audit_stock_adjusted",
			observability.F("product_id", evt.ProductID),
			observability.F("delta", evt.Delta),
			observability.F("quantity", evt.Quantity),
			observability.F("actor_id", evt.ActorID),
		)
	default:
		a.log.Debug("audit_event_ignored", observability.F("event", e.EventName()))
	}
	return nil
}
