// Package order implements the order workflow: the placement transaction,
// the status lifecycle, and role-filtered reads.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sproutworks/nursery/internal/domain/event"
	"github.com/sproutworks/nursery/internal/domain/identity"
	domorder "github.com/sproutworks/nursery/internal/domain/order"
	"github.com/sproutworks/nursery/internal/events"
	"github.com/sproutworks/nursery/internal/ledger"
	"github.com/sproutworks/nursery/internal/observability"
	"github.com/sproutworks/nursery/internal/observability/logctx"
	"github.com/sproutworks/nursery/internal/pkg/id"
	"github.com/sproutworks/nursery/internal/store"
)

const (
	componentOrderService = "order_service"
	ucPlaceOrder          = "order.place"
	ucUpdateStatus        = "order.update_status"
	spanPrefix            = "UC."
	publishTimeout        = 300 * time.Millisecond
)

// ErrStorage wraps infrastructure failures from the unit of work; the
// transaction guarantees no partial stock mutation survives them.
var ErrStorage = errors.New("order: storage failure")

type Service struct {
	store     *store.Store
	ledger    *ledger.Ledger
	ids       id.Generator
	publisher events.Publisher

	tel          observability.Observability
	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	placed       observability.Counter   // orders_placed_total
}

func NewService(st *store.Store, led *ledger.Ledger, ids id.Generator, publisher events.Publisher, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		store:        st,
		ledger:       led,
		ids:          ids,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("component", componentOrderService)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
		placed:       tel.Metrics().Counter(observability.MOrdersPlaced),
	}
}

type CartItem struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	// CustomerID is required for admin/staff actors; customer actors always
	// order for themselves and any supplied value is ignored.
	CustomerID string
	Items      []CartItem
}

// PlaceOrder validates the cart, reserves every line item inside one unit of
// work, prices the order from the catalog at reservation time, and persists
// it as placed. Any failure aborts the whole transaction; no partial stock
// deduction survives.
func (s *Service) PlaceOrder(ctx context.Context, actor identity.Actor, input PlaceOrderInput) (_ *View, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", ucPlaceOrder))

	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+"PlaceOrder",
		attribute.String("use_case", ucPlaceOrder),
		attribute.String("actor.role", string(actor.Role)),
		attribute.Int("cart.items", len(input.Items)),
	)
	start := time.Now()
	outcome := "success"

	defer func() {
		lat := time.Since(start).Seconds()
		s.observe(ucPlaceOrder, outcome, lat)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	customerID, err := s.resolveCustomer(ctx, actor, input.CustomerID)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	if len(input.Items) == 0 {
		outcome = "error"
		return nil, domorder.ErrEmptyCart
	}
	for _, it := range input.Items {
		if it.ProductID == "" {
			outcome = "error"
			return nil, domorder.ErrProductRequired
		}
		if it.Quantity < 1 {
			outcome = "error"
			return nil, domorder.ErrInvalidQuantity
		}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	lineItems := make([]domorder.LineItem, 0, len(input.Items))
	for _, it := range input.Items {
		p, rerr := s.ledger.Reserve(ctx, tx, it.ProductID, it.Quantity)
		if rerr != nil {
			outcome = "error"
			return nil, rerr
		}
		lineItems = append(lineItems, domorder.LineItem{
			ProductID:      p.ID,
			Quantity:       it.Quantity,
			UnitPriceCents: p.UnitPriceCents,
		})
	}

	entity, err := domorder.New(s.ids.NewID(), customerID, actor.Role, lineItems)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	if err := tx.InsertOrder(entity); err != nil {
		outcome = "error"
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		outcome = "error"
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	span.SetAttributes(attribute.String("order.id", entity.ID))
	if s.placed != nil {
		s.placed.Add(1)
	}
	s.publish(ctx, event.NewOrderPlaced(entity))

	return s.populate(ctx, entity), nil
}

// UpdateStatus moves an order through its lifecycle. Privileged roles only;
// terminal statuses are final. Cancellation does not release reserved stock;
// refund flows call the ledger's Release explicitly.
func (s *Service) UpdateStatus(ctx context.Context, actor identity.Actor, orderID, status string) (*View, error) {
	if !actor.Privileged() {
		s.count(ucUpdateStatus, "forbidden")
		return nil, identity.ErrForbidden
	}

	newStatus, err := domorder.ParseStatus(status)
	if err != nil {
		s.count(ucUpdateStatus, "invalid")
		return nil, err
	}

	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		s.count(ucUpdateStatus, "not_found")
		return nil, err
	}
	if o.Deleted() {
		s.count(ucUpdateStatus, "not_found")
		return nil, domorder.ErrNotFound
	}

	from := o.Status
	if err := o.SetStatus(newStatus); err != nil {
		s.count(ucUpdateStatus, "invalid")
		return nil, err
	}
	if err := s.store.UpdateOrder(ctx, o); err != nil {
		s.count(ucUpdateStatus, "error")
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.count(ucUpdateStatus, "success")
	s.publish(ctx, event.NewOrderStatusChanged(o.ID, from, newStatus, actor.UserID))
	return s.populate(ctx, o), nil
}

// GetOrders lists all live orders; staff and admin only.
func (s *Service) GetOrders(ctx context.Context, actor identity.Actor) ([]*View, error) {
	if !actor.Privileged() {
		return nil, identity.ErrForbidden
	}
	return s.collect(ctx, func(*domorder.Order) bool { return true }), nil
}

// GetMyOrders lists the acting user's own live orders.
func (s *Service) GetMyOrders(ctx context.Context, actor identity.Actor) ([]*View, error) {
	return s.collect(ctx, func(o *domorder.Order) bool { return o.CustomerID == actor.UserID }), nil
}

// GetOrderByID returns a single live order. A customer may only read their
// own orders.
func (s *Service) GetOrderByID(ctx context.Context, actor identity.Actor, orderID string) (*View, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Deleted() {
		return nil, domorder.ErrNotFound
	}
	if actor.Role == identity.RoleCustomer && o.CustomerID != actor.UserID {
		return nil, identity.ErrForbidden
	}
	return s.populate(ctx, o), nil
}

// DeleteOrder soft-deletes an order. The row remains for reporting; reserved
// stock is not returned.
func (s *Service) DeleteOrder(ctx context.Context, actor identity.Actor, orderID string) error {
	if !actor.Privileged() {
		return identity.ErrForbidden
	}

	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Deleted() {
		return domorder.ErrNotFound
	}

	o.SoftDelete()
	if err := s.store.UpdateOrder(ctx, o); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	logctx.FromOr(ctx, s.log).Info("order_soft_deleted",
		observability.F("order_id", orderID),
		observability.F("actor_id", actor.UserID),
	)
	return nil
}

func (s *Service) resolveCustomer(ctx context.Context, actor identity.Actor, requested string) (string, error) {
	customerID := requested
	if actor.Role == identity.RoleCustomer {
		customerID = actor.UserID
	}
	if customerID == "" {
		return "", domorder.ErrCustomerRequired
	}
	if _, err := s.store.GetUser(ctx, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

func (s *Service) collect(ctx context.Context, keep func(*domorder.Order) bool) []*View {
	all := s.store.ListOrders(ctx)
	out := make([]*View, 0, len(all))
	for _, o := range all {
		if o.Deleted() || !keep(o) {
			continue
		}
		out = append(out, s.populate(ctx, o))
	}
	return out
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err),
		)
	}
}

func (s *Service) count(useCase, outcome string) {
	if s.reqCounter != nil {
		s.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
	}
}

func (s *Service) observe(useCase, outcome string, latencySeconds float64) {
	s.count(useCase, outcome)
	if s.durHistogram != nil {
		s.durHistogram.Observe(latencySeconds, observability.L("use_case", useCase))
	}
}
