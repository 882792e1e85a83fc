package order

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutworks/nursery/internal/domain/catalog"
	"github.com/sproutworks/nursery/internal/domain/identity"
	domorder "github.com/sproutworks/nursery/internal/domain/order"
	"github.com/sproutworks/nursery/internal/ledger"
	"github.com/sproutworks/nursery/internal/store"
)

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

var (
	admin    = identity.Actor{UserID: "admin-1", Role: identity.RoleAdmin}
	staff    = identity.Actor{UserID: "staff-1", Role: identity.RoleStaff}
	customer = identity.Actor{UserID: "cust-1", Role: identity.RoleCustomer}
	stranger = identity.Actor{UserID: "cust-2", Role: identity.RoleCustomer}
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := store.New(time.Second)
	svc := NewService(st, ledger.New(nil), &seqIDs{}, nil, nil)

	ctx := context.Background()
	for _, u := range []*identity.User{
		{ID: "admin-1", Name: "Admin", Role: identity.RoleAdmin},
		{ID: "staff-1", Name: "Staff", Role: identity.RoleStaff},
		{ID: "cust-1", Name: "First Customer", Role: identity.RoleCustomer},
		{ID: "cust-2", Name: "Second Customer", Role: identity.RoleCustomer},
	} {
		require.NoError(t, st.PutUser(ctx, u))
	}
	return svc, st
}

func seedProduct(t *testing.T, st *store.Store, id string, qty int, priceCents int64) {
	t.Helper()
	p, err := catalog.NewProduct(id, "Plant "+id, catalog.TypePlant, "B-1", qty, priceCents, "")
	require.NoError(t, err)
	require.NoError(t, st.PutProduct(context.Background(), p))
}

func productQty(t *testing.T, st *store.Store, id string) int {
	t.Helper()
	p, err := st.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

// Scenario A: a covered reservation deducts stock and prices the order from
// the catalog at reservation time.
func TestPlaceOrderDeductsStockAndComputesTotal(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 1000)

	view, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3000), view.TotalCents)
	assert.Equal(t, domorder.StatusPlaced, view.Status)
	assert.Equal(t, "cust-1", view.Customer.ID)
	assert.Equal(t, "First Customer", view.Customer.Name)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(1000), view.Items[0].UnitPriceCents)
	assert.Equal(t, "Plant p1", view.Items[0].Product.Name)

	assert.Equal(t, 2, productQty(t, st, "p1"))
}

// Scenario B: an under-stocked request fails and leaves stock untouched.
func TestPlaceOrderInsufficientStock(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 2, 1000)

	_, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 3}},
	})
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "p1")
	assert.Equal(t, 2, productQty(t, st, "p1"))
}

// Scenario C: a later line item failing rolls back the earlier reservations.
func TestPlaceOrderRollsBackEarlierReservations(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 10, 100)
	seedProduct(t, st, "p2", 5, 100)

	_, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 999},
		},
	})
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)

	assert.Equal(t, 10, productQty(t, st, "p1"))
	assert.Equal(t, 5, productQty(t, st, "p2"))
	assert.Empty(t, st.ListOrders(ctx))
}

// Scenario D: two orders racing for the last unit serialize; exactly one wins.
func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 1, 1000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(ctx, customer, PlaceOrderInput{
				Items: []CartItem{{ProductID: "p1", Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, catalog.ErrInsufficientStock)
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 0, productQty(t, st, "p1"))
}

// Stock never goes negative under sustained contention.
func TestPlaceOrderStockNeverNegative(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 10, 100)

	const workers = 20
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.PlaceOrder(ctx, customer, PlaceOrderInput{
				Items: []CartItem{{ProductID: "p1", Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range results {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 0, productQty(t, st, "p1"))
}

func TestPlaceOrderValidation(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 100)

	_, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{})
	assert.ErrorIs(t, err, domorder.ErrEmptyCart)

	_, err = svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 0}},
	})
	assert.ErrorIs(t, err, domorder.ErrInvalidQuantity)

	_, err = svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domorder.ErrProductRequired)

	// staff must name the customer explicitly
	_, err = svc.PlaceOrder(ctx, staff, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domorder.ErrCustomerRequired)

	_, err = svc.PlaceOrder(ctx, staff, PlaceOrderInput{
		CustomerID: "nobody",
		Items:      []CartItem{{ProductID: "p1", Quantity: 1}},
	})
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	_, err = svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "missing", Quantity: 1}},
	})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestStaffPlacesOrderForCustomer(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 100)

	view, err := svc.PlaceOrder(ctx, staff, PlaceOrderInput{
		CustomerID: "cust-1",
		Items:      []CartItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", view.Customer.ID)
	assert.Equal(t, identity.RoleStaff, view.PlacedByRole)
}

// A customer always orders for themselves, whatever the body says.
func TestCustomerCannotOrderForAnother(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 100)

	view, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		CustomerID: "cust-2",
		Items:      []CartItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", view.Customer.ID)
}

// Captured prices survive later catalog price changes.
func TestCapturedPriceIsImmutable(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 1000)

	view, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 2}},
	})
	require.NoError(t, err)

	p, err := st.GetProduct(ctx, "p1")
	require.NoError(t, err)
	p.UnitPriceCents = 9999
	require.NoError(t, st.PutProduct(ctx, p))

	got, err := svc.GetOrderByID(ctx, customer, view.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.TotalCents)
	assert.Equal(t, int64(1000), got.Items[0].UnitPriceCents)
	// the display product carries the live price
	assert.Equal(t, int64(9999), got.Items[0].Product.UnitPriceCents)
}

// Scenario E: a customer cannot read another customer's order.
func TestGetOrderByIDForbiddenForOtherCustomer(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 100)

	view, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.GetOrderByID(ctx, stranger, view.ID)
	assert.ErrorIs(t, err, identity.ErrForbidden)

	// staff may read any order
	_, err = svc.GetOrderByID(ctx, staff, view.ID)
	assert.NoError(t, err)
}

func TestGetOrderByIDIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 100)

	view, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	first, err := svc.GetOrderByID(ctx, customer, view.ID)
	require.NoError(t, err)
	second, err := svc.GetOrderByID(ctx, customer, view.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetOrdersRoleFiltering(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 10, 100)

	_, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{Items: []CartItem{{ProductID: "p1", Quantity: 1}}})
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, stranger, PlaceOrderInput{Items: []CartItem{{ProductID: "p1", Quantity: 1}}})
	require.NoError(t, err)

	_, err = svc.GetOrders(ctx, customer)
	assert.ErrorIs(t, err, identity.ErrForbidden)

	all, err := svc.GetOrders(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.GetMyOrders(ctx, customer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "cust-1", mine[0].Customer.ID)
}

// Scenario F: an unrecognized status is rejected and the order is unchanged.
func TestUpdateStatusRejectsBogusValue(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 100)

	view, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, admin, view.ID, "bogus")
	assert.ErrorIs(t, err, domorder.ErrInvalidStatus)

	got, err := svc.GetOrderByID(ctx, admin, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusPlaced, got.Status)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 100)

	view, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, customer, view.ID, "confirmed")
	assert.ErrorIs(t, err, identity.ErrForbidden)

	got, err := svc.UpdateStatus(ctx, staff, view.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusConfirmed, got.Status)

	got, err = svc.UpdateStatus(ctx, staff, view.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCancelled, got.Status)

	_, err = svc.UpdateStatus(ctx, staff, view.ID, "shipped")
	assert.ErrorIs(t, err, domorder.ErrTerminalStatus)

	_, err = svc.UpdateStatus(ctx, staff, "missing", "confirmed")
	assert.ErrorIs(t, err, domorder.ErrNotFound)
}

// Cancellation does not return reserved stock; release is a separate,
// explicit ledger operation.
func TestCancellationDoesNotReleaseStock(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 100)

	view, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, productQty(t, st, "p1"))

	_, err = svc.UpdateStatus(ctx, admin, view.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, 2, productQty(t, st, "p1"))
}

func TestDeleteOrder(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 5, 100)

	view, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteOrder(ctx, customer, view.ID), identity.ErrForbidden)
	require.NoError(t, svc.DeleteOrder(ctx, admin, view.ID))

	// soft-deleted orders vanish from every read path
	_, err = svc.GetOrderByID(ctx, admin, view.ID)
	assert.ErrorIs(t, err, domorder.ErrNotFound)
	all, err := svc.GetOrders(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, all)
	mine, err := svc.GetMyOrders(ctx, customer)
	require.NoError(t, err)
	assert.Empty(t, mine)

	_, err = svc.UpdateStatus(ctx, admin, view.ID, "confirmed")
	assert.ErrorIs(t, err, domorder.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteOrder(ctx, admin, view.ID), domorder.ErrNotFound)

	// deletion does not release stock
	assert.Equal(t, 4, productQty(t, st, "p1"))
}

// One cart naming the same product twice accumulates against the same stock.
func TestPlaceOrderRepeatedProductInCart(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedProduct(t, st, "p1", 3, 100)

	view, err := svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p1", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), view.TotalCents)
	assert.Equal(t, 0, productQty(t, st, "p1"))

	_, err = svc.PlaceOrder(ctx, customer, PlaceOrderInput{
		Items: []CartItem{{ProductID: "p1", Quantity: 1}},
	})
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
}
