package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutworks/nursery/internal/domain/catalog"
	"github.com/sproutworks/nursery/internal/store"
)

func setup(t *testing.T, qty int) (*Ledger, *store.Store) {
	t.Helper()
	s := store.New(time.Second)
	p, err := catalog.NewProduct("p1", "Oak Sapling", catalog.TypeSapling, "B-1", qty, 1999, "")
	require.NoError(t, err)
	require.NoError(t, s.PutProduct(context.Background(), p))
	return New(nil), s
}

func TestReserveDeductsAndCapturesPrice(t *testing.T) {
	ctx := context.Background()
	led, s := setup(t, 5)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	p, err := led.Reserve(ctx, tx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Quantity)
	assert.Equal(t, int64(1999), p.UnitPriceCents)

	require.NoError(t, tx.Commit())
	committed, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, committed.Quantity)
}

func TestReserveInsufficientStock(t *testing.T) {
	ctx := context.Background()
	led, s := setup(t, 2)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = led.Reserve(ctx, tx, "p1", 3)
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "p1")

	require.NoError(t, tx.Rollback())
	committed, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, committed.Quantity)
}

func TestReserveUnknownProduct(t *testing.T) {
	ctx := context.Background()
	led, s := setup(t, 2)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = led.Reserve(ctx, tx, "missing", 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	led, s := setup(t, 2)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = led.Reserve(ctx, tx, "p1", 0)
	assert.ErrorIs(t, err, catalog.ErrInvalidQuantity)
}

func TestReserveAccumulatesWithinOneTransaction(t *testing.T) {
	ctx := context.Background()
	led, s := setup(t, 5)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = led.Reserve(ctx, tx, "p1", 2)
	require.NoError(t, err)
	p, err := led.Reserve(ctx, tx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Quantity)

	_, err = led.Reserve(ctx, tx, "p1", 2)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	led, s := setup(t, 2)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	p, err := led.Release(ctx, tx, "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Quantity)
	require.NoError(t, tx.Commit())

	committed, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, committed.Quantity)
}

func TestReleaseGuards(t *testing.T) {
	ctx := context.Background()
	led, s := setup(t, 2)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = led.Release(ctx, tx, "p1", 0)
	assert.ErrorIs(t, err, catalog.ErrInvalidQuantity)

	_, err = led.Release(ctx, tx, "missing", 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()
	led, s := setup(t, 2)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	p, err := led.Adjust(ctx, tx, "p1", -2)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity)

	_, err = led.Adjust(ctx, tx, "p1", -1)
	assert.ErrorIs(t, err, catalog.ErrNegativeStock)

	_, err = led.Adjust(ctx, tx, "p1", 0)
	assert.ErrorIs(t, err, catalog.ErrInvalidQuantity)
}
