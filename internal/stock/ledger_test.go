package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	variants map[int64]Variant
	writes   int
}

func (f *fakeTx) GetVariantForUpdate(_ context.Context, id int64) (Variant, error) {
	v, ok := f.variants[id]
	if !ok {
		return Variant{}, ErrVariantNotFound
	}
	return v, nil
}

func (f *fakeTx) SetVariantStock(_ context.Context, id int64, stock int) error {
	v := f.variants[id]
	v.Stock = stock
	f.variants[id] = v
	f.writes++
	return nil
}

func TestReserveAndDecrement(t *testing.T) {
	tx := &fakeTx{variants: map[int64]Variant{
		7: {ID: 7, ProductID: 1, ProductName: "Blusa", Size: "M", Color: "rojo", Price: decimal.RequireFromString("89.90"), Stock: 5, MinStock: 2},
	}}
	ledger := NewLedger()

	mv, err := ledger.ReserveAndDecrement(context.Background(), tx, 7, 3)
	require.NoError(t, err)
	require.Equal(t, 5, mv.Before)
	require.Equal(t, 2, mv.After)
	require.Equal(t, 2, tx.variants[7].Stock)
	require.True(t, mv.Variant.BelowMinimum())
}

func TestReserveAndDecrementExactStock(t *testing.T) {
	tx := &fakeTx{variants: map[int64]Variant{
		7: {ID: 7, Stock: 4},
	}}
	mv, err := NewLedger().ReserveAndDecrement(context.Background(), tx, 7, 4)
	require.NoError(t, err)
	require.Equal(t, 0, mv.After)
}

func TestReserveAndDecrementInsufficient(t *testing.T) {
	tx := &fakeTx{variants: map[int64]Variant{
		7: {ID: 7, Stock: 2},
	}}
	_, err := NewLedger().ReserveAndDecrement(context.Background(), tx, 7, 3)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(7), insufficient.VariantID)
	require.Equal(t, 2, insufficient.Available)
	require.Equal(t, 3, insufficient.Requested)
	require.Zero(t, tx.writes, "failed decrement must not write")
	require.Equal(t, 2, tx.variants[7].Stock)
}

func TestReserveAndDecrementUnknownVariant(t *testing.T) {
	tx := &fakeTx{variants: map[int64]Variant{}}
	_, err := NewLedger().ReserveAndDecrement(context.Background(), tx, 99, 1)
	require.True(t, errors.Is(err, ErrVariantNotFound))
}
