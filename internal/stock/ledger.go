package stock

import "context"

// TxView is the slice of a database transaction the ledger needs: a
// row-locking read and a stock write. Sale creation passes its own
// transaction in so decrements commit or roll back with the sale.
type TxView interface {
	// GetVariantForUpdate reads a variant under a row lock held until
	// the enclosing transaction ends.
	GetVariantForUpdate(ctx context.Context, variantID int64) (Variant, error)
	// SetVariantStock writes the new stock count for a variant.
	SetVariantStock(ctx context.Context, variantID int64, stock int) error
}

// Ledger applies stock decrements. It is stateless; all state lives in
// the transaction it is handed.
type Ledger struct{}

func NewLedger() *Ledger { return &Ledger{} }

// ReserveAndDecrement locks the variant row, verifies availability, and
// writes the decremented count. On insufficient stock it returns
// *InsufficientStockError without writing anything, so a caller holding
// several locks can abort the whole transaction cleanly.
func (l *Ledger) ReserveAndDecrement(ctx context.Context, tx TxView, variantID int64, qty int) (Movement, error) {
	v, err := tx.GetVariantForUpdate(ctx, variantID)
	if err != nil {
		return Movement{}, err
	}
	if v.Stock < qty {
		return Movement{}, &InsufficientStockError{VariantID: v.ID, Available: v.Stock, Requested: qty}
	}
	after := v.Stock - qty
	if err := tx.SetVariantStock(ctx, v.ID, after); err != nil {
		return Movement{}, err
	}
	before := v.Stock
	v.Stock = after
	return Movement{Variant: v, Before: before, After: after}, nil
}
