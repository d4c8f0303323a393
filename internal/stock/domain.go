package stock

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Variant is a purchasable configuration of a product with its own stock
// count. Stock is mutated only through the Ledger.
type Variant struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	MinStock    int             `json:"min_stock"`
}

// BelowMinimum reports whether the variant sits at or under its
// minimum-stock threshold.
func (v Variant) BelowMinimum() bool {
	return v.Stock <= v.MinStock
}

// Movement records one stock decrement for auditing.
type Movement struct {
	Variant Variant
	Before  int
	After   int
}

// ErrVariantNotFound indicates a missing variant row.
var ErrVariantNotFound = errors.New("stock: variant not found")

// InsufficientStockError is returned when a decrement would drive stock
// below zero. Nothing is mutated when it is returned.
type InsufficientStockError struct {
	VariantID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock for variant %d: available %d, requested %d", e.VariantID, e.Available, e.Requested)
}
