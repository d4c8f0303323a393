package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Alba-Tab/backend-boutique/internal/installment"
)

// PaymentType distinguishes cash sales from financed ones.
type PaymentType string

const (
	PaymentCash   PaymentType = "cash"
	PaymentCredit PaymentType = "credit"
)

// SaleState is derived from the sale's payments, never set directly by
// callers.
type SaleState string

const (
	StatePending SaleState = "pending"
	StatePartial SaleState = "partial"
	StatePaid    SaleState = "paid"
)

// Sale is the aggregate root: line items and, for credit sales, the
// installment schedule are created with it in one transaction.
type Sale struct {
	ID            int64       `json:"id"`
	SellerID      int64       `json:"seller_id"`
	CustomerID    *int64      `json:"customer_id,omitempty"`
	CustomerName  string      `json:"customer_name,omitempty"`
	CustomerPhone string      `json:"customer_phone,omitempty"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	CustomerAddr  string      `json:"customer_address,omitempty"`
	PaymentType   PaymentType `json:"payment_type"`
	State         SaleState   `json:"state"`

	Subtotal decimal.Decimal `json:"subtotal"`
	// Credit-only fields; zero for cash sales.
	InterestRate   decimal.Decimal `json:"interest_rate"`
	InterestAmount decimal.Decimal `json:"interest_amount"`
	Total          decimal.Decimal `json:"total"`
	TermMonths     int             `json:"term_months,omitempty"`
	MonthlyAmount  decimal.Decimal `json:"monthly_amount"`

	CreatedAt time.Time `json:"created_at"`

	Items        []LineItem                `json:"items,omitempty"`
	Installments []installment.Installment `json:"installments,omitempty"`
}

// AmountDue is what the buyer owes in total: subtotal for cash,
// total-with-interest for credit.
func (s Sale) AmountDue() decimal.Decimal {
	if s.PaymentType == PaymentCredit {
		return s.Total
	}
	return s.Subtotal
}

// LineItem snapshots the variant's price and descriptive fields at sale
// time; later catalog edits never change it.
type LineItem struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	VariantID   int64           `json:"variant_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// ItemInput is one requested variant-quantity pair.
type ItemInput struct {
	VariantID int64 `json:"variant_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// CreateSaleRequest carries everything CreateSale needs. Manual
// customer fields describe a walk-in buyer when CustomerID is absent.
type CreateSaleRequest struct {
	SellerID      int64       `json:"seller_id" validate:"required,gt=0"`
	CustomerID    *int64      `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	CustomerName  string      `json:"customer_name,omitempty" validate:"max=120"`
	CustomerPhone string      `json:"customer_phone,omitempty" validate:"max=30"`
	CustomerEmail string      `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerAddr  string      `json:"customer_address,omitempty" validate:"max=200"`
	PaymentType   PaymentType `json:"payment_type" validate:"required,oneof=cash credit"`
	Items         []ItemInput `json:"items" validate:"required,min=1,dive"`

	// Required when PaymentType is credit.
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
	TermMonths   *int             `json:"term_months,omitempty"`
}

var (
	ErrInvalidSeller           = errors.New("sales: seller not found, inactive, or not a seller")
	ErrInvalidCustomer         = errors.New("sales: customer not found or not a customer")
	ErrInvalidCreditParameters = errors.New("sales: credit sales require interest rate and term greater than zero")
	ErrNoItems                 = errors.New("sales: sale requires at least one item")
	ErrSaleNotFound            = errors.New("sales: sale not found")
)
