package payments

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Method is how the money arrived. MethodManual is reserved for
// administrative overrides and never accepted from callers.
type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
	MethodQR       Method = "qr"
	MethodManual   Method = "manual"
)

// Valid reports whether a caller-supplied method is accepted.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodQR:
		return true
	}
	return false
}

// Payment is an append-only ledger row: never edited, never deleted.
type Payment struct {
	ID            int64           `json:"id"`
	SaleID        int64           `json:"sale_id"`
	InstallmentID *int64          `json:"installment_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Method        Method          `json:"method"`
	Reference     string          `json:"reference"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RegisterPaymentRequest targets one installment when InstallmentID is
// set, otherwise the sale as a whole.
type RegisterPaymentRequest struct {
	SaleID        int64           `json:"sale_id" validate:"required,gt=0"`
	InstallmentID *int64          `json:"installment_id,omitempty" validate:"omitempty,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	Method        Method          `json:"method" validate:"required,oneof=cash card transfer qr"`
	Reference     string          `json:"reference,omitempty" validate:"max=120"`
}

var (
	ErrSaleNotFound           = errors.New("payments: sale not found")
	ErrInstallmentNotFound    = errors.New("payments: installment not found")
	ErrInstallmentMismatch    = errors.New("payments: installment belongs to a different sale")
	ErrInstallmentAlreadyPaid = errors.New("payments: installment already paid")
	ErrInvalidAmount          = errors.New("payments: amount must be greater than zero")
	ErrInvalidMethod          = errors.New("payments: unknown payment method")
	ErrCashOnly               = errors.New("payments: pay-full applies to cash sales only")
	ErrSaleAlreadyPaid        = errors.New("payments: sale already fully paid")
)

// OverpaymentError rejects any payment that would push the sale's paid
// total past its amount due. Nothing is written when it is returned.
type OverpaymentError struct {
	AmountDue   decimal.Decimal
	AlreadyPaid decimal.Decimal
	Attempted   decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payments: overpayment: due %s, already paid %s, attempted %s",
		e.AmountDue.StringFixed(2), e.AlreadyPaid.StringFixed(2), e.Attempted.StringFixed(2))
}

// PartialInstallmentError rejects a targeted payment smaller than the
// named installment; partial application is not supported on that path.
type PartialInstallmentError struct {
	InstallmentID     int64
	InstallmentAmount decimal.Decimal
	Attempted         decimal.Decimal
}

func (e *PartialInstallmentError) Error() string {
	return fmt.Sprintf("payments: installment %d requires %s, got %s",
		e.InstallmentID, e.InstallmentAmount.StringFixed(2), e.Attempted.StringFixed(2))
}
