package payments

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alba-Tab/backend-boutique/internal/installment"
	"github.com/Alba-Tab/backend-boutique/internal/observability"
	"github.com/Alba-Tab/backend-boutique/internal/sales"
	"github.com/Alba-Tab/backend-boutique/internal/shared"
)

// TxRepository is the write surface inside one payment transaction.
// GetSaleForUpdate takes the sale row lock that serializes concurrent
// payments against the same sale.
type TxRepository interface {
	GetSaleForUpdate(ctx context.Context, saleID int64) (sales.Sale, error)
	GetInstallmentForUpdate(ctx context.Context, id int64) (installment.Installment, error)
	ListInstallmentsForUpdate(ctx context.Context, saleID int64) ([]installment.Installment, error)
	SumPayments(ctx context.Context, saleID int64) (decimal.Decimal, error)
	MarkInstallmentPaid(ctx context.Context, id int64, paidAt time.Time) error
	InsertPayment(ctx context.Context, p *Payment) error
	SetSaleState(ctx context.Context, saleID int64, state sales.SaleState) error
}

// RepositoryPort abstracts payment persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	ListBySale(ctx context.Context, saleID int64) ([]Payment, error)
	GetInstallment(ctx context.Context, id int64) (installment.Installment, error)
}

// Auditor records administrative actions. Satisfied by shared.AuditLogger.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service applies payments to sales while enforcing the no-overpayment
// rule and keeping installment and sale state consistent.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	audit   Auditor
	metrics *observability.Metrics
	now     func() time.Time
}

func NewService(logger *slog.Logger, repo RepositoryPort, audit Auditor, metrics *observability.Metrics) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, metrics: metrics, now: time.Now}
}

// RegisterPayment applies a payment to a sale. With InstallmentID set it
// must cover that installment in full; without it, credit sales run the
// waterfall: oldest installments first, each marked paid only once the
// cumulative paid total covers it and everything before it.
func (s *Service) RegisterPayment(ctx context.Context, req RegisterPaymentRequest) (Payment, error) {
	if !req.Method.Valid() {
		return Payment{}, ErrInvalidMethod
	}
	payment := Payment{
		SaleID:        req.SaleID,
		InstallmentID: req.InstallmentID,
		Amount:        req.Amount,
		Method:        req.Method,
		Reference:     req.Reference,
	}
	if payment.Reference == "" {
		payment.Reference = uuid.NewString()
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, req.SaleID)
		if err != nil {
			return err
		}
		if !req.Amount.IsPositive() {
			return ErrInvalidAmount
		}

		amountDue := sale.AmountDue()
		alreadyPaid, err := tx.SumPayments(ctx, sale.ID)
		if err != nil {
			return err
		}
		newTotalPaid := alreadyPaid.Add(req.Amount)
		if newTotalPaid.GreaterThan(amountDue) {
			s.metrics.OverpaymentRejected()
			return &OverpaymentError{AmountDue: amountDue, AlreadyPaid: alreadyPaid, Attempted: req.Amount}
		}

		now := s.now()
		switch {
		case req.InstallmentID != nil:
			inst, err := tx.GetInstallmentForUpdate(ctx, *req.InstallmentID)
			if err != nil {
				return err
			}
			if inst.SaleID != sale.ID {
				return ErrInstallmentMismatch
			}
			if inst.State == installment.StatePaid {
				return ErrInstallmentAlreadyPaid
			}
			if req.Amount.LessThan(inst.Amount) {
				return &PartialInstallmentError{InstallmentID: inst.ID, InstallmentAmount: inst.Amount, Attempted: req.Amount}
			}
			if err := tx.MarkInstallmentPaid(ctx, inst.ID, now); err != nil {
				return err
			}
		case sale.PaymentType == sales.PaymentCredit:
			if err := s.runWaterfall(ctx, tx, sale.ID, newTotalPaid, now); err != nil {
				return err
			}
		}

		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return err
		}
		return tx.SetSaleState(ctx, sale.ID, deriveState(newTotalPaid, amountDue))
	})
	if err != nil {
		return Payment{}, err
	}

	s.afterPayment(ctx, payment, "payment.registered")
	return payment, nil
}

// runWaterfall marks installments paid in sequence order while the
// cumulative paid total covers each one's cumulative due amount,
// stopping at the first it cannot fully cover. Already-paid rows still
// count toward the cumulative basis.
func (s *Service) runWaterfall(ctx context.Context, tx TxRepository, saleID int64, totalPaid decimal.Decimal, now time.Time) error {
	schedule, err := tx.ListInstallmentsForUpdate(ctx, saleID)
	if err != nil {
		return err
	}
	cumulative := decimal.Zero
	for _, in := range schedule {
		cumulative = cumulative.Add(in.Amount)
		if totalPaid.LessThan(cumulative) {
			break
		}
		if in.State == installment.StatePaid {
			continue
		}
		if err := tx.MarkInstallmentPaid(ctx, in.ID, now); err != nil {
			return err
		}
	}
	return nil
}

// PayFull settles a cash sale's remaining balance in one payment.
func (s *Service) PayFull(ctx context.Context, saleID int64, method Method, reference string) (Payment, error) {
	if !method.Valid() {
		return Payment{}, ErrInvalidMethod
	}
	payment := Payment{SaleID: saleID, Method: method, Reference: reference}
	if payment.Reference == "" {
		payment.Reference = uuid.NewString()
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.PaymentType != sales.PaymentCash {
			return ErrCashOnly
		}
		if sale.State == sales.StatePaid {
			return ErrSaleAlreadyPaid
		}
		alreadyPaid, err := tx.SumPayments(ctx, saleID)
		if err != nil {
			return err
		}
		remaining := sale.Subtotal.Sub(alreadyPaid)
		if !remaining.IsPositive() {
			return ErrSaleAlreadyPaid
		}
		payment.Amount = remaining
		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return err
		}
		return tx.SetSaleState(ctx, saleID, sales.StatePaid)
	})
	if err != nil {
		return Payment{}, err
	}

	s.afterPayment(ctx, payment, "payment.pay_full")
	return payment, nil
}

// MarkInstallmentPaid is the administrative override. It still writes a
// ledger row: a synthesized manual payment covering the installment, or
// the sale's remaining balance if that is smaller, so paid totals stay
// reconcilable with the payment history.
func (s *Service) MarkInstallmentPaid(ctx context.Context, installmentID int64, actorID int64, paidDate *time.Time) (installment.Installment, error) {
	// Non-locking read first to learn the sale, then lock sale before
	// installment, same order as RegisterPayment.
	preview, err := s.repo.GetInstallment(ctx, installmentID)
	if err != nil {
		return installment.Installment{}, err
	}

	var result installment.Installment
	var synthesized *Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, preview.SaleID)
		if err != nil {
			return err
		}
		inst, err := tx.GetInstallmentForUpdate(ctx, installmentID)
		if err != nil {
			return err
		}
		if inst.State == installment.StatePaid {
			return ErrInstallmentAlreadyPaid
		}

		paidAt := s.now()
		if paidDate != nil {
			paidAt = *paidDate
		}
		if err := tx.MarkInstallmentPaid(ctx, inst.ID, paidAt); err != nil {
			return err
		}

		alreadyPaid, err := tx.SumPayments(ctx, sale.ID)
		if err != nil {
			return err
		}
		amountDue := sale.AmountDue()
		synthAmount := decimal.Min(inst.Amount, amountDue.Sub(alreadyPaid))
		if synthAmount.IsPositive() {
			p := Payment{
				SaleID:        sale.ID,
				InstallmentID: &inst.ID,
				Amount:        synthAmount,
				Method:        MethodManual,
				Reference:     "manual-override",
			}
			if err := tx.InsertPayment(ctx, &p); err != nil {
				return err
			}
			synthesized = &p
			alreadyPaid = alreadyPaid.Add(synthAmount)
		}

		schedule, err := tx.ListInstallmentsForUpdate(ctx, sale.ID)
		if err != nil {
			return err
		}
		outstanding := false
		for _, in := range schedule {
			if in.ID != inst.ID && in.State != installment.StatePaid {
				outstanding = true
				break
			}
		}
		state := sales.StatePaid
		if outstanding {
			state = deriveState(alreadyPaid, amountDue)
		}
		if err := tx.SetSaleState(ctx, sale.ID, state); err != nil {
			return err
		}

		inst.State = installment.StatePaid
		inst.PaidDate = &paidAt
		result = inst
		return nil
	})
	if err != nil {
		return installment.Installment{}, err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "installment.marked_paid",
			Entity:   "installment",
			EntityID: strconv.FormatInt(result.ID, 10),
			Meta: map[string]any{
				"sale_id":     result.SaleID,
				"seq":         result.Seq,
				"amount":      result.Amount.StringFixed(2),
				"synthesized": synthesized != nil,
			},
			At: s.now(),
		}); err != nil {
			s.logger.Error("audit installment override", slog.Int64("installment_id", result.ID), slog.Any("error", err))
		}
	}
	if synthesized != nil {
		s.metrics.PaymentRegistered(string(MethodManual))
	}
	return result, nil
}

// ListBySale returns a sale's payment history, oldest first.
func (s *Service) ListBySale(ctx context.Context, saleID int64) ([]Payment, error) {
	return s.repo.ListBySale(ctx, saleID)
}

func (s *Service) afterPayment(ctx context.Context, p Payment, action string) {
	s.metrics.PaymentRegistered(string(p.Method))
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "payment",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta: map[string]any{
			"sale_id": p.SaleID,
			"amount":  p.Amount.StringFixed(2),
			"method":  p.Method,
		},
		At: s.now(),
	}); err != nil {
		s.logger.Error("audit payment", slog.Int64("payment_id", p.ID), slog.Any("error", err))
	}
}

// deriveState recomputes a sale's state from its paid total. totalPaid
// never exceeds amountDue here; overpayments were rejected earlier.
func deriveState(totalPaid, amountDue decimal.Decimal) sales.SaleState {
	switch {
	case totalPaid.GreaterThanOrEqual(amountDue):
		return sales.StatePaid
	case totalPaid.IsPositive():
		return sales.StatePartial
	default:
		return sales.StatePending
	}
}
