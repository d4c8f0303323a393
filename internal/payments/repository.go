package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Alba-Tab/backend-boutique/internal/installment"
	"github.com/Alba-Tab/backend-boutique/internal/platform/db"
	"github.com/Alba-Tab/backend-boutique/internal/sales"
)

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, r.lockTimeout, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetSaleForUpdate(ctx context.Context, saleID int64) (sales.Sale, error) {
	var (
		s                                      sales.Sale
		subtotal, rate, interest, total, month pgtype.Numeric
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, seller_id, payment_type, state, subtotal, interest_rate, interest_amount, total, term_months, monthly_amount, created_at
		FROM sales
		WHERE id = $1
		FOR UPDATE`, saleID).
		Scan(&s.ID, &s.SellerID, &s.PaymentType, &s.State, &subtotal, &rate, &interest, &total, &s.TermMonths, &month, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sales.Sale{}, ErrSaleNotFound
		}
		return sales.Sale{}, fmt.Errorf("lock sale: %w", err)
	}
	s.Subtotal = db.DecimalFromNumeric(subtotal)
	s.InterestRate = db.DecimalFromNumeric(rate)
	s.InterestAmount = db.DecimalFromNumeric(interest)
	s.Total = db.DecimalFromNumeric(total)
	s.MonthlyAmount = db.DecimalFromNumeric(month)
	return s, nil
}

func scanInstallmentRow(row pgx.Row) (installment.Installment, error) {
	var (
		in     installment.Installment
		amount pgtype.Numeric
		paid   *time.Time
	)
	if err := row.Scan(&in.ID, &in.SaleID, &in.Seq, &in.DueDate, &amount, &in.State, &paid); err != nil {
		return installment.Installment{}, err
	}
	in.Amount = db.DecimalFromNumeric(amount)
	in.PaidDate = paid
	return in, nil
}

const installmentColumns = `id, sale_id, seq, due_date, amount, state, paid_date`

func (t *txRepository) GetInstallmentForUpdate(ctx context.Context, id int64) (installment.Installment, error) {
	in, err := scanInstallmentRow(t.tx.QueryRow(ctx, `
		SELECT `+installmentColumns+` FROM installments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return installment.Installment{}, ErrInstallmentNotFound
		}
		return installment.Installment{}, fmt.Errorf("lock installment: %w", err)
	}
	return in, nil
}

func (t *txRepository) ListInstallmentsForUpdate(ctx context.Context, saleID int64) ([]installment.Installment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+installmentColumns+`
		FROM installments
		WHERE sale_id = $1
		ORDER BY seq
		FOR UPDATE`, saleID)
	if err != nil {
		return nil, fmt.Errorf("lock installments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (installment.Installment, error) {
		return scanInstallmentRow(row)
	})
}

func (t *txRepository) SumPayments(ctx context.Context, saleID int64) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE sale_id = $1`, saleID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return db.DecimalFromNumeric(sum), nil
}

func (t *txRepository) MarkInstallmentPaid(ctx context.Context, id int64, paidAt time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE installments SET state = 'paid', paid_date = $2 WHERE id = $1`, id, paidAt)
	if err != nil {
		return fmt.Errorf("mark installment paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInstallmentNotFound
	}
	return nil
}

func (t *txRepository) InsertPayment(ctx context.Context, p *Payment) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payments (sale_id, installment_id, amount, method, reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.SaleID, p.InstallmentID, db.NumericFromDecimal(p.Amount), p.Method, p.Reference,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (t *txRepository) SetSaleState(ctx context.Context, saleID int64, state sales.SaleState) error {
	if _, err := t.tx.Exec(ctx, `UPDATE sales SET state = $2 WHERE id = $1`, saleID, state); err != nil {
		return fmt.Errorf("set sale state: %w", err)
	}
	return nil
}

// ListBySale returns a sale's payments, oldest first.
func (r *Repository) ListBySale(ctx context.Context, saleID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, installment_id, amount, method, reference, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY created_at, id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Payment, error) {
		var (
			p      Payment
			amount pgtype.Numeric
		)
		if err := row.Scan(&p.ID, &p.SaleID, &p.InstallmentID, &amount, &p.Method, &p.Reference, &p.CreatedAt); err != nil {
			return Payment{}, err
		}
		p.Amount = db.DecimalFromNumeric(amount)
		return p, nil
	})
}

// GetInstallment is a non-locking read used to resolve an installment's
// sale before taking locks in sale-then-installment order.
func (r *Repository) GetInstallment(ctx context.Context, id int64) (installment.Installment, error) {
	in, err := scanInstallmentRow(r.pool.QueryRow(ctx, `
		SELECT `+installmentColumns+` FROM installments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return installment.Installment{}, ErrInstallmentNotFound
		}
		return installment.Installment{}, fmt.Errorf("get installment: %w", err)
	}
	return in, nil
}
