package installment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Alba-Tab/backend-boutique/internal/platform/db"
)

// Store provides read-side installment queries and the overdue sweep.
// Writes that belong to a sale or payment transaction live in those
// packages' repositories.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const selectColumns = `id, sale_id, seq, due_date, amount, state, paid_date`

func scanInstallment(row pgx.CollectableRow) (Installment, error) {
	var (
		in     Installment
		amount pgtype.Numeric
		paid   *time.Time
	)
	if err := row.Scan(&in.ID, &in.SaleID, &in.Seq, &in.DueDate, &amount, &in.State, &paid); err != nil {
		return Installment{}, err
	}
	in.Amount = db.DecimalFromNumeric(amount)
	in.PaidDate = paid
	return in, nil
}

// ListBySale returns the full schedule of a sale in sequence order.
func (s *Store) ListBySale(ctx context.Context, saleID int64) ([]Installment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM installments
		WHERE sale_id = $1
		ORDER BY seq`, saleID)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return pgx.CollectRows(rows, scanInstallment)
}

// ListOverdue returns unpaid installments whose due date has passed.
func (s *Store) ListOverdue(ctx context.Context, now time.Time) ([]Installment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM installments
		WHERE state IN ('pending', 'overdue') AND due_date < $1
		ORDER BY due_date, sale_id, seq`, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue installments: %w", err)
	}
	return pgx.CollectRows(rows, scanInstallment)
}

// ListDueWithin returns pending installments due in the next `days`
// days, for reminder notices.
func (s *Store) ListDueWithin(ctx context.Context, now time.Time, days int) ([]Installment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM installments
		WHERE state = 'pending' AND due_date >= $1 AND due_date < $2
		ORDER BY due_date, sale_id, seq`, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("list due installments: %w", err)
	}
	return pgx.CollectRows(rows, scanInstallment)
}

// MarkOverdue flips past-due pending installments to overdue and
// returns how many rows changed. Run periodically by the worker.
func (s *Store) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE installments
		SET state = 'overdue'
		WHERE state = 'pending' AND due_date < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("mark installments overdue: %w", err)
	}
	return tag.RowsAffected(), nil
}
