package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Alba-Tab/backend-boutique/internal/installment"
	"github.com/Alba-Tab/backend-boutique/internal/platform/db"
	"github.com/Alba-Tab/backend-boutique/internal/stock"
)

const installmentSeqConstraint = "installments_sale_id_seq_key"

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

// WithTx runs fn inside one transaction; the TxRepository it receives is
// only valid until fn returns.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, r.lockTimeout, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetVariantForUpdate(ctx context.Context, variantID int64) (stock.Variant, error) {
	var (
		v     stock.Variant
		price pgtype.Numeric
	)
	err := t.tx.QueryRow(ctx, `
		SELECT v.id, v.product_id, p.name, v.size, v.color, v.price, v.stock, v.min_stock
		FROM variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
		FOR UPDATE OF v`, variantID).
		Scan(&v.ID, &v.ProductID, &v.ProductName, &v.Size, &v.Color, &price, &v.Stock, &v.MinStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.Variant{}, stock.ErrVariantNotFound
		}
		return stock.Variant{}, fmt.Errorf("lock variant: %w", err)
	}
	v.Price = db.DecimalFromNumeric(price)
	return v, nil
}

func (t *txRepository) SetVariantStock(ctx context.Context, variantID int64, stockCount int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE variants SET stock = $2 WHERE id = $1`, variantID, stockCount)
	if err != nil {
		return fmt.Errorf("update variant stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return stock.ErrVariantNotFound
	}
	return nil
}

func (t *txRepository) InsertSale(ctx context.Context, sale *Sale) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sales (
			seller_id, customer_id, customer_name, customer_phone, customer_email, customer_address,
			payment_type, state, subtotal, interest_rate, interest_amount, total, term_months, monthly_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`,
		sale.SellerID, sale.CustomerID, sale.CustomerName, sale.CustomerPhone, sale.CustomerEmail, sale.CustomerAddr,
		sale.PaymentType, sale.State,
		db.NumericFromDecimal(sale.Subtotal), db.NumericFromDecimal(sale.InterestRate),
		db.NumericFromDecimal(sale.InterestAmount), db.NumericFromDecimal(sale.Total),
		sale.TermMonths, db.NumericFromDecimal(sale.MonthlyAmount),
	).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (t *txRepository) InsertLineItems(ctx context.Context, saleID int64, items []LineItem) ([]LineItem, error) {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		item.SaleID = saleID
		err := t.tx.QueryRow(ctx, `
			INSERT INTO sale_items (sale_id, variant_id, product_name, size, color, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			saleID, item.VariantID, item.ProductName, item.Size, item.Color,
			item.Quantity, db.NumericFromDecimal(item.UnitPrice), db.NumericFromDecimal(item.Subtotal),
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("insert sale item: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (t *txRepository) InsertInstallments(ctx context.Context, saleID int64, schedule []installment.Installment) ([]installment.Installment, error) {
	out := make([]installment.Installment, 0, len(schedule))
	for _, in := range schedule {
		in.SaleID = saleID
		err := t.tx.QueryRow(ctx, `
			INSERT INTO installments (sale_id, seq, due_date, amount, state)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			saleID, in.Seq, in.DueDate, db.NumericFromDecimal(in.Amount), in.State,
		).Scan(&in.ID)
		if err != nil {
			// A duplicate sequence for one sale means the schedule
			// generator misbehaved; surface it as a bug, not user input.
			if db.IsUniqueViolation(err, installmentSeqConstraint) {
				return nil, fmt.Errorf("duplicate installment seq %d for sale %d: %w", in.Seq, saleID, err)
			}
			return nil, fmt.Errorf("insert installment: %w", err)
		}
		out = append(out, in)
	}
	return out, nil
}

const saleColumns = `
	id, seller_id, customer_id, customer_name, customer_phone, customer_email, customer_address,
	payment_type, state, subtotal, interest_rate, interest_amount, total, term_months, monthly_amount, created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var (
		s                                      Sale
		subtotal, rate, interest, total, month pgtype.Numeric
	)
	err := row.Scan(
		&s.ID, &s.SellerID, &s.CustomerID, &s.CustomerName, &s.CustomerPhone, &s.CustomerEmail, &s.CustomerAddr,
		&s.PaymentType, &s.State, &subtotal, &rate, &interest, &total, &s.TermMonths, &month, &s.CreatedAt,
	)
	if err != nil {
		return Sale{}, err
	}
	s.Subtotal = db.DecimalFromNumeric(subtotal)
	s.InterestRate = db.DecimalFromNumeric(rate)
	s.InterestAmount = db.DecimalFromNumeric(interest)
	s.Total = db.DecimalFromNumeric(total)
	s.MonthlyAmount = db.DecimalFromNumeric(month)
	return s, nil
}

// GetSale loads the sale with its line items and installment schedule.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrSaleNotFound
		}
		return Sale{}, fmt.Errorf("get sale: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, variant_id, product_name, size, color, quantity, unit_price, subtotal
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id`, id)
	if err != nil {
		return Sale{}, fmt.Errorf("list sale items: %w", err)
	}
	sale.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (LineItem, error) {
		var (
			item            LineItem
			price, subtotal pgtype.Numeric
		)
		if err := row.Scan(&item.ID, &item.SaleID, &item.VariantID, &item.ProductName, &item.Size, &item.Color, &item.Quantity, &price, &subtotal); err != nil {
			return LineItem{}, err
		}
		item.UnitPrice = db.DecimalFromNumeric(price)
		item.Subtotal = db.DecimalFromNumeric(subtotal)
		return item, nil
	})
	if err != nil {
		return Sale{}, fmt.Errorf("collect sale items: %w", err)
	}

	if sale.PaymentType == PaymentCredit {
		irows, err := r.pool.Query(ctx, `
			SELECT id, sale_id, seq, due_date, amount, state, paid_date
			FROM installments
			WHERE sale_id = $1
			ORDER BY seq`, id)
		if err != nil {
			return Sale{}, fmt.Errorf("list installments: %w", err)
		}
		sale.Installments, err = pgx.CollectRows(irows, func(row pgx.CollectableRow) (installment.Installment, error) {
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
		})
		if err != nil {
			return Sale{}, fmt.Errorf("collect installments: %w", err)
		}
	}
	return sale, nil
}

// ListSales returns the newest sales first, without child rows.
func (r *Repository) ListSales(ctx context.Context, limit int) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Sale, error) {
		return scanSale(row)
	})
}
