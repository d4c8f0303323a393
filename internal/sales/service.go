package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Alba-Tab/backend-boutique/internal/installment"
	"github.com/Alba-Tab/backend-boutique/internal/observability"
	"github.com/Alba-Tab/backend-boutique/internal/shared"
	"github.com/Alba-Tab/backend-boutique/internal/stock"
	"github.com/Alba-Tab/backend-boutique/internal/users"
)

// TxRepository is the write surface available inside one sale-creation
// transaction. It includes the stock view so stock decrements commit or
// roll back together with the sale.
type TxRepository interface {
	stock.TxView

	InsertSale(ctx context.Context, sale *Sale) error
	InsertLineItems(ctx context.Context, saleID int64, items []LineItem) ([]LineItem, error)
	InsertInstallments(ctx context.Context, saleID int64, schedule []installment.Installment) ([]installment.Installment, error)
}

// RepositoryPort abstracts sale persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetSale(ctx context.Context, id int64) (Sale, error)
	ListSales(ctx context.Context, limit int) ([]Sale, error)
}

// UserDirectory resolves seller and customer references.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// Notifier receives fire-and-forget events after commit. Failures are
// logged and never affect the committed sale.
type Notifier interface {
	SaleCompleted(ctx context.Context, sale Sale) error
	LowStock(ctx context.Context, variant stock.Variant) error
}

// Auditor records domain actions. Satisfied by shared.AuditLogger.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements sale creation and reads.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	users    UserDirectory
	ledger   *stock.Ledger
	notifier Notifier
	audit    Auditor
	metrics  *observability.Metrics
}

func NewService(logger *slog.Logger, repo RepositoryPort, dir UserDirectory, ledger *stock.Ledger, notifier Notifier, audit Auditor, metrics *observability.Metrics) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		users:    dir,
		ledger:   ledger,
		notifier: notifier,
		audit:    audit,
		metrics:  metrics,
	}
}

// CreateSale builds a sale as one atomic unit: stock is locked and
// decremented per item in input order, prices are snapshotted, and for
// credit sales the installment schedule is generated. Any failure rolls
// back everything, including decrements already applied for earlier
// items in the same call.
func (s *Service) CreateSale(ctx context.Context, req CreateSaleRequest) (Sale, error) {
	if len(req.Items) == 0 {
		return Sale{}, ErrNoItems
	}

	seller, err := s.users.GetUser(ctx, req.SellerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Sale{}, ErrInvalidSeller
		}
		return Sale{}, fmt.Errorf("lookup seller: %w", err)
	}
	if seller.Role != users.RoleSeller || !seller.Active {
		return Sale{}, ErrInvalidSeller
	}

	sale := Sale{
		SellerID:      req.SellerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		CustomerAddr:  req.CustomerAddr,
		PaymentType:   req.PaymentType,
		State:         StatePending,
	}
	if req.CustomerID != nil {
		customer, err := s.users.GetUser(ctx, *req.CustomerID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Sale{}, ErrInvalidCustomer
			}
			return Sale{}, fmt.Errorf("lookup customer: %w", err)
		}
		if customer.Role != users.RoleCustomer {
			return Sale{}, ErrInvalidCustomer
		}
		sale.CustomerID = req.CustomerID
		if sale.CustomerName == "" {
			sale.CustomerName = customer.DisplayName()
		}
	}

	if req.PaymentType == PaymentCredit {
		if req.InterestRate == nil || req.TermMonths == nil ||
			!req.InterestRate.IsPositive() || *req.TermMonths <= 0 {
			return Sale{}, ErrInvalidCreditParameters
		}
		sale.InterestRate = req.InterestRate.Round(2)
		sale.TermMonths = *req.TermMonths
	}

	var lowStock []stock.Variant
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		subtotal := decimal.Zero
		items := make([]LineItem, 0, len(req.Items))
		for _, in := range req.Items {
			mv, err := s.ledger.ReserveAndDecrement(ctx, tx, in.VariantID, in.Quantity)
			if err != nil {
				var shortfall *stock.InsufficientStockError
				if errors.As(err, &shortfall) {
					s.metrics.StockShortfall()
				}
				return err
			}
			v := mv.Variant
			line := LineItem{
				VariantID:   v.ID,
				ProductName: v.ProductName,
				Size:        v.Size,
				Color:       v.Color,
				Quantity:    in.Quantity,
				UnitPrice:   v.Price,
				Subtotal:    v.Price.Mul(decimal.NewFromInt(int64(in.Quantity))),
			}
			subtotal = subtotal.Add(line.Subtotal)
			items = append(items, line)
			if v.BelowMinimum() {
				lowStock = append(lowStock, v)
			}
		}

		sale.Subtotal = subtotal
		if sale.PaymentType == PaymentCredit {
			sale.InterestAmount = subtotal.Mul(sale.InterestRate).Div(decimal.NewFromInt(100)).Round(2)
			sale.Total = subtotal.Add(sale.InterestAmount)
			sale.MonthlyAmount = sale.Total.Div(decimal.NewFromInt(int64(sale.TermMonths))).Round(2)
		} else {
			sale.Total = subtotal
		}

		if err := tx.InsertSale(ctx, &sale); err != nil {
			return err
		}
		persisted, err := tx.InsertLineItems(ctx, sale.ID, items)
		if err != nil {
			return err
		}
		sale.Items = persisted

		if sale.PaymentType == PaymentCredit {
			schedule := installment.BuildSchedule(sale.CreatedAt, sale.TermMonths, sale.MonthlyAmount, sale.Total)
			created, err := tx.InsertInstallments(ctx, sale.ID, schedule)
			if err != nil {
				return err
			}
			sale.Installments = created
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	s.afterCreate(ctx, sale, lowStock)
	return sale, nil
}

// afterCreate runs post-commit side effects. None of them can undo the
// sale, so errors are only logged.
func (s *Service) afterCreate(ctx context.Context, sale Sale, lowStock []stock.Variant) {
	s.metrics.SaleCreated(string(sale.PaymentType))

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  sale.SellerID,
			Action:   "sale.created",
			Entity:   "sale",
			EntityID: strconv.FormatInt(sale.ID, 10),
			Meta: map[string]any{
				"payment_type": sale.PaymentType,
				"subtotal":     sale.Subtotal.StringFixed(2),
				"total":        sale.Total.StringFixed(2),
				"items":        len(sale.Items),
			},
			At: time.Now(),
		}); err != nil {
			s.logger.Error("audit sale creation", slog.Int64("sale_id", sale.ID), slog.Any("error", err))
		}
	}

	if s.notifier == nil {
		return
	}
	if err := s.notifier.SaleCompleted(ctx, sale); err != nil {
		s.logger.Error("notify sale completion", slog.Int64("sale_id", sale.ID), slog.Any("error", err))
	}
	for _, v := range lowStock {
		if err := s.notifier.LowStock(ctx, v); err != nil {
			s.logger.Error("notify low stock", slog.Int64("variant_id", v.ID), slog.Any("error", err))
		}
	}
}

// GetSale returns the sale aggregate with items and installments.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListSales returns recent sales without their aggregates.
func (s *Service) ListSales(ctx context.Context, limit int) ([]Sale, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListSales(ctx, limit)
}
