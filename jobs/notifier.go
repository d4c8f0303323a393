package jobs

import (
	"context"
	"log/slog"

	"github.com/Alba-Tab/backend-boutique/internal/catalog"
	"github.com/Alba-Tab/backend-boutique/internal/sales"
	"github.com/Alba-Tab/backend-boutique/internal/stock"
)

// Notifier is the post-commit side of sale creation: it enqueues
// notification tasks and invalidates the catalog cache. It runs outside
// any transaction, so failures only get logged by the caller.
type Notifier struct {
	client  *Client
	catalog *catalog.Service
	logger  *slog.Logger
}

func NewNotifier(client *Client, catalogSvc *catalog.Service, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, catalog: catalogSvc, logger: logger}
}

// SaleCompleted enqueues the completion notice and drops cached catalog
// reads, since the sale changed stock counts.
func (n *Notifier) SaleCompleted(ctx context.Context, sale sales.Sale) error {
	if n.catalog != nil {
		if err := n.catalog.Invalidate(ctx); err != nil {
			n.logger.Warn("invalidate catalog cache", slog.Any("error", err))
		}
	}
	if n.client == nil {
		return nil
	}
	task, err := NewSaleCompletedTask(SaleCompletedPayload{
		SaleID:       sale.ID,
		SellerID:     sale.SellerID,
		CustomerName: sale.CustomerName,
		PaymentType:  string(sale.PaymentType),
		Total:        sale.AmountDue().StringFixed(2),
		Items:        len(sale.Items),
	})
	if err != nil {
		return err
	}
	_, err = n.client.Enqueue(ctx, task)
	return err
}

// LowStock enqueues a restock alert for the variant.
func (n *Notifier) LowStock(ctx context.Context, v stock.Variant) error {
	if n.client == nil {
		return nil
	}
	task, err := NewLowStockTask(LowStockPayload{
		VariantID:   v.ID,
		ProductName: v.ProductName,
		Size:        v.Size,
		Color:       v.Color,
		Stock:       v.Stock,
		MinStock:    v.MinStock,
	})
	if err != nil {
		return err
	}
	_, err = n.client.Enqueue(ctx, task)
	return err
}
