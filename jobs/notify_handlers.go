package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// NotifyHandlers processes the notification task types. Delivery is a
// structured log line; the actual channel (push, email) sits outside
// this backend and tails these events.
type NotifyHandlers struct {
	logger  *slog.Logger
	printer *message.Printer
}

func NewNotifyHandlers(logger *slog.Logger) *NotifyHandlers {
	return &NotifyHandlers{
		logger:  logger,
		printer: message.NewPrinter(language.Spanish),
	}
}

// HandleSaleCompleted processes TaskTypeSaleCompleted tasks.
func (h *NotifyHandlers) HandleSaleCompleted(ctx context.Context, t *asynq.Task) error {
	var payload SaleCompletedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	total := payload.Total
	if parsed, err := strconv.ParseFloat(payload.Total, 64); err == nil {
		total = h.printer.Sprintf("%v", number.Decimal(parsed, number.MinFractionDigits(2)))
	}
	h.logger.Info("sale completed",
		slog.Int64("sale_id", payload.SaleID),
		slog.Int64("seller_id", payload.SellerID),
		slog.String("customer", payload.CustomerName),
		slog.String("payment_type", payload.PaymentType),
		slog.String("total", "Bs "+total),
		slog.Int("items", payload.Items),
	)
	return nil
}

// HandleLowStock processes TaskTypeLowStockAlert tasks.
func (h *NotifyHandlers) HandleLowStock(ctx context.Context, t *asynq.Task) error {
	var payload LowStockPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	h.logger.Warn("low stock",
		slog.Int64("variant_id", payload.VariantID),
		slog.String("product", payload.ProductName),
		slog.String("size", payload.Size),
		slog.String("color", payload.Color),
		slog.Int("stock", payload.Stock),
		slog.Int("min_stock", payload.MinStock),
	)
	return nil
}
