package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSaleCompleted notifies staff after a sale commits.
	TaskTypeSaleCompleted = "sale:completed"
	// TaskTypeLowStockAlert flags a variant at or under its minimum.
	TaskTypeLowStockAlert = "stock:low_alert"
	// TaskTypeOverdueScan sweeps past-due installments.
	TaskTypeOverdueScan = "installments:overdue_scan"
)

// SaleCompletedPayload carries the notification data for a new sale.
type SaleCompletedPayload struct {
	SaleID       int64  `json:"sale_id"`
	SellerID     int64  `json:"seller_id"`
	CustomerName string `json:"customer_name"`
	PaymentType  string `json:"payment_type"`
	Total        string `json:"total"`
	Items        int    `json:"items"`
}

// NewSaleCompletedTask constructs an Asynq task.
func NewSaleCompletedTask(payload SaleCompletedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSaleCompleted, data), nil
}

// LowStockPayload identifies the variant that crossed its threshold.
type LowStockPayload struct {
	VariantID   int64  `json:"variant_id"`
	ProductName string `json:"product_name"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	Stock       int    `json:"stock"`
	MinStock    int    `json:"min_stock"`
}

// NewLowStockTask constructs an Asynq task.
func NewLowStockTask(payload LowStockPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLowStockAlert, data), nil
}

// OverdueScanPayload tunes the periodic installment sweep.
type OverdueScanPayload struct {
	ReminderDays int `json:"reminder_days"`
}

// NewOverdueScanTask constructs an Asynq task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOverdueScan, data), nil
}
