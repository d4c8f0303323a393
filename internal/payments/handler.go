package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Alba-Tab/backend-boutique/internal/platform/db"
	"github.com/Alba-Tab/backend-boutique/internal/platform/httpx"
)

// Handler exposes the payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.registerPayment)
	r.Post("/sales/{saleID}/pay-full", h.payFull)
	r.Post("/installments/{id}/mark-paid", h.markInstallmentPaid)
	r.Get("/sales/{saleID}/payments", h.listBySale)
}

func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	var req RegisterPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	payment, err := h.service.RegisterPayment(r.Context(), req)
	if err != nil {
		h.respondPaymentError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

type payFullRequest struct {
	Method    Method `json:"method" validate:"required,oneof=cash card transfer qr"`
	Reference string `json:"reference,omitempty" validate:"max=120"`
}

func (h *Handler) payFull(w http.ResponseWriter, r *http.Request) {
	saleID, err := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid sale ID", "Sale ID must be an integer.")
		return
	}
	var req payFullRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	payment, err := h.service.PayFull(r.Context(), saleID, req.Method, req.Reference)
	if err != nil {
		h.respondPaymentError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

type markPaidRequest struct {
	ActorID  int64      `json:"actor_id" validate:"required,gt=0"`
	PaidDate *time.Time `json:"paid_date,omitempty"`
}

func (h *Handler) markInstallmentPaid(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid installment ID", "Installment ID must be an integer.")
		return
	}
	var req markPaidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	inst, err := h.service.MarkInstallmentPaid(r.Context(), id, req.ActorID, req.PaidDate)
	if err != nil {
		h.respondPaymentError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inst)
}

func (h *Handler) listBySale(w http.ResponseWriter, r *http.Request) {
	saleID, err := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid sale ID", "Sale ID must be an integer.")
		return
	}
	items, err := h.service.ListBySale(r.Context(), saleID)
	if err != nil {
		h.logger.Error("list payments", slog.Int64("sale_id", saleID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": items})
}

func (h *Handler) respondPaymentError(w http.ResponseWriter, err error) {
	var overpayment *OverpaymentError
	var partial *PartialInstallmentError
	switch {
	case errors.As(err, &overpayment):
		httpx.JSON(w, http.StatusConflict, map[string]any{
			"error":        "overpayment",
			"amount_due":   overpayment.AmountDue.StringFixed(2),
			"already_paid": overpayment.AlreadyPaid.StringFixed(2),
			"attempted":    overpayment.Attempted.StringFixed(2),
		})
	case errors.As(err, &partial):
		httpx.JSON(w, http.StatusConflict, map[string]any{
			"error":              "partial_installment_payment",
			"installment_id":     partial.InstallmentID,
			"installment_amount": partial.InstallmentAmount.StringFixed(2),
			"attempted":          partial.Attempted.StringFixed(2),
		})
	case errors.Is(err, ErrSaleNotFound), errors.Is(err, ErrInstallmentNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInstallmentMismatch),
		errors.Is(err, ErrInstallmentAlreadyPaid),
		errors.Is(err, ErrSaleAlreadyPaid),
		errors.Is(err, ErrCashOnly):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidMethod):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid payment", err.Error())
	case errors.Is(err, db.ErrBusy):
		httpx.Problem(w, http.StatusServiceUnavailable, "Busy", "The sale is being updated by another operation; retry shortly.")
	default:
		h.logger.Error("payment operation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
