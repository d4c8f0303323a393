package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Alba-Tab/backend-boutique/internal/platform/db"
	"github.com/Alba-Tab/backend-boutique/internal/platform/httpx"
	"github.com/Alba-Tab/backend-boutique/internal/stock"
)

// Handler exposes the sale endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", h.createSale)
	r.Get("/sales", h.listSales)
	r.Get("/sales/{id}", h.getSale)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	sale, err := h.service.CreateSale(r.Context(), req)
	if err != nil {
		h.respondCreateError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) respondCreateError(w http.ResponseWriter, err error) {
	var shortfall *stock.InsufficientStockError
	switch {
	case errors.As(err, &shortfall):
		httpx.JSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient_stock",
			"variant_id": shortfall.VariantID,
			"available":  shortfall.Available,
			"requested":  shortfall.Requested,
		})
	case errors.Is(err, ErrInvalidSeller),
		errors.Is(err, ErrInvalidCustomer),
		errors.Is(err, ErrInvalidCreditParameters),
		errors.Is(err, ErrNoItems):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid sale", err.Error())
	case errors.Is(err, stock.ErrVariantNotFound):
		httpx.Problem(w, http.StatusNotFound, "Variant not found", err.Error())
	case errors.Is(err, db.ErrBusy):
		httpx.Problem(w, http.StatusServiceUnavailable, "Busy", "Stock is being updated by another operation; retry shortly.")
	default:
		h.logger.Error("create sale", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid sale ID", "Sale ID must be an integer.")
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Sale not found", err.Error())
			return
		}
		h.logger.Error("get sale", slog.Int64("sale_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.ListSales(r.Context(), limit)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": items})
}
