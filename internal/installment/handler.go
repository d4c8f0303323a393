package installment

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Alba-Tab/backend-boutique/internal/platform/httpx"
)

// Handler exposes installment read endpoints.
type Handler struct {
	logger *slog.Logger
	store  *Store
}

func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers installment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales/{saleID}/installments", h.listBySale)
	r.Get("/installments/overdue", h.listOverdue)
	r.Get("/installments/due", h.listDue)
}

func (h *Handler) listBySale(w http.ResponseWriter, r *http.Request) {
	saleID, err := strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid sale ID", "Sale ID must be an integer.")
		return
	}
	items, err := h.store.ListBySale(r.Context(), saleID)
	if err != nil {
		h.logger.Error("list installments", slog.Int64("sale_id", saleID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"installments": items})
}

func (h *Handler) listOverdue(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListOverdue(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("list overdue installments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"installments": items})
}

func (h *Handler) listDue(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid window", "days must be between 1 and 90.")
			return
		}
		days = parsed
	}
	items, err := h.store.ListDueWithin(r.Context(), time.Now(), days)
	if err != nil {
		h.logger.Error("list due installments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"installments": items, "days": days})
}
