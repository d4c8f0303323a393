package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Alba-Tab/backend-boutique/internal/platform/httpx"
	"github.com/Alba-Tab/backend-boutique/internal/shared"
)

// Handler exposes directory read endpoints.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users/{id}", h.getUser)
	r.Get("/sellers", h.listSellers)
	r.Get("/customers", h.listCustomers)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid user ID", "User ID must be an integer.")
		return
	}
	u, err := h.repo.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "User not found", "")
			return
		}
		h.logger.Error("get user", slog.Int64("user_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) listSellers(w http.ResponseWriter, r *http.Request) {
	h.listByRole(w, r, RoleSeller)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	h.listByRole(w, r, RoleCustomer)
}

func (h *Handler) listByRole(w http.ResponseWriter, r *http.Request, role Role) {
	items, err := h.repo.ListByRole(r.Context(), role)
	if err != nil {
		h.logger.Error("list users", slog.String("role", string(role)), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": items})
}
