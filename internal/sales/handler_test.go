package sales

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *memRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := newTestService(repo, sellerDirectory(), &memNotifier{})
	h := NewHandler(logger, svc, validator.New())
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestCreateSaleEndpoint(t *testing.T) {
	repo := newMemRepo(variant(10, "120.50", 8))
	router := newTestRouter(repo)

	body := `{
		"seller_id": 1,
		"customer_name": "Walk-in",
		"payment_type": "cash",
		"items": [{"variant_id": 10, "quantity": 2}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"subtotal":"241.00"`)
	require.Equal(t, 6, repo.variants[10].Stock)
}

func TestCreateSaleEndpointValidation(t *testing.T) {
	router := newTestRouter(newMemRepo(variant(10, "10.00", 5)))

	cases := []struct {
		name string
		body string
	}{
		{"no items", `{"seller_id": 1, "payment_type": "cash", "items": []}`},
		{"bad payment type", `{"seller_id": 1, "payment_type": "barter", "items": [{"variant_id": 10, "quantity": 1}]}`},
		{"zero quantity", `{"seller_id": 1, "payment_type": "cash", "items": [{"variant_id": 10, "quantity": 0}]}`},
		{"malformed json", `{"seller_id": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateSaleEndpointInsufficientStock(t *testing.T) {
	repo := newMemRepo(variant(10, "10.00", 1))
	router := newTestRouter(repo)

	body := `{"seller_id": 1, "payment_type": "cash", "items": [{"variant_id": 10, "quantity": 3}]}`
	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "insufficient_stock")
	require.Equal(t, 1, repo.variants[10].Stock)
}

func TestGetSaleEndpointNotFound(t *testing.T) {
	router := newTestRouter(newMemRepo())
	req := httptest.NewRequest(http.MethodGet, "/sales/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
