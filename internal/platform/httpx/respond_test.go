package httpx

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProblemTypeURI(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, 404, "Sale not found", "no sale with id 9")

	require.Equal(t, 404, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.Contains(t, body, `"type":"/problems/sale-not-found"`)
	require.Contains(t, body, `"title":"Sale not found"`)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"amount": "10.00", "surprise": true}`))
	var target struct {
		Amount string `json:"amount"`
	}
	require.Error(t, DecodeJSON(req, &target))
}

func TestDecodeJSONValid(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"amount": "10.00"}`))
	var target struct {
		Amount string `json:"amount"`
	}
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "10.00", target.Amount)
}
