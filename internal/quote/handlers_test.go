package quote_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-atelier/internal/common"
	"github.com/noah-isme/backend-atelier/internal/quote"
)

type envelope struct {
	Data  quote.View       `json:"data"`
	Error common.ErrorBody `json:"error"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	f := newFixture(t)
	h := &quote.Handler{Svc: f.svc, BusinessName: "Atelier Lagos"}
	r := chi.NewRouter()
	r.Use(common.BusinessMiddleware)
	r.Route("/api/v1/quotes", h.Routes)
	return r
}

func do(t *testing.T, router http.Handler, method, path, business, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if business != "" {
		req.Header.Set(common.BusinessHeader, business)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func TestQuoteHandlersLifecycle(t *testing.T) {
	router := newRouter(t)

	rr, env := do(t, router, http.MethodPost, "/api/v1/quotes", "biz-1", `{
		"customerName": "Adaeze",
		"flow": "invoice",
		"items": [{"label": "Ankara", "unitCost": "12.50", "quantity": 4, "category": "Fabric & Main Materials"}],
		"charges": {"workmanship": 40, "profitMargin": "10", "shippingOrHandling": 5}
	}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := env.Data.Draft.ID
	require.NotEmpty(t, id)
	require.Equal(t, "$112.88", env.Data.Breakdown.GrandTotal.Display)
	base := "/api/v1/quotes/" + id

	rr, env = do(t, router, http.MethodPut, base+"/currency", "biz-1", `{"currency":"NGN"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "₦186,243.75", env.Data.Breakdown.GrandTotal.Display)

	rr, env = do(t, router, http.MethodPut, base+"/currency", "biz-1", `{"currency":"EUR"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "INVALID_CURRENCY", env.Error.Code)

	rr, env = do(t, router, http.MethodPost, base+"/items", "biz-1", `{"id":"btn","label":"Buttons","unitCost":"0.50","quantity":"10","category":"Fasteners & Closures"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, env.Data.Draft.Items, 2)

	rr, env = do(t, router, http.MethodPatch, base+"/items/btn", "biz-1", `{"quantity": 20}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, 20, env.Data.Draft.Items[1].Quantity)

	rr, _ = do(t, router, http.MethodDelete, base+"/items/btn", "biz-1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr, _ = do(t, router, http.MethodPost, base+"/items/catalog", "biz-1", `{"kind":"fabric","name":"Aso Oke"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, env = do(t, router, http.MethodPut, base+"/tax", "biz-1", `{"rate": 5, "enabled": true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "5", env.Data.Breakdown.TaxRate.String())

	rr, env = do(t, router, http.MethodPost, base+"/submit", "biz-1", "")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	require.Equal(t, quote.StatusSubmitted, env.Data.Draft.Status)

	rr, env = do(t, router, http.MethodPut, base+"/charges", "biz-1", `{"workmanship": 1}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "QUOTE_SUBMITTED", env.Error.Code)

	rr, _ = do(t, router, http.MethodDelete, base, "biz-1", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr, _ = do(t, router, http.MethodGet, base, "biz-1", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQuoteHandlersRequireBusiness(t *testing.T) {
	router := newRouter(t)
	rr, env := do(t, router, http.MethodPost, "/api/v1/quotes", "", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, env.Error.Message, common.BusinessHeader)
}

func TestQuoteHandlersRejectInvalidPayloads(t *testing.T) {
	router := newRouter(t)

	rr, env := do(t, router, http.MethodPost, "/api/v1/quotes", "biz-1", `{"items":[{"label":"x","category":"Buttons"}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "validation failed", env.Error.Message)

	rr, _ = do(t, router, http.MethodPost, "/api/v1/quotes", "biz-1", `{"items":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = do(t, router, http.MethodPost, "/api/v1/quotes", "biz-1", `{"hiddenFields":["Discount"]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, env = do(t, router, http.MethodPost, "/api/v1/quotes", "biz-1", `{}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr, env = do(t, router, http.MethodPost, "/api/v1/quotes/"+env.Data.Draft.ID+"/items/catalog", "biz-1", `{"kind":"ribbon","name":"x"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, map[string]any{"kind": "oneof"}, env.Error.Details)
}

func TestQuoteHandlersOtherBusinessGetsNotFound(t *testing.T) {
	router := newRouter(t)
	rr, env := do(t, router, http.MethodPost, "/api/v1/quotes", "biz-1", `{}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr, env = do(t, router, http.MethodGet, "/api/v1/quotes/"+env.Data.Draft.ID, "biz-2", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestQuoteInvoiceExports(t *testing.T) {
	router := newRouter(t)
	rr, env := do(t, router, http.MethodPost, "/api/v1/quotes", "biz-1", `{
		"customerName": "Adaeze",
		"currency": "NGN",
		"items": [{"label": "Aso Oke", "unitCost": 45, "quantity": 3}]
	}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	base := "/api/v1/quotes/" + env.Data.Draft.ID

	rr, _ = do(t, router, http.MethodGet, base+"/invoice.pdf", "biz-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), ".pdf")
	require.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))

	rr, _ = do(t, router, http.MethodGet, base+"/invoice.xlsx", "biz-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")
	require.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))

	rr, _ = do(t, router, http.MethodGet, base+"/invoice.pdf", "biz-2", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
