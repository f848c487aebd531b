package pricing_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-atelier/internal/pricing"
)

type breakdownEnvelope struct {
	Data  pricing.Breakdown `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func postBreakdown(t *testing.T, h *pricing.Handler, body string) (*httptest.ResponseRecorder, breakdownEnvelope) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Breakdown(rr, httptest.NewRequest(http.MethodPost, "/api/v1/pricing/breakdown", strings.NewReader(body)))
	var env breakdownEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr, env
}

func TestBreakdownHandler(t *testing.T) {
	h := &pricing.Handler{DefaultCurrency: pricing.USD}

	rr, env := postBreakdown(t, h, `{
		"items": [
			{"label": "Aso Oke", "unitCost": "10,000", "quantity": 1, "category": "Fabric & Main Materials"},
			{"label": "Ankara", "unitCost": 5000, "quantity": "2", "category": "Fabric & Main Materials"}
		],
		"charges": {"workmanship": 2000, "profitMargin": "3000"},
		"tax": {"rate": 7.5, "enabled": true},
		"currency": "NGN"
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, pricing.NGN, env.Data.Currency)
	require.Equal(t, "₦44,343,750.00", env.Data.GrandTotal.Display)
	require.Len(t, env.Data.CategoryTotals, 1)
}

func TestBreakdownHandlerExponentAmounts(t *testing.T) {
	h := &pricing.Handler{}
	rr, env := postBreakdown(t, h, `{
		"items": [{"unitCost": 1.5E2, "quantity": 2}],
		"charges": {"workmanship": 1e1}
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "$310.00", env.Data.GrandTotal.Display)
}

func TestBreakdownHandlerHiddenFields(t *testing.T) {
	h := &pricing.Handler{}
	rr, env := postBreakdown(t, h, `{
		"items": [{"unitCost": 100, "quantity": 1}],
		"charges": {"shippingOrHandling": 10},
		"tax": {"rate": 10, "enabled": true},
		"hiddenFields": ["Handling", "VAT"]
	}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Nil(t, env.Data.Shipping)
	require.Nil(t, env.Data.Tax)
	require.Equal(t, "$100.00", env.Data.GrandTotal.Display)
}

func TestBreakdownHandlerErrors(t *testing.T) {
	h := &pricing.Handler{}

	rr, env := postBreakdown(t, h, `{"currency": "EUR"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "INVALID_CURRENCY", env.Error.Code)
	require.Equal(t, "EUR", env.Error.Details["currency"])

	rr, env = postBreakdown(t, h, `{"items": [{"category": "Buttons"}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "material_category", env.Error.Details["items[0].category"])

	rr, _ = postBreakdown(t, h, `{"flow": "checkout"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = postBreakdown(t, h, `{"hiddenFields": ["Discount"]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = postBreakdown(t, h, `[`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCurrenciesAndCategoriesHandlers(t *testing.T) {
	h := &pricing.Handler{Table: pricing.DefaultTable(), DefaultCurrency: pricing.NGN}

	rr := httptest.NewRecorder()
	h.Currencies(rr, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/currencies", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var cur struct {
		Data struct {
			Base       string `json:"base"`
			Default    string `json:"default"`
			Currencies []struct {
				Code   string `json:"code"`
				Symbol string `json:"symbol"`
			} `json:"currencies"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cur))
	require.Equal(t, "USD", cur.Data.Base)
	require.Equal(t, "NGN", cur.Data.Default)
	require.Len(t, cur.Data.Currencies, 2)
	require.Equal(t, "₦", cur.Data.Currencies[1].Symbol)

	rr = httptest.NewRecorder()
	h.Categories(rr, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/categories", nil))
	var cats struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cats))
	require.Len(t, cats.Data, 6)
	require.Equal(t, "Fabric & Main Materials", cats.Data[0])
}
