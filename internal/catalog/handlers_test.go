package catalog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-atelier/internal/catalog"
)

func TestCatalogHandlers(t *testing.T) {
	pl, err := catalog.ParsePriceList([]byte(`
fabrics:
  - name: Ankara
    cost: 10
products:
  - name: Kaftan
    lowPrice: 60
    highPrice: 180
`))
	require.NoError(t, err)
	h := catalog.NewHandler(catalog.HandlerConfig{PriceList: pl})

	t.Run("fabrics in naira", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Fabrics(rr, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/fabrics?currency=NGN", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var body struct {
			Data []struct {
				Name     string `json:"name"`
				Category string `json:"category"`
				Display  string `json:"display"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Len(t, body.Data, 1)
		require.Equal(t, "Ankara", body.Data[0].Name)
		require.Equal(t, "Fabric & Main Materials", body.Data[0].Category)
		require.Equal(t, "₦16,500.00", body.Data[0].Display)
	})

	t.Run("products in base currency", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Products(rr, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var body struct {
			Data []struct {
				Name        string `json:"name"`
				DisplayLow  string `json:"displayLow"`
				DisplayHigh string `json:"displayHigh"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, "$60.00", body.Data[0].DisplayLow)
		require.Equal(t, "$180.00", body.Data[0].DisplayHigh)
	})

	t.Run("unsupported currency", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Products(rr, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products?currency=EUR", nil))
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		require.Contains(t, rr.Body.String(), "INVALID_CURRENCY")
	})
}
