package catalog

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-atelier/internal/common"
	"github.com/noah-isme/backend-atelier/internal/pricing"
)

// Handler exposes the price list.
type Handler struct {
	list       *PriceList
	currencies *pricing.Table
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	PriceList  *PriceList
	Currencies *pricing.Table
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Currencies == nil {
		cfg.Currencies = pricing.DefaultTable()
	}
	return &Handler{list: cfg.PriceList, currencies: cfg.Currencies}
}

// FabricView is a fabric with its cost rendered in the requested currency.
type FabricView struct {
	Fabric
	Display string `json:"display"`
}

// ProductView is a product with its price range rendered in the requested currency.
type ProductView struct {
	Product
	DisplayLow  string `json:"displayLow"`
	DisplayHigh string `json:"displayHigh"`
}

// Fabrics handles GET /api/v1/catalog/fabrics?currency=NGN.
func (h *Handler) Fabrics(w http.ResponseWriter, r *http.Request) {
	if h.list == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "price list not configured", nil)
		return
	}
	format, ok := h.formatter(w, r)
	if !ok {
		return
	}
	fabrics := h.list.Fabrics()
	out := make([]FabricView, 0, len(fabrics))
	for _, f := range fabrics {
		out = append(out, FabricView{Fabric: f, Display: format(f.Cost)})
	}
	common.Data(w, http.StatusOK, out)
}

// Products handles GET /api/v1/catalog/products?currency=NGN.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.list == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "price list not configured", nil)
		return
	}
	format, ok := h.formatter(w, r)
	if !ok {
		return
	}
	products := h.list.Products()
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, ProductView{Product: p, DisplayLow: format(p.LowPrice), DisplayHigh: format(p.HighPrice)})
	}
	common.Data(w, http.StatusOK, out)
}

func (h *Handler) formatter(w http.ResponseWriter, r *http.Request) (func(decimal.Decimal) string, bool) {
	code := pricing.Code(r.URL.Query().Get("currency"))
	if code == "" {
		code = h.currencies.Base()
	}
	c, err := h.currencies.Lookup(code)
	if err != nil {
		pricing.WriteError(w, err)
		return nil, false
	}
	return func(amount decimal.Decimal) string {
		return c.Format(amount.Mul(c.Rate))
	}, true
}
