package pricing

import (
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-atelier/internal/common"
	"github.com/noah-isme/backend-atelier/internal/obs"
)

func init() {
	common.RegisterValidation("material_category", func(fl validator.FieldLevel) bool {
		return KnownCategory(Category(fl.Field().String()))
	})
}

// Handler exposes the stateless engine over HTTP.
type Handler struct {
	Table           *Table
	DefaultCurrency Code
	ShippingBasis   ShippingBasis
}

// BreakdownRequest is the payload accepted by the breakdown endpoint.
type BreakdownRequest struct {
	Items        []LineItemInput `json:"items" validate:"dive"`
	Charges      ChargesInput    `json:"charges"`
	Tax          TaxInput        `json:"tax"`
	Currency     string          `json:"currency"`
	Flow         string          `json:"flow"`
	HiddenFields []string        `json:"hiddenFields"`
}

// Breakdown computes a breakdown for an ad hoc set of inputs.
func (h *Handler) Breakdown(w http.ResponseWriter, r *http.Request) {
	var req BreakdownRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if details, err := common.Validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "validation failed", details)
		return
	}
	flow, err := ParseFlow(req.Flow)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	opts, err := OptionsFromHiddenFields(flow.Options(h.ShippingBasis), req.HiddenFields)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	code := Code(req.Currency)
	if code == "" {
		code = h.DefaultCurrency
	}
	items := make([]LineItem, 0, len(req.Items))
	for _, in := range req.Items {
		items = append(items, in.LineItem())
	}
	breakdown, err := ComputeBreakdown(items, req.Charges.Charges(), req.Tax.TaxSpec(), CurrencyContext{Display: code, Table: h.table()}, opts)
	if err != nil {
		obs.ObserveBreakdown(string(flow), string(code), "error")
		WriteError(w, err)
		return
	}
	obs.ObserveBreakdown(string(flow), string(breakdown.Currency), "ok")
	common.Data(w, http.StatusOK, breakdown)
}

// Currencies lists the supported display currencies.
func (h *Handler) Currencies(w http.ResponseWriter, _ *http.Request) {
	t := h.table()
	common.Data(w, http.StatusOK, map[string]any{
		"base":       t.Base(),
		"default":    h.defaultCurrency(),
		"currencies": t.Currencies(),
	})
}

// Categories lists the material categories in display order.
func (h *Handler) Categories(w http.ResponseWriter, _ *http.Request) {
	common.Data(w, http.StatusOK, MaterialCategories)
}

func (h *Handler) table() *Table {
	if h == nil || h.Table == nil {
		return DefaultTable()
	}
	return h.Table
}

func (h *Handler) defaultCurrency() Code {
	if h.DefaultCurrency == "" {
		return h.table().Base()
	}
	return h.DefaultCurrency
}

// Errors maps engine errors onto the API error shape.
var Errors = common.ErrorMap{
	{
		Target: ErrInvalidCurrency,
		Status: http.StatusUnprocessableEntity,
		Code:   "INVALID_CURRENCY",
		Details: func(err error) any {
			var invalid *InvalidCurrencyError
			if errors.As(err, &invalid) {
				return map[string]string{"currency": string(invalid.Code)}
			}
			return nil
		},
	},
}

// WriteError renders err with Errors.
func WriteError(w http.ResponseWriter, err error) {
	Errors.Write(w, err)
}
