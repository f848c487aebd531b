package quote

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-atelier/internal/common"
	"github.com/noah-isme/backend-atelier/internal/invoice"
	"github.com/noah-isme/backend-atelier/internal/lock"
	"github.com/noah-isme/backend-atelier/internal/obs"
	"github.com/noah-isme/backend-atelier/internal/pricing"
)

// Handler wires draft edit sessions to HTTP. Every route requires the
// business header, read from the context by common.BusinessMiddleware.
type Handler struct {
	Svc          *Service
	BusinessName string
	// Idempotency guards create and submit when set.
	Idempotency func(http.Handler) http.Handler
}

// Routes mounts the quote endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	guarded := r
	if h.Idempotency != nil {
		guarded = r.With(h.Idempotency)
	}
	guarded.Post("/", h.Create)
	guarded.Post("/{id}/submit", h.Submit)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/items", h.AddItem)
	r.Post("/{id}/items/catalog", h.AddCatalogItem)
	r.Patch("/{id}/items/{itemId}", h.UpdateItem)
	r.Delete("/{id}/items/{itemId}", h.RemoveItem)
	r.Put("/{id}/charges", h.SetCharges)
	r.Put("/{id}/tax", h.SetTax)
	r.Put("/{id}/currency", h.SetCurrency)
	r.Get("/{id}/invoice.pdf", h.InvoicePDF)
	r.Get("/{id}/invoice.xlsx", h.InvoiceXLSX)
}

// Create handles POST /api/v1/quotes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	var in CreateInput
	if !decode(w, r, &in) {
		return
	}
	view, err := h.Svc.Create(r.Context(), business, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, view)
}

// Get handles GET /api/v1/quotes/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Get(r.Context(), business, chi.URLParam(r, "id"))
	h.respond(w, view, err)
}

// AddItem handles POST /api/v1/quotes/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	var in pricing.LineItemInput
	if !decode(w, r, &in) {
		return
	}
	view, err := h.Svc.AddItem(r.Context(), business, chi.URLParam(r, "id"), in)
	h.respond(w, view, err)
}

// AddCatalogItem handles POST /api/v1/quotes/{id}/items/catalog.
func (h *Handler) AddCatalogItem(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	var in CatalogItemInput
	if !decode(w, r, &in) {
		return
	}
	view, err := h.Svc.AddCatalogItem(r.Context(), business, chi.URLParam(r, "id"), in)
	h.respond(w, view, err)
}

// UpdateItem handles PATCH /api/v1/quotes/{id}/items/{itemId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	var patch ItemPatch
	if !decode(w, r, &patch) {
		return
	}
	view, err := h.Svc.UpdateItem(r.Context(), business, chi.URLParam(r, "id"), chi.URLParam(r, "itemId"), patch)
	h.respond(w, view, err)
}

// RemoveItem handles DELETE /api/v1/quotes/{id}/items/{itemId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.RemoveItem(r.Context(), business, chi.URLParam(r, "id"), chi.URLParam(r, "itemId"))
	h.respond(w, view, err)
}

// SetCharges handles PUT /api/v1/quotes/{id}/charges.
func (h *Handler) SetCharges(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	var in pricing.ChargesInput
	if !decode(w, r, &in) {
		return
	}
	view, err := h.Svc.SetCharges(r.Context(), business, chi.URLParam(r, "id"), in)
	h.respond(w, view, err)
}

// SetTax handles PUT /api/v1/quotes/{id}/tax.
func (h *Handler) SetTax(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	var in pricing.TaxInput
	if !decode(w, r, &in) {
		return
	}
	view, err := h.Svc.SetTax(r.Context(), business, chi.URLParam(r, "id"), in)
	h.respond(w, view, err)
}

// SetCurrency handles PUT /api/v1/quotes/{id}/currency.
func (h *Handler) SetCurrency(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	var in struct {
		Currency string `json:"currency" validate:"required"`
	}
	if !decode(w, r, &in) {
		return
	}
	view, err := h.Svc.SetCurrency(r.Context(), business, chi.URLParam(r, "id"), in.Currency)
	h.respond(w, view, err)
}

// Submit handles POST /api/v1/quotes/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Submit(r.Context(), business, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusAccepted, view)
}

// Delete handles DELETE /api/v1/quotes/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), business, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InvoicePDF handles GET /api/v1/quotes/{id}/invoice.pdf.
func (h *Handler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "pdf", "application/pdf", invoice.RenderPDF)
}

// InvoiceXLSX handles GET /api/v1/quotes/{id}/invoice.xlsx.
func (h *Handler) InvoiceXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", invoice.RenderXLSX)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, format, contentType string, render func(w io.Writer, doc invoice.Document) error) {
	business, ok := h.business(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Get(r.Context(), business, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	doc, err := h.Svc.Document(view, h.BusinessName)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	err = render(&buf, doc)
	obs.ObserveExport(format, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Number+"."+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) business(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return "", false
	}
	business, ok := common.BusinessID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", common.BusinessHeader+" header is required", nil)
		return "", false
	}
	return business, true
}

func (h *Handler) respond(w http.ResponseWriter, view View, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := common.DecodeJSON(r, dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if details, err := common.Validate(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "validation failed", details)
		return false
	}
	return true
}

var quoteErrors = pricing.Errors.With(
	common.ErrorRule{Target: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	common.ErrorRule{Target: ErrInvalidInput, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
	common.ErrorRule{Target: ErrSubmitted, Status: http.StatusConflict, Code: "QUOTE_SUBMITTED"},
	common.ErrorRule{Target: lock.ErrBusy, Status: http.StatusConflict, Code: "QUOTE_BUSY", Message: "quote is being edited, retry shortly"},
)

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	quoteErrors.Write(w, err)
}
