// Package quote keeps in-progress orders and invoices as drafts. Every edit
// recomputes the breakdown so callers always see current totals.
package quote

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-atelier/internal/pricing"
)

var (
	// ErrNotFound is returned for unknown, expired or foreign drafts.
	ErrNotFound = errors.New("quote: draft not found")
	// ErrInvalidInput is returned for edits the draft cannot accept.
	ErrInvalidInput = errors.New("quote: invalid input")
	// ErrSubmitted is returned when editing a draft that was already submitted.
	ErrSubmitted = errors.New("quote: draft already submitted")
)

// Status is the lifecycle state of a draft.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
)

// Draft is one edit session. BusinessID scopes every read and write.
type Draft struct {
	ID           string             `json:"id"`
	BusinessID   string             `json:"businessId"`
	CustomerName string             `json:"customerName,omitempty"`
	Flow         pricing.Flow       `json:"flow"`
	Options      pricing.Options    `json:"options"`
	Items        []pricing.LineItem `json:"items"`
	Charges      pricing.Charges    `json:"charges"`
	Tax          pricing.TaxSpec    `json:"tax"`
	Currency     pricing.Code       `json:"currency"`
	Status       Status             `json:"status"`
	Version      int                `json:"version"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	SubmittedAt  *time.Time         `json:"submittedAt,omitempty"`
}

func (d *Draft) itemIndex(itemID string) int {
	for i, it := range d.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// View pairs a draft with its freshly computed breakdown.
type View struct {
	Draft     Draft             `json:"draft"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// SavePayload is handed to the persistence collaborator on submit.
type SavePayload struct {
	QuoteID      string             `json:"quoteId"`
	BusinessID   string             `json:"businessId"`
	CustomerName string             `json:"customerName,omitempty"`
	Flow         pricing.Flow       `json:"flow"`
	Items        []pricing.LineItem `json:"items"`
	Workmanship  decimal.Decimal    `json:"workmanship"`
	ProfitMargin decimal.Decimal    `json:"profitMargin"`
	OverallCost  decimal.Decimal    `json:"overallCost"`
	Currency     pricing.Code       `json:"currency"`
	Breakdown    pricing.Breakdown  `json:"breakdown"`
	SubmittedAt  time.Time          `json:"submittedAt"`
}

// SubmittedKind is the queue kind carrying SavePayload.
const SubmittedKind = "quote_submitted"

func newSavePayload(d Draft, b pricing.Breakdown) SavePayload {
	at := d.UpdatedAt
	if d.SubmittedAt != nil {
		at = *d.SubmittedAt
	}
	return SavePayload{
		QuoteID:      d.ID,
		BusinessID:   d.BusinessID,
		CustomerName: d.CustomerName,
		Flow:         d.Flow,
		Items:        d.Items,
		Workmanship:  b.Workmanship.Amount,
		ProfitMargin: b.ProfitMargin.Amount,
		OverallCost:  b.GrandTotal.Amount,
		Currency:     d.Currency,
		Breakdown:    b,
		SubmittedAt:  at,
	}
}
