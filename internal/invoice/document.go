// Package invoice renders a computed breakdown as a PDF or XLSX document.
package invoice

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-atelier/internal/pricing"
)

// ErrEmptyDocument is returned when a document has no currency to render in.
var ErrEmptyDocument = errors.New("invoice: currency is required")

// Document is everything printed on one invoice. Amounts come from Breakdown
// in Currency; hidden lines (nil shipping or tax) are not printed.
type Document struct {
	Number       string
	BusinessName string
	CustomerName string
	IssuedAt     time.Time
	Currency     pricing.Currency
	Breakdown    pricing.Breakdown
}

// Row is one labelled amount in the totals block, already converted.
type Row struct {
	Label  string
	Amount decimal.Decimal
	Total  bool
}

// NumberFor derives a short printable invoice number from a quote id.
func NumberFor(quoteID string, issued time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(quoteID, "-", ""))
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("INV-%s-%s", issued.UTC().Format("20060102"), short)
}

// Summary lists the totals block in print order.
func Summary(b pricing.Breakdown) []Row {
	rows := []Row{
		{Label: "Items subtotal", Amount: b.ItemsSubtotal.Converted},
		{Label: "Workmanship", Amount: b.Workmanship.Converted},
		{Label: "Profit margin", Amount: b.ProfitMargin.Converted},
	}
	if b.Shipping != nil {
		rows = append(rows, Row{Label: "Shipping & handling", Amount: b.Shipping.Converted})
	}
	if b.Tax != nil {
		label := "VAT"
		if b.TaxRate != nil {
			label = fmt.Sprintf("VAT (%s%%)", b.TaxRate.String())
		}
		rows = append(rows, Row{Label: label, Amount: b.Tax.Converted})
	}
	rows = append(rows, Row{Label: "Total", Amount: b.GrandTotal.Converted, Total: true})
	return rows
}

func (d Document) validate() error {
	if d.Currency.Code == "" {
		return ErrEmptyDocument
	}
	return nil
}

func (d Document) issued() time.Time {
	if d.IssuedAt.IsZero() {
		return time.Now().UTC()
	}
	return d.IssuedAt
}
