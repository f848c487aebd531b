package invoice

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF writes doc as a single A4 page. Amounts use the ISO code instead
// of the symbol because the core fonts carry no naira glyph.
func RenderPDF(w io.Writer, doc Document) error {
	if err := doc.validate(); err != nil {
		return err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+doc.Number, true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	money := doc.Currency.FormatCode
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(doc.BusinessName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Invoice "+tr(doc.Number), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Issued "+doc.issued().Format("02 Jan 2006"), "", 1, "L", false, 0, "")
	if doc.CustomerName != "" {
		pdf.CellFormat(0, 6, "Bill to: "+tr(doc.CustomerName), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	widths := []float64{70, 45, 15, 30, 30}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, h := range []string{"Item", "Category", "Qty", "Unit", "Amount"} {
		align := "L"
		if i >= 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range doc.Breakdown.Lines {
		pdf.CellFormat(widths[0], 7, tr(line.Label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, tr(string(line.Category)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, strconv.Itoa(line.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money(line.UnitCost.Converted), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, money(line.Total.Converted), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	labelWidth := widths[0] + widths[1] + widths[2] + widths[3]
	for _, row := range Summary(doc.Breakdown) {
		style := ""
		if row.Total {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(labelWidth, 7, row.Label, "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, money(row.Amount), "", 1, "R", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
