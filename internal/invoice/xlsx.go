package invoice

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Invoice"

// RenderXLSX writes doc as a one-sheet workbook. Amounts are numeric cells so
// the recipient can keep calculating; the currency code heads the amount columns.
func RenderXLSX(w io.Writer, doc Document) (err error) {
	if err := doc.validate(); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}
	boldAmount, err := f.NewStyle(&excelize.Style{NumFmt: 4, Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	set := func(cell string, v any) {
		if err == nil {
			err = f.SetCellValue(sheetName, cell, v)
		}
	}
	style := func(from, to string, id int) {
		if err == nil {
			err = f.SetCellStyle(sheetName, from, to, id)
		}
	}

	set("A1", doc.BusinessName)
	style("A1", "A1", bold)
	set("A2", "Invoice")
	set("B2", doc.Number)
	set("A3", "Issued")
	set("B3", doc.issued().Format("2006-01-02"))
	set("A4", "Bill to")
	set("B4", doc.CustomerName)
	set("A5", "Currency")
	set("B5", string(doc.Currency.Code))

	code := string(doc.Currency.Code)
	headers := []string{"Item", "Category", "Qty", "Unit (" + code + ")", "Amount (" + code + ")"}
	for i, h := range headers {
		cell, cerr := excelize.CoordinatesToCellName(i+1, 7)
		if cerr != nil {
			return cerr
		}
		set(cell, h)
	}
	style("A7", "E7", bold)

	row := 8
	for _, line := range doc.Breakdown.Lines {
		set(fmt.Sprintf("A%d", row), line.Label)
		set(fmt.Sprintf("B%d", row), string(line.Category))
		set(fmt.Sprintf("C%d", row), line.Quantity)
		set(fmt.Sprintf("D%d", row), line.UnitCost.Converted.InexactFloat64())
		set(fmt.Sprintf("E%d", row), line.Total.Converted.InexactFloat64())
		style(fmt.Sprintf("D%d", row), fmt.Sprintf("E%d", row), amount)
		row++
	}
	row++
	for _, r := range Summary(doc.Breakdown) {
		set(fmt.Sprintf("D%d", row), r.Label)
		set(fmt.Sprintf("E%d", row), r.Amount.Round(doc.Currency.Decimals).InexactFloat64())
		if r.Total {
			style(fmt.Sprintf("D%d", row), fmt.Sprintf("D%d", row), bold)
			style(fmt.Sprintf("E%d", row), fmt.Sprintf("E%d", row), boldAmount)
		} else {
			style(fmt.Sprintf("E%d", row), fmt.Sprintf("E%d", row), amount)
		}
		row++
	}
	if err == nil {
		err = f.SetColWidth(sheetName, "A", "A", 32)
	}
	if err == nil {
		err = f.SetColWidth(sheetName, "B", "E", 20)
	}
	if err != nil {
		return fmt.Errorf("render xlsx: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("render xlsx: %w", err)
	}
	return nil
}
