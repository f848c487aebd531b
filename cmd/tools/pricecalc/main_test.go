package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-atelier/internal/pricing"
)

const sampleQuote = `
customerName: Adaeze Okafor
flow: calculator
items:
  - label: Ankara Print
    unitCost: "12.50"
    quantity: 4
    category: Fabric & Main Materials
charges:
  workmanship: 40
  profitMargin: 10
  shippingOrHandling: 5
tax:
  rate: 7.5
  enabled: true
`

func writeQuote(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBreakdownJSON(t *testing.T) {
	path := writeQuote(t, "quote.yaml", sampleQuote)
	out, err := run(t, "breakdown", "-f", path, "--json")
	require.NoError(t, err)

	var b pricing.Breakdown
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	require.Equal(t, pricing.USD, b.Currency)
	require.Equal(t, "112.875", b.GrandTotal.Amount.String())
	require.Equal(t, "$112.88", b.GrandTotal.Display)
}

func TestBreakdownCurrencyOverride(t *testing.T) {
	path := writeQuote(t, "quote.yaml", sampleQuote)
	out, err := run(t, "breakdown", "-f", path, "--currency", "NGN", "--json")
	require.NoError(t, err)

	var b pricing.Breakdown
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	require.Equal(t, "₦186,243.75", b.GrandTotal.Display)
}

func TestBreakdownOrderFlowDropsShippingAndTax(t *testing.T) {
	path := writeQuote(t, "quote.yaml", sampleQuote)
	out, err := run(t, "breakdown", "-f", path, "--flow", "order_wizard", "--json")
	require.NoError(t, err)

	var b pricing.Breakdown
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	require.Nil(t, b.Shipping)
	require.Nil(t, b.Tax)
	require.Equal(t, "100", b.GrandTotal.Amount.String())
}

func TestBreakdownTable(t *testing.T) {
	path := writeQuote(t, "quote.yaml", sampleQuote)
	out, err := run(t, "breakdown", "-f", path)
	require.NoError(t, err)
	require.Contains(t, out, "Ankara Print")
	require.Contains(t, out, "VAT (7.5%)")
	require.Contains(t, out, "$112.88")
}

func TestBreakdownJSONFile(t *testing.T) {
	path := writeQuote(t, "quote.json", `{"items":[{"label":"Lace","unitCost":"1,000","quantity":"2"}],"tax":{"rate":0,"enabled":false}}`)
	out, err := run(t, "breakdown", "-f", path, "--json")
	require.NoError(t, err)

	var b pricing.Breakdown
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	require.Equal(t, "2000", b.GrandTotal.Amount.String())
}

func TestBreakdownErrors(t *testing.T) {
	t.Run("unknown category", func(t *testing.T) {
		path := writeQuote(t, "quote.yaml", "items:\n  - label: X\n    unitCost: 1\n    quantity: 1\n    category: Buttons\n")
		_, err := run(t, "breakdown", "-f", path)
		require.ErrorContains(t, err, "unknown category")
	})
	t.Run("unsupported currency", func(t *testing.T) {
		path := writeQuote(t, "quote.yaml", sampleQuote)
		_, err := run(t, "breakdown", "-f", path, "--currency", "EUR")
		require.Error(t, err)
	})
	t.Run("unknown flow", func(t *testing.T) {
		path := writeQuote(t, "quote.yaml", sampleQuote)
		_, err := run(t, "breakdown", "-f", path, "--flow", "checkout")
		require.Error(t, err)
	})
	t.Run("missing file flag", func(t *testing.T) {
		_, err := run(t, "breakdown")
		require.Error(t, err)
	})
}

func TestInvoiceWritesFiles(t *testing.T) {
	path := writeQuote(t, "quote.yaml", sampleQuote)
	dir := t.TempDir()

	pdf := filepath.Join(dir, "out.pdf")
	_, err := run(t, "invoice", "-f", path, "-o", pdf)
	require.NoError(t, err)
	data, err := os.ReadFile(pdf)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	xlsx := filepath.Join(dir, "out.xlsx")
	_, err = run(t, "invoice", "-f", path, "-o", xlsx)
	require.NoError(t, err)
	data, err = os.ReadFile(xlsx)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("PK")))

	_, err = run(t, "invoice", "-f", path, "-o", filepath.Join(dir, "out.txt"))
	require.ErrorContains(t, err, "unsupported invoice format")
}

func TestCatalogListsBuiltInPriceList(t *testing.T) {
	out, err := run(t, "catalog")
	require.NoError(t, err)
	require.Contains(t, out, "Aso Oke")
	require.Contains(t, out, "Agbada")
	require.Contains(t, out, "150.00")
}
