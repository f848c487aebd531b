package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-atelier/internal/catalog"
	"github.com/noah-isme/backend-atelier/internal/pricing"
)

func TestDefaultPriceListLoads(t *testing.T) {
	pl := catalog.Default()
	require.NotEmpty(t, pl.Fabrics())
	require.NotEmpty(t, pl.Products())

	f, err := pl.Fabric("  ankara print ")
	require.NoError(t, err)
	require.Equal(t, "Ankara Print", f.Name)
	require.True(t, decimal.RequireFromString("12.5").Equal(f.Cost))
	require.Equal(t, pricing.CategoryFabric, f.Category)

	lining, err := pl.Fabric("Polyester Lining")
	require.NoError(t, err)
	require.Equal(t, pricing.CategoryLining, lining.Category)
}

func TestParsePriceListLenientCosts(t *testing.T) {
	pl, err := catalog.ParsePriceList([]byte(`
fabrics:
  - name: Silk
    cost: "₦12,000"
  - name: Mystery
    cost: "ask me"
products:
  - name: Gown
    lowPrice: 900
    highPrice: "300"
`))
	require.NoError(t, err)

	silk, err := pl.Fabric("silk")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(12000).Equal(silk.Cost))

	mystery, err := pl.Fabric("Mystery")
	require.NoError(t, err)
	require.True(t, mystery.Cost.IsZero())

	gown, err := pl.Product("gown")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(300).Equal(gown.LowPrice), "range is normalised")
	require.True(t, decimal.NewFromInt(900).Equal(gown.HighPrice))
}

func TestParsePriceListRejectsBadEntries(t *testing.T) {
	_, err := catalog.ParsePriceList([]byte("fabrics:\n  - name: A\n    cost: 1\n  - name: a\n    cost: 2\n"))
	require.ErrorContains(t, err, "listed twice")

	_, err = catalog.ParsePriceList([]byte("fabrics:\n  - cost: 1\n"))
	require.ErrorContains(t, err, "name is required")

	_, err = catalog.ParsePriceList([]byte("fabrics:\n  - name: A\n    category: Buttons\n"))
	require.ErrorContains(t, err, "unknown category")

	_, err = catalog.ParsePriceList([]byte("fabrics: [unterminated"))
	require.Error(t, err)
}

func TestProductBands(t *testing.T) {
	p := catalog.Product{Name: "Kaftan", LowPrice: decimal.NewFromInt(60), HighPrice: decimal.NewFromInt(180)}

	item, err := p.LineItem(catalog.BandMid, 2)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(120).Equal(item.UnitCost))
	require.Equal(t, 2, item.Quantity)
	require.Empty(t, item.Category)

	item, err = p.LineItem(catalog.BandHigh, 0)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(180).Equal(item.UnitCost))
	require.Equal(t, 1, item.Quantity)

	_, err = p.LineItem("premium", 1)
	require.ErrorIs(t, err, catalog.ErrInvalidBand)

	band, err := catalog.ParseBand("")
	require.NoError(t, err)
	require.Equal(t, catalog.BandLow, band)
}

func TestLookupMissing(t *testing.T) {
	_, err := catalog.Default().Product("Spacesuit")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestLoadPriceListFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`{"fabrics":[{"name":"Denim","cost":9}]}`), 0o600))

	pl, err := catalog.LoadPriceList(path)
	require.NoError(t, err)
	require.Len(t, pl.Fabrics(), 1)

	_, err = catalog.LoadPriceList(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	pl, err = catalog.LoadPriceList("")
	require.NoError(t, err)
	require.Equal(t, len(catalog.Default().Fabrics()), len(pl.Fabrics()))
}
