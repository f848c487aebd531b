package pricing_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-atelier/internal/pricing"
)

func TestDefaultTable(t *testing.T) {
	table := pricing.DefaultTable()
	require.Equal(t, pricing.USD, table.Base())
	require.Equal(t, []pricing.Code{pricing.USD, pricing.NGN}, table.Codes())

	ngn, err := table.Lookup("ngn")
	require.NoError(t, err)
	require.True(t, ngn.Rate.Equal(pricing.NGNPerUSD))

	converted, err := table.Convert(decimal.NewFromInt(2), pricing.NGN)
	require.NoError(t, err)
	require.True(t, converted.Equal(decimal.NewFromInt(3300)))

	_, err = table.Convert(decimal.NewFromInt(2), "GBP")
	require.ErrorIs(t, err, pricing.ErrInvalidCurrency)
}

func TestParseCode(t *testing.T) {
	table := pricing.DefaultTable()
	code, err := table.ParseCode(" usd ")
	require.NoError(t, err)
	require.Equal(t, pricing.USD, code)

	_, err = table.ParseCode("EUR")
	require.ErrorIs(t, err, pricing.ErrInvalidCurrency)
	require.EqualError(t, err, `invalid currency "EUR"`)
}

func TestNewTableValidation(t *testing.T) {
	_, err := pricing.NewTable("USD")
	require.Error(t, err)

	_, err = pricing.NewTable("USD", pricing.Currency{Code: "XYZ1", Symbol: "?", Rate: decimal.NewFromInt(1)})
	require.Error(t, err)

	_, err = pricing.NewTable("USD",
		pricing.Currency{Code: "USD", Symbol: "$", Rate: decimal.NewFromInt(1), Decimals: 2},
		pricing.Currency{Code: "USD", Symbol: "$", Rate: decimal.NewFromInt(1), Decimals: 2},
	)
	require.Error(t, err)

	table, err := pricing.NewTable("USD",
		pricing.Currency{Code: "USD", Symbol: "$", Rate: decimal.NewFromInt(1), Decimals: 2},
		pricing.Currency{Code: "GHS", Symbol: "GH₵", Rate: decimal.RequireFromString("15.2"), Decimals: 2},
	)
	require.NoError(t, err)
	require.Len(t, table.Currencies(), 2)
}

func TestCurrencyFormat(t *testing.T) {
	table := pricing.DefaultTable()
	ngn, err := table.Lookup(pricing.NGN)
	require.NoError(t, err)

	require.Equal(t, "₦1,650.00", ngn.Format(decimal.NewFromInt(1650)))
	require.Equal(t, "NGN 1,650.00", ngn.FormatCode(decimal.NewFromInt(1650)))
	require.Equal(t, "₦0.13", ngn.Format(decimal.RequireFromString("0.125")))
	require.Equal(t, "₦0.00", ngn.Format(decimal.Zero))

	usd, err := table.Lookup(pricing.USD)
	require.NoError(t, err)
	converted, err := table.Convert(decimal.RequireFromString("123456789012345.67"), pricing.NGN)
	require.NoError(t, err)
	require.Equal(t, "₦203,703,701,870,370,355.50", ngn.Format(converted))
	huge := decimal.RequireFromString("1" + strings.Repeat("0", 300))
	require.NotContains(t, usd.Format(huge), "Inf")
	require.Equal(t, "$1,000"+strings.Repeat(",000", 99)+".00", usd.Format(huge))
	require.Equal(t, "$-1,234.50", usd.Format(decimal.RequireFromString("-1234.5")))
}
