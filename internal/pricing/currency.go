package pricing

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Code is an ISO-4217 currency code.
type Code string

const (
	USD Code = "USD"
	NGN Code = "NGN"
)

// NGNPerUSD is the fixed conversion constant used for naira display.
var NGNPerUSD = decimal.NewFromInt(1650)

// ErrInvalidCurrency is returned when a conversion targets a currency absent from the table.
var ErrInvalidCurrency = errors.New("invalid currency")

// InvalidCurrencyError reports the offending currency code.
type InvalidCurrencyError struct {
	Code Code
}

func (e *InvalidCurrencyError) Error() string {
	return fmt.Sprintf("invalid currency %q", string(e.Code))
}

// Is makes errors.Is(err, ErrInvalidCurrency) match.
func (e *InvalidCurrencyError) Is(target error) bool {
	return target == ErrInvalidCurrency
}

// Currency describes one entry in the conversion table.
type Currency struct {
	Code     Code            `json:"code"`
	Symbol   string          `json:"symbol"`
	Rate     decimal.Decimal `json:"rate"`
	Decimals int32           `json:"decimals"`
}

// Format renders amount with the currency symbol and thousands grouping.
func (c Currency) Format(amount decimal.Decimal) string {
	return c.Symbol + c.group(amount)
}

// FormatCode renders amount prefixed by the ISO code, e.g. "NGN 1,650.00".
func (c Currency) FormatCode(amount decimal.Decimal) string {
	return string(c.Code) + " " + c.group(amount)
}

func (c Currency) group(amount decimal.Decimal) string {
	places := c.Decimals
	if places < 0 {
		places = 0
	}
	// stay in decimal space so large totals never pass through a float
	fixed := amount.StringFixed(places)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	n, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return sign + fixed
	}
	out := sign + humanize.BigComma(n)
	if frac != "" {
		out += "." + frac
	}
	return out
}

// Table is a closed set of display currencies with static rates from the base currency.
type Table struct {
	base    Code
	entries map[Code]Currency
	order   []Code
}

// NewTable builds a conversion table. The base currency must be present with rate 1.
func NewTable(base Code, entries ...Currency) (*Table, error) {
	t := &Table{base: normalizeCode(base), entries: make(map[Code]Currency, len(entries))}
	for _, e := range entries {
		code := normalizeCode(e.Code)
		if _, err := currency.ParseISO(string(code)); err != nil {
			return nil, fmt.Errorf("currency %q: %w", string(e.Code), err)
		}
		if !e.Rate.IsPositive() {
			return nil, fmt.Errorf("currency %s: rate must be positive", code)
		}
		if _, dup := t.entries[code]; dup {
			return nil, fmt.Errorf("currency %s: duplicate entry", code)
		}
		e.Code = code
		t.entries[code] = e
		t.order = append(t.order, code)
	}
	b, ok := t.entries[t.base]
	if !ok {
		return nil, fmt.Errorf("base currency %s missing from table", t.base)
	}
	if !b.Rate.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("base currency %s must have rate 1", t.base)
	}
	return t, nil
}

// DefaultTable returns the USD/NGN table used by every flow.
func DefaultTable() *Table {
	t, err := NewTable(USD,
		Currency{Code: USD, Symbol: "$", Rate: decimal.NewFromInt(1), Decimals: 2},
		Currency{Code: NGN, Symbol: "₦", Rate: NGNPerUSD, Decimals: 2},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// Base returns the computation currency.
func (t *Table) Base() Code { return t.base }

// Codes lists the supported currencies in declaration order.
func (t *Table) Codes() []Code {
	out := make([]Code, len(t.order))
	copy(out, t.order)
	return out
}

// Currencies lists the table entries in declaration order.
func (t *Table) Currencies() []Currency {
	out := make([]Currency, 0, len(t.order))
	for _, code := range t.order {
		out = append(out, t.entries[code])
	}
	return out
}

// Lookup returns the entry for code or an InvalidCurrencyError.
func (t *Table) Lookup(code Code) (Currency, error) {
	if t == nil {
		return Currency{}, &InvalidCurrencyError{Code: code}
	}
	c, ok := t.entries[normalizeCode(code)]
	if !ok {
		return Currency{}, &InvalidCurrencyError{Code: code}
	}
	return c, nil
}

// Convert re-expresses a base-currency amount in the target currency.
func (t *Table) Convert(amount decimal.Decimal, to Code) (decimal.Decimal, error) {
	c, err := t.Lookup(to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(c.Rate), nil
}

// ParseCode normalises a user supplied code and checks it against the table.
func (t *Table) ParseCode(raw string) (Code, error) {
	code := normalizeCode(Code(raw))
	if _, err := t.Lookup(code); err != nil {
		return "", err
	}
	return code, nil
}

func normalizeCode(c Code) Code {
	return Code(strings.ToUpper(strings.TrimSpace(string(c))))
}
