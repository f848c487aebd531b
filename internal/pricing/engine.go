package pricing

import (
	"github.com/shopspring/decimal"
)

// LineItem describes a priced material or product row.
type LineItem struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	UnitCost decimal.Decimal `json:"unitCost"`
	Quantity int             `json:"quantity"`
	Category Category        `json:"category,omitempty"`
}

// LineItemInput is a line item as typed into a form. Cost and quantity may be
// numbers, numeric strings, formatted strings or garbage.
type LineItemInput struct {
	ID       string   `json:"id" yaml:"id"`
	Label    string   `json:"label" yaml:"label"`
	UnitCost any      `json:"unitCost" yaml:"unitCost"`
	Quantity any      `json:"quantity" yaml:"quantity"`
	Category Category `json:"category,omitempty" yaml:"category" validate:"omitempty,material_category"`
}

// LineItem sanitises the input.
func (in LineItemInput) LineItem() LineItem {
	return LineItem{
		ID:       in.ID,
		Label:    in.Label,
		UnitCost: ParseAmount(in.UnitCost),
		Quantity: ParseQuantity(in.Quantity),
		Category: CanonicalCategory(in.Category),
	}
}

// Total returns unitCost * quantity with negative cost clamped and quantity defaulted.
func (it LineItem) Total() decimal.Decimal {
	cost := it.UnitCost
	if cost.IsNegative() {
		cost = decimal.Zero
	}
	qty := it.Quantity
	if qty <= 0 {
		qty = 1
	}
	return cost.Mul(decimal.NewFromInt(int64(qty)))
}

// Charges are flat, quantity independent add-ons.
type Charges struct {
	Workmanship        decimal.Decimal `json:"workmanship"`
	ProfitMargin       decimal.Decimal `json:"profitMargin"`
	ShippingOrHandling decimal.Decimal `json:"shippingOrHandling"`
}

// ChargesInput is the lenient form of Charges.
type ChargesInput struct {
	Workmanship        any `json:"workmanship" yaml:"workmanship"`
	ProfitMargin       any `json:"profitMargin" yaml:"profitMargin"`
	ShippingOrHandling any `json:"shippingOrHandling" yaml:"shippingOrHandling"`
}

// Charges sanitises the input.
func (in ChargesInput) Charges() Charges {
	return Charges{
		Workmanship:        ParseAmount(in.Workmanship),
		ProfitMargin:       ParseAmount(in.ProfitMargin),
		ShippingOrHandling: ParseAmount(in.ShippingOrHandling),
	}
}

// TaxSpec holds the VAT percentage and whether a tax line is produced at all.
type TaxSpec struct {
	Rate    decimal.Decimal `json:"rate"`
	Enabled bool            `json:"enabled"`
}

// TaxInput is the lenient form of TaxSpec.
type TaxInput struct {
	Rate    any  `json:"rate" yaml:"rate"`
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// TaxSpec sanitises the input.
func (in TaxInput) TaxSpec() TaxSpec {
	return TaxSpec{Rate: ParseRate(in.Rate), Enabled: in.Enabled}
}

// CurrencyContext selects the display currency from a closed table.
type CurrencyContext struct {
	Display Code
	Table   *Table
}

// Money carries a base-currency amount and its display rendering.
type Money struct {
	Amount    decimal.Decimal `json:"amount"`
	Converted decimal.Decimal `json:"converted"`
	Display   string          `json:"display"`
}

// LineTotal is the computed total of one line item.
type LineTotal struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Quantity int      `json:"quantity"`
	UnitCost Money    `json:"unitCost"`
	Total    Money    `json:"total"`
	Category Category `json:"category,omitempty"`
}

// CategoryTotal sums the line totals of one category.
type CategoryTotal struct {
	Category Category `json:"category"`
	Total    Money    `json:"total"`
}

// Breakdown is the itemised result of ComputeBreakdown. Shipping, TaxRate and
// Tax are nil when the corresponding line is not part of the computation.
type Breakdown struct {
	Currency             Code             `json:"currency"`
	ConversionRate       decimal.Decimal  `json:"conversionRate"`
	Lines                []LineTotal      `json:"lines"`
	CategoryTotals       []CategoryTotal  `json:"categoryTotals,omitempty"`
	ItemsSubtotal        Money            `json:"itemsSubtotal"`
	Workmanship          Money            `json:"workmanship"`
	ProfitMargin         Money            `json:"profitMargin"`
	Shipping             *Money           `json:"shipping,omitempty"`
	AdditiveChargesTotal Money            `json:"additiveChargesTotal"`
	TaxableBase          Money            `json:"taxableBase"`
	TaxRate              *decimal.Decimal `json:"taxRate,omitempty"`
	Tax                  *Money           `json:"tax,omitempty"`
	GrandTotal           Money            `json:"grandTotal"`
}

// CategoryTotal returns the total for c and whether c appeared.
func (b Breakdown) CategoryTotal(c Category) (Money, bool) {
	for _, ct := range b.CategoryTotals {
		if ct.Category == c {
			return ct.Total, true
		}
	}
	return Money{}, false
}

// ComputeBreakdown derives subtotals, tax and the grand total for the given
// inputs. It is pure: the only error is an unsupported display currency.
func ComputeBreakdown(items []LineItem, charges Charges, tax TaxSpec, cur CurrencyContext, opts Options) (Breakdown, error) {
	table := cur.Table
	if table == nil {
		table = DefaultTable()
	}
	display := cur.Display
	if display == "" {
		display = table.Base()
	}
	c, err := table.Lookup(display)
	if err != nil {
		return Breakdown{}, err
	}
	money := func(amount decimal.Decimal) Money {
		converted := amount.Mul(c.Rate)
		return Money{Amount: amount, Converted: converted, Display: c.Format(converted)}
	}

	out := Breakdown{Currency: c.Code, ConversionRate: c.Rate}
	out.Lines = make([]LineTotal, 0, len(items))

	subtotal := decimal.Zero
	var groups []CategoryTotal
	index := map[Category]int{}
	for _, it := range items {
		total := it.Total()
		unit := it.UnitCost
		if unit.IsNegative() {
			unit = decimal.Zero
		}
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		out.Lines = append(out.Lines, LineTotal{
			ID:       it.ID,
			Label:    it.Label,
			Quantity: qty,
			UnitCost: money(unit),
			Total:    money(total),
			Category: it.Category,
		})
		subtotal = subtotal.Add(total)
		if it.Category == "" {
			continue
		}
		pos, seen := index[it.Category]
		if !seen {
			pos = len(groups)
			index[it.Category] = pos
			groups = append(groups, CategoryTotal{Category: it.Category})
		}
		groups[pos].Total.Amount = groups[pos].Total.Amount.Add(total)
	}
	for i := range groups {
		groups[i].Total = money(groups[i].Total.Amount)
	}
	out.CategoryTotals = groups

	workmanship := nonNegative(charges.Workmanship)
	profit := nonNegative(charges.ProfitMargin)
	additive := workmanship.Add(profit)
	untaxed := decimal.Zero
	if opts.IncludeShipping {
		shipping := nonNegative(charges.ShippingOrHandling)
		m := money(shipping)
		out.Shipping = &m
		if opts.ShippingBasis == ShippingUntaxed {
			untaxed = shipping
		} else {
			additive = additive.Add(shipping)
		}
	}
	base := subtotal.Add(additive)

	grand := base
	if tax.Enabled && opts.IncludeTax {
		rate := clampRate(tax.Rate)
		amount := base.Mul(rate.Shift(-2))
		m := money(amount)
		out.TaxRate = &rate
		out.Tax = &m
		grand = grand.Add(amount)
	}
	grand = grand.Add(untaxed)

	out.ItemsSubtotal = money(subtotal)
	out.Workmanship = money(workmanship)
	out.ProfitMargin = money(profit)
	out.AdditiveChargesTotal = money(additive)
	out.TaxableBase = money(base)
	out.GrandTotal = money(grand)
	return out, nil
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
