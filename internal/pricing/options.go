package pricing

import (
	"errors"
	"fmt"
	"strings"
)

// ShippingBasis selects how a visible shipping/handling charge interacts with tax.
type ShippingBasis string

const (
	// ShippingTaxable adds shipping to the additive charges and the taxable base.
	ShippingTaxable ShippingBasis = "taxable"
	// ShippingUntaxed reports shipping and adds it to the grand total after tax,
	// leaving the taxable base as items + workmanship + profit.
	ShippingUntaxed ShippingBasis = "untaxed"
)

// ParseShippingBasis reads a configured basis, defaulting to ShippingTaxable.
func ParseShippingBasis(raw string) (ShippingBasis, error) {
	switch ShippingBasis(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ShippingTaxable:
		return ShippingTaxable, nil
	case ShippingUntaxed:
		return ShippingUntaxed, nil
	default:
		return "", fmt.Errorf("unknown shipping basis %q", raw)
	}
}

// Options controls which optional lines take part in a computation.
type Options struct {
	IncludeShipping bool          `json:"includeShipping"`
	IncludeTax      bool          `json:"includeTax"`
	ShippingBasis   ShippingBasis `json:"shippingBasis"`
}

// DefaultOptions includes every optional line with taxable shipping.
func DefaultOptions() Options {
	return Options{IncludeShipping: true, IncludeTax: true, ShippingBasis: ShippingTaxable}
}

// ErrUnknownField is returned for hidden-field names outside the known set.
var ErrUnknownField = errors.New("unknown hidden field")

// OptionsFromHiddenFields translates the legacy list of hidden field names
// ("VAT", "Handling", ...) into Options. Unknown names are rejected so a typo
// cannot silently drop a charge.
func OptionsFromHiddenFields(base Options, hidden []string) (Options, error) {
	out := base
	for _, raw := range hidden {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "vat", "tax":
			out.IncludeTax = false
		case "handling", "shipping":
			out.IncludeShipping = false
		default:
			return Options{}, fmt.Errorf("%w: %q", ErrUnknownField, raw)
		}
	}
	return out, nil
}

// Flow names a screen that consumes the engine.
type Flow string

const (
	FlowCalculator  Flow = "calculator"
	FlowOrderWizard Flow = "order_wizard"
	FlowOrderEdit   Flow = "order_edit"
	FlowInvoice     Flow = "invoice"
)

// Flows lists the known flows.
var Flows = []Flow{FlowCalculator, FlowOrderWizard, FlowOrderEdit, FlowInvoice}

// ParseFlow validates a flow name; empty selects the calculator.
func ParseFlow(raw string) (Flow, error) {
	f := Flow(strings.ToLower(strings.TrimSpace(raw)))
	if f == "" {
		return FlowCalculator, nil
	}
	for _, known := range Flows {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown flow %q", raw)
}

// Options returns the flow preset. Order flows carry no shipping or VAT line;
// the calculator and invoice generator show both.
func (f Flow) Options(basis ShippingBasis) Options {
	if basis == "" {
		basis = ShippingTaxable
	}
	switch f {
	case FlowOrderWizard, FlowOrderEdit:
		return Options{IncludeShipping: false, IncludeTax: false, ShippingBasis: basis}
	default:
		return Options{IncludeShipping: true, IncludeTax: true, ShippingBasis: basis}
	}
}

// Category groups material line items on the calculator screen.
type Category string

const (
	CategoryFabric    Category = "Fabric & Main Materials"
	CategorySewing    Category = "Sewing Essentials"
	CategoryLining    Category = "Linings & Interfacing"
	CategoryTrims     Category = "Trims & Embellishments"
	CategoryFasteners Category = "Fasteners & Closures"
	CategoryPackaging Category = "Packaging & Finishing"
)

// MaterialCategories is the closed set offered by the calculator, in display order.
var MaterialCategories = []Category{
	CategoryFabric,
	CategorySewing,
	CategoryLining,
	CategoryTrims,
	CategoryFasteners,
	CategoryPackaging,
}

// KnownCategory reports whether c belongs to MaterialCategories. Empty is allowed.
func KnownCategory(c Category) bool {
	if c == "" {
		return true
	}
	for _, known := range MaterialCategories {
		if strings.EqualFold(string(known), strings.TrimSpace(string(c))) {
			return true
		}
	}
	return false
}

// CanonicalCategory returns the declared spelling of c when it is known.
func CanonicalCategory(c Category) Category {
	for _, known := range MaterialCategories {
		if strings.EqualFold(string(known), strings.TrimSpace(string(c))) {
			return known
		}
	}
	return Category(strings.TrimSpace(string(c)))
}
