// Package catalog loads the shop's fabric and product price list and turns
// entries into pricing line items.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/backend-atelier/internal/pricing"
)

//go:embed pricelist.yaml
var defaultPriceList []byte

var (
	// ErrNotFound is returned when a name is absent from the price list.
	ErrNotFound = errors.New("catalog: item not found")
	// ErrInvalidBand is returned for a price band other than low, high or mid.
	ErrInvalidBand = errors.New("catalog: invalid price band")
)

// Fabric is a material priced per unit.
type Fabric struct {
	Name     string           `json:"name"`
	Cost     decimal.Decimal  `json:"cost"`
	Category pricing.Category `json:"category"`
}

// Product is a finished garment quoted within a price range.
type Product struct {
	Name      string          `json:"name"`
	LowPrice  decimal.Decimal `json:"lowPrice"`
	HighPrice decimal.Decimal `json:"highPrice"`
}

// Band selects a point in a product's price range.
type Band string

// Known bands.
const (
	BandLow  Band = "low"
	BandHigh Band = "high"
	BandMid  Band = "mid"
)

// ParseBand reads a band name; empty selects BandLow.
func ParseBand(raw string) (Band, error) {
	switch b := Band(strings.ToLower(strings.TrimSpace(raw))); b {
	case "":
		return BandLow, nil
	case BandLow, BandHigh, BandMid:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBand, raw)
	}
}

// LineItem prices qty units of the fabric.
func (f Fabric) LineItem(qty int) pricing.LineItem {
	return pricing.LineItem{
		Label:    f.Name,
		UnitCost: f.Cost,
		Quantity: pricing.ParseQuantity(qty),
		Category: f.Category,
	}
}

// Price returns the unit price at band. Mid is the average of low and high.
func (p Product) Price(band Band) (decimal.Decimal, error) {
	switch band {
	case BandLow, "":
		return p.LowPrice, nil
	case BandHigh:
		return p.HighPrice, nil
	case BandMid:
		return p.LowPrice.Add(p.HighPrice).Div(decimal.NewFromInt(2)), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidBand, band)
	}
}

// LineItem prices qty units of the product at band. Products are not material
// rows and carry no category.
func (p Product) LineItem(band Band, qty int) (pricing.LineItem, error) {
	price, err := p.Price(band)
	if err != nil {
		return pricing.LineItem{}, err
	}
	return pricing.LineItem{
		Label:    p.Name,
		UnitCost: price,
		Quantity: pricing.ParseQuantity(qty),
	}, nil
}

// PriceList is an immutable, name-indexed price list.
type PriceList struct {
	fabrics  []Fabric
	products []Product
	byFabric map[string]int
	byProd   map[string]int
}

type rawPriceList struct {
	Fabrics []struct {
		Name     string `yaml:"name"`
		Cost     any    `yaml:"cost"`
		Category string `yaml:"category"`
	} `yaml:"fabrics"`
	Products []struct {
		Name      string `yaml:"name"`
		LowPrice  any    `yaml:"lowPrice"`
		HighPrice any    `yaml:"highPrice"`
	} `yaml:"products"`
}

// Default returns the price list shipped with the binary.
func Default() *PriceList {
	pl, err := ParsePriceList(defaultPriceList)
	if err != nil {
		panic(err)
	}
	return pl
}

// LoadPriceList reads a YAML (or JSON) price list from path. An empty path
// selects the built-in list.
func LoadPriceList(path string) (*PriceList, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price list: %w", err)
	}
	return ParsePriceList(data)
}

// ParsePriceList decodes a price list. Costs are read leniently like form
// input; names must be present and unique; fabric categories must be known.
func ParsePriceList(data []byte) (*PriceList, error) {
	var raw rawPriceList
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode price list: %w", err)
	}
	pl := &PriceList{byFabric: map[string]int{}, byProd: map[string]int{}}
	for i, f := range raw.Fabrics {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, fmt.Errorf("fabric %d: name is required", i)
		}
		key := nameKey(name)
		if _, dup := pl.byFabric[key]; dup {
			return nil, fmt.Errorf("fabric %q listed twice", name)
		}
		category := pricing.CategoryFabric
		if f.Category != "" {
			if !pricing.KnownCategory(pricing.Category(f.Category)) {
				return nil, fmt.Errorf("fabric %q: unknown category %q", name, f.Category)
			}
			category = pricing.CanonicalCategory(pricing.Category(f.Category))
		}
		pl.byFabric[key] = len(pl.fabrics)
		pl.fabrics = append(pl.fabrics, Fabric{Name: name, Cost: pricing.ParseAmount(f.Cost), Category: category})
	}
	for i, p := range raw.Products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("product %d: name is required", i)
		}
		key := nameKey(name)
		if _, dup := pl.byProd[key]; dup {
			return nil, fmt.Errorf("product %q listed twice", name)
		}
		low := pricing.ParseAmount(p.LowPrice)
		high := pricing.ParseAmount(p.HighPrice)
		if high.LessThan(low) {
			low, high = high, low
		}
		pl.byProd[key] = len(pl.products)
		pl.products = append(pl.products, Product{Name: name, LowPrice: low, HighPrice: high})
	}
	return pl, nil
}

// Fabrics returns the fabrics in file order.
func (pl *PriceList) Fabrics() []Fabric {
	out := make([]Fabric, len(pl.fabrics))
	copy(out, pl.fabrics)
	return out
}

// Products returns the products in file order.
func (pl *PriceList) Products() []Product {
	out := make([]Product, len(pl.products))
	copy(out, pl.products)
	return out
}

// Fabric looks up a fabric by case-insensitive name.
func (pl *PriceList) Fabric(name string) (Fabric, error) {
	if i, ok := pl.byFabric[nameKey(name)]; ok {
		return pl.fabrics[i], nil
	}
	return Fabric{}, fmt.Errorf("%w: fabric %q", ErrNotFound, name)
}

// Product looks up a product by case-insensitive name.
func (pl *PriceList) Product(name string) (Product, error) {
	if i, ok := pl.byProd[nameKey(name)]; ok {
		return pl.products[i], nil
	}
	return Product{}, fmt.Errorf("%w: product %q", ErrNotFound, name)
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
