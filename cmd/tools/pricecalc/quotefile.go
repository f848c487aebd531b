package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/backend-atelier/internal/pricing"
)

// quoteFile is the on-disk form of a quote, in YAML or JSON.
type quoteFile struct {
	CustomerName string                  `json:"customerName" yaml:"customerName"`
	Flow         string                  `json:"flow" yaml:"flow"`
	Currency     string                  `json:"currency" yaml:"currency"`
	HiddenFields []string                `json:"hiddenFields" yaml:"hiddenFields"`
	Items        []pricing.LineItemInput `json:"items" yaml:"items"`
	Charges      pricing.ChargesInput    `json:"charges" yaml:"charges"`
	Tax          *pricing.TaxInput       `json:"tax" yaml:"tax"`
}

func readQuoteFile(path string) (quoteFile, error) {
	var qf quoteFile
	var data []byte
	var err error
	if path == "-" {
		data, err = readAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return qf, fmt.Errorf("read quote file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&qf); err != nil {
			return qf, fmt.Errorf("decode %s: %w", path, err)
		}
		return qf, nil
	}
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return qf, fmt.Errorf("decode %s: %w", path, err)
	}
	return qf, nil
}

func readAll(f *os.File) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(f)
	return buf.Bytes(), err
}

// compute resolves flow, currency and tax defaults the same way the API does.
// Overrides from flags win over the file.
func (qf quoteFile) compute(currency, flowName string, basis pricing.ShippingBasis, defaultRate string) (pricing.Breakdown, error) {
	if flowName == "" {
		flowName = qf.Flow
	}
	flow, err := pricing.ParseFlow(flowName)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	opts, err := pricing.OptionsFromHiddenFields(flow.Options(basis), qf.HiddenFields)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	if currency == "" {
		currency = qf.Currency
	}
	tax := pricing.TaxSpec{Rate: pricing.ParseRate(defaultRate), Enabled: true}
	if qf.Tax != nil {
		tax = qf.Tax.TaxSpec()
	}
	items := make([]pricing.LineItem, 0, len(qf.Items))
	for _, in := range qf.Items {
		if !pricing.KnownCategory(in.Category) {
			return pricing.Breakdown{}, fmt.Errorf("item %q: unknown category %q", in.Label, in.Category)
		}
		items = append(items, in.LineItem())
	}
	return pricing.ComputeBreakdown(items, qf.Charges.Charges(), tax, pricing.CurrencyContext{Display: pricing.Code(currency)}, opts)
}
