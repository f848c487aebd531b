package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/noah-isme/backend-atelier/internal/catalog"
	"github.com/noah-isme/backend-atelier/internal/invoice"
	"github.com/noah-isme/backend-atelier/internal/pricing"
)

type options struct {
	file          string
	currency      string
	flow          string
	shippingBasis string
	taxRate       string
	asJSON        bool
	output        string
	business      string
	priceList     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "pricecalc",
		Short:         "Compute tailoring quotes and invoices from a quote file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.shippingBasis, "shipping-basis", string(pricing.ShippingTaxable), "taxable or untaxed")
	root.PersistentFlags().StringVar(&opts.taxRate, "tax-rate", "7.5", "VAT percentage used when the file has no tax block")

	root.AddCommand(newBreakdownCmd(opts), newInvoiceCmd(opts), newCatalogCmd(opts))
	return root
}

func addQuoteFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "quote file (.yaml, .yml or .json; - for stdin as YAML)")
	cmd.Flags().StringVar(&opts.currency, "currency", "", "display currency, overrides the file")
	cmd.Flags().StringVar(&opts.flow, "flow", "", "calculator, order_wizard, order_edit or invoice")
	_ = cmd.MarkFlagRequired("file")
}

func (o *options) breakdown() (quoteFile, pricing.Breakdown, error) {
	basis, err := pricing.ParseShippingBasis(o.shippingBasis)
	if err != nil {
		return quoteFile{}, pricing.Breakdown{}, err
	}
	qf, err := readQuoteFile(o.file)
	if err != nil {
		return quoteFile{}, pricing.Breakdown{}, err
	}
	b, err := qf.compute(o.currency, o.flow, basis, o.taxRate)
	return qf, b, err
}

func newBreakdownCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Print the itemised breakdown for a quote file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, b, err := opts.breakdown()
			if err != nil {
				return err
			}
			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(b)
			}
			return printBreakdown(cmd.OutOrStdout(), b)
		},
	}
	addQuoteFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printBreakdown(w io.Writer, b pricing.Breakdown) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Item\tQty\tUnit\tTotal\t\n")
	for _, l := range b.Lines {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", l.Label, l.Quantity, l.UnitCost.Display, l.Total.Display)
	}
	fmt.Fprintf(tw, "\t\t\t\t\n")
	for _, ct := range b.CategoryTotals {
		fmt.Fprintf(tw, "%s\t\t\t%s\t\n", ct.Category, ct.Total.Display)
	}
	for _, row := range invoice.Summary(b) {
		fmt.Fprintf(tw, "%s\t\t\t%s\t\n", row.Label, displayRow(b, row))
	}
	return tw.Flush()
}

func displayRow(b pricing.Breakdown, row invoice.Row) string {
	c, err := pricing.DefaultTable().Lookup(b.Currency)
	if err != nil {
		return row.Amount.StringFixed(2)
	}
	return c.Format(row.Amount)
}

func newInvoiceCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Render a quote file as a PDF or XLSX invoice",
		RunE: func(cmd *cobra.Command, _ []string) error {
			qf, b, err := opts.breakdown()
			if err != nil {
				return err
			}
			cur, err := pricing.DefaultTable().Lookup(b.Currency)
			if err != nil {
				return err
			}
			issued := time.Now().UTC()
			doc := invoice.Document{
				Number:       invoice.NumberFor(uuid.NewString(), issued),
				BusinessName: opts.business,
				CustomerName: qf.CustomerName,
				IssuedAt:     issued,
				Currency:     cur,
				Breakdown:    b,
			}
			return writeInvoice(opts.output, doc)
		},
	}
	addQuoteFlags(cmd, opts)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "invoice.pdf", "output file; the extension picks the format")
	cmd.Flags().StringVar(&opts.business, "business", "Atelier", "business name printed on the invoice")
	return cmd
}

func writeInvoice(path string, doc invoice.Document) (err error) {
	render := invoice.RenderPDF
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
	case ".xlsx":
		render = invoice.RenderXLSX
	default:
		return fmt.Errorf("unsupported invoice format %q", filepath.Ext(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return render(f, doc)
}

func newCatalogCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the fabrics and products of a price list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pl, err := catalog.LoadPriceList(opts.priceList)
			if err != nil {
				return err
			}
			return printCatalog(cmd.OutOrStdout(), pl)
		},
	}
	cmd.Flags().StringVar(&opts.priceList, "price-list", "", "price list YAML; empty uses the built-in list")
	return cmd
}

func printCatalog(w io.Writer, pl *catalog.PriceList) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "FABRIC\tCATEGORY\tCOST\n")
	for _, f := range pl.Fabrics() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.Category, f.Cost.StringFixed(2))
	}
	fmt.Fprintf(tw, "\nPRODUCT\tLOW\tHIGH\n")
	for _, p := range pl.Products() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.LowPrice.StringFixed(2), p.HighPrice.StringFixed(2))
	}
	return tw.Flush()
}
