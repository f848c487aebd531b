// Command pricecalc runs the pricing engine over a quote file without the API.
//
//	pricecalc breakdown -f quote.yaml --currency NGN
//	pricecalc invoice -f quote.yaml -o invoice.pdf
//	pricecalc catalog
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
