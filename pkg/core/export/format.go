// Package export renders pipeline tables into files meant for people:
// a semicolon CSV for spreadsheets set to Brazilian locale, an XLSX
// workbook, and a Markdown/HTML summary report.
package export

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is the symbol prefixed by Money when none is configured.
const DefaultCurrency = "R$"

var printer = message.NewPrinter(language.BrazilianPortuguese)

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Number formats v with two decimals and pt-BR separators ("1.234,56").
func Number(v float64) string {
	return printer.Sprintf("%.2f", round2(v))
}

// Money formats v as currency, e.g. "R$ 1.234,56".
func Money(symbol string, v float64) string {
	if symbol == "" {
		symbol = DefaultCurrency
	}
	return symbol + " " + Number(v)
}

// Percent formats v (already in percent units) as "12,50%".
func Percent(v float64) string {
	return Number(v) + "%"
}

// plainDecimal renders v with two decimals, a comma decimal mark and no
// grouping, the way spreadsheet imports expect it.
func plainDecimal(v float64) string {
	return strings.Replace(decimal.NewFromFloat(v).StringFixed(2), ".", ",", 1)
}
