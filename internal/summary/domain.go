// Package summary composes the monthly tax and profit report from
// ledger data, with an invalidation-driven snapshot cache for closed
// periods.
package summary

import (
	"time"

	"github.com/meridian-books/meridian-books/internal/allocation"
)

// Period identifies the reported month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// MoneyTotals carries subtotal, VAT, and grand total sums.
type MoneyTotals struct {
	SubTotal   float64 `json:"subTotal"`
	VAT        float64 `json:"vat"`
	GrandTotal float64 `json:"grandTotal"`
}

// VATSummary is the month's VAT position.
type VATSummary struct {
	Output  float64 `json:"output"`
	Input   float64 `json:"input"`
	Payable float64 `json:"payable"`
}

// WHTSummary totals the withholding certificates for the month.
type WHTSummary struct {
	BaseAmount float64 `json:"baseAmount"`
	TaxAmount  float64 `json:"taxAmount"`
	Count      int     `json:"count"`
}

// CompanyPnL is the company-wide profit and loss.
type CompanyPnL struct {
	Revenue         float64 `json:"revenue"`
	COGS            float64 `json:"cogs"`
	GrossProfit     float64 `json:"grossProfit"`
	Opex            float64 `json:"opex"`
	OperatingProfit float64 `json:"operatingProfit"`
}

// MonthlySummary is the full monthly report. GeneratedAt feeds the CSV
// export metadata and stays out of the JSON report payload.
type MonthlySummary struct {
	Period      Period               `json:"period"`
	Revenue     MoneyTotals          `json:"revenue"`
	Expenses    MoneyTotals          `json:"expenses"`
	VAT         VATSummary           `json:"vat"`
	WHT         WHTSummary           `json:"wht"`
	PnL         CompanyPnL           `json:"pnl"`
	PnLByStream allocation.StreamPnL `json:"pnlByStream"`
	GeneratedAt time.Time            `json:"-"`
}
