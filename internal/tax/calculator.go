// Package tax implements deterministic money rounding and the VAT and
// withholding-tax arithmetic used across the ledger.
package tax

import "math"

// roundEpsilon counters float representation error before rounding,
// so 1.005 style inputs land on the expected side of the boundary.
const roundEpsilon = 1e-9

// Config carries the jurisdiction constants the calculator needs.
type Config struct {
	DefaultVATRate float64
}

// Calculator owns configured rates. The arithmetic itself lives in
// package-level functions so callers with explicit rates stay decoupled
// from configuration.
type Calculator struct {
	cfg Config
}

// NewCalculator constructs a Calculator from explicit configuration.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// DefaultVATRate returns the configured default VAT rate in percent.
func (c *Calculator) DefaultVATRate() float64 {
	return c.cfg.DefaultVATRate
}

// VATAmountDefault computes VAT on subTotal at the configured default rate.
func (c *Calculator) VATAmountDefault(subTotal float64) float64 {
	return VATAmount(subTotal, c.cfg.DefaultVATRate)
}

// Round2 rounds to two decimals, half away from zero.
func Round2(x float64) float64 {
	if x < 0 {
		return -Round2(-x)
	}
	return math.Floor((x+roundEpsilon)*100+0.5) / 100
}

// LineTotal computes the line amount for a quantity at a unit price.
func LineTotal(qty, unitPrice float64) float64 {
	return Round2(qty * unitPrice)
}

// VATAmount computes VAT on an ex-VAT subtotal at ratePercent.
func VATAmount(subTotal, ratePercent float64) float64 {
	return Round2(subTotal * ratePercent / 100)
}

// GrandTotal sums a subtotal and its VAT amount.
func GrandTotal(subTotal, vatAmount float64) float64 {
	return Round2(subTotal + vatAmount)
}

// WithholdingTax computes tax withheld on baseAmount at ratePercent.
func WithholdingTax(baseAmount, ratePercent float64) float64 {
	return Round2(baseAmount * ratePercent / 100)
}
