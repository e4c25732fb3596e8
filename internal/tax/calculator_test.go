package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"exact", 10.00, 10.00},
		{"half up", 1.005, 1.01},
		{"half up cents", 2.675, 2.68},
		{"down", 1.234, 1.23},
		{"up", 1.236, 1.24},
		{"negative half away", -1.005, -1.01},
		{"negative down", -1.234, -1.23},
		{"zero", 0, 0},
		{"float representation", 0.1 + 0.2, 0.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Round2(tc.in), 1e-9)
		})
	}
}

func TestLineTotal(t *testing.T) {
	assert.InDelta(t, 249.75, LineTotal(3, 83.25), 1e-9)
	assert.InDelta(t, 0.0, LineTotal(0, 99.99), 1e-9)
	assert.InDelta(t, 33.33, LineTotal(1.5, 22.22), 1e-9)
}

func TestVATAmount(t *testing.T) {
	assert.InDelta(t, 70.00, VATAmount(1000, 7), 1e-9)
	assert.InDelta(t, 0.07, VATAmount(1, 7), 1e-9)
	assert.InDelta(t, 0.0, VATAmount(1000, 0), 1e-9)
}

func TestGrandTotal(t *testing.T) {
	assert.InDelta(t, 1070.00, GrandTotal(1000, 70), 1e-9)
	assert.InDelta(t, 107.0, GrandTotal(100, 7), 1e-9)
}

func TestWithholdingTax(t *testing.T) {
	assert.InDelta(t, 30.00, WithholdingTax(1000, 3), 1e-9)
	assert.InDelta(t, 15.00, WithholdingTax(300, 5), 1e-9)
}

func TestGrandTotalIdentity(t *testing.T) {
	// grandTotal == round2(subTotal + vatAmount) across representative inputs.
	subTotals := []float64{0, 0.01, 1, 99.99, 1000, 12345.67}
	rates := []float64{0, 3, 5, 7, 10, 15}
	for _, st := range subTotals {
		for _, rate := range rates {
			vat := VATAmount(st, rate)
			assert.InDelta(t, Round2(st+vat), GrandTotal(st, vat), 1e-9)
		}
	}
}

func TestCalculatorDefaultRate(t *testing.T) {
	calc := NewCalculator(Config{DefaultVATRate: 7})
	assert.Equal(t, 7.0, calc.DefaultVATRate())
	assert.InDelta(t, 70.00, calc.VATAmountDefault(1000), 1e-9)
}
