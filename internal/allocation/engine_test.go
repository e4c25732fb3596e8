package allocation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian-books/internal/ledger"
	"github.com/meridian-books/meridian-books/internal/tax"
)

func orderDoc(subTotal float64) ledger.Document {
	id := uuid.New()
	return ledger.Document{ID: uuid.New(), OrderID: &id, SubTotal: subTotal}
}

func projectDoc(subTotal float64) ledger.Document {
	id := uuid.New()
	return ledger.Document{ID: uuid.New(), ProjectID: &id, SubTotal: subTotal}
}

func orderExpense(category ledger.ExpenseCategory, subTotal float64) ledger.Expense {
	id := uuid.New()
	return ledger.Expense{ID: uuid.New(), Category: category, SubTotal: subTotal, RelatedOrderID: &id}
}

func projectExpense(category ledger.ExpenseCategory, subTotal float64) ledger.Expense {
	id := uuid.New()
	return ledger.Expense{ID: uuid.New(), Category: category, SubTotal: subTotal, RelatedProjectID: &id}
}

func sharedExpense(category ledger.ExpenseCategory, subTotal float64) ledger.Expense {
	return ledger.Expense{ID: uuid.New(), Category: category, SubTotal: subTotal}
}

func TestComputeRevenueRatioSplit(t *testing.T) {
	docs := []ledger.Document{orderDoc(700), projectDoc(300)}
	expenses := []ledger.Expense{sharedExpense(ledger.CategoryRent, 100)}

	pnl := Compute(docs, expenses)

	assert.Equal(t, MethodRevenueRatio, pnl.AllocationMethod)
	assert.InDelta(t, 700, pnl.Goods.Revenue, 1e-9)
	assert.InDelta(t, 300, pnl.Service.Revenue, 1e-9)
	assert.InDelta(t, 70.00, pnl.Goods.AllocatedSharedOpex, 1e-9)
	assert.InDelta(t, 30.00, pnl.Service.AllocatedSharedOpex, 1e-9)
	assert.InDelta(t, 100, pnl.SharedOpex, 1e-9)
}

func TestComputeFullPartition(t *testing.T) {
	docs := []ledger.Document{
		orderDoc(600),
		orderDoc(400),
		projectDoc(500),
		{ID: uuid.New(), SubTotal: 999}, // untagged: no stream
	}
	expenses := []ledger.Expense{
		orderExpense(ledger.CategoryInventoryPurchase, 200),
		orderExpense(ledger.CategoryShippingOut, 50),
		orderExpense(ledger.CategoryMarketing, 30), // non-COGS direct goods cost
		projectExpense(ledger.CategoryFees, 80),
		projectExpense(ledger.CategoryInventoryPurchase, 20), // any category counts for service
		sharedExpense(ledger.CategoryRent, 150),
		sharedExpense(ledger.CategoryInventoryPurchase, 60), // shared regardless of category
	}

	pnl := Compute(docs, expenses)

	assert.InDelta(t, 1000, pnl.Goods.Revenue, 1e-9)
	assert.InDelta(t, 500, pnl.Service.Revenue, 1e-9)
	assert.InDelta(t, 250, pnl.Goods.COGS, 1e-9)
	assert.InDelta(t, 30, pnl.Goods.DirectOpex, 1e-9)
	assert.InDelta(t, 100, pnl.Service.DirectCost, 1e-9)
	assert.InDelta(t, 210, pnl.SharedOpex, 1e-9)

	// Shares 2/3 and 1/3 of 210.
	assert.InDelta(t, 140.00, pnl.Goods.AllocatedSharedOpex, 1e-9)
	assert.InDelta(t, 70.00, pnl.Service.AllocatedSharedOpex, 1e-9)

	assert.InDelta(t, 1000-250-30-140, pnl.Goods.NetOperatingProfit, 1e-9)
	assert.InDelta(t, 500-100-70, pnl.Service.NetOperatingProfit, 1e-9)
}

func TestComputeZeroRevenueLeavesOverheadUnabsorbed(t *testing.T) {
	expenses := []ledger.Expense{sharedExpense(ledger.CategoryRent, 500)}

	pnl := Compute(nil, expenses)

	assert.InDelta(t, 0, pnl.Goods.AllocatedSharedOpex, 1e-9)
	assert.InDelta(t, 0, pnl.Service.AllocatedSharedOpex, 1e-9)
	assert.InDelta(t, 500, pnl.SharedOpex, 1e-9)
	assert.InDelta(t, 0, pnl.Goods.NetOperatingProfit, 1e-9)
	assert.InDelta(t, 0, pnl.Service.NetOperatingProfit, 1e-9)
}

func TestComputeSingleStreamTakesAllOverhead(t *testing.T) {
	docs := []ledger.Document{orderDoc(1000)}
	expenses := []ledger.Expense{sharedExpense(ledger.CategoryUtilities, 90)}

	pnl := Compute(docs, expenses)

	assert.InDelta(t, 90.00, pnl.Goods.AllocatedSharedOpex, 1e-9)
	assert.InDelta(t, 0, pnl.Service.AllocatedSharedOpex, 1e-9)
}

func TestComputeAllocationConservation(t *testing.T) {
	cases := []struct {
		goods, service, shared float64
	}{
		{700, 300, 100},
		{1, 2, 99.99},
		{333.33, 666.67, 1000},
		{0.01, 0.02, 0.05},
		{123.45, 678.90, 0.01},
	}
	for _, tc := range cases {
		docs := []ledger.Document{orderDoc(tc.goods), projectDoc(tc.service)}
		expenses := []ledger.Expense{sharedExpense(ledger.CategoryRent, tc.shared)}

		pnl := Compute(docs, expenses)

		total := pnl.Goods.AllocatedSharedOpex + pnl.Service.AllocatedSharedOpex
		assert.InDelta(t, tax.Round2(tc.shared), total, 0.01,
			"goods=%v service=%v shared=%v", tc.goods, tc.service, tc.shared)
	}
}

type stubQuery struct {
	docs     []ledger.Document
	expenses []ledger.Expense
	err      error
}

func (s stubQuery) TaxReceiptsIn(ctx context.Context, year, month int) ([]ledger.Document, error) {
	return s.docs, s.err
}

func (s stubQuery) ExpensesIn(ctx context.Context, year, month int) ([]ledger.Expense, error) {
	return s.expenses, s.err
}

func (s stubQuery) WithholdingIn(ctx context.Context, year, month int) ([]ledger.WithholdingRecord, error) {
	return nil, s.err
}

func TestAllocateReadsLedger(t *testing.T) {
	engine := NewEngine(stubQuery{
		docs:     []ledger.Document{orderDoc(700), projectDoc(300)},
		expenses: []ledger.Expense{sharedExpense(ledger.CategoryRent, 100)},
	})

	pnl, err := engine.Allocate(context.Background(), 2026, 2)
	require.NoError(t, err)
	assert.InDelta(t, 70.00, pnl.Goods.AllocatedSharedOpex, 1e-9)
	assert.InDelta(t, 30.00, pnl.Service.AllocatedSharedOpex, 1e-9)
}
