// Package allocation splits revenue, cost of goods, and shared overhead
// between the goods and service business streams for one period.
package allocation

import (
	"context"

	"github.com/meridian-books/meridian-books/internal/ledger"
	"github.com/meridian-books/meridian-books/internal/tax"
)

// MethodRevenueRatio identifies the allocation basis carried in every
// StreamPnL, so downstream consumers can audit the computation.
const MethodRevenueRatio = "REVENUE_RATIO"

// GoodsStream is the goods-side P&L for a period.
type GoodsStream struct {
	Revenue             float64 `json:"revenue"`
	COGS                float64 `json:"cogs"`
	DirectOpex          float64 `json:"directOpex"`
	AllocatedSharedOpex float64 `json:"allocatedSharedOpex"`
	NetOperatingProfit  float64 `json:"netOperatingProfit"`
}

// ServiceStream is the service-side P&L for a period.
type ServiceStream struct {
	Revenue             float64 `json:"revenue"`
	DirectCost          float64 `json:"directCost"`
	AllocatedSharedOpex float64 `json:"allocatedSharedOpex"`
	NetOperatingProfit  float64 `json:"netOperatingProfit"`
}

// StreamPnL carries both streams plus the raw shared overhead and the
// method used to split it.
type StreamPnL struct {
	Goods            GoodsStream   `json:"goods"`
	Service          ServiceStream `json:"service"`
	SharedOpex       float64       `json:"sharedOpex"`
	AllocationMethod string        `json:"allocationMethod"`
}

// Engine computes stream-level P&L from the read-only ledger.
type Engine struct {
	ledger ledger.Query
}

// NewEngine constructs an Engine over a ledger query surface.
func NewEngine(q ledger.Query) *Engine {
	return &Engine{ledger: q}
}

// Allocate loads the period's receipts and expenses and computes the
// stream split.
func (e *Engine) Allocate(ctx context.Context, year, month int) (StreamPnL, error) {
	docs, err := e.ledger.TaxReceiptsIn(ctx, year, month)
	if err != nil {
		return StreamPnL{}, err
	}
	expenses, err := e.ledger.ExpensesIn(ctx, year, month)
	if err != nil {
		return StreamPnL{}, err
	}
	return Compute(docs, expenses), nil
}

// Compute partitions the rows and allocates shared overhead by revenue
// ratio. When both streams have zero revenue there is no allocation
// basis: the overhead stays unabsorbed for the period and neither
// stream is charged.
func Compute(docs []ledger.Document, expenses []ledger.Expense) StreamPnL {
	var goodsRevenue, serviceRevenue float64
	for _, d := range docs {
		switch {
		case d.OrderID != nil:
			goodsRevenue += d.SubTotal
		case d.ProjectID != nil:
			serviceRevenue += d.SubTotal
		}
	}

	var goodsCOGS, goodsDirectOpex, serviceDirectCost, sharedOpex float64
	for _, e := range expenses {
		switch {
		case e.RelatedOrderID != nil:
			if e.Category.IsCOGS() {
				goodsCOGS += e.SubTotal
			} else {
				goodsDirectOpex += e.SubTotal
			}
		case e.RelatedProjectID != nil:
			serviceDirectCost += e.SubTotal
		default:
			sharedOpex += e.SubTotal
		}
	}

	goodsShare, serviceShare := revenueShares(goodsRevenue, serviceRevenue)
	goodsAllocated := tax.Round2(sharedOpex * goodsShare)
	serviceAllocated := tax.Round2(sharedOpex * serviceShare)

	return StreamPnL{
		Goods: GoodsStream{
			Revenue:             tax.Round2(goodsRevenue),
			COGS:                tax.Round2(goodsCOGS),
			DirectOpex:          tax.Round2(goodsDirectOpex),
			AllocatedSharedOpex: goodsAllocated,
			NetOperatingProfit:  tax.Round2(goodsRevenue - goodsCOGS - goodsDirectOpex - goodsAllocated),
		},
		Service: ServiceStream{
			Revenue:             tax.Round2(serviceRevenue),
			DirectCost:          tax.Round2(serviceDirectCost),
			AllocatedSharedOpex: serviceAllocated,
			NetOperatingProfit:  tax.Round2(serviceRevenue - serviceDirectCost - serviceAllocated),
		},
		SharedOpex:       tax.Round2(sharedOpex),
		AllocationMethod: MethodRevenueRatio,
	}
}

func revenueShares(goods, service float64) (float64, float64) {
	total := goods + service
	if total > 0 {
		share := goods / total
		return share, 1 - share
	}
	// With non-negative revenues a zero total implies both are zero;
	// a single nonzero stream still takes the full share.
	if goods > 0 {
		return 1, 0
	}
	if service > 0 {
		return 0, 1
	}
	return 0, 0
}
