package summary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-books/meridian-books/internal/allocation"
	"github.com/meridian-books/meridian-books/internal/ledger"
	"github.com/meridian-books/meridian-books/internal/periods"
	"github.com/meridian-books/meridian-books/internal/tax"
)

// Cache is the snapshot store consumed by the aggregator. closedAt is
// the close time of the lock the snapshot belongs to; Get must treat a
// snapshot written under a different close as absent.
type Cache interface {
	Get(ctx context.Context, year, month int, closedAt time.Time) (*MonthlySummary, bool, error)
	Set(ctx context.Context, s *MonthlySummary, closedAt time.Time) error
}

// PeriodLocks exposes the lock lookup the aggregator needs.
type PeriodLocks interface {
	Find(ctx context.Context, year, month int) (*periods.Lock, error)
}

// IntegrityAlerts receives counts of rows found mutated after their
// period was closed.
type IntegrityAlerts interface {
	AddIntegrityAlerts(year, month, count int)
}

// Service aggregates the monthly report. It never mutates ledger state.
type Service struct {
	ledger ledger.Query
	locks  PeriodLocks
	cache  Cache
	logger *slog.Logger
	alerts IntegrityAlerts
	group  singleflight.Group
	now    func() time.Time
}

// NewService constructs the aggregator. cache may be nil.
func NewService(q ledger.Query, locks PeriodLocks, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger: q,
		locks:  locks,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithAlerts attaches the integrity alert counter. Optional.
func (s *Service) WithAlerts(alerts IntegrityAlerts) {
	s.alerts = alerts
}

// Compute returns the monthly summary for (year, month). Snapshots are
// served and written only while the period is locked: an open period
// always recomputes. Snapshots carry the lock's close time, so a value
// written by a build that started before a reopen reads as a miss once
// the period is closed again. Concurrent computations for the same
// period share one build.
func (s *Service) Compute(ctx context.Context, year, month int) (*MonthlySummary, error) {
	if err := periods.ValidatePeriod(year, month); err != nil {
		return nil, err
	}
	lock, err := s.locks.Find(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if lock != nil && s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, year, month, lock.ClosedAt); err != nil {
			s.logger.Warn("summary cache read", slog.Any("error", err))
		} else if ok {
			return cached, nil
		}
	}

	key := fmt.Sprintf("%d-%02d", year, month)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.build(ctx, year, month, lock)
	})
	if err != nil {
		return nil, err
	}
	result := v.(*MonthlySummary)

	if lock != nil && s.cache != nil {
		if err := s.cache.Set(ctx, result, lock.ClosedAt); err != nil {
			s.logger.Warn("summary cache write", slog.Any("error", err))
		}
	}
	return result, nil
}

// snapshotReader is implemented by stores that can serve all three
// period reads from one transaction.
type snapshotReader interface {
	ReadPeriod(ctx context.Context, fn func(ledger.Query) error) error
}

func (s *Service) fetch(ctx context.Context, year, month int) (docs []ledger.Document, expenses []ledger.Expense, wht []ledger.WithholdingRecord, err error) {
	read := func(q ledger.Query) error {
		if docs, err = q.TaxReceiptsIn(ctx, year, month); err != nil {
			return err
		}
		if expenses, err = q.ExpensesIn(ctx, year, month); err != nil {
			return err
		}
		wht, err = q.WithholdingIn(ctx, year, month)
		return err
	}
	if sr, ok := s.ledger.(snapshotReader); ok {
		err = sr.ReadPeriod(ctx, read)
		return
	}
	err = read(s.ledger)
	return
}

func (s *Service) build(ctx context.Context, year, month int, lock *periods.Lock) (*MonthlySummary, error) {
	docs, expenses, wht, err := s.fetch(ctx, year, month)
	if err != nil {
		return nil, err
	}

	if lock != nil {
		s.auditIntegrity(docs, expenses, lock)
	}

	var revenue MoneyTotals
	for _, d := range docs {
		revenue.SubTotal += d.SubTotal
		revenue.VAT += d.VATAmount
		revenue.GrandTotal += d.GrandTotal
	}

	var expTotals MoneyTotals
	var vatInput, cogs, opex float64
	for _, e := range expenses {
		expTotals.SubTotal += e.SubTotal
		expTotals.VAT += e.VATAmount
		expTotals.GrandTotal += e.GrandTotal
		if e.HasVAT {
			vatInput += e.VATAmount
		}
		if e.Category.IsCOGS() {
			cogs += e.SubTotal
		} else {
			opex += e.SubTotal
		}
	}

	var whtTotals WHTSummary
	for _, w := range wht {
		whtTotals.BaseAmount += w.BaseAmount
		whtTotals.TaxAmount += w.TaxAmount
		whtTotals.Count++
	}
	whtTotals.BaseAmount = tax.Round2(whtTotals.BaseAmount)
	whtTotals.TaxAmount = tax.Round2(whtTotals.TaxAmount)

	grossProfit := tax.Round2(revenue.SubTotal - cogs)

	return &MonthlySummary{
		Period: Period{Year: year, Month: month},
		Revenue: MoneyTotals{
			SubTotal:   tax.Round2(revenue.SubTotal),
			VAT:        tax.Round2(revenue.VAT),
			GrandTotal: tax.Round2(revenue.GrandTotal),
		},
		Expenses: MoneyTotals{
			SubTotal:   tax.Round2(expTotals.SubTotal),
			VAT:        tax.Round2(expTotals.VAT),
			GrandTotal: tax.Round2(expTotals.GrandTotal),
		},
		VAT: VATSummary{
			Output:  tax.Round2(revenue.VAT),
			Input:   tax.Round2(vatInput),
			Payable: tax.Round2(revenue.VAT - vatInput),
		},
		WHT: whtTotals,
		PnL: CompanyPnL{
			Revenue:         tax.Round2(revenue.SubTotal),
			COGS:            tax.Round2(cogs),
			GrossProfit:     grossProfit,
			Opex:            tax.Round2(opex),
			OperatingProfit: tax.Round2(grossProfit - opex),
		},
		PnLByStream: allocation.Compute(docs, expenses),
		GeneratedAt: s.now().UTC(),
	}, nil
}

// auditIntegrity flags rows mutated after their period was closed. The
// guard makes this impossible, so an occurrence is a bug, not user
// error: it is logged as a data-integrity alert and the row still
// counts toward the totals.
func (s *Service) auditIntegrity(docs []ledger.Document, expenses []ledger.Expense, lock *periods.Lock) {
	flagged := 0
	for _, d := range docs {
		if d.UpdatedAt.After(lock.ClosedAt) {
			flagged++
			s.logger.Error("data integrity alert: document mutated inside closed period",
				slog.String("document", d.Number),
				slog.Int("year", lock.Year),
				slog.Int("month", lock.Month))
		}
	}
	for _, e := range expenses {
		if e.UpdatedAt.After(lock.ClosedAt) {
			flagged++
			s.logger.Error("data integrity alert: expense mutated inside closed period",
				slog.String("expense", e.ID.String()),
				slog.Int("year", lock.Year),
				slog.Int("month", lock.Month))
		}
	}
	if flagged > 0 && s.alerts != nil {
		s.alerts.AddIntegrityAlerts(lock.Year, lock.Month, flagged)
	}
}
