package summaryhttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian-books/internal/periods"
	"github.com/meridian-books/meridian-books/internal/summary"
)

type stubSummaryService struct {
	computeFn func(ctx context.Context, year, month int) (*summary.MonthlySummary, error)
}

func (s *stubSummaryService) Compute(ctx context.Context, year, month int) (*summary.MonthlySummary, error) {
	return s.computeFn(ctx, year, month)
}

type stubLocks struct {
	locked bool
	err    error
}

func (s *stubLocks) IsLocked(ctx context.Context, year, month int) (bool, error) {
	return s.locked, s.err
}

func newTestRouter(svc summaryService, locks lockChecker) chi.Router {
	r := chi.NewRouter()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, locks)
	h.MountRoutes(r)
	return r
}

func sampleReport(year, month int) *summary.MonthlySummary {
	return &summary.MonthlySummary{
		Period:      summary.Period{Year: year, Month: month},
		Revenue:     summary.MoneyTotals{SubTotal: 1000, VAT: 70, GrandTotal: 1070},
		VAT:         summary.VATSummary{Output: 70, Input: 28, Payable: 42},
		GeneratedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestGetSummaryOK(t *testing.T) {
	svc := &stubSummaryService{
		computeFn: func(ctx context.Context, year, month int) (*summary.MonthlySummary, error) {
			require.Equal(t, 2026, year)
			require.Equal(t, 1, month)
			return sampleReport(year, month), nil
		},
	}
	router := newTestRouter(svc, &stubLocks{})

	req := httptest.NewRequest(http.MethodGet, "/summary/2026/1/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var got summary.MonthlySummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 2026, got.Period.Year)
	assert.InDelta(t, 42.0, got.VAT.Payable, 0.001)
}

func TestGetSummaryPayloadFields(t *testing.T) {
	svc := &stubSummaryService{
		computeFn: func(ctx context.Context, year, month int) (*summary.MonthlySummary, error) {
			return sampleReport(year, month), nil
		},
	}
	router := newTestRouter(svc, &stubLocks{})

	req := httptest.NewRequest(http.MethodGet, "/summary/2026/1/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fields))
	for _, want := range []string{"period", "revenue", "expenses", "vat", "wht", "pnl", "pnlByStream"} {
		assert.Contains(t, fields, want)
	}
	assert.Len(t, fields, 7, "report payload carries only the documented fields")
	assert.NotContains(t, fields, "generatedAt")
}

func TestGetSummaryInvalidPeriod(t *testing.T) {
	svc := &stubSummaryService{
		computeFn: func(ctx context.Context, year, month int) (*summary.MonthlySummary, error) {
			return nil, periods.ErrInvalidPeriod
		},
	}
	router := newTestRouter(svc, &stubLocks{})

	req := httptest.NewRequest(http.MethodGet, "/summary/2026/13/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetSummaryNonNumericPath(t *testing.T) {
	router := newTestRouter(&stubSummaryService{}, &stubLocks{})

	req := httptest.NewRequest(http.MethodGet, "/summary/abc/1/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExportCSVHeadersAndBody(t *testing.T) {
	svc := &stubSummaryService{
		computeFn: func(ctx context.Context, year, month int) (*summary.MonthlySummary, error) {
			return sampleReport(year, month), nil
		},
	}
	router := newTestRouter(svc, &stubLocks{locked: true})

	req := httptest.NewRequest(http.MethodGet, "/summary/2026/1/export.csv", nil)
	req.RemoteAddr = "10.0.0.1:55555"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "summary-2026-01.csv")
	assert.Contains(t, rr.Body.String(), "LOCKED")
	assert.Contains(t, rr.Body.String(), "\"1,070.00\"")
}

func TestExportCSVRateLimited(t *testing.T) {
	svc := &stubSummaryService{
		computeFn: func(ctx context.Context, year, month int) (*summary.MonthlySummary, error) {
			return sampleReport(year, month), nil
		},
	}
	router := newTestRouter(svc, &stubLocks{})

	var last int
	for i := 0; i < 12; i++ {
		req := httptest.NewRequest(http.MethodGet, "/summary/2026/1/export.csv", nil)
		req.RemoteAddr = "10.0.0.2:55555"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		last = rr.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
