package summaryhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/meridian-books/meridian-books/internal/periods"
	"github.com/meridian-books/meridian-books/internal/platform/httpx"
	"github.com/meridian-books/meridian-books/internal/summary"
)

type summaryService interface {
	Compute(ctx context.Context, year, month int) (*summary.MonthlySummary, error)
}

type lockChecker interface {
	IsLocked(ctx context.Context, year, month int) (bool, error)
}

// Handler wires HTTP endpoints for the monthly summary report.
type Handler struct {
	logger    *slog.Logger
	service   summaryService
	locks     lockChecker
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs a summary HTTP handler. Exports are rate
// limited per client IP since a cold build scans the whole period.
func NewHandler(logger *slog.Logger, service summaryService, locks lockChecker) *Handler {
	limiter := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr, nil
		}
		return "ip:" + host, nil
	}))
	return &Handler{
		logger:    logger,
		service:   service,
		locks:     locks,
		rateLimit: limiter,
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/summary/{year}/{month}", func(r chi.Router) {
		r.Get("/", h.getSummary)
		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit)
			r.Get("/export.csv", h.exportCSV)
		})
	})
}

func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	report, err := h.service.Compute(r.Context(), year, month)
	if err != nil {
		h.respondError(w, year, month, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	report, err := h.service.Compute(r.Context(), year, month)
	if err != nil {
		h.respondError(w, year, month, err)
		return
	}
	locked, err := h.locks.IsLocked(r.Context(), year, month)
	if err != nil {
		h.respondError(w, year, month, err)
		return
	}
	filename := fmt.Sprintf("summary-%d-%02d.csv", year, month)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := summary.WriteCSV(w, report, locked); err != nil {
		h.logger.Error("export summary csv",
			slog.Int("year", year), slog.Int("month", month), slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, year, month int, err error) {
	if errors.Is(err, periods.ErrInvalidPeriod) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
		return
	}
	h.logger.Error("compute summary",
		slog.Int("year", year), slog.Int("month", month), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func parsePeriod(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "year must be an integer")
		return 0, 0, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "month must be an integer")
		return 0, 0, false
	}
	return year, month, true
}
