package periodshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-books/meridian-books/internal/periods"
	"github.com/meridian-books/meridian-books/internal/platform/httpx"
)

type periodService interface {
	Close(ctx context.Context, year, month int, note string) (periods.Lock, error)
	Reopen(ctx context.Context, year, month int) error
	List(ctx context.Context, year *int) ([]periods.Lock, error)
}

// Handler wires HTTP endpoints for the period close lifecycle.
type Handler struct {
	logger  *slog.Logger
	service periodService
}

// NewHandler constructs a periods HTTP handler.
func NewHandler(logger *slog.Logger, service periodService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/periods", func(r chi.Router) {
		r.Get("/", h.listLocks)
		r.Post("/{year}/{month}/close", h.closePeriod)
		r.Post("/{year}/{month}/reopen", h.reopenPeriod)
	})
}

type closeRequest struct {
	Note string `json:"note"`
}

func (h *Handler) listLocks(w http.ResponseWriter, r *http.Request) {
	var year *int
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "year must be an integer")
			return
		}
		year = &y
	}
	locks, err := h.service.List(r.Context(), year)
	if err != nil {
		h.logger.Error("list period locks", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if locks == nil {
		locks = []periods.Lock{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"locks": locks})
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	var req closeRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
			return
		}
	}
	lock, err := h.service.Close(r.Context(), year, month, req.Note)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusCreated, lock)
	case errors.Is(err, periods.ErrAlreadyLocked):
		httpx.Problem(w, http.StatusConflict, "Period Already Closed",
			fmt.Sprintf("period %d/%d is already closed", month, year))
	case errors.Is(err, periods.ErrInvalidPeriod):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
	default:
		h.logger.Error("close period", slog.Int("year", year), slog.Int("month", month), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) reopenPeriod(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	err := h.service.Reopen(r.Context(), year, month)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, map[string]any{"year": year, "month": month, "status": "open"})
	case errors.Is(err, periods.ErrNotLocked):
		httpx.Problem(w, http.StatusNotFound, "Period Not Closed",
			fmt.Sprintf("period %d/%d is not closed", month, year))
	case errors.Is(err, periods.ErrInvalidPeriod):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
	default:
		h.logger.Error("reopen period", slog.Int("year", year), slog.Int("month", month), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
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
