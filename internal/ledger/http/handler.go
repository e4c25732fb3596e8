package ledgerhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-books/meridian-books/internal/ledger"
	"github.com/meridian-books/meridian-books/internal/periods"
	"github.com/meridian-books/meridian-books/internal/platform/httpx"
	"github.com/meridian-books/meridian-books/internal/sequence"
)

type ledgerService interface {
	CreateDocument(ctx context.Context, in ledger.CreateDocumentInput) (*ledger.Document, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, in ledger.UpdateDocumentInput) (*ledger.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	GetDocument(ctx context.Context, id uuid.UUID) (*ledger.Document, error)

	CreateExpense(ctx context.Context, in ledger.CreateExpenseInput) (*ledger.Expense, error)
	UpdateExpense(ctx context.Context, id uuid.UUID, in ledger.UpdateExpenseInput) (*ledger.Expense, error)
	DeleteExpense(ctx context.Context, id uuid.UUID) error
	GetExpense(ctx context.Context, id uuid.UUID) (*ledger.Expense, error)

	CreatePayment(ctx context.Context, in ledger.CreatePaymentInput) (*ledger.Payment, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, in ledger.UpdatePaymentInput) (*ledger.Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error
	GetPayment(ctx context.Context, id uuid.UUID) (*ledger.Payment, error)
}

// Handler wires HTTP endpoints for guarded ledger writes.
type Handler struct {
	logger  *slog.Logger
	service ledgerService
}

// NewHandler constructs a ledger HTTP handler.
func NewHandler(logger *slog.Logger, service ledgerService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.createDocument)
		r.Get("/{id}", h.getDocument)
		r.Put("/{id}", h.updateDocument)
		r.Delete("/{id}", h.deleteDocument)
	})
	r.Route("/expenses", func(r chi.Router) {
		r.Post("/", h.createExpense)
		r.Get("/{id}", h.getExpense)
		r.Put("/{id}", h.updateExpense)
		r.Delete("/{id}", h.deleteExpense)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.createPayment)
		r.Get("/{id}", h.getPayment)
		r.Put("/{id}", h.updatePayment)
		r.Delete("/{id}", h.deletePayment)
	})
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var in ledger.CreateDocumentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	doc, err := h.service.CreateDocument(r.Context(), in)
	if err != nil {
		h.respondWriteError(w, "create document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		h.respondWriteError(w, "get document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) updateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in ledger.UpdateDocumentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	doc, err := h.service.UpdateDocument(r.Context(), id, in)
	if err != nil {
		h.respondWriteError(w, "update document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDocument(r.Context(), id); err != nil {
		h.respondWriteError(w, "delete document", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var in ledger.CreateExpenseInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	exp, err := h.service.CreateExpense(r.Context(), in)
	if err != nil {
		h.respondWriteError(w, "create expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, exp)
}

func (h *Handler) getExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	exp, err := h.service.GetExpense(r.Context(), id)
	if err != nil {
		h.respondWriteError(w, "get expense", err)
		return
	}
	httpx.JSON(w, http.StatusOK, exp)
}

func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in ledger.UpdateExpenseInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	exp, err := h.service.UpdateExpense(r.Context(), id, in)
	if err != nil {
		h.respondWriteError(w, "update expense", err)
		return
	}
	httpx.JSON(w, http.StatusOK, exp)
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteExpense(r.Context(), id); err != nil {
		h.respondWriteError(w, "delete expense", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var in ledger.CreatePaymentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	p, err := h.service.CreatePayment(r.Context(), in)
	if err != nil {
		h.respondWriteError(w, "create payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		h.respondWriteError(w, "get payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in ledger.UpdatePaymentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	p, err := h.service.UpdatePayment(r.Context(), id, in)
	if err != nil {
		h.respondWriteError(w, "update payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePayment(r.Context(), id); err != nil {
		h.respondWriteError(w, "delete payment", err)
		return
	}
	httpx.NoContent(w)
}

type closedProblem struct {
	httpx.ProblemDetail
	Year  int `json:"year"`
	Month int `json:"month"`
}

// respondWriteError maps ledger and guard errors onto HTTP statuses.
// A closed-period rejection carries the offending period so clients
// can surface which month is locked.
func (h *Handler) respondWriteError(w http.ResponseWriter, op string, err error) {
	var closed *periods.ClosedError
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &closed):
		httpx.JSON(w, http.StatusForbidden, closedProblem{
			ProblemDetail: httpx.ProblemDetail{
				Title:  "Period Closed",
				Status: http.StatusForbidden,
				Detail: fmt.Sprintf("period %d/%d is closed for modifications", closed.Month, closed.Year),
			},
			Year:  closed.Year,
			Month: closed.Month,
		})
	case errors.As(err, &fieldErrs):
		httpx.RespondFieldErrors(w, fieldErrs)
	case errors.Is(err, ledger.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrTagConflict),
		errors.Is(err, ledger.ErrVATFlagMismatch),
		errors.Is(err, ledger.ErrUnknownCategory),
		errors.Is(err, sequence.ErrUnknownDocType):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.Is(err, sequence.ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Numbering Conflict",
			"could not assign a document number, retry the request")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
