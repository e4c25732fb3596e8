package ledgerhttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian-books/internal/ledger"
	"github.com/meridian-books/meridian-books/internal/periods"
	"github.com/meridian-books/meridian-books/internal/sequence"
)

type stubLedgerService struct {
	createDocumentFn func(ctx context.Context, in ledger.CreateDocumentInput) (*ledger.Document, error)
	updateDocumentFn func(ctx context.Context, id uuid.UUID, in ledger.UpdateDocumentInput) (*ledger.Document, error)
	deleteDocumentFn func(ctx context.Context, id uuid.UUID) error
	getDocumentFn    func(ctx context.Context, id uuid.UUID) (*ledger.Document, error)
	createExpenseFn  func(ctx context.Context, in ledger.CreateExpenseInput) (*ledger.Expense, error)
	deletePaymentFn  func(ctx context.Context, id uuid.UUID) error
}

func (s *stubLedgerService) CreateDocument(ctx context.Context, in ledger.CreateDocumentInput) (*ledger.Document, error) {
	return s.createDocumentFn(ctx, in)
}

func (s *stubLedgerService) UpdateDocument(ctx context.Context, id uuid.UUID, in ledger.UpdateDocumentInput) (*ledger.Document, error) {
	return s.updateDocumentFn(ctx, id, in)
}

func (s *stubLedgerService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.deleteDocumentFn(ctx, id)
}

func (s *stubLedgerService) GetDocument(ctx context.Context, id uuid.UUID) (*ledger.Document, error) {
	return s.getDocumentFn(ctx, id)
}

func (s *stubLedgerService) CreateExpense(ctx context.Context, in ledger.CreateExpenseInput) (*ledger.Expense, error) {
	return s.createExpenseFn(ctx, in)
}

func (s *stubLedgerService) UpdateExpense(ctx context.Context, id uuid.UUID, in ledger.UpdateExpenseInput) (*ledger.Expense, error) {
	panic("not wired")
}

func (s *stubLedgerService) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	panic("not wired")
}

func (s *stubLedgerService) GetExpense(ctx context.Context, id uuid.UUID) (*ledger.Expense, error) {
	panic("not wired")
}

func (s *stubLedgerService) CreatePayment(ctx context.Context, in ledger.CreatePaymentInput) (*ledger.Payment, error) {
	panic("not wired")
}

func (s *stubLedgerService) UpdatePayment(ctx context.Context, id uuid.UUID, in ledger.UpdatePaymentInput) (*ledger.Payment, error) {
	panic("not wired")
}

func (s *stubLedgerService) DeletePayment(ctx context.Context, id uuid.UUID) error {
	return s.deletePaymentFn(ctx, id)
}

func (s *stubLedgerService) GetPayment(ctx context.Context, id uuid.UUID) (*ledger.Payment, error) {
	panic("not wired")
}

func newTestRouter(svc ledgerService) chi.Router {
	r := chi.NewRouter()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	h.MountRoutes(r)
	return r
}

func TestCreateDocumentCreated(t *testing.T) {
	svc := &stubLedgerService{
		createDocumentFn: func(ctx context.Context, in ledger.CreateDocumentInput) (*ledger.Document, error) {
			require.Equal(t, sequence.DocTypeInvoice, in.Type)
			return &ledger.Document{
				ID:         uuid.New(),
				Type:       in.Type,
				Number:     "INV-2602-0001",
				SubTotal:   in.SubTotal,
				VATRate:    7,
				VATAmount:  70,
				GrandTotal: 1070,
			}, nil
		},
	}
	router := newTestRouter(svc)

	body := `{"type":"INVOICE","issueDate":"2026-02-10T00:00:00Z","customerId":"` + uuid.NewString() + `","subTotal":1000}`
	req := httptest.NewRequest(http.MethodPost, "/documents/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var doc ledger.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "INV-2602-0001", doc.Number)
}

func TestCreateDocumentClosedPeriod(t *testing.T) {
	svc := &stubLedgerService{
		createDocumentFn: func(ctx context.Context, in ledger.CreateDocumentInput) (*ledger.Document, error) {
			return nil, &periods.ClosedError{Year: 2026, Month: 2}
		},
	}
	router := newTestRouter(svc)

	body := `{"type":"INVOICE","issueDate":"2026-02-10T00:00:00Z","customerId":"` + uuid.NewString() + `","subTotal":1000}`
	req := httptest.NewRequest(http.MethodPost, "/documents/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)

	var resp struct {
		Title string `json:"title"`
		Year  int    `json:"year"`
		Month int    `json:"month"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Period Closed", resp.Title)
	assert.Equal(t, 2026, resp.Year)
	assert.Equal(t, 2, resp.Month)
}

func TestCreateDocumentMalformedBody(t *testing.T) {
	svc := &stubLedgerService{}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/documents/", strings.NewReader("{nope"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateDocumentNumberingConflict(t *testing.T) {
	svc := &stubLedgerService{
		createDocumentFn: func(ctx context.Context, in ledger.CreateDocumentInput) (*ledger.Document, error) {
			return nil, sequence.ErrConflict
		},
	}
	router := newTestRouter(svc)

	body := `{"type":"INVOICE","issueDate":"2026-02-10T00:00:00Z","customerId":"` + uuid.NewString() + `","subTotal":1000}`
	req := httptest.NewRequest(http.MethodPost, "/documents/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCreateExpenseTagConflict(t *testing.T) {
	svc := &stubLedgerService{
		createExpenseFn: func(ctx context.Context, in ledger.CreateExpenseInput) (*ledger.Expense, error) {
			return nil, ledger.ErrTagConflict
		},
	}
	router := newTestRouter(svc)

	body := `{"expenseDate":"2026-02-10T00:00:00Z","vendorName":"Acme","category":"RENT","subTotal":100}`
	req := httptest.NewRequest(http.MethodPost, "/expenses/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetDocumentNotFound(t *testing.T) {
	svc := &stubLedgerService{
		getDocumentFn: func(ctx context.Context, id uuid.UUID) (*ledger.Document, error) {
			return nil, ledger.ErrNotFound
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetDocumentBadID(t *testing.T) {
	svc := &stubLedgerService{}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeletePaymentNoContent(t *testing.T) {
	svc := &stubLedgerService{
		deletePaymentFn: func(ctx context.Context, id uuid.UUID) error { return nil },
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/payments/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestDeleteDocumentClosedPeriod(t *testing.T) {
	svc := &stubLedgerService{
		deleteDocumentFn: func(ctx context.Context, id uuid.UUID) error {
			return &periods.ClosedError{Year: 2026, Month: 1}
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/documents/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "period 1/2026 is closed")
}
