package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-books/meridian-books/internal/tax"
)

// ErrTagConflict rejects a record tagged with both an order and a
// project; a row feeds exactly one stream, or neither.
var ErrTagConflict = errors.New("ledger: order and project tags are mutually exclusive")

// ErrVATFlagMismatch rejects a VAT amount on an expense marked as
// having no VAT.
var ErrVATFlagMismatch = errors.New("ledger: vat amount set on expense without vat")

// ErrUnknownCategory rejects an expense category outside the chart.
var ErrUnknownCategory = errors.New("ledger: unknown expense category")

// Service owns the guarded write paths for all financial records.
type Service struct {
	repo     Repository
	calc     *tax.Calculator
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a ledger Service.
func NewService(repo Repository, calc *tax.Calculator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		calc:     calc,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateDocument validates, numbers, and persists a new sales document.
// The period check, the number assignment, and the insert share one
// transaction.
func (s *Service) CreateDocument(ctx context.Context, in CreateDocumentInput) (*Document, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if in.OrderID != nil && in.ProjectID != nil {
		return nil, ErrTagConflict
	}
	rate := s.calc.DefaultVATRate()
	if in.VATRate != nil {
		rate = *in.VATRate
	}
	vat := tax.VATAmount(in.SubTotal, rate)
	doc := Document{
		ID:         uuid.New(),
		Type:       in.Type,
		IssueDate:  in.IssueDate,
		CustomerID: in.CustomerID,
		OrderID:    in.OrderID,
		ProjectID:  in.ProjectID,
		SubTotal:   in.SubTotal,
		VATRate:    rate,
		VATAmount:  vat,
		GrandTotal: tax.GrandTotal(in.SubTotal, vat),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AssertPeriodOpen(ctx, doc.IssueDate); err != nil {
			return err
		}
		number, err := tx.NextDocNumber(ctx, doc.Type, doc.IssueDate)
		if err != nil {
			return err
		}
		doc.Number = number
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		if in.Withholding != nil {
			w := buildWithholding(doc.ID, doc.SubTotal, *in.Withholding)
			doc.Withholding = &w
			return tx.UpsertWithholding(ctx, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("document created",
		slog.String("number", doc.Number),
		slog.String("type", string(doc.Type)))
	return &doc, nil
}

// UpdateDocument mutates an existing document. Both the period the
// record is leaving and the period it is moving into must be open;
// the document number and type never change.
func (s *Service) UpdateDocument(ctx context.Context, id uuid.UUID, in UpdateDocumentInput) (*Document, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if in.OrderID != nil && in.ProjectID != nil {
		return nil, ErrTagConflict
	}
	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.AssertPeriodOpen(ctx, old.IssueDate); err != nil {
			return err
		}
		if !samePeriod(old.IssueDate, in.IssueDate) {
			if err := tx.AssertPeriodOpen(ctx, in.IssueDate); err != nil {
				return err
			}
		}
		rate := old.VATRate
		if in.VATRate != nil {
			rate = *in.VATRate
		}
		vat := tax.VATAmount(in.SubTotal, rate)
		doc = Document{
			ID:         old.ID,
			Type:       old.Type,
			Number:     old.Number,
			IssueDate:  in.IssueDate,
			CustomerID: in.CustomerID,
			OrderID:    in.OrderID,
			ProjectID:  in.ProjectID,
			SubTotal:   in.SubTotal,
			VATRate:    rate,
			VATAmount:  vat,
			GrandTotal: tax.GrandTotal(in.SubTotal, vat),
			CreatedAt:  old.CreatedAt,
		}
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		if in.Withholding == nil {
			return tx.DeleteWithholding(ctx, doc.ID)
		}
		w := buildWithholding(doc.ID, doc.SubTotal, *in.Withholding)
		doc.Withholding = &w
		return tx.UpsertWithholding(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document and its withholding record.
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.AssertPeriodOpen(ctx, old.IssueDate); err != nil {
			return err
		}
		if err := tx.DeleteWithholding(ctx, id); err != nil {
			return err
		}
		return tx.DeleteDocument(ctx, id)
	})
}

// GetDocument loads a document by id.
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.repo.GetDocument(ctx, id)
}

// CreateExpense validates and persists a new expense.
func (s *Service) CreateExpense(ctx context.Context, in CreateExpenseInput) (*Expense, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if err := checkExpenseInput(in.Category, in.HasVAT, in.VATAmount, in.RelatedOrderID, in.RelatedProjectID); err != nil {
		return nil, err
	}
	exp := Expense{
		ID:               uuid.New(),
		ExpenseDate:      in.ExpenseDate,
		VendorName:       in.VendorName,
		Category:         in.Category,
		HasVAT:           in.HasVAT,
		SubTotal:         in.SubTotal,
		VATAmount:        in.VATAmount,
		GrandTotal:       tax.GrandTotal(in.SubTotal, in.VATAmount),
		RelatedOrderID:   in.RelatedOrderID,
		RelatedProjectID: in.RelatedProjectID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AssertPeriodOpen(ctx, exp.ExpenseDate); err != nil {
			return err
		}
		return tx.InsertExpense(ctx, exp)
	})
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// UpdateExpense mutates an existing expense under the period guard.
func (s *Service) UpdateExpense(ctx context.Context, id uuid.UUID, in UpdateExpenseInput) (*Expense, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if err := checkExpenseInput(in.Category, in.HasVAT, in.VATAmount, in.RelatedOrderID, in.RelatedProjectID); err != nil {
		return nil, err
	}
	var exp Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetExpenseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.AssertPeriodOpen(ctx, old.ExpenseDate); err != nil {
			return err
		}
		if !samePeriod(old.ExpenseDate, in.ExpenseDate) {
			if err := tx.AssertPeriodOpen(ctx, in.ExpenseDate); err != nil {
				return err
			}
		}
		exp = Expense{
			ID:               old.ID,
			ExpenseDate:      in.ExpenseDate,
			VendorName:       in.VendorName,
			Category:         in.Category,
			HasVAT:           in.HasVAT,
			SubTotal:         in.SubTotal,
			VATAmount:        in.VATAmount,
			GrandTotal:       tax.GrandTotal(in.SubTotal, in.VATAmount),
			RelatedOrderID:   in.RelatedOrderID,
			RelatedProjectID: in.RelatedProjectID,
			CreatedAt:        old.CreatedAt,
		}
		return tx.UpdateExpense(ctx, exp)
	})
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// DeleteExpense removes an expense under the period guard.
func (s *Service) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetExpenseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.AssertPeriodOpen(ctx, old.ExpenseDate); err != nil {
			return err
		}
		return tx.DeleteExpense(ctx, id)
	})
}

// GetExpense loads an expense by id.
func (s *Service) GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error) {
	return s.repo.GetExpense(ctx, id)
}

// CreatePayment records money received under the period guard.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	pay := Payment{
		ID:         uuid.New(),
		ReceivedAt: in.ReceivedAt,
		Amount:     tax.Round2(in.Amount),
		Method:     in.Method,
		OrderID:    in.OrderID,
		DocumentID: in.DocumentID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AssertPeriodOpen(ctx, pay.ReceivedAt); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, pay)
	})
	if err != nil {
		return nil, err
	}
	return &pay, nil
}

// UpdatePayment mutates an existing payment under the period guard.
func (s *Service) UpdatePayment(ctx context.Context, id uuid.UUID, in UpdatePaymentInput) (*Payment, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	var pay Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.AssertPeriodOpen(ctx, old.ReceivedAt); err != nil {
			return err
		}
		if !samePeriod(old.ReceivedAt, in.ReceivedAt) {
			if err := tx.AssertPeriodOpen(ctx, in.ReceivedAt); err != nil {
				return err
			}
		}
		pay = Payment{
			ID:         old.ID,
			ReceivedAt: in.ReceivedAt,
			Amount:     tax.Round2(in.Amount),
			Method:     in.Method,
			OrderID:    in.OrderID,
			DocumentID: in.DocumentID,
			CreatedAt:  old.CreatedAt,
		}
		return tx.UpdatePayment(ctx, pay)
	})
	if err != nil {
		return nil, err
	}
	return &pay, nil
}

// DeletePayment removes a payment under the period guard.
func (s *Service) DeletePayment(ctx context.Context, id uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.AssertPeriodOpen(ctx, old.ReceivedAt); err != nil {
			return err
		}
		return tx.DeletePayment(ctx, id)
	})
}

// GetPayment loads a payment by id.
func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

func buildWithholding(documentID uuid.UUID, subTotal float64, in WithholdingInput) WithholdingRecord {
	base := in.BaseAmount
	if base == 0 {
		base = subTotal
	}
	return WithholdingRecord{
		DocumentID:      documentID,
		Rate:            in.Rate,
		BaseAmount:      base,
		TaxAmount:       tax.WithholdingTax(base, in.Rate),
		CertificateNo:   in.CertificateNo,
		CertificateDate: in.CertificateDate,
	}
}

func checkExpenseInput(category ExpenseCategory, hasVAT bool, vatAmount float64, orderID, projectID *uuid.UUID) error {
	if !category.Valid() {
		return ErrUnknownCategory
	}
	if !hasVAT && vatAmount != 0 {
		return ErrVATFlagMismatch
	}
	if orderID != nil && projectID != nil {
		return ErrTagConflict
	}
	return nil
}

func samePeriod(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
