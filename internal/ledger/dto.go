package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian-books/internal/sequence"
)

// CreateDocumentInput carries a new sales document. VATRate nil means
// the configured default rate applies. Amount fields are rejected if
// negative before any store access.
type CreateDocumentInput struct {
	Type       sequence.DocType `json:"type" validate:"required"`
	IssueDate  time.Time        `json:"issueDate" validate:"required"`
	CustomerID uuid.UUID        `json:"customerId" validate:"required"`
	OrderID    *uuid.UUID       `json:"orderId"`
	ProjectID  *uuid.UUID       `json:"projectId"`
	SubTotal   float64          `json:"subTotal" validate:"gte=0"`
	VATRate    *float64         `json:"vatRate" validate:"omitempty,gte=0,lte=100"`

	Withholding *WithholdingInput `json:"withholding" validate:"omitempty"`
}

// WithholdingInput attaches a withholding record to a document. The
// base defaults to the document subtotal when zero.
type WithholdingInput struct {
	Rate            float64    `json:"rate" validate:"gt=0,lte=100"`
	BaseAmount      float64    `json:"baseAmount" validate:"gte=0"`
	CertificateNo   string     `json:"certificateNo"`
	CertificateDate *time.Time `json:"certificateDate"`
}

// UpdateDocumentInput mutates an existing document. The document number
// and type are immutable.
type UpdateDocumentInput struct {
	IssueDate  time.Time  `json:"issueDate" validate:"required"`
	CustomerID uuid.UUID  `json:"customerId" validate:"required"`
	OrderID    *uuid.UUID `json:"orderId"`
	ProjectID  *uuid.UUID `json:"projectId"`
	SubTotal   float64    `json:"subTotal" validate:"gte=0"`
	VATRate    *float64   `json:"vatRate" validate:"omitempty,gte=0,lte=100"`

	Withholding *WithholdingInput `json:"withholding" validate:"omitempty"`
}

// CreateExpenseInput carries a new expense.
type CreateExpenseInput struct {
	ExpenseDate      time.Time       `json:"expenseDate" validate:"required"`
	VendorName       string          `json:"vendorName" validate:"required"`
	Category         ExpenseCategory `json:"category" validate:"required"`
	HasVAT           bool            `json:"hasVat"`
	SubTotal         float64         `json:"subTotal" validate:"gte=0"`
	VATAmount        float64         `json:"vatAmount" validate:"gte=0"`
	RelatedOrderID   *uuid.UUID      `json:"relatedOrderId"`
	RelatedProjectID *uuid.UUID      `json:"relatedProjectId"`
}

// UpdateExpenseInput mutates an existing expense.
type UpdateExpenseInput struct {
	ExpenseDate      time.Time       `json:"expenseDate" validate:"required"`
	VendorName       string          `json:"vendorName" validate:"required"`
	Category         ExpenseCategory `json:"category" validate:"required"`
	HasVAT           bool            `json:"hasVat"`
	SubTotal         float64         `json:"subTotal" validate:"gte=0"`
	VATAmount        float64         `json:"vatAmount" validate:"gte=0"`
	RelatedOrderID   *uuid.UUID      `json:"relatedOrderId"`
	RelatedProjectID *uuid.UUID      `json:"relatedProjectId"`
}

// CreatePaymentInput records money received.
type CreatePaymentInput struct {
	ReceivedAt time.Time  `json:"receivedAt" validate:"required"`
	Amount     float64    `json:"amount" validate:"gt=0"`
	Method     string     `json:"method" validate:"required"`
	OrderID    *uuid.UUID `json:"orderId"`
	DocumentID *uuid.UUID `json:"documentId"`
}

// UpdatePaymentInput mutates an existing payment.
type UpdatePaymentInput struct {
	ReceivedAt time.Time  `json:"receivedAt" validate:"required"`
	Amount     float64    `json:"amount" validate:"gt=0"`
	Method     string     `json:"method" validate:"required"`
	OrderID    *uuid.UUID `json:"orderId"`
	DocumentID *uuid.UUID `json:"documentId"`
}
