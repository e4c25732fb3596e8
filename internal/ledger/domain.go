// Package ledger owns the persisted financial records: documents,
// expenses, payments, and withholding-tax records. Every write path
// runs its period-lock check inside the transaction that performs the
// mutation.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian-books/internal/sequence"
)

// ErrNotFound indicates the requested ledger record does not exist.
var ErrNotFound = errors.New("ledger: record not found")

// ErrNoWithholding indicates the document has no withholding record.
var ErrNoWithholding = errors.New("ledger: no withholding record")

// Document is an issued sales document. Number is assigned by the
// sequencer on creation and never changes afterwards.
type Document struct {
	ID         uuid.UUID        `json:"id"`
	Type       sequence.DocType `json:"type"`
	Number     string           `json:"number"`
	IssueDate  time.Time        `json:"issueDate"`
	CustomerID uuid.UUID        `json:"customerId"`
	OrderID    *uuid.UUID       `json:"orderId,omitempty"`
	ProjectID  *uuid.UUID       `json:"projectId,omitempty"`
	SubTotal   float64          `json:"subTotal"`
	VATRate    float64          `json:"vatRate"`
	VATAmount  float64          `json:"vatAmount"`
	GrandTotal float64          `json:"grandTotal"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`

	Withholding *WithholdingRecord `json:"withholding,omitempty"`
}

// WithholdingRecord tracks tax withheld by the customer on a document.
type WithholdingRecord struct {
	DocumentID      uuid.UUID  `json:"documentId"`
	Rate            float64    `json:"rate"`
	BaseAmount      float64    `json:"baseAmount"`
	TaxAmount       float64    `json:"taxAmount"`
	CertificateNo   string     `json:"certificateNo,omitempty"`
	CertificateDate *time.Time `json:"certificateDate,omitempty"`
}

// ExpenseCategory classifies an expense line.
type ExpenseCategory string

const (
	CategoryInventoryPurchase ExpenseCategory = "INVENTORY_PURCHASE"
	CategoryShippingOut       ExpenseCategory = "SHIPPING_OUT"
	CategoryRent              ExpenseCategory = "RENT"
	CategoryUtilities         ExpenseCategory = "UTILITIES"
	CategoryMarketing         ExpenseCategory = "MARKETING"
	CategorySalaries          ExpenseCategory = "SALARIES"
	CategoryFees              ExpenseCategory = "FEES"
	CategoryOther             ExpenseCategory = "OTHER"
)

// IsCOGS reports whether the category counts as cost of goods sold.
// The COGS set is fixed: inventory purchases and outbound shipping.
func (c ExpenseCategory) IsCOGS() bool {
	return c == CategoryInventoryPurchase || c == CategoryShippingOut
}

// Valid reports whether the category is one of the configured values.
func (c ExpenseCategory) Valid() bool {
	switch c {
	case CategoryInventoryPurchase, CategoryShippingOut, CategoryRent,
		CategoryUtilities, CategoryMarketing, CategorySalaries,
		CategoryFees, CategoryOther:
		return true
	}
	return false
}

// Expense is a recorded cost. RelatedOrderID tags a direct goods cost,
// RelatedProjectID a direct service cost; neither means shared overhead.
type Expense struct {
	ID               uuid.UUID       `json:"id"`
	ExpenseDate      time.Time       `json:"expenseDate"`
	VendorName       string          `json:"vendorName"`
	Category         ExpenseCategory `json:"category"`
	HasVAT           bool            `json:"hasVat"`
	SubTotal         float64         `json:"subTotal"`
	VATAmount        float64         `json:"vatAmount"`
	GrandTotal       float64         `json:"grandTotal"`
	RelatedOrderID   *uuid.UUID      `json:"relatedOrderId,omitempty"`
	RelatedProjectID *uuid.UUID      `json:"relatedProjectId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Payment records money received. Only its ReceivedAt date matters to
// the closing engine; it is guarded like every other financial row.
type Payment struct {
	ID         uuid.UUID  `json:"id"`
	ReceivedAt time.Time  `json:"receivedAt"`
	Amount     float64    `json:"amount"`
	Method     string     `json:"method"`
	OrderID    *uuid.UUID `json:"orderId,omitempty"`
	DocumentID *uuid.UUID `json:"documentId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
