package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-books/meridian-books/internal/periods"
	"github.com/meridian-books/meridian-books/internal/platform/db"
	"github.com/meridian-books/meridian-books/internal/sequence"
)

// Repository is the write-side persistence contract for ledger records.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
}

// TxRepository exposes the mutations available inside one transaction.
// AssertPeriodOpen runs against the same transaction, so a concurrent
// period close cannot slip between the check and the write.
type TxRepository interface {
	AssertPeriodOpen(ctx context.Context, date time.Time) error
	NextDocNumber(ctx context.Context, dt sequence.DocType, date time.Time) (string, error)

	InsertDocument(ctx context.Context, d Document) error
	GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (*Document, error)
	UpdateDocument(ctx context.Context, d Document) error
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	UpsertWithholding(ctx context.Context, w WithholdingRecord) error
	DeleteWithholding(ctx context.Context, documentID uuid.UUID) error

	InsertExpense(ctx context.Context, e Expense) error
	GetExpenseForUpdate(ctx context.Context, id uuid.UUID) (*Expense, error)
	UpdateExpense(ctx context.Context, e Expense) error
	DeleteExpense(ctx context.Context, id uuid.UUID) error

	InsertPayment(ctx context.Context, p Payment) error
	GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)
	UpdatePayment(ctx context.Context, p Payment) error
	DeletePayment(ctx context.Context, id uuid.UUID) error
}

// Query is the read-only surface consumed by the allocation engine and
// the monthly summary aggregator.
type Query interface {
	TaxReceiptsIn(ctx context.Context, year, month int) ([]Document, error)
	ExpensesIn(ctx context.Context, year, month int) ([]Expense, error)
	WithholdingIn(ctx context.Context, year, month int) ([]WithholdingRecord, error)
}

// PGRepository implements Repository and Query against Postgres.
type PGRepository struct {
	pool     *pgxpool.Pool
	guard    *periods.Guard
	prefixes sequence.Prefixes
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool, guard *periods.Guard, prefixes sequence.Prefixes) *PGRepository {
	if prefixes == nil {
		prefixes = sequence.DefaultPrefixes()
	}
	return &PGRepository{pool: pool, guard: guard, prefixes: prefixes}
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("ledger: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx, guard: r.guard, prefixes: r.prefixes})
	})
}

const documentColumns = `id, doc_type, doc_number, issue_date, customer_id, order_id, project_id,
	sub_total, vat_rate, vat_amount, grand_total, created_at, updated_at`

const expenseColumns = `id, expense_date, vendor_name, category, has_vat,
	sub_total, vat_amount, grand_total, related_order_id, related_project_id, created_at, updated_at`

const paymentColumns = `id, received_at, amount, method, order_id, document_id, created_at, updated_at`

// GetDocument loads a document and its withholding record, if any.
func (r *PGRepository) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM financial_documents WHERE id = $1`
	d, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	w, err := getWithholding(ctx, r.pool, id)
	if err != nil && !errors.Is(err, ErrNoWithholding) {
		return nil, err
	}
	d.Withholding = w
	return d, nil
}

// GetExpense loads a single expense.
func (r *PGRepository) GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	return scanExpense(r.pool.QueryRow(ctx, query, id))
}

// GetPayment loads a single payment.
func (r *PGRepository) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, id))
}

// queryer is satisfied by both pgxpool.Pool and pgx.Tx, so the period
// reads below can run against either.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// TaxReceiptsIn returns tax-invoice-receipts issued within the period.
func (r *PGRepository) TaxReceiptsIn(ctx context.Context, year, month int) ([]Document, error) {
	return taxReceiptsIn(ctx, r.pool, year, month)
}

// ExpensesIn returns expenses dated within the period.
func (r *PGRepository) ExpensesIn(ctx context.Context, year, month int) ([]Expense, error) {
	return expensesIn(ctx, r.pool, year, month)
}

// WithholdingIn returns withholding records whose document was issued
// within the period.
func (r *PGRepository) WithholdingIn(ctx context.Context, year, month int) ([]WithholdingRecord, error) {
	return withholdingIn(ctx, r.pool, year, month)
}

// ReadPeriod runs fn against a read-only transaction, so every query fn
// issues observes the same snapshot of the period's rows.
func (r *PGRepository) ReadPeriod(ctx context.Context, fn func(Query) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("ledger: repository not initialised")
	}
	return db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(txQuery{tx: tx})
	})
}

// txQuery serves the period reads from one open transaction.
type txQuery struct {
	tx pgx.Tx
}

func (q txQuery) TaxReceiptsIn(ctx context.Context, year, month int) ([]Document, error) {
	return taxReceiptsIn(ctx, q.tx, year, month)
}

func (q txQuery) ExpensesIn(ctx context.Context, year, month int) ([]Expense, error) {
	return expensesIn(ctx, q.tx, year, month)
}

func (q txQuery) WithholdingIn(ctx context.Context, year, month int) ([]WithholdingRecord, error) {
	return withholdingIn(ctx, q.tx, year, month)
}

func taxReceiptsIn(ctx context.Context, q queryer, year, month int) ([]Document, error) {
	start, end := periodRange(year, month)
	query := `SELECT ` + documentColumns + `
		FROM financial_documents
		WHERE doc_type = $1 AND issue_date >= $2 AND issue_date < $3
		ORDER BY doc_number`
	rows, err := q.Query(ctx, query, string(sequence.DocTypeTaxInvoiceReceipt), start, end)
	if err != nil {
		return nil, fmt.Errorf("ledger: tax receipts in period: %w", err)
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func expensesIn(ctx context.Context, q queryer, year, month int) ([]Expense, error) {
	start, end := periodRange(year, month)
	query := `SELECT ` + expenseColumns + `
		FROM expenses
		WHERE expense_date >= $1 AND expense_date < $2
		ORDER BY expense_date, id`
	rows, err := q.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("ledger: expenses in period: %w", err)
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func withholdingIn(ctx context.Context, q queryer, year, month int) ([]WithholdingRecord, error) {
	start, end := periodRange(year, month)
	const query = `
		SELECT w.document_id, w.rate, w.base_amount, w.tax_amount, w.certificate_no, w.certificate_date
		FROM withholding_tax_records w
		JOIN financial_documents d ON d.id = w.document_id
		WHERE d.issue_date >= $1 AND d.issue_date < $2
		ORDER BY w.document_id`
	rows, err := q.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("ledger: withholding in period: %w", err)
	}
	defer rows.Close()
	var out []WithholdingRecord
	for rows.Next() {
		var w WithholdingRecord
		if err := rows.Scan(&w.DocumentID, &w.Rate, &w.BaseAmount, &w.TaxAmount, &w.CertificateNo, &w.CertificateDate); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func periodRange(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// pgTxRepository binds the mutations to one open transaction.
type pgTxRepository struct {
	tx       pgx.Tx
	guard    *periods.Guard
	prefixes sequence.Prefixes
}

func (r *pgTxRepository) AssertPeriodOpen(ctx context.Context, date time.Time) error {
	return r.guard.AssertOpen(ctx, r.tx, date)
}

func (r *pgTxRepository) NextDocNumber(ctx context.Context, dt sequence.DocType, date time.Time) (string, error) {
	seqSvc := sequence.NewService(sequence.NewTxRepository(r.tx), r.prefixes)
	return seqSvc.NextNumber(ctx, dt, date)
}

func (r *pgTxRepository) InsertDocument(ctx context.Context, d Document) error {
	const query = `
		INSERT INTO financial_documents
			(id, doc_type, doc_number, issue_date, customer_id, order_id, project_id,
			 sub_total, vat_rate, vat_amount, grand_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())`
	_, err := r.tx.Exec(ctx, query,
		d.ID, string(d.Type), d.Number, d.IssueDate, d.CustomerID, d.OrderID, d.ProjectID,
		d.SubTotal, d.VATRate, d.VATAmount, d.GrandTotal)
	if err != nil {
		return fmt.Errorf("ledger: insert document: %w", err)
	}
	return nil
}

func (r *pgTxRepository) GetDocumentForUpdate(ctx context.Context, id uuid.UUID) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM financial_documents WHERE id = $1 FOR UPDATE`
	return scanDocument(r.tx.QueryRow(ctx, query, id))
}

func (r *pgTxRepository) UpdateDocument(ctx context.Context, d Document) error {
	const query = `
		UPDATE financial_documents
		SET issue_date = $2, customer_id = $3, order_id = $4, project_id = $5,
		    sub_total = $6, vat_rate = $7, vat_amount = $8, grand_total = $9, updated_at = now()
		WHERE id = $1`
	tag, err := r.tx.Exec(ctx, query,
		d.ID, d.IssueDate, d.CustomerID, d.OrderID, d.ProjectID,
		d.SubTotal, d.VATRate, d.VATAmount, d.GrandTotal)
	if err != nil {
		return fmt.Errorf("ledger: update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM financial_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ledger: delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) UpsertWithholding(ctx context.Context, w WithholdingRecord) error {
	const query = `
		INSERT INTO withholding_tax_records
			(document_id, rate, base_amount, tax_amount, certificate_no, certificate_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id)
		DO UPDATE SET rate = $2, base_amount = $3, tax_amount = $4, certificate_no = $5, certificate_date = $6`
	_, err := r.tx.Exec(ctx, query,
		w.DocumentID, w.Rate, w.BaseAmount, w.TaxAmount, w.CertificateNo, w.CertificateDate)
	if err != nil {
		return fmt.Errorf("ledger: upsert withholding: %w", err)
	}
	return nil
}

func (r *pgTxRepository) DeleteWithholding(ctx context.Context, documentID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM withholding_tax_records WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("ledger: delete withholding: %w", err)
	}
	return nil
}

func (r *pgTxRepository) InsertExpense(ctx context.Context, e Expense) error {
	const query = `
		INSERT INTO expenses
			(id, expense_date, vendor_name, category, has_vat,
			 sub_total, vat_amount, grand_total, related_order_id, related_project_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`
	_, err := r.tx.Exec(ctx, query,
		e.ID, e.ExpenseDate, e.VendorName, string(e.Category), e.HasVAT,
		e.SubTotal, e.VATAmount, e.GrandTotal, e.RelatedOrderID, e.RelatedProjectID)
	if err != nil {
		return fmt.Errorf("ledger: insert expense: %w", err)
	}
	return nil
}

func (r *pgTxRepository) GetExpenseForUpdate(ctx context.Context, id uuid.UUID) (*Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1 FOR UPDATE`
	return scanExpense(r.tx.QueryRow(ctx, query, id))
}

func (r *pgTxRepository) UpdateExpense(ctx context.Context, e Expense) error {
	const query = `
		UPDATE expenses
		SET expense_date = $2, vendor_name = $3, category = $4, has_vat = $5,
		    sub_total = $6, vat_amount = $7, grand_total = $8,
		    related_order_id = $9, related_project_id = $10, updated_at = now()
		WHERE id = $1`
	tag, err := r.tx.Exec(ctx, query,
		e.ID, e.ExpenseDate, e.VendorName, string(e.Category), e.HasVAT,
		e.SubTotal, e.VATAmount, e.GrandTotal, e.RelatedOrderID, e.RelatedProjectID)
	if err != nil {
		return fmt.Errorf("ledger: update expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ledger: delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) InsertPayment(ctx context.Context, p Payment) error {
	const query = `
		INSERT INTO payments
			(id, received_at, amount, method, order_id, document_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`
	_, err := r.tx.Exec(ctx, query, p.ID, p.ReceivedAt, p.Amount, p.Method, p.OrderID, p.DocumentID)
	if err != nil {
		return fmt.Errorf("ledger: insert payment: %w", err)
	}
	return nil
}

func (r *pgTxRepository) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return scanPayment(r.tx.QueryRow(ctx, query, id))
}

func (r *pgTxRepository) UpdatePayment(ctx context.Context, p Payment) error {
	const query = `
		UPDATE payments
		SET received_at = $2, amount = $3, method = $4, order_id = $5, document_id = $6, updated_at = now()
		WHERE id = $1`
	tag, err := r.tx.Exec(ctx, query, p.ID, p.ReceivedAt, p.Amount, p.Method, p.OrderID, p.DocumentID)
	if err != nil {
		return fmt.Errorf("ledger: update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) DeletePayment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ledger: delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Scan helpers

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	var docType string
	err := row.Scan(&d.ID, &docType, &d.Number, &d.IssueDate, &d.CustomerID, &d.OrderID, &d.ProjectID,
		&d.SubTotal, &d.VATRate, &d.VATAmount, &d.GrandTotal, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	d.Type = sequence.DocType(docType)
	return &d, nil
}

func scanExpense(row pgx.Row) (*Expense, error) {
	var e Expense
	var category string
	err := row.Scan(&e.ID, &e.ExpenseDate, &e.VendorName, &category, &e.HasVAT,
		&e.SubTotal, &e.VATAmount, &e.GrandTotal, &e.RelatedOrderID, &e.RelatedProjectID,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Category = ExpenseCategory(category)
	return &e, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.ReceivedAt, &p.Amount, &p.Method, &p.OrderID, &p.DocumentID,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func getWithholding(ctx context.Context, q periods.Querier, documentID uuid.UUID) (*WithholdingRecord, error) {
	const query = `
		SELECT document_id, rate, base_amount, tax_amount, certificate_no, certificate_date
		FROM withholding_tax_records WHERE document_id = $1`
	var w WithholdingRecord
	err := q.QueryRow(ctx, query, documentID).
		Scan(&w.DocumentID, &w.Rate, &w.BaseAmount, &w.TaxAmount, &w.CertificateNo, &w.CertificateDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoWithholding
		}
		return nil, err
	}
	return &w, nil
}
