package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const invoiceColumns = `id, order_id, buyer_id, seller_id, items, subtotal, tax, total, status, pdf_url, created_at, updated_at`

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	pool Pool
}

// NewInvoiceRepo creates a new InvoiceRepo.
func NewInvoiceRepo(pool Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("encode invoice items: %w", err)
	}

	query := `INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.pool.Exec(ctx, query,
		inv.ID, inv.OrderID, inv.BuyerID, inv.SellerID, items,
		inv.Subtotal, inv.Tax, inv.Total, inv.Status, inv.PDFURL, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return mapInsertError("insert invoice", err)
	}
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return scanInvoiceRow(r.pool.QueryRow(ctx, query, id), "get invoice")
}

// GetByIDForUpdate fetches an invoice with a row lock. This MUST be called within a transaction.
func (r *InvoiceRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`
	return scanInvoiceRow(tx.QueryRow(ctx, query, id), "get invoice for update")
}

// List returns invoices matching filter, newest first.
func (r *InvoiceRepo) List(ctx context.Context, filter ports.InvoiceFilter) ([]domain.Invoice, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.BuyerID != "" {
		conditions = append(conditions, fmt.Sprintf("buyer_id = $%d", argIdx))
		args = append(args, filter.BuyerID)
		argIdx++
	}
	if filter.SellerID != "" {
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, filter.SellerID)
		argIdx++
	}
	if filter.OrderID != "" {
		conditions = append(conditions, fmt.Sprintf("order_id = $%d", argIdx))
		args = append(args, filter.OrderID)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices ` + where(conditions) +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice row: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (r *InvoiceRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.InvoiceStatus, at time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE invoices SET status = $1, updated_at = $2 WHERE id = $3`, status, at, id)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice not found: %s", id)
	}
	return nil
}

func scanInvoiceRow(row pgx.Row, op string) (*domain.Invoice, error) {
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return inv, nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	var items []byte
	err := row.Scan(
		&inv.ID, &inv.OrderID, &inv.BuyerID, &inv.SellerID, &items,
		&inv.Subtotal, &inv.Tax, &inv.Total, &inv.Status, &inv.PDFURL, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode invoice items: %w", err)
	}
	return inv, nil
}
