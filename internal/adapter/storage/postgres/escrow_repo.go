package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const escrowColumns = `id, order_id, store_id, user_id, customer_payment_amount, fulfillment_cost,
	platform_fee, store_payout, customer_payment_status, fulfillment_payment_status, payout_status,
	payment_ref, payout_id, released_at, paid_out_at, created_at, updated_at`

// EscrowRepo implements ports.EscrowRepository.
type EscrowRepo struct {
	pool Pool
}

// NewEscrowRepo creates a new EscrowRepo.
func NewEscrowRepo(pool Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

// Create inserts an escrow. The unique order_id turns a second escrow for the
// same order into ports.ErrDuplicate.
func (r *EscrowRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.EscrowTransaction) error {
	query := `INSERT INTO escrow_transactions (` + escrowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.OrderID, e.StoreID, e.UserID, e.CustomerPaymentAmount, e.FulfillmentCost,
		e.PlatformFee, e.StorePayout, e.CustomerPaymentStatus, e.FulfillmentPaymentStatus, e.PayoutStatus,
		e.PaymentRef, e.PayoutID, e.ReleasedAt, e.PaidOutAt, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return mapInsertError("insert escrow", err)
	}
	return nil
}

// GetByOrderID fetches the escrow of an order.
func (r *EscrowRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.EscrowTransaction, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_transactions WHERE order_id = $1`
	return scanEscrowRow(r.pool.QueryRow(ctx, query, orderID), "get escrow by order")
}

// GetByIDForUpdate fetches an escrow with a row lock. This MUST be called within a transaction.
func (r *EscrowRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.EscrowTransaction, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_transactions WHERE id = $1 FOR UPDATE`
	return scanEscrowRow(tx.QueryRow(ctx, query, id), "get escrow for update")
}

// List returns escrows matching filter, newest first.
func (r *EscrowRepo) List(ctx context.Context, filter ports.EscrowFilter) ([]domain.EscrowTransaction, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.StoreID != "" {
		conditions = append(conditions, fmt.Sprintf("store_id = $%d", argIdx))
		args = append(args, filter.StoreID)
		argIdx++
	}
	if filter.PayoutStatus != "" {
		conditions = append(conditions, fmt.Sprintf("payout_status = $%d", argIdx))
		args = append(args, filter.PayoutStatus)
		argIdx++
	}

	query := `SELECT ` + escrowColumns + ` FROM escrow_transactions ` + where(conditions) +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	defer rows.Close()

	var escrows []domain.EscrowTransaction
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escrow row: %w", err)
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}

// Update writes the mutable status columns of a locked escrow.
func (r *EscrowRepo) Update(ctx context.Context, tx pgx.Tx, e *domain.EscrowTransaction) error {
	query := `UPDATE escrow_transactions SET customer_payment_status = $1, fulfillment_payment_status = $2,
		payout_status = $3, payout_id = $4, released_at = $5, paid_out_at = $6, updated_at = $7
		WHERE id = $8`

	tag, err := tx.Exec(ctx, query,
		e.CustomerPaymentStatus, e.FulfillmentPaymentStatus, e.PayoutStatus,
		e.PayoutID, e.ReleasedAt, e.PaidOutAt, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update escrow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("escrow not found: %s", e.ID)
	}
	return nil
}

// AssignToPayout claims released escrows of the wallet that no payout holds yet,
// oldest release first, while their summed store payout stays within amount.
// Rows locked by a concurrent release are skipped rather than waited on.
func (r *EscrowRepo) AssignToPayout(ctx context.Context, tx pgx.Tx, key domain.WalletKey, payoutID uuid.UUID, amount int64) ([]string, error) {
	query := `WITH candidates AS (
			SELECT id, store_payout, released_at, created_at FROM escrow_transactions
			WHERE user_id = $2 AND store_id = $3 AND payout_status = $4 AND payout_id IS NULL
			ORDER BY released_at, created_at, id
			FOR UPDATE SKIP LOCKED
		), covered AS (
			SELECT id, SUM(store_payout) OVER (ORDER BY released_at, created_at, id) AS running
			FROM candidates
		)
		UPDATE escrow_transactions e SET payout_id = $1, updated_at = now()
		FROM covered c
		WHERE e.id = c.id AND c.running <= $5
		RETURNING e.order_id`

	rows, err := tx.Query(ctx, query, payoutID, key.UserID, key.StoreID, domain.EscrowReleased, amount)
	if err != nil {
		return nil, fmt.Errorf("assign escrows to payout: %w", err)
	}
	defer rows.Close()

	orderIDs := []string{}
	for rows.Next() {
		var orderID string
		if err := rows.Scan(&orderID); err != nil {
			return nil, fmt.Errorf("scan assigned order: %w", err)
		}
		orderIDs = append(orderIDs, orderID)
	}
	return orderIDs, rows.Err()
}

// MarkPaidOut moves every released escrow held by the payout to paid_out.
func (r *EscrowRepo) MarkPaidOut(ctx context.Context, tx pgx.Tx, payoutID uuid.UUID, at time.Time) (int64, error) {
	query := `UPDATE escrow_transactions SET payout_status = $1, paid_out_at = $2, updated_at = $2
		WHERE payout_id = $3 AND payout_status = $4`

	tag, err := tx.Exec(ctx, query, domain.EscrowPaidOut, at, payoutID, domain.EscrowReleased)
	if err != nil {
		return 0, fmt.Errorf("mark escrows paid out: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DetachFromPayout clears the payout reference of escrows that were not paid out.
func (r *EscrowRepo) DetachFromPayout(ctx context.Context, tx pgx.Tx, payoutID uuid.UUID) (int64, error) {
	query := `UPDATE escrow_transactions SET payout_id = NULL, updated_at = now()
		WHERE payout_id = $1 AND payout_status = $2`

	tag, err := tx.Exec(ctx, query, payoutID, domain.EscrowReleased)
	if err != nil {
		return 0, fmt.Errorf("detach escrows from payout: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEscrowRow(row pgx.Row, op string) (*domain.EscrowTransaction, error) {
	e, err := scanEscrow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func scanEscrow(row pgx.Row) (*domain.EscrowTransaction, error) {
	e := &domain.EscrowTransaction{}
	err := row.Scan(
		&e.ID, &e.OrderID, &e.StoreID, &e.UserID, &e.CustomerPaymentAmount, &e.FulfillmentCost,
		&e.PlatformFee, &e.StorePayout, &e.CustomerPaymentStatus, &e.FulfillmentPaymentStatus, &e.PayoutStatus,
		&e.PaymentRef, &e.PayoutID, &e.ReleasedAt, &e.PaidOutAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}
