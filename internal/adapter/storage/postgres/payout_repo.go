package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, payout_number, wallet_id, user_id, store_id, amount, currency, method,
	destination, status, order_ids, transaction_id, scheduled_at, processed_at, completed_at,
	failure_reason, external_ref, created_at, updated_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// Create inserts a payout within a database transaction.
func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	destination, err := json.Marshal(p.Destination)
	if err != nil {
		return fmt.Errorf("encode payout destination: %w", err)
	}
	orderIDs := p.OrderIDs
	if orderIDs == nil {
		orderIDs = []string{}
	}

	query := `INSERT INTO payouts (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = tx.Exec(ctx, query,
		p.ID, p.PayoutNumber, p.WalletID, p.UserID, p.StoreID, p.Amount, p.Currency, p.Method,
		destination, p.Status, orderIDs, p.TransactionID, p.ScheduledAt, p.ProcessedAt, p.CompletedAt,
		p.FailureReason, p.ExternalRef, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapInsertError("insert payout", err)
	}
	return nil
}

// GetByRef fetches a payout by UUID or payout number.
func (r *PayoutRepo) GetByRef(ctx context.Context, ref string) (*domain.Payout, error) {
	column, arg := payoutRefCondition(ref)
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE ` + column + ` = $1`
	return scanPayoutRow(r.pool.QueryRow(ctx, query, arg), "get payout")
}

// GetByRefForUpdate fetches a payout with a row lock. This MUST be called within a transaction.
func (r *PayoutRepo) GetByRefForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*domain.Payout, error) {
	column, arg := payoutRefCondition(ref)
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE ` + column + ` = $1 FOR UPDATE`
	return scanPayoutRow(tx.QueryRow(ctx, query, arg), "get payout for update")
}

// List returns payouts matching filter, newest first.
func (r *PayoutRepo) List(ctx context.Context, filter ports.PayoutFilter) ([]domain.Payout, error) {
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
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	query := `SELECT ` + payoutColumns + ` FROM payouts ` + where(conditions) +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

// UpdateStatus writes the status columns of a locked payout. Amount and destination are immutable.
func (r *PayoutRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	query := `UPDATE payouts SET status = $1, processed_at = $2, completed_at = $3,
		failure_reason = $4, external_ref = $5, updated_at = $6
		WHERE id = $7`

	tag, err := tx.Exec(ctx, query,
		p.Status, p.ProcessedAt, p.CompletedAt, p.FailureReason, p.ExternalRef, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payout status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout not found: %s", p.ID)
	}
	return nil
}

func payoutRefCondition(ref string) (string, any) {
	if id, err := uuid.Parse(ref); err == nil {
		return "id", id
	}
	return "payout_number", ref
}

func scanPayoutRow(row pgx.Row, op string) (*domain.Payout, error) {
	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	p := &domain.Payout{}
	var destination []byte
	err := row.Scan(
		&p.ID, &p.PayoutNumber, &p.WalletID, &p.UserID, &p.StoreID, &p.Amount, &p.Currency, &p.Method,
		&destination, &p.Status, &p.OrderIDs, &p.TransactionID, &p.ScheduledAt, &p.ProcessedAt, &p.CompletedAt,
		&p.FailureReason, &p.ExternalRef, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(destination) > 0 {
		if err := json.Unmarshal(destination, &p.Destination); err != nil {
			return nil, fmt.Errorf("decode payout destination: %w", err)
		}
	}
	return p, nil
}
