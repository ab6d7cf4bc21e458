package postgres

import (
	"context"
	"fmt"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, transaction_number, wallet_id, user_id, store_id, category, type, amount,
	balance_before, balance_after, affects_balance, order_id, payout_id, escrow_transaction_id,
	status, description, actor_id, created_at, completed_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a wallet transaction within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.TransactionNumber, t.WalletID, t.UserID, t.StoreID, t.Category, t.Type, t.Amount,
		t.BalanceBefore, t.BalanceAfter, t.AffectsBalance, t.OrderID, t.PayoutID, t.EscrowTransactionID,
		t.Status, t.Description, t.ActorID, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		return mapInsertError("insert wallet transaction", err)
	}
	return nil
}

// List returns a user's transactions newest first, resuming after params.After when set.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.WalletTransaction, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
	args = append(args, params.UserID)
	argIdx++

	if params.StoreID != nil {
		conditions = append(conditions, fmt.Sprintf("store_id = $%d", argIdx))
		args = append(args, *params.StoreID)
		argIdx++
	}
	if params.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, *params.Category)
		argIdx++
	}
	if params.AffectsBalance != nil {
		conditions = append(conditions, fmt.Sprintf("affects_balance = $%d", argIdx))
		args = append(args, *params.AffectsBalance)
		argIdx++
	}
	if params.After != nil {
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", argIdx, argIdx+1))
		args = append(args, params.After.CreatedAt, params.After.ID)
		argIdx += 2
	}

	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions ` + where(conditions) +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, argIdx)
	args = append(args, params.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.WalletTransaction
	for rows.Next() {
		t := domain.WalletTransaction{}
		err := rows.Scan(
			&t.ID, &t.TransactionNumber, &t.WalletID, &t.UserID, &t.StoreID, &t.Category, &t.Type, &t.Amount,
			&t.BalanceBefore, &t.BalanceAfter, &t.AffectsBalance, &t.OrderID, &t.PayoutID, &t.EscrowTransactionID,
			&t.Status, &t.Description, &t.ActorID, &t.CreatedAt, &t.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet transaction rows: %w", err)
	}
	return txns, nil
}
