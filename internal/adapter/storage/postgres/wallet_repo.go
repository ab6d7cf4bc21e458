package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, user_id, store_id, store_type, currency, balance, payout_balance,
	pending_payout_balance, lifetime_earnings, low_balance_threshold, payout_settings,
	auto_recharge_enabled, auto_recharge_amount, auto_recharge_threshold, status,
	total_top_ups, total_spent, total_payouts_received, last_top_up_at, last_payout_at,
	last_transaction_at, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// CreateIfAbsent inserts an empty wallet; a concurrent insert for the same key wins silently.
func (r *WalletRepo) CreateIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (bool, error) {
	query := `INSERT INTO wallets (id, user_id, store_id, store_type, currency, low_balance_threshold, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, store_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.StoreID, w.StoreType, w.Currency,
		w.LowBalanceThreshold, w.Status, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByKey fetches a wallet by (user, store) without locking.
func (r *WalletRepo) GetByKey(ctx context.Context, key domain.WalletKey) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND store_id = $2`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, key.UserID, key.StoreID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by key: %w", err)
	}
	return w, nil
}

// GetByKeyForUpdate fetches a wallet with a row lock held until tx ends.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByKeyForUpdate(ctx context.Context, tx pgx.Tx, key domain.WalletKey) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND store_id = $2 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, key.UserID, key.StoreID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// List returns wallets matching filter, newest first.
func (r *WalletRepo) List(ctx context.Context, filter ports.WalletFilter) ([]domain.Wallet, error) {
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
	if filter.StoreType != "" {
		conditions = append(conditions, fmt.Sprintf("store_type = $%d", argIdx))
		args = append(args, filter.StoreType)
		argIdx++
	}

	query := `SELECT ` + walletColumns + ` FROM wallets ` + where(conditions) +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, *w)
	}
	return wallets, rows.Err()
}

// UpdateBalances writes the balance and statistics columns of a locked wallet.
func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets SET balance = $1, payout_balance = $2, pending_payout_balance = $3,
		lifetime_earnings = $4, total_top_ups = $5, total_spent = $6, total_payouts_received = $7,
		last_top_up_at = $8, last_payout_at = $9, last_transaction_at = $10, updated_at = $11
		WHERE id = $12`

	tag, err := tx.Exec(ctx, query,
		w.Balance, w.PayoutBalance, w.PendingPayoutBalance, w.LifetimeEarnings,
		w.Stats.TotalTopUps, w.Stats.TotalSpent, w.Stats.TotalPayoutsReceived,
		w.Stats.LastTopUpAt, w.Stats.LastPayoutAt, w.Stats.LastTransactionAt,
		w.UpdatedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update wallet balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

// UpdateSettings writes payout settings, auto-recharge and the low balance threshold.
func (r *WalletRepo) UpdateSettings(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	settings, err := marshalNullable(w.PayoutSettings)
	if err != nil {
		return fmt.Errorf("encode payout settings: %w", err)
	}

	query := `UPDATE wallets SET payout_settings = $1, auto_recharge_enabled = $2, auto_recharge_amount = $3,
		auto_recharge_threshold = $4, low_balance_threshold = $5, updated_at = $6
		WHERE id = $7`

	tag, err := tx.Exec(ctx, query,
		settings, w.AutoRecharge.Enabled, w.AutoRecharge.Amount, w.AutoRecharge.TriggerThreshold,
		w.LowBalanceThreshold, w.UpdatedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update wallet settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	var settings []byte
	err := row.Scan(
		&w.ID, &w.UserID, &w.StoreID, &w.StoreType, &w.Currency, &w.Balance, &w.PayoutBalance,
		&w.PendingPayoutBalance, &w.LifetimeEarnings, &w.LowBalanceThreshold, &settings,
		&w.AutoRecharge.Enabled, &w.AutoRecharge.Amount, &w.AutoRecharge.TriggerThreshold, &w.Status,
		&w.Stats.TotalTopUps, &w.Stats.TotalSpent, &w.Stats.TotalPayoutsReceived,
		&w.Stats.LastTopUpAt, &w.Stats.LastPayoutAt, &w.Stats.LastTransactionAt,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		w.PayoutSettings = &domain.PayoutSettings{}
		if err := json.Unmarshal(settings, w.PayoutSettings); err != nil {
			return nil, fmt.Errorf("decode payout settings: %w", err)
		}
	}
	return w, nil
}

func where(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, " AND ")
}

// marshalNullable encodes v as JSON, or returns nil (SQL NULL) for a nil pointer.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
