package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/metrics"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultTransactionPage = 50
	maxTransactionPage     = 200
)

// LedgerSettings holds the wallet defaults applied by the ledger.
type LedgerSettings struct {
	Currency            string
	LowBalanceThreshold int64
	ListLimit           int
}

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	auditRepo  ports.AuditRepository
	encSvc     ports.EncryptionService
	runner     *txRunner
	settings   LedgerSettings
	metrics    *metrics.Recorder
	log        zerolog.Logger
	now        func() time.Time
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	auditRepo ports.AuditRepository,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	settings LedgerSettings,
	retry RetryPolicy,
	rec *metrics.Recorder,
	log zerolog.Logger,
) *LedgerServiceImpl {
	if settings.Currency == "" {
		settings.Currency = "USD"
	}
	if settings.ListLimit <= 0 {
		settings.ListLimit = 1000
	}
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		auditRepo:  auditRepo,
		encSvc:     encSvc,
		runner:     newTxRunner(transactor, retry, rec, log),
		settings:   settings,
		metrics:    rec,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateWallet returns the wallet for key, creating an empty one if absent.
func (s *LedgerServiceImpl) GetOrCreateWallet(ctx context.Context, req ports.OpenWalletRequest) (*domain.Wallet, error) {
	if req.Key.UserID == "" {
		return nil, apperror.Validation("userId is required")
	}
	var wallet *domain.Wallet
	err := s.runner.run(ctx, "ledger.open_wallet", func(tx pgx.Tx) error {
		w, err := s.lockOrCreate(ctx, tx, req.Key, req.StoreType, req.Actor)
		wallet = w
		return err
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *LedgerServiceImpl) Credit(ctx context.Context, req ports.BalanceChange) (*ports.LedgerResult, error) {
	return s.change(ctx, "credit", req, domain.BalanceWallet, domain.TransactionTypeCredit, true)
}

// Debit never creates a wallet.
func (s *LedgerServiceImpl) Debit(ctx context.Context, req ports.BalanceChange) (*ports.LedgerResult, error) {
	return s.change(ctx, "debit", req, domain.BalanceWallet, domain.TransactionTypeDebit, false)
}

func (s *LedgerServiceImpl) CreditPayoutBalance(ctx context.Context, req ports.BalanceChange) (*ports.LedgerResult, error) {
	return s.change(ctx, "payout_credit", req, domain.BalancePayout, domain.TransactionTypeCredit, true)
}

func (s *LedgerServiceImpl) DebitPayoutBalance(ctx context.Context, req ports.BalanceChange) (*ports.LedgerResult, error) {
	return s.change(ctx, "payout_debit", req, domain.BalancePayout, domain.TransactionTypeDebit, false)
}

func (s *LedgerServiceImpl) change(
	ctx context.Context,
	op string,
	req ports.BalanceChange,
	target domain.BalanceTarget,
	typ domain.TransactionType,
	autoCreate bool,
) (*ports.LedgerResult, error) {
	if req.Category == "" {
		req.Category = domain.CategoryAdjustment
	}
	mutation := ports.Mutation{
		Key:         req.Key,
		Target:      target,
		Type:        typ,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Actor:       req.Actor,
		OrderID:     req.OrderID,
		FromPending: req.FromPending,
		AutoCreate:  autoCreate,
	}
	if err := validateMutation(mutation); err != nil {
		s.metrics.Mutation(op, string(target), metrics.OutcomeRejected)
		return nil, err
	}

	var result *ports.LedgerResult
	err := s.runner.run(ctx, "ledger."+op, func(tx pgx.Tx) error {
		r, err := s.ApplyTx(ctx, tx, mutation)
		result = r
		return err
	})
	if err != nil {
		s.metrics.Mutation(op, string(target), outcomeOf(err))
		return nil, err
	}

	s.metrics.Mutation(op, string(target), metrics.OutcomeOK)
	if result.LowBalance {
		s.metrics.LowBalance()
	}
	s.log.Info().
		Str("tx_id", result.Transaction.TransactionNumber).
		Str("wallet", req.Key.String()).
		Str("op", op).
		Int64("amount", req.Amount).
		Int64("balance_after", result.Transaction.BalanceAfter).
		Msg("ledger mutation committed")
	return result, nil
}

// ApplyTx locks the wallet, applies one mutation, and writes its transaction and audit
// records. Everything happens inside tx; the caller commits.
func (s *LedgerServiceImpl) ApplyTx(ctx context.Context, tx pgx.Tx, m ports.Mutation) (*ports.LedgerResult, error) {
	if err := validateMutation(m); err != nil {
		return nil, err
	}

	var wallet *domain.Wallet
	var err error
	if m.AutoCreate {
		wallet, err = s.lockOrCreate(ctx, tx, m.Key, "", m.Actor)
		if err != nil {
			return nil, err
		}
	} else {
		wallet, err = s.walletRepo.GetByKeyForUpdate(ctx, tx, m.Key)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
		}
		if wallet == nil {
			return nil, apperror.ErrWalletNotFound()
		}
	}

	now := s.now()
	before, after, err := s.applyToWallet(wallet, m, now)
	if err != nil {
		return nil, err
	}

	txn := &domain.WalletTransaction{
		ID:                  uuid.New(),
		TransactionNumber:   domain.NewTransactionNumber(),
		WalletID:            wallet.ID,
		UserID:              wallet.UserID,
		StoreID:             wallet.StoreID,
		Category:            m.Category,
		Type:                m.Type,
		Amount:              m.Amount,
		BalanceBefore:       before,
		BalanceAfter:        after,
		AffectsBalance:      m.Target,
		OrderID:             m.OrderID,
		PayoutID:            m.PayoutID,
		EscrowTransactionID: m.EscrowTransactionID,
		Status:              domain.TransactionStatusCompleted,
		Description:         m.Description,
		ActorID:             m.Actor.ID,
		CreatedAt:           now,
		CompletedAt:         now,
	}

	if err := s.walletRepo.UpdateBalances(ctx, tx, wallet); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update balances: %w", err))
	}
	if err := s.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create transaction: %w", err))
	}

	err = s.auditTx(ctx, tx, ports.AuditEntry{
		Actor:      m.Actor,
		Action:     mutationAction(m.Target, m.Type),
		TargetID:   wallet.ID.String(),
		TargetType: domain.TargetWallet,
		Details: map[string]any{
			"userId":        wallet.UserID,
			"storeId":       wallet.StoreID,
			"transactionId": txn.TransactionNumber,
			"category":      m.Category,
			"amount":        domain.FormatAmount(m.Amount),
			"description":   m.Description,
			"newBalance":    domain.FormatAmount(after),
		},
	})
	if err != nil {
		return nil, err
	}

	result := &ports.LedgerResult{Wallet: wallet, Transaction: txn}
	if m.Target == domain.BalanceWallet && m.Type == domain.TransactionTypeDebit && wallet.IsLowBalance() {
		result.LowBalance = true
		s.log.Warn().
			Str("wallet", wallet.Key().String()).
			Int64("balance", wallet.Balance).
			Int64("threshold", wallet.LowBalanceThreshold).
			Msg("wallet balance below threshold")
	}
	return result, nil
}

// applyToWallet mutates wallet in memory and returns the targeted balance before and after.
func (s *LedgerServiceImpl) applyToWallet(w *domain.Wallet, m ports.Mutation, now time.Time) (int64, int64, error) {
	var before, after int64

	switch m.Target {
	case domain.BalanceWallet:
		before = w.Balance
		if m.Type == domain.TransactionTypeCredit {
			after = before + m.Amount
			if m.Category == domain.CategoryTopUp {
				w.Stats.TotalTopUps += m.Amount
				w.Stats.LastTopUpAt = &now
			}
		} else {
			if m.Amount > before {
				return 0, 0, apperror.ErrInsufficientBalance()
			}
			after = before - m.Amount
			w.Stats.TotalSpent += m.Amount
		}
		w.Balance = after

	case domain.BalancePayout:
		before = w.PayoutBalance
		if m.Type == domain.TransactionTypeCredit {
			if m.FromPending && m.Amount > w.PendingPayoutBalance {
				return 0, 0, apperror.ErrInsufficientPayoutBalance()
			}
			after = before + m.Amount
			if m.FromPending {
				w.PendingPayoutBalance -= m.Amount
			}
			if m.CountEarnings {
				w.LifetimeEarnings += m.Amount
			}
		} else {
			if m.Amount > before || (m.FromPending && m.Amount > w.PendingPayoutBalance) {
				return 0, 0, apperror.ErrInsufficientPayoutBalance()
			}
			after = before - m.Amount
			if m.FromPending {
				w.PendingPayoutBalance -= m.Amount
			}
		}
		w.PayoutBalance = after

	default:
		return 0, 0, apperror.Validation(fmt.Sprintf("unsupported balance target %q", m.Target))
	}

	w.Stats.LastTransactionAt = &now
	w.UpdatedAt = now
	return before, after, nil
}

// HoldPendingTx adds amount to the pending payout balance. It records no wallet
// transaction: pending funds are not spendable and reach the ledger on release.
func (s *LedgerServiceImpl) HoldPendingTx(ctx context.Context, tx pgx.Tx, key domain.WalletKey, amount int64, actor domain.Actor, orderID string) (*domain.Wallet, error) {
	if amount < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	wallet, err := s.lockOrCreate(ctx, tx, key, "", actor)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return wallet, nil
	}

	now := s.now()
	wallet.PendingPayoutBalance += amount
	wallet.UpdatedAt = now
	if err := s.walletRepo.UpdateBalances(ctx, tx, wallet); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update pending balance: %w", err))
	}

	err = s.auditTx(ctx, tx, ports.AuditEntry{
		Actor:      actor,
		Action:     domain.AuditActionPendingHold,
		TargetID:   wallet.ID.String(),
		TargetType: domain.TargetWallet,
		Details: map[string]any{
			"orderId":              orderID,
			"amount":               domain.FormatAmount(amount),
			"pendingPayoutBalance": domain.FormatAmount(wallet.PendingPayoutBalance),
		},
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetBalance reports zeros for a wallet that does not exist yet.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, key domain.WalletKey) (*domain.Balances, error) {
	wallet, err := read(ctx, s.runner, "get_balance", func(ctx context.Context) (*domain.Wallet, error) {
		return s.walletRepo.GetByKey(ctx, key)
	})
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return &domain.Balances{Currency: s.settings.Currency}, nil
	}
	b := wallet.Balances()
	return &b, nil
}

func (s *LedgerServiceImpl) ListWallets(ctx context.Context, filter ports.WalletFilter) ([]domain.Wallet, error) {
	filter.Limit = clampLimit(filter.Limit, s.settings.ListLimit, s.settings.ListLimit)
	wallets, err := read(ctx, s.runner, "list_wallets", func(ctx context.Context) ([]domain.Wallet, error) {
		return s.walletRepo.List(ctx, filter)
	})
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if wallets == nil {
		wallets = []domain.Wallet{}
	}
	return wallets, nil
}

// ListTransactions returns one page, newest first. Next is set when more rows follow.
func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) (*ports.TransactionPage, error) {
	if params.UserID == "" {
		return nil, apperror.Validation("userId is required")
	}
	pageSize := clampLimit(params.Limit, defaultTransactionPage, maxTransactionPage)
	params.Limit = pageSize + 1

	txns, err := read(ctx, s.runner, "list_transactions", func(ctx context.Context) ([]domain.WalletTransaction, error) {
		return s.txRepo.List(ctx, params)
	})
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	page := &ports.TransactionPage{Transactions: txns}
	if len(txns) > pageSize {
		page.Transactions = txns[:pageSize]
		last := page.Transactions[pageSize-1]
		page.Next = &ports.TransactionCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	if page.Transactions == nil {
		page.Transactions = []domain.WalletTransaction{}
	}
	return page, nil
}

// UpdatePayoutSettings merges the given settings into the wallet. Bank account
// numbers are sealed before they reach storage.
func (s *LedgerServiceImpl) UpdatePayoutSettings(ctx context.Context, req ports.PayoutSettingsUpdate) (*domain.Wallet, error) {
	if err := validateSettingsUpdate(req); err != nil {
		return nil, err
	}

	var bank *domain.BankAccount
	if req.BankAccount != nil {
		sealed, err := s.sealBankAccount(*req.BankAccount)
		if err != nil {
			return nil, err
		}
		bank = sealed
	}

	var wallet *domain.Wallet
	err := s.runner.run(ctx, "ledger.payout_settings", func(tx pgx.Tx) error {
		w, err := s.walletRepo.GetByKeyForUpdate(ctx, tx, req.Key)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
		}
		if w == nil {
			return apperror.ErrWalletNotFound()
		}

		settings := domain.PayoutSettings{Schedule: domain.PayoutScheduleMonthly}
		if w.PayoutSettings != nil {
			settings = *w.PayoutSettings
		}
		if bank != nil {
			settings.BankAccount = bank
		}
		if req.PaypalEmail != nil {
			settings.PaypalEmail = strings.TrimSpace(*req.PaypalEmail)
		}
		if req.Schedule != nil {
			settings.Schedule = *req.Schedule
		}
		if req.MinimumPayoutAmount != nil {
			settings.MinimumPayoutAmount = *req.MinimumPayoutAmount
		}
		w.PayoutSettings = &settings
		if req.AutoRecharge != nil {
			w.AutoRecharge = *req.AutoRecharge
		}
		if req.LowBalanceThreshold != nil {
			w.LowBalanceThreshold = *req.LowBalanceThreshold
		}
		w.UpdatedAt = s.now()

		if err := s.walletRepo.UpdateSettings(ctx, tx, w); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("update settings: %w", err))
		}
		wallet = w

		return s.auditTx(ctx, tx, ports.AuditEntry{
			Actor:      req.Actor,
			Action:     domain.AuditActionPayoutSettingsUpdate,
			TargetID:   w.ID.String(),
			TargetType: domain.TargetWallet,
			Details: map[string]any{
				"payoutSchedule":      settings.Schedule,
				"minimumPayoutAmount": domain.FormatAmount(settings.MinimumPayoutAmount),
				"bankAccountChanged":  bank != nil,
				"paypalEmailChanged":  req.PaypalEmail != nil,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *LedgerServiceImpl) sealBankAccount(in ports.BankAccountInput) (*domain.BankAccount, error) {
	number := strings.ReplaceAll(strings.TrimSpace(in.AccountNumber), " ", "")
	if len(number) < 4 {
		return nil, apperror.Validation("bank account number must have at least 4 digits")
	}
	enc, err := s.encSvc.Encrypt(number)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}
	account := &domain.BankAccount{
		AccountHolderName: in.AccountHolderName,
		AccountNumberEnc:  enc,
		AccountLast4:      number[len(number)-4:],
		RoutingNumber:     in.RoutingNumber,
		AccountType:       in.AccountType,
		BankName:          in.BankName,
		Country:           in.Country,
		Currency:          in.Currency,
	}
	if account.AccountType == "" {
		account.AccountType = "checking"
	}
	if account.Country == "" {
		account.Country = "US"
	}
	if account.Currency == "" {
		account.Currency = s.settings.Currency
	}
	return account, nil
}

// lockOrCreate returns the locked wallet for key, inserting it first when absent.
func (s *LedgerServiceImpl) lockOrCreate(ctx context.Context, tx pgx.Tx, key domain.WalletKey, storeType domain.StoreType, actor domain.Actor) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByKeyForUpdate(ctx, tx, key)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	fresh := domain.NewWallet(key, storeType, s.settings.Currency, s.settings.LowBalanceThreshold, s.now())
	inserted, err := s.walletRepo.CreateIfAbsent(ctx, tx, fresh)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create wallet: %w", err))
	}
	if !inserted {
		// Lost the race to a concurrent insert; lock the winner's row.
		wallet, err = s.walletRepo.GetByKeyForUpdate(ctx, tx, key)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
		}
		if wallet == nil {
			return nil, apperror.ErrWalletNotFound()
		}
		return wallet, nil
	}

	s.log.Info().Str("wallet", key.String()).Str("wallet_id", fresh.ID.String()).Msg("wallet created")
	err = s.auditTx(ctx, tx, ports.AuditEntry{
		Actor:      actor,
		Action:     domain.AuditActionWalletCreate,
		TargetID:   fresh.ID.String(),
		TargetType: domain.TargetWallet,
		Details:    map[string]any{"userId": key.UserID, "storeId": key.StoreID, "storeType": fresh.StoreType},
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *LedgerServiceImpl) auditTx(ctx context.Context, tx pgx.Tx, entry ports.AuditEntry) error {
	return writeAuditTx(ctx, s.auditRepo, tx, entry, s.now())
}

// writeAuditTx stores an audit entry in the caller's transaction.
func writeAuditTx(ctx context.Context, repo ports.AuditRepository, tx pgx.Tx, entry ports.AuditEntry, now time.Time) error {
	log, err := newAuditLog(entry, now)
	if err != nil {
		return apperror.InternalError(err)
	}
	if err := repo.CreateTx(ctx, tx, log); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("write audit log: %w", err))
	}
	return nil
}

func validateMutation(m ports.Mutation) error {
	if m.Amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if m.Key.UserID == "" {
		return apperror.Validation("userId is required")
	}
	if !m.Category.Valid() {
		return apperror.Validation(fmt.Sprintf("invalid category %q", m.Category))
	}
	if strings.TrimSpace(m.Description) == "" {
		return apperror.Validation("description is required")
	}
	return nil
}

func validateSettingsUpdate(req ports.PayoutSettingsUpdate) error {
	if req.Schedule != nil && !req.Schedule.Valid() {
		return apperror.Validation(fmt.Sprintf("invalid payout schedule %q", *req.Schedule))
	}
	if req.MinimumPayoutAmount != nil && *req.MinimumPayoutAmount < 0 {
		return apperror.Validation("minimumPayoutAmount must not be negative")
	}
	if req.LowBalanceThreshold != nil && *req.LowBalanceThreshold < 0 {
		return apperror.Validation("lowBalanceThreshold must not be negative")
	}
	if ar := req.AutoRecharge; ar != nil && (ar.Amount < 0 || ar.TriggerThreshold < 0) {
		return apperror.Validation("autoRecharge amounts must not be negative")
	}
	return nil
}

func mutationAction(target domain.BalanceTarget, typ domain.TransactionType) domain.AuditAction {
	switch {
	case target == domain.BalancePayout && typ == domain.TransactionTypeCredit:
		return domain.AuditActionPayoutBalanceCredit
	case target == domain.BalancePayout:
		return domain.AuditActionPayoutBalanceDebit
	case typ == domain.TransactionTypeCredit:
		return domain.AuditActionWalletCredit
	default:
		return domain.AuditActionWalletDebit
	}
}

// outcomeOf classifies a failed operation for metrics.
func outcomeOf(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.IsDomain() {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
