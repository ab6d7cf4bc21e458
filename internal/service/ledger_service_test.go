package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc        *LedgerServiceImpl
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	auditRepo  *mocks.MockAuditRepository
	encSvc     *mocks.MockEncryptionService
	transactor *mocks.MockDBTransactor
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		auditRepo:  mocks.NewMockAuditRepository(ctrl),
		encSvc:     mocks.NewMockEncryptionService(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
	}
	d.svc = NewLedgerService(
		d.walletRepo, d.txRepo, d.auditRepo, d.encSvc, d.transactor,
		LedgerSettings{Currency: "USD"},
		RetryPolicy{MaxAttempts: 3},
		nil, newTestLogger(),
	)
	d.svc.now = fixedClock
	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil).AnyTimes()
	return d
}

func testWallet(balance, payout, pending int64) *domain.Wallet {
	w := domain.NewWallet(domain.WalletKey{UserID: "user-1", StoreID: "store-1"}, domain.StoreTypeConnected, "USD", 0, fixedNow.Add(-time.Hour))
	w.Balance = balance
	w.PayoutBalance = payout
	w.PendingPayoutBalance = pending
	return w
}

var testKey = domain.WalletKey{UserID: "user-1", StoreID: "store-1"}

func TestLedgerService_Credit_TopUp(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	wallet := testWallet(5000, 0, 0)

	d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, gomock.Any(), wallet).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
			assert.Equal(t, int64(7500), w.Balance)
			assert.Equal(t, int64(2500), w.Stats.TotalTopUps)
			require.NotNil(t, w.Stats.LastTopUpAt)
			require.NotNil(t, w.Stats.LastTransactionAt)
			return nil
		},
	)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.WalletTransaction) error {
			assert.Equal(t, domain.TransactionTypeCredit, txn.Type)
			assert.Equal(t, domain.CategoryTopUp, txn.Category)
			assert.Equal(t, int64(5000), txn.BalanceBefore)
			assert.Equal(t, int64(7500), txn.BalanceAfter)
			assert.Equal(t, domain.BalanceWallet, txn.AffectsBalance)
			assert.Equal(t, "admin-7", txn.ActorID)
			assert.True(t, txn.Consistent())
			assert.Regexp(t, `^TXN-[0-9A-F]{12}$`, txn.TransactionNumber)
			return nil
		},
	)
	d.auditRepo.EXPECT().CreateTx(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, log *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionWalletCredit, log.Action)
			assert.Equal(t, domain.TargetWallet, log.TargetType)
			assert.Contains(t, log.Details, `"newBalance":"75.00"`)
			return nil
		},
	)

	res, err := d.svc.Credit(ctx, ports.BalanceChange{
		Key:         testKey,
		Amount:      2500,
		Category:    domain.CategoryTopUp,
		Description: "Card top-up",
		Actor:       domain.Actor{ID: "admin-7"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7500), res.Wallet.Balance)
	assert.False(t, res.LowBalance)
}

func TestLedgerService_Credit_CreatesWallet(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(nil, nil)
	d.walletRepo.EXPECT().CreateIfAbsent(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet) (bool, error) {
			assert.Equal(t, "USD", w.Currency)
			assert.Equal(t, int64(0), w.Balance)
			return true, nil
		},
	)
	gomock.InOrder(
		d.auditRepo.EXPECT().CreateTx(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ pgx.Tx, log *domain.AuditLog) error {
				assert.Equal(t, domain.AuditActionWalletCreate, log.Action)
				return nil
			},
		),
		d.auditRepo.EXPECT().CreateTx(ctx, gomock.Any(), gomock.Any()).Return(nil),
	)
	d.walletRepo.EXPECT().UpdateBalances(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)

	res, err := d.svc.Credit(ctx, ports.BalanceChange{Key: testKey, Amount: 100, Description: "Goodwill"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Wallet.Balance)
	assert.Equal(t, domain.CategoryAdjustment, res.Transaction.Category)
}

func TestLedgerService_Credit_LostCreateRace(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	winner := testWallet(300, 0, 0)

	gomock.InOrder(
		d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(nil, nil),
		d.walletRepo.EXPECT().CreateIfAbsent(ctx, gomock.Any(), gomock.Any()).Return(false, nil),
		d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(winner, nil),
	)
	d.walletRepo.EXPECT().UpdateBalances(ctx, gomock.Any(), winner).Return(nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.auditRepo.EXPECT().CreateTx(ctx, gomock.Any(), gomock.Any()).Return(nil).Times(1)

	res, err := d.svc.Credit(ctx, ports.BalanceChange{Key: testKey, Amount: 200, Description: "Credit"})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, res.Wallet.ID)
	assert.Equal(t, int64(500), res.Wallet.Balance)
}

func TestLedgerService_Credit_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  ports.BalanceChange
		code string
	}{
		{"zero amount", ports.BalanceChange{Key: testKey, Amount: 0, Description: "x"}, "LED_001"},
		{"negative amount", ports.BalanceChange{Key: testKey, Amount: -5, Description: "x"}, "LED_001"},
		{"missing user", ports.BalanceChange{Amount: 5, Description: "x"}, "REQ_001"},
		{"blank description", ports.BalanceChange{Key: testKey, Amount: 5, Description: "  "}, "REQ_001"},
		{"bad category", ports.BalanceChange{Key: testKey, Amount: 5, Description: "x", Category: "bonus"}, "REQ_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupLedgerService(t)
			_, err := d.svc.Credit(context.Background(), tt.req)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestLedgerService_Debit_Success_LowBalance(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	wallet := testWallet(5000, 0, 0)
	wallet.LowBalanceThreshold = 2000

	d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, gomock.Any(), wallet).Return(nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.auditRepo.EXPECT().CreateTx(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, log *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionWalletDebit, log.Action)
			return nil
		},
	)

	res, err := d.svc.Debit(ctx, ports.BalanceChange{
		Key:         testKey,
		Amount:      3500,
		Category:    domain.CategoryFulfillment,
		Description: "Fulfillment for order-9",
		OrderID:     strPtr("order-9"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), res.Wallet.Balance)
	assert.Equal(t, int64(3500), res.Wallet.Stats.TotalSpent)
	assert.True(t, res.LowBalance)
	assert.Equal(t, "order-9", *res.Transaction.OrderID)
}

func TestLedgerService_Debit_InsufficientBalance(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(testWallet(1000, 0, 0), nil)
	d.walletRepo.EXPECT().UpdateBalances(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	d.txRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := d.svc.Debit(ctx, ports.BalanceChange{Key: testKey, Amount: 1001, Description: "Order"})
	assertAppError(t, err, "LED_002")
}

func TestLedgerService_Debit_WalletNotFound(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(nil, nil)
	d.walletRepo.EXPECT().CreateIfAbsent(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := d.svc.Debit(ctx, ports.BalanceChange{Key: testKey, Amount: 10, Description: "Order"})
	assertAppError(t, err, "LED_004")
}

func TestLedgerService_Debit_RetriesLockConflict(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	wallet := testWallet(1000, 0, 0)

	gomock.InOrder(
		d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).
			Return(nil, &pgconn.PgError{Code: "55P03"}),
		d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(wallet, nil),
	)
	d.walletRepo.EXPECT().UpdateBalances(ctx, gomock.Any(), wallet).Return(nil)
	d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
	d.auditRepo.EXPECT().CreateTx(ctx, gomock.Any(), gomock.Any()).Return(nil)

	res, err := d.svc.Debit(ctx, ports.BalanceChange{Key: testKey, Amount: 400, Description: "Order"})
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.Wallet.Balance)
}

func TestLedgerService_Debit_ConflictExhausted(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).
		Return(nil, &pgconn.PgError{Code: "40P01"}).Times(3)

	_, err := d.svc.Debit(ctx, ports.BalanceChange{Key: testKey, Amount: 400, Description: "Order"})
	assertAppError(t, err, "LED_005")
}

func TestLedgerService_Debit_RepoFailure(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(testWallet(1000, 0, 0), nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	_, err := d.svc.Debit(ctx, ports.BalanceChange{Key: testKey, Amount: 400, Description: "Order"})
	assertAppError(t, err, "SYS_001")
}

func TestLedgerService_PayoutBalance(t *testing.T) {
	t.Run("credit from pending rejects a shortfall", func(t *testing.T) {
		d := setupLedgerService(t)
		ctx := context.Background()
		wallet := testWallet(0, 100, 300)

		d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(wallet, nil)
		d.walletRepo.EXPECT().UpdateBalances(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		d.txRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := d.svc.CreditPayoutBalance(ctx, ports.BalanceChange{
			Key: testKey, Amount: 500, Description: "Release", FromPending: true,
		})
		assertAppError(t, err, "LED_003")
		assert.Equal(t, int64(100), wallet.PayoutBalance)
		assert.Equal(t, int64(300), wallet.PendingPayoutBalance)
	})

	t.Run("credit from pending moves the full amount", func(t *testing.T) {
		d := setupLedgerService(t)
		ctx := context.Background()
		wallet := testWallet(0, 100, 300)

		d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(wallet, nil)
		d.walletRepo.EXPECT().UpdateBalances(ctx, gomock.Any(), wallet).Return(nil)
		d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
		d.auditRepo.EXPECT().CreateTx(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ pgx.Tx, log *domain.AuditLog) error {
				assert.Equal(t, domain.AuditActionPayoutBalanceCredit, log.Action)
				return nil
			},
		)

		res, err := d.svc.CreditPayoutBalance(ctx, ports.BalanceChange{
			Key: testKey, Amount: 300, Description: "Release", FromPending: true,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(400), res.Wallet.PayoutBalance)
		assert.Equal(t, int64(0), res.Wallet.PendingPayoutBalance)
		assert.Equal(t, domain.BalancePayout, res.Transaction.AffectsBalance)
		assert.Equal(t, int64(0), res.Wallet.Balance)
	})

	t.Run("debit insufficient", func(t *testing.T) {
		d := setupLedgerService(t)
		ctx := context.Background()

		d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(testWallet(9999, 100, 0), nil)

		_, err := d.svc.DebitPayoutBalance(ctx, ports.BalanceChange{Key: testKey, Amount: 101, Description: "Payout"})
		assertAppError(t, err, "LED_003")
	})

	t.Run("debit from pending needs pending funds", func(t *testing.T) {
		d := setupLedgerService(t)
		ctx := context.Background()

		d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(testWallet(0, 500, 100), nil)

		_, err := d.svc.DebitPayoutBalance(ctx, ports.BalanceChange{
			Key: testKey, Amount: 200, Description: "Reversal", FromPending: true,
		})
		assertAppError(t, err, "LED_003")
	})

	t.Run("debit success", func(t *testing.T) {
		d := setupLedgerService(t)
		ctx := context.Background()
		wallet := testWallet(0, 500, 0)

		d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(wallet, nil)
		d.walletRepo.EXPECT().UpdateBalances(ctx, gomock.Any(), wallet).Return(nil)
		d.txRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(nil)
		d.auditRepo.EXPECT().CreateTx(ctx, gomock.Any(), gomock.Any()).Return(nil)

		res, err := d.svc.DebitPayoutBalance(ctx, ports.BalanceChange{Key: testKey, Amount: 200, Description: "Payout"})
		require.NoError(t, err)
		assert.Equal(t, int64(300), res.Wallet.PayoutBalance)
		assert.Equal(t, int64(500), res.Transaction.BalanceBefore)
		assert.Equal(t, int64(300), res.Transaction.BalanceAfter)
	})
}

func TestLedgerService_HoldPendingTx(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	wallet := testWallet(0, 0, 100)

	d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalances(ctx, gomock.Any(), wallet).Return(nil)
	d.txRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	d.auditRepo.EXPECT().CreateTx(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, log *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionPendingHold, log.Action)
			assert.Contains(t, log.Details, `"orderId":"order-1"`)
			return nil
		},
	)

	w, err := d.svc.HoldPendingTx(ctx, &mockTx{}, testKey, 3000, domain.Actor{ID: "system"}, "order-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3100), w.PendingPayoutBalance)
	assert.Equal(t, int64(0), w.PayoutBalance)
}

func TestLedgerService_GetBalance(t *testing.T) {
	t.Run("missing wallet reports zeros", func(t *testing.T) {
		d := setupLedgerService(t)
		d.walletRepo.EXPECT().GetByKey(gomock.Any(), testKey).Return(nil, nil)

		b, err := d.svc.GetBalance(context.Background(), testKey)
		require.NoError(t, err)
		assert.Equal(t, domain.Balances{Currency: "USD"}, *b)
	})

	t.Run("existing wallet", func(t *testing.T) {
		d := setupLedgerService(t)
		w := testWallet(1, 2, 3)
		w.LifetimeEarnings = 4
		d.walletRepo.EXPECT().GetByKey(gomock.Any(), testKey).Return(w, nil)

		b, err := d.svc.GetBalance(context.Background(), testKey)
		require.NoError(t, err)
		assert.Equal(t, int64(1), b.Balance)
		assert.Equal(t, int64(2), b.PayoutBalance)
		assert.Equal(t, int64(3), b.PendingPayoutBalance)
		assert.Equal(t, int64(4), b.LifetimeEarnings)
	})
}

func TestLedgerService_GetBalance_RetriesTransientErrors(t *testing.T) {
	t.Run("conflict then success", func(t *testing.T) {
		d := setupLedgerService(t)
		gomock.InOrder(
			d.walletRepo.EXPECT().GetByKey(gomock.Any(), testKey).Return(nil, &pgconn.PgError{Code: "40001"}),
			d.walletRepo.EXPECT().GetByKey(gomock.Any(), testKey).Return(testWallet(700, 0, 0), nil),
		)

		b, err := d.svc.GetBalance(context.Background(), testKey)
		require.NoError(t, err)
		assert.Equal(t, int64(700), b.Balance)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		d := setupLedgerService(t)
		d.walletRepo.EXPECT().GetByKey(gomock.Any(), testKey).Return(nil, &pgconn.PgError{Code: "40P01"}).Times(3)

		_, err := d.svc.GetBalance(context.Background(), testKey)
		assertAppError(t, err, "SYS_001")
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		d := setupLedgerService(t)
		d.walletRepo.EXPECT().GetByKey(gomock.Any(), testKey).Return(nil, errors.New("syntax error")).Times(1)

		_, err := d.svc.GetBalance(context.Background(), testKey)
		assertAppError(t, err, "SYS_001")
	})
}

func TestLedgerService_ListTransactions_Pagination(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()

	txns := make([]domain.WalletTransaction, 3)
	for i := range txns {
		txns[i] = domain.WalletTransaction{ID: uuid.New(), CreatedAt: fixedNow.Add(-time.Duration(i) * time.Minute)}
	}
	d.txRepo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.TransactionListParams) ([]domain.WalletTransaction, error) {
			assert.Equal(t, 3, p.Limit)
			return txns, nil
		},
	)

	page, err := d.svc.ListTransactions(ctx, ports.TransactionListParams{UserID: "user-1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 2)
	require.NotNil(t, page.Next)
	assert.Equal(t, txns[1].ID, page.Next.ID)
	assert.Equal(t, txns[1].CreatedAt, page.Next.CreatedAt)
}

func TestLedgerService_ListTransactions_LastPage(t *testing.T) {
	d := setupLedgerService(t)
	d.txRepo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)

	page, err := d.svc.ListTransactions(context.Background(), ports.TransactionListParams{UserID: "user-1"})
	require.NoError(t, err)
	assert.NotNil(t, page.Transactions)
	assert.Empty(t, page.Transactions)
	assert.Nil(t, page.Next)
}

func TestLedgerService_UpdatePayoutSettings(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	wallet := testWallet(0, 0, 0)
	schedule := domain.PayoutScheduleOnDemand
	minimum := int64(5000)

	d.encSvc.EXPECT().Encrypt("000123456789").Return("sealed", nil)
	d.walletRepo.EXPECT().GetByKeyForUpdate(ctx, gomock.Any(), testKey).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateSettings(ctx, gomock.Any(), wallet).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
			require.NotNil(t, w.PayoutSettings)
			bank := w.PayoutSettings.BankAccount
			require.NotNil(t, bank)
			assert.Equal(t, "sealed", bank.AccountNumberEnc)
			assert.Equal(t, "6789", bank.AccountLast4)
			assert.Equal(t, "checking", bank.AccountType)
			assert.Equal(t, "US", bank.Country)
			assert.Equal(t, domain.PayoutScheduleOnDemand, w.PayoutSettings.Schedule)
			assert.Equal(t, int64(5000), w.PayoutSettings.MinimumPayoutAmount)
			return nil
		},
	)
	d.auditRepo.EXPECT().CreateTx(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, log *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionPayoutSettingsUpdate, log.Action)
			assert.NotContains(t, log.Details, "000123456789")
			return nil
		},
	)

	w, err := d.svc.UpdatePayoutSettings(ctx, ports.PayoutSettingsUpdate{
		Key: testKey,
		BankAccount: &ports.BankAccountInput{
			AccountHolderName: "Ada Store",
			AccountNumber:     "0001 2345 6789",
			RoutingNumber:     "110000000",
		},
		Schedule:            &schedule,
		MinimumPayoutAmount: &minimum,
	})
	require.NoError(t, err)
	assert.True(t, w.HasDestination(domain.PayoutMethodBankTransfer))
	assert.False(t, w.HasDestination(domain.PayoutMethodPaypal))
}

func TestLedgerService_UpdatePayoutSettings_Invalid(t *testing.T) {
	d := setupLedgerService(t)
	bad := domain.PayoutSchedule("weekly")

	_, err := d.svc.UpdatePayoutSettings(context.Background(), ports.PayoutSettingsUpdate{Key: testKey, Schedule: &bad})
	assertAppError(t, err, "REQ_001")

	_, err = d.svc.UpdatePayoutSettings(context.Background(), ports.PayoutSettingsUpdate{
		Key:         testKey,
		BankAccount: &ports.BankAccountInput{AccountNumber: "12"},
	})
	assertAppError(t, err, "REQ_001")
}
