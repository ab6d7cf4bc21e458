package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerHarness struct {
	store   *memStore
	ledger  *LedgerServiceImpl
	escrows *EscrowServiceImpl
	payouts *PayoutServiceImpl
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()
	store := newMemStore()
	box, err := NewSecretBox(testEncryptionKey)
	require.NoError(t, err)

	retry := RetryPolicy{MaxAttempts: 3}
	log := newTestLogger()
	wallets := memWalletRepo{store}
	escrowRepo := memEscrowRepo{store}
	audit := memAuditRepo{store}

	ledger := NewLedgerService(wallets, memTransactionRepo{store}, audit, box, store,
		LedgerSettings{Currency: "USD"}, retry, nil, log)
	return &ledgerHarness{
		store:   store,
		ledger:  ledger,
		escrows: NewEscrowService(escrowRepo, audit, ledger, store, 0, retry, nil, log),
		payouts: NewPayoutService(memPayoutRepo{store}, wallets, escrowRepo, audit, ledger, store,
			PayoutOptions{MinimumPayout: 2500}, retry, nil, log),
	}
}

func (h *ledgerHarness) balances(t *testing.T, key domain.WalletKey) domain.Balances {
	t.Helper()
	b, err := h.ledger.GetBalance(context.Background(), key)
	require.NoError(t, err)
	return *b
}

// sumOf replays the stored transactions for target.
func sumOf(txns []domain.WalletTransaction, target domain.BalanceTarget) int64 {
	var total int64
	for _, txn := range txns {
		if txn.AffectsBalance != target {
			continue
		}
		if txn.Type == domain.TransactionTypeCredit {
			total += txn.Amount
		} else {
			total -= txn.Amount
		}
	}
	return total
}

func change(key domain.WalletKey, amount int64, category domain.TransactionCategory) ports.BalanceChange {
	return ports.BalanceChange{
		Key:         key,
		Amount:      amount,
		Category:    category,
		Description: fmt.Sprintf("%s %d", category, amount),
		Actor:       domain.Actor{ID: "system"},
	}
}

func TestLedger_TopUpThenDebits(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	key := domain.WalletKey{UserID: "user-1"}

	res, err := h.ledger.Credit(ctx, change(key, 5000, domain.CategoryTopUp))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Wallet.Balance)

	res, err = h.ledger.Debit(ctx, change(key, 3000, domain.CategoryFulfillment))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.Wallet.Balance)
	assert.Equal(t, int64(5000), res.Transaction.BalanceBefore)
	assert.Equal(t, int64(2000), res.Transaction.BalanceAfter)

	_, err = h.ledger.Debit(ctx, change(key, 2500, domain.CategoryFulfillment))
	assertAppError(t, err, "LED_002")

	assert.Equal(t, int64(2000), h.balances(t, key).Balance)
	txns := h.store.transactions(key)
	assert.Len(t, txns, 2)
	assert.Equal(t, int64(2000), sumOf(txns, domain.BalanceWallet))
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	key := domain.WalletKey{UserID: "user-1", StoreID: "store-1"}

	_, err := h.ledger.Credit(ctx, change(key, 1000, domain.CategoryTopUp))
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.Debit(ctx, change(key, 30, domain.CategoryFulfillment))
			mu.Lock()
			defer mu.Unlock()
			var appErr *apperror.AppError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &appErr) && appErr.Code == "LED_002":
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 33, succeeded)
	assert.Equal(t, workers-33, rejected)
	assert.Equal(t, int64(10), h.balances(t, key).Balance)

	txns := h.store.transactions(key)
	assert.Len(t, txns, 34)
	assert.Equal(t, int64(10), sumOf(txns, domain.BalanceWallet))
	for _, txn := range txns {
		assert.True(t, txn.Consistent(), "transaction %s", txn.TransactionNumber)
		assert.GreaterOrEqual(t, txn.BalanceAfter, int64(0))
	}
}

func TestLedger_ConcurrentCreditsCreateOneWallet(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	key := domain.WalletKey{UserID: "user-2", StoreID: "store-9"}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.Credit(ctx, change(key, 7, domain.CategoryAdjustment))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	wallets, err := h.ledger.ListWallets(ctx, ports.WalletFilter{UserID: "user-2"})
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, int64(280), wallets[0].Balance)
	assert.Equal(t, int64(280), sumOf(h.store.transactions(key), domain.BalanceWallet))
}

func TestLedger_EscrowReleaseScenario(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	key := domain.WalletKey{UserID: "user-1", StoreID: "store-1"}

	escrow, err := h.escrows.Create(ctx, ports.CreateEscrowRequest{
		OrderID: "order-1", StoreID: "store-1", UserID: "user-1",
		CustomerPaymentAmount: 10000, FulfillmentCost: 6000, PlatformFee: 1000, StorePayout: 3000,
		Actor: domain.Actor{ID: "system"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), h.balances(t, key).PendingPayoutBalance)

	var wg sync.WaitGroup
	results := make([]*ports.ReleaseResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.escrows.Release(ctx, escrow.ID, domain.Actor{ID: "admin-1"})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	credited := 0
	for _, res := range results {
		require.NotNil(t, res)
		if !res.AlreadyReleased {
			credited++
		}
	}
	assert.Equal(t, 1, credited)

	b := h.balances(t, key)
	assert.Equal(t, int64(3000), b.PayoutBalance)
	assert.Equal(t, int64(0), b.PendingPayoutBalance)
	assert.Equal(t, int64(3000), b.LifetimeEarnings)
	assert.Equal(t, int64(0), b.Balance)

	stored := h.store.escrow(escrow.ID)
	assert.Equal(t, domain.EscrowReleased, stored.PayoutStatus)
	assert.NotNil(t, stored.ReleasedAt)

	txns := h.store.transactions(key)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.CategoryCustomerPayment, txns[0].Category)
	assert.Equal(t, domain.BalancePayout, txns[0].AffectsBalance)
	assert.Equal(t, "Payout from order order-1", txns[0].Description)
}

func TestLedger_EscrowSplitMismatchLeavesNoState(t *testing.T) {
	h := newLedgerHarness(t)

	_, err := h.escrows.Create(context.Background(), ports.CreateEscrowRequest{
		OrderID: "order-2", StoreID: "store-1", UserID: "user-1",
		CustomerPaymentAmount: 10000, FulfillmentCost: 4000, PlatformFee: 2000, StorePayout: 3000,
	})
	assertAppError(t, err, "ESC_002")
	assert.Empty(t, h.store.escrows)
	assert.Empty(t, h.store.wallets)
	assert.Zero(t, h.store.commits)
}

func TestLedger_DuplicateOrderRollsBackHold(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	key := domain.WalletKey{UserID: "user-1", StoreID: "store-1"}
	req := ports.CreateEscrowRequest{
		OrderID: "order-3", StoreID: "store-1", UserID: "user-1",
		CustomerPaymentAmount: 5000, FulfillmentCost: 2000, PlatformFee: 500, StorePayout: 2500,
	}

	_, err := h.escrows.Create(ctx, req)
	require.NoError(t, err)
	_, err = h.escrows.Create(ctx, req)
	assertAppError(t, err, "ESC_001")

	assert.Equal(t, int64(2500), h.balances(t, key).PendingPayoutBalance)
}

func TestLedger_PayoutLifecycle(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	key := domain.WalletKey{UserID: "user-1", StoreID: "store-1"}

	escrow, err := h.escrows.Create(ctx, ports.CreateEscrowRequest{
		OrderID: "order-10", StoreID: "store-1", UserID: "user-1",
		CustomerPaymentAmount: 10000, FulfillmentCost: 6000, PlatformFee: 1000, StorePayout: 3000,
	})
	require.NoError(t, err)
	_, err = h.escrows.Release(ctx, escrow.ID, domain.Actor{ID: "system"})
	require.NoError(t, err)

	_, err = h.payouts.Request(ctx, ports.PayoutRequest{Key: key, Amount: 3000, Method: domain.PayoutMethodPaypal})
	assertAppError(t, err, "PAY_005")

	email := "store@example.com"
	_, err = h.ledger.UpdatePayoutSettings(ctx, ports.PayoutSettingsUpdate{Key: key, PaypalEmail: &email})
	require.NoError(t, err)

	_, err = h.payouts.Request(ctx, ports.PayoutRequest{Key: key, Amount: 3001, Method: domain.PayoutMethodPaypal})
	assertAppError(t, err, "LED_003")
	assert.Empty(t, h.store.payouts)

	res, err := h.payouts.Request(ctx, ports.PayoutRequest{Key: key, Amount: 3000, Method: domain.PayoutMethodPaypal})
	require.NoError(t, err)
	assert.Equal(t, []string{"order-10"}, res.Payout.OrderIDs)
	assert.Equal(t, "store@example.com", res.Payout.Destination.PaypalEmail)
	assert.Equal(t, int64(0), h.balances(t, key).PayoutBalance)

	for _, status := range []domain.PayoutStatus{domain.PayoutStatusProcessing, domain.PayoutStatusCompleted} {
		_, err = h.payouts.UpdateStatus(ctx, ports.PayoutStatusUpdate{Ref: res.Payout.PayoutNumber, Status: status})
		require.NoError(t, err)
	}

	_, err = h.payouts.UpdateStatus(ctx, ports.PayoutStatusUpdate{Ref: res.Payout.ID.String(), Status: domain.PayoutStatusPending})
	assertAppError(t, err, "PAY_003")

	stored := h.store.payout(res.Payout.ID)
	assert.Equal(t, domain.PayoutStatusCompleted, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, domain.EscrowPaidOut, h.store.escrow(escrow.ID).PayoutStatus)

	w, ok := h.store.wallet(key)
	require.True(t, ok)
	assert.Equal(t, int64(3000), w.Stats.TotalPayoutsReceived)
	assert.Equal(t, int64(0), sumOf(h.store.transactions(key), domain.BalancePayout))
}

func TestLedger_PartialPayoutOnlyClaimsCoveredEscrows(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	key := domain.WalletKey{UserID: "user-1", StoreID: "store-1"}

	escrowIDs := map[string]uuid.UUID{}
	for _, orderID := range []string{"order-a", "order-b"} {
		e, err := h.escrows.Create(ctx, ports.CreateEscrowRequest{
			OrderID: orderID, StoreID: "store-1", UserID: "user-1",
			CustomerPaymentAmount: 12000, FulfillmentCost: 1000, PlatformFee: 1000, StorePayout: 10000,
		})
		require.NoError(t, err)
		_, err = h.escrows.Release(ctx, e.ID, domain.Actor{ID: "system"})
		require.NoError(t, err)
		escrowIDs[orderID] = e.ID
	}
	email := "store@example.com"
	_, err := h.ledger.UpdatePayoutSettings(ctx, ports.PayoutSettingsUpdate{Key: key, PaypalEmail: &email})
	require.NoError(t, err)

	complete := func(p *domain.Payout) {
		for _, status := range []domain.PayoutStatus{domain.PayoutStatusProcessing, domain.PayoutStatusCompleted} {
			_, err := h.payouts.UpdateStatus(ctx, ports.PayoutStatusUpdate{Ref: p.ID.String(), Status: status})
			require.NoError(t, err)
		}
	}

	small, err := h.payouts.Request(ctx, ports.PayoutRequest{Key: key, Amount: 2500, Method: domain.PayoutMethodPaypal})
	require.NoError(t, err)
	assert.Empty(t, small.Payout.OrderIDs)
	complete(small.Payout)

	assert.Equal(t, int64(17500), h.balances(t, key).PayoutBalance)
	assert.Equal(t, domain.EscrowReleased, h.store.escrow(escrowIDs["order-a"]).PayoutStatus)
	assert.Equal(t, domain.EscrowReleased, h.store.escrow(escrowIDs["order-b"]).PayoutStatus)

	large, err := h.payouts.Request(ctx, ports.PayoutRequest{Key: key, Amount: 15000, Method: domain.PayoutMethodPaypal})
	require.NoError(t, err)
	assert.Equal(t, []string{"order-a"}, large.Payout.OrderIDs)
	complete(large.Payout)

	assert.Equal(t, int64(2500), h.balances(t, key).PayoutBalance)
	assert.Equal(t, domain.EscrowPaidOut, h.store.escrow(escrowIDs["order-a"]).PayoutStatus)
	b := h.store.escrow(escrowIDs["order-b"])
	assert.Equal(t, domain.EscrowReleased, b.PayoutStatus)
	assert.Nil(t, b.PayoutID)
}

func TestLedger_FailedPayoutReturnsFunds(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	key := domain.WalletKey{UserID: "user-1", StoreID: "store-1"}

	escrow, err := h.escrows.Create(ctx, ports.CreateEscrowRequest{
		OrderID: "order-20", StoreID: "store-1", UserID: "user-1",
		CustomerPaymentAmount: 9000, FulfillmentCost: 3000, PlatformFee: 1000, StorePayout: 5000,
	})
	require.NoError(t, err)
	_, err = h.escrows.Release(ctx, escrow.ID, domain.Actor{ID: "system"})
	require.NoError(t, err)

	_, err = h.ledger.UpdatePayoutSettings(ctx, ports.PayoutSettingsUpdate{
		Key:         key,
		BankAccount: &ports.BankAccountInput{AccountHolderName: "Store", AccountNumber: "123456789"},
	})
	require.NoError(t, err)
	w, _ := h.store.wallet(key)
	require.NotNil(t, w.PayoutSettings.BankAccount)
	assert.NotContains(t, w.PayoutSettings.BankAccount.AccountNumberEnc, "123456789")
	assert.Equal(t, "6789", w.PayoutSettings.BankAccount.AccountLast4)

	res, err := h.payouts.Request(ctx, ports.PayoutRequest{Key: key, Amount: 4000, Method: domain.PayoutMethodBankTransfer})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), h.balances(t, key).PayoutBalance)

	_, err = h.payouts.UpdateStatus(ctx, ports.PayoutStatusUpdate{Ref: res.Payout.PayoutNumber, Status: domain.PayoutStatusFailed})
	assertAppError(t, err, "PAY_004")

	_, err = h.payouts.UpdateStatus(ctx, ports.PayoutStatusUpdate{
		Ref: res.Payout.PayoutNumber, Status: domain.PayoutStatusFailed, FailureReason: "account closed",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), h.balances(t, key).PayoutBalance)
	assert.Nil(t, h.store.escrow(escrow.ID).PayoutID)
	assert.Equal(t, domain.EscrowReleased, h.store.escrow(escrow.ID).PayoutStatus)
	assert.Equal(t, int64(5000), sumOf(h.store.transactions(key), domain.BalancePayout))

	// Failing again is a no-op and credits nothing.
	_, err = h.payouts.UpdateStatus(ctx, ports.PayoutStatusUpdate{
		Ref: res.Payout.PayoutNumber, Status: domain.PayoutStatusFailed, FailureReason: "account closed",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), h.balances(t, key).PayoutBalance)
}

func TestLedger_AuditTrailFollowsCommits(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()
	key := domain.WalletKey{UserID: "user-5"}

	_, err := h.ledger.Credit(ctx, change(key, 100, domain.CategoryTopUp))
	require.NoError(t, err)
	_, err = h.ledger.Debit(ctx, change(key, 500, domain.CategoryFulfillment))
	assertAppError(t, err, "LED_002")

	stats, err := memAuditRepo{h.store}.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ByAction[domain.AuditActionWalletCreate])
	assert.Equal(t, int64(1), stats.ByAction[domain.AuditActionWalletCredit])
	assert.Zero(t, stats.ByAction[domain.AuditActionWalletDebit])
}
