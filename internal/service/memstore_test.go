package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore is an in-memory ledger store with row locks held until commit,
// mirroring SELECT ... FOR UPDATE semantics closely enough to drive the
// services concurrently.
type memStore struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	wallets map[domain.WalletKey]domain.Wallet
	txns    []domain.WalletTransaction
	escrows map[uuid.UUID]domain.EscrowTransaction
	payouts map[uuid.UUID]domain.Payout
	audits  []domain.AuditLog
	commits int
}

func newMemStore() *memStore {
	return &memStore{
		locks:   make(map[string]*sync.Mutex),
		wallets: make(map[domain.WalletKey]domain.Wallet),
		escrows: make(map[uuid.UUID]domain.EscrowTransaction),
		payouts: make(map[uuid.UUID]domain.Payout),
	}
}

func (s *memStore) Begin(_ context.Context) (pgx.Tx, error) {
	return &memTx{
		store:   s,
		held:    make(map[string]*sync.Mutex),
		wallets: make(map[domain.WalletKey]domain.Wallet),
		escrows: make(map[uuid.UUID]domain.EscrowTransaction),
		payouts: make(map[uuid.UUID]domain.Payout),
	}, nil
}

func (s *memStore) rowLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

func (s *memStore) wallet(key domain.WalletKey) (domain.Wallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[key]
	return w, ok
}

func (s *memStore) escrow(id uuid.UUID) domain.EscrowTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.escrows[id]
}

func (s *memStore) payout(id uuid.UUID) domain.Payout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payouts[id]
}

func (s *memStore) transactions(key domain.WalletKey) []domain.WalletTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WalletTransaction
	for _, t := range s.txns {
		if t.UserID == key.UserID && t.StoreID == key.StoreID {
			out = append(out, t)
		}
	}
	return out
}

// memTx stages writes and applies them atomically on Commit.
type memTx struct {
	pgx.Tx
	store   *memStore
	held    map[string]*sync.Mutex
	done    bool
	wallets map[domain.WalletKey]domain.Wallet
	escrows map[uuid.UUID]domain.EscrowTransaction
	payouts map[uuid.UUID]domain.Payout
	txns    []domain.WalletTransaction
	audits  []domain.AuditLog
}

func (t *memTx) lock(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	m := t.store.rowLock(key)
	m.Lock()
	t.held[key] = m
}

func (t *memTx) tryLock(key string) bool {
	if _, ok := t.held[key]; ok {
		return true
	}
	m := t.store.rowLock(key)
	if !m.TryLock() {
		return false
	}
	t.held[key] = m
	return true
}

func (t *memTx) release() {
	for _, m := range t.held {
		m.Unlock()
	}
	t.held = nil
	t.done = true
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	s := t.store
	s.mu.Lock()
	for k, w := range t.wallets {
		s.wallets[k] = w
	}
	for id, e := range t.escrows {
		s.escrows[id] = e
	}
	for id, p := range t.payouts {
		s.payouts[id] = p
	}
	s.txns = append(s.txns, t.txns...)
	s.audits = append(s.audits, t.audits...)
	s.commits++
	s.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *memTx) readWallet(key domain.WalletKey) (domain.Wallet, bool) {
	if w, ok := t.wallets[key]; ok {
		return w, true
	}
	return t.store.wallet(key)
}

func (t *memTx) readEscrow(id uuid.UUID) (domain.EscrowTransaction, bool) {
	if e, ok := t.escrows[id]; ok {
		return e, true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	e, ok := t.store.escrows[id]
	return e, ok
}

// escrowSnapshot merges committed escrows with this transaction's staged ones.
func (t *memTx) escrowSnapshot() []domain.EscrowTransaction {
	t.store.mu.Lock()
	merged := make(map[uuid.UUID]domain.EscrowTransaction, len(t.store.escrows))
	for id, e := range t.store.escrows {
		merged[id] = e
	}
	t.store.mu.Unlock()
	for id, e := range t.escrows {
		merged[id] = e
	}
	out := make([]domain.EscrowTransaction, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

func asMemTx(tx pgx.Tx) *memTx { return tx.(*memTx) }

// --- repositories ---

type memWalletRepo struct{ s *memStore }

func (r memWalletRepo) CreateIfAbsent(_ context.Context, tx pgx.Tx, w *domain.Wallet) (bool, error) {
	t := asMemTx(tx)
	t.lock("wallet:" + w.Key().String())
	if _, ok := t.readWallet(w.Key()); ok {
		return false, nil
	}
	t.wallets[w.Key()] = *w
	return true, nil
}

func (r memWalletRepo) GetByKey(_ context.Context, key domain.WalletKey) (*domain.Wallet, error) {
	w, ok := r.s.wallet(key)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r memWalletRepo) GetByKeyForUpdate(_ context.Context, tx pgx.Tx, key domain.WalletKey) (*domain.Wallet, error) {
	t := asMemTx(tx)
	t.lock("wallet:" + key.String())
	w, ok := t.readWallet(key)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r memWalletRepo) List(_ context.Context, filter ports.WalletFilter) ([]domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Wallet
	for _, w := range r.s.wallets {
		if filter.UserID != "" && w.UserID != filter.UserID {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (r memWalletRepo) UpdateBalances(_ context.Context, tx pgx.Tx, w *domain.Wallet) error {
	asMemTx(tx).wallets[w.Key()] = *w
	return nil
}

func (r memWalletRepo) UpdateSettings(_ context.Context, tx pgx.Tx, w *domain.Wallet) error {
	asMemTx(tx).wallets[w.Key()] = *w
	return nil
}

type memTransactionRepo struct{ s *memStore }

func (r memTransactionRepo) Create(_ context.Context, tx pgx.Tx, txn *domain.WalletTransaction) error {
	t := asMemTx(tx)
	t.txns = append(t.txns, *txn)
	return nil
}

func (r memTransactionRepo) List(_ context.Context, p ports.TransactionListParams) ([]domain.WalletTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.WalletTransaction
	for i := len(r.s.txns) - 1; i >= 0; i-- {
		if r.s.txns[i].UserID == p.UserID {
			out = append(out, r.s.txns[i])
		}
	}
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

type memAuditRepo struct{ s *memStore }

func (r memAuditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, *log)
	return nil
}

func (r memAuditRepo) CreateTx(_ context.Context, tx pgx.Tx, log *domain.AuditLog) error {
	t := asMemTx(tx)
	t.audits = append(t.audits, *log)
	return nil
}

func (r memAuditRepo) List(_ context.Context, _ ports.AuditFilter) ([]domain.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.AuditLog(nil), r.s.audits...), nil
}

func (r memAuditRepo) Stats(_ context.Context) (*domain.AuditStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := &domain.AuditStats{TotalLogs: int64(len(r.s.audits)), ByAction: map[domain.AuditAction]int64{}}
	for _, a := range r.s.audits {
		stats.ByAction[a.Action]++
	}
	return stats, nil
}

type memEscrowRepo struct{ s *memStore }

func (r memEscrowRepo) Create(_ context.Context, tx pgx.Tx, e *domain.EscrowTransaction) error {
	t := asMemTx(tx)
	t.lock("order:" + e.OrderID)
	for _, existing := range t.escrowSnapshot() {
		if existing.OrderID == e.OrderID {
			return ports.ErrDuplicate
		}
	}
	t.escrows[e.ID] = *e
	return nil
}

func (r memEscrowRepo) GetByOrderID(_ context.Context, orderID string) (*domain.EscrowTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.escrows {
		if e.OrderID == orderID {
			return &e, nil
		}
	}
	return nil, nil
}

func (r memEscrowRepo) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.EscrowTransaction, error) {
	t := asMemTx(tx)
	t.lock("escrow:" + id.String())
	e, ok := t.readEscrow(id)
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r memEscrowRepo) List(_ context.Context, _ ports.EscrowFilter) ([]domain.EscrowTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.EscrowTransaction, 0, len(r.s.escrows))
	for _, e := range r.s.escrows {
		out = append(out, e)
	}
	return out, nil
}

func (r memEscrowRepo) Update(_ context.Context, tx pgx.Tx, e *domain.EscrowTransaction) error {
	asMemTx(tx).escrows[e.ID] = *e
	return nil
}

func (r memEscrowRepo) AssignToPayout(_ context.Context, tx pgx.Tx, key domain.WalletKey, payoutID uuid.UUID, amount int64) ([]string, error) {
	t := asMemTx(tx)
	orderIDs := []string{}
	var covered int64
	for _, e := range t.escrowSnapshot() {
		if e.WalletKey() != key || e.PayoutStatus != domain.EscrowReleased || e.PayoutID != nil {
			continue
		}
		if !t.tryLock("escrow:" + e.ID.String()) {
			continue
		}
		current, _ := t.readEscrow(e.ID)
		if current.PayoutStatus != domain.EscrowReleased || current.PayoutID != nil {
			continue
		}
		if covered+current.StorePayout > amount {
			break
		}
		covered += current.StorePayout
		id := payoutID
		current.PayoutID = &id
		t.escrows[current.ID] = current
		orderIDs = append(orderIDs, current.OrderID)
	}
	return orderIDs, nil
}

func (r memEscrowRepo) MarkPaidOut(_ context.Context, tx pgx.Tx, payoutID uuid.UUID, at time.Time) (int64, error) {
	return r.forPayout(tx, payoutID, func(e *domain.EscrowTransaction) {
		paidAt := at
		e.PayoutStatus = domain.EscrowPaidOut
		e.PaidOutAt = &paidAt
		e.UpdatedAt = at
	})
}

func (r memEscrowRepo) DetachFromPayout(_ context.Context, tx pgx.Tx, payoutID uuid.UUID) (int64, error) {
	return r.forPayout(tx, payoutID, func(e *domain.EscrowTransaction) { e.PayoutID = nil })
}

func (r memEscrowRepo) forPayout(tx pgx.Tx, payoutID uuid.UUID, apply func(e *domain.EscrowTransaction)) (int64, error) {
	t := asMemTx(tx)
	var n int64
	for _, e := range t.escrowSnapshot() {
		if e.PayoutID == nil || *e.PayoutID != payoutID || e.PayoutStatus != domain.EscrowReleased {
			continue
		}
		t.lock("escrow:" + e.ID.String())
		current, _ := t.readEscrow(e.ID)
		apply(&current)
		t.escrows[current.ID] = current
		n++
	}
	return n, nil
}

type memPayoutRepo struct{ s *memStore }

func (r memPayoutRepo) Create(_ context.Context, tx pgx.Tx, p *domain.Payout) error {
	asMemTx(tx).payouts[p.ID] = *p
	return nil
}

func (r memPayoutRepo) find(ref string) (domain.Payout, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payouts {
		if p.ID.String() == ref || p.PayoutNumber == ref {
			return p, true
		}
	}
	return domain.Payout{}, false
}

func (r memPayoutRepo) GetByRef(_ context.Context, ref string) (*domain.Payout, error) {
	p, ok := r.find(ref)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memPayoutRepo) GetByRefForUpdate(_ context.Context, tx pgx.Tx, ref string) (*domain.Payout, error) {
	p, ok := r.find(ref)
	if !ok {
		return nil, nil
	}
	t := asMemTx(tx)
	t.lock("payout:" + p.ID.String())
	if staged, ok := t.payouts[p.ID]; ok {
		return &staged, nil
	}
	p = r.s.payout(p.ID)
	return &p, nil
}

func (r memPayoutRepo) List(_ context.Context, _ ports.PayoutFilter) ([]domain.Payout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Payout, 0, len(r.s.payouts))
	for _, p := range r.s.payouts {
		out = append(out, p)
	}
	return out, nil
}

func (r memPayoutRepo) UpdateStatus(_ context.Context, tx pgx.Tx, p *domain.Payout) error {
	asMemTx(tx).payouts[p.ID] = *p
	return nil
}
