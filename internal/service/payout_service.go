package service

import (
	"context"
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

// PayoutServiceImpl implements ports.PayoutService.
type PayoutServiceImpl struct {
	payoutRepo    ports.PayoutRepository
	walletRepo    ports.WalletRepository
	escrowRepo    ports.EscrowRepository
	auditRepo     ports.AuditRepository
	ledger        ports.LedgerService
	runner        *txRunner
	minimumPayout int64
	listLimit     int
	metrics       *metrics.Recorder
	log           zerolog.Logger
	now           func() time.Time
}

// PayoutOptions holds payout defaults used when a wallet configures none.
type PayoutOptions struct {
	MinimumPayout int64
	ListLimit     int
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	payoutRepo ports.PayoutRepository,
	walletRepo ports.WalletRepository,
	escrowRepo ports.EscrowRepository,
	auditRepo ports.AuditRepository,
	ledger ports.LedgerService,
	transactor ports.DBTransactor,
	opts PayoutOptions,
	retry RetryPolicy,
	rec *metrics.Recorder,
	log zerolog.Logger,
) *PayoutServiceImpl {
	if opts.ListLimit <= 0 {
		opts.ListLimit = 1000
	}
	return &PayoutServiceImpl{
		payoutRepo:    payoutRepo,
		walletRepo:    walletRepo,
		escrowRepo:    escrowRepo,
		auditRepo:     auditRepo,
		ledger:        ledger,
		runner:        newTxRunner(transactor, retry, rec, log),
		minimumPayout: opts.MinimumPayout,
		listLimit:     opts.ListLimit,
		metrics:       rec,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Request debits the payout balance and records a pending payout in one
// transaction. Unclaimed released escrows are attached oldest first, as far
// as the amount covers them.
func (s *PayoutServiceImpl) Request(ctx context.Context, req ports.PayoutRequest) (*ports.PayoutResult, error) {
	if req.Key.UserID == "" {
		return nil, apperror.Validation("userId is required")
	}
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Method.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid payoutMethod %q", req.Method))
	}

	var result *ports.PayoutResult
	err := s.runner.run(ctx, "payout.request", func(tx pgx.Tx) error {
		wallet, err := s.walletRepo.GetByKeyForUpdate(ctx, tx, req.Key)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
		}
		if wallet == nil {
			return apperror.ErrWalletNotFound()
		}

		minimum := wallet.MinimumPayout(s.minimumPayout)
		if req.Amount < minimum {
			return apperror.ErrBelowMinimum(domain.FormatAmount(minimum))
		}
		if !wallet.HasDestination(req.Method) {
			return apperror.ErrDestinationMissing(string(req.Method))
		}

		now := s.now()
		payoutID := uuid.New()
		ledgerRes, err := s.ledger.ApplyTx(ctx, tx, ports.Mutation{
			Key:         req.Key,
			Target:      domain.BalancePayout,
			Type:        domain.TransactionTypeDebit,
			Amount:      req.Amount,
			Category:    domain.CategoryPayout,
			Description: "Payout to " + string(req.Method),
			Actor:       req.Actor,
			PayoutID:    &payoutID,
		})
		if err != nil {
			return err
		}

		orderIDs, err := s.escrowRepo.AssignToPayout(ctx, tx, req.Key, payoutID, req.Amount)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("assign escrows: %w", err))
		}

		payout := &domain.Payout{
			ID:            payoutID,
			PayoutNumber:  domain.NewPayoutNumber(now),
			WalletID:      wallet.ID,
			UserID:        wallet.UserID,
			StoreID:       wallet.StoreID,
			Amount:        req.Amount,
			Currency:      wallet.Currency,
			Method:        req.Method,
			Destination:   destinationSnapshot(wallet, req.Method),
			Status:        domain.PayoutStatusPending,
			OrderIDs:      orderIDs,
			TransactionID: ledgerRes.Transaction.ID,
			ScheduledAt:   now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.payoutRepo.Create(ctx, tx, payout); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("create payout: %w", err))
		}

		result = &ports.PayoutResult{Payout: payout, Wallet: ledgerRes.Wallet}
		return writeAuditTx(ctx, s.auditRepo, tx, ports.AuditEntry{
			Actor:      req.Actor,
			Action:     domain.AuditActionPayoutRequest,
			TargetID:   payout.ID.String(),
			TargetType: domain.TargetPayout,
			Details: map[string]any{
				"payoutId":     payout.PayoutNumber,
				"amount":       domain.FormatAmount(payout.Amount),
				"payoutMethod": payout.Method,
				"orderIds":     payout.OrderIDs,
			},
		}, now)
	})
	if err != nil {
		s.metrics.Mutation("payout_request", string(domain.BalancePayout), outcomeOf(err))
		return nil, err
	}

	s.metrics.Mutation("payout_request", string(domain.BalancePayout), metrics.OutcomeOK)
	s.metrics.PayoutStatus(string(domain.PayoutStatusPending))
	s.log.Info().
		Str("payout_id", result.Payout.PayoutNumber).
		Str("wallet", req.Key.String()).
		Int64("amount", req.Amount).
		Int("orders", len(result.Payout.OrderIDs)).
		Msg("payout requested")
	return result, nil
}

// UpdateStatus moves a payout forward. Failed and cancelled payouts return
// their amount to the payout balance; completed payouts settle their escrows.
func (s *PayoutServiceImpl) UpdateStatus(ctx context.Context, req ports.PayoutStatusUpdate) (*domain.Payout, error) {
	if strings.TrimSpace(req.Ref) == "" {
		return nil, apperror.Validation("payoutId is required")
	}
	if !req.Status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid status %q", req.Status))
	}

	var payout *domain.Payout
	var changed bool
	err := s.runner.run(ctx, "payout.status", func(tx pgx.Tx) error {
		p, err := s.payoutRepo.GetByRefForUpdate(ctx, tx, req.Ref)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("lock payout: %w", err))
		}
		if p == nil {
			return apperror.ErrPayoutNotFound()
		}
		payout = p
		if p.Status == req.Status {
			return nil
		}
		if !p.Status.CanTransitionTo(req.Status) {
			return apperror.ErrInvalidTransition(string(p.Status), string(req.Status))
		}
		reason := strings.TrimSpace(req.FailureReason)
		if req.Status == domain.PayoutStatusFailed && reason == "" {
			return apperror.ErrFailureReasonRequired()
		}

		now := s.now()
		old := p.Status
		switch {
		case req.Status == domain.PayoutStatusProcessing:
			p.ProcessedAt = &now

		case req.Status == domain.PayoutStatusCompleted:
			if err := s.settle(ctx, tx, p, now); err != nil {
				return err
			}
			p.CompletedAt = &now

		case req.Status.ReturnsFunds():
			if err := s.compensate(ctx, tx, p, req.Status, reason, req.Actor); err != nil {
				return err
			}
			if reason != "" {
				p.FailureReason = &reason
			}
		}

		p.Status = req.Status
		if req.ExternalRef != nil {
			p.ExternalRef = req.ExternalRef
		}
		p.UpdatedAt = now
		if err := s.payoutRepo.UpdateStatus(ctx, tx, p); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("update payout: %w", err))
		}
		changed = true

		details := map[string]any{
			"payoutId":  p.PayoutNumber,
			"oldStatus": old,
			"newStatus": p.Status,
		}
		if reason != "" {
			details["failureReason"] = reason
		}
		return writeAuditTx(ctx, s.auditRepo, tx, ports.AuditEntry{
			Actor:      req.Actor,
			Action:     domain.AuditActionPayoutStatusUpdate,
			TargetID:   p.ID.String(),
			TargetType: domain.TargetPayout,
			Details:    details,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.PayoutStatus(string(payout.Status))
		s.log.Info().
			Str("payout_id", payout.PayoutNumber).
			Str("status", string(payout.Status)).
			Msg("payout status updated")
	}
	return payout, nil
}

// settle records the completed payout on the wallet and marks its escrows paid out.
func (s *PayoutServiceImpl) settle(ctx context.Context, tx pgx.Tx, p *domain.Payout, now time.Time) error {
	wallet, err := s.walletRepo.GetByKeyForUpdate(ctx, tx, p.WalletKey())
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return apperror.ErrWalletNotFound()
	}
	wallet.Stats.TotalPayoutsReceived += p.Amount
	wallet.Stats.LastPayoutAt = &now
	wallet.UpdatedAt = now
	if err := s.walletRepo.UpdateBalances(ctx, tx, wallet); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("update payout stats: %w", err))
	}

	n, err := s.escrowRepo.MarkPaidOut(ctx, tx, p.ID, now)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("mark escrows paid out: %w", err))
	}
	if int(n) != len(p.OrderIDs) {
		s.log.Warn().
			Str("payout_id", p.PayoutNumber).
			Int64("marked", n).
			Int("attached", len(p.OrderIDs)).
			Msg("paid out escrow count differs from attached orders")
	}
	return nil
}

// compensate credits the payout amount back and frees the attached escrows.
func (s *PayoutServiceImpl) compensate(ctx context.Context, tx pgx.Tx, p *domain.Payout, status domain.PayoutStatus, reason string, actor domain.Actor) error {
	description := fmt.Sprintf("Payout %s %s", p.PayoutNumber, status)
	if reason != "" {
		description += ": " + reason
	}
	payoutID := p.ID
	if _, err := s.ledger.ApplyTx(ctx, tx, ports.Mutation{
		Key:         p.WalletKey(),
		Target:      domain.BalancePayout,
		Type:        domain.TransactionTypeCredit,
		Amount:      p.Amount,
		Category:    domain.CategoryPayout,
		Description: description,
		Actor:       actor,
		PayoutID:    &payoutID,
	}); err != nil {
		return err
	}
	if _, err := s.escrowRepo.DetachFromPayout(ctx, tx, p.ID); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("detach escrows: %w", err))
	}
	return nil
}

func (s *PayoutServiceImpl) Get(ctx context.Context, ref string) (*domain.Payout, error) {
	payout, err := read(ctx, s.runner, "get_payout", func(ctx context.Context) (*domain.Payout, error) {
		return s.payoutRepo.GetByRef(ctx, ref)
	})
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if payout == nil {
		return nil, apperror.ErrPayoutNotFound()
	}
	return payout, nil
}

func (s *PayoutServiceImpl) List(ctx context.Context, filter ports.PayoutFilter) ([]domain.Payout, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid status %q", filter.Status))
	}
	filter.Limit = clampLimit(filter.Limit, s.listLimit, s.listLimit)
	payouts, err := read(ctx, s.runner, "list_payouts", func(ctx context.Context) ([]domain.Payout, error) {
		return s.payoutRepo.List(ctx, filter)
	})
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if payouts == nil {
		payouts = []domain.Payout{}
	}
	return payouts, nil
}

// destinationSnapshot copies the wallet's destination for method at request time.
func destinationSnapshot(w *domain.Wallet, method domain.PayoutMethod) domain.PayoutDestination {
	var dest domain.PayoutDestination
	if w.PayoutSettings == nil {
		return dest
	}
	switch method {
	case domain.PayoutMethodBankTransfer:
		if b := w.PayoutSettings.BankAccount; b != nil {
			snapshot := *b
			dest.BankAccount = &snapshot
		}
	case domain.PayoutMethodPaypal:
		dest.PaypalEmail = w.PayoutSettings.PaypalEmail
	}
	return dest
}
