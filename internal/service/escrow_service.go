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

// EscrowServiceImpl implements ports.EscrowService.
type EscrowServiceImpl struct {
	escrowRepo ports.EscrowRepository
	auditRepo  ports.AuditRepository
	ledger     ports.LedgerService
	runner     *txRunner
	listLimit  int
	metrics    *metrics.Recorder
	log        zerolog.Logger
	now        func() time.Time
}

// NewEscrowService creates a new EscrowServiceImpl.
func NewEscrowService(
	escrowRepo ports.EscrowRepository,
	auditRepo ports.AuditRepository,
	ledger ports.LedgerService,
	transactor ports.DBTransactor,
	listLimit int,
	retry RetryPolicy,
	rec *metrics.Recorder,
	log zerolog.Logger,
) *EscrowServiceImpl {
	if listLimit <= 0 {
		listLimit = 1000
	}
	return &EscrowServiceImpl{
		escrowRepo: escrowRepo,
		auditRepo:  auditRepo,
		ledger:     ledger,
		runner:     newTxRunner(transactor, retry, rec, log),
		listLimit:  listLimit,
		metrics:    rec,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create records the payment split for an order and holds the store payout as pending.
func (s *EscrowServiceImpl) Create(ctx context.Context, req ports.CreateEscrowRequest) (*domain.EscrowTransaction, error) {
	if err := validateEscrowRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	escrow := &domain.EscrowTransaction{
		ID:                       uuid.New(),
		OrderID:                  strings.TrimSpace(req.OrderID),
		StoreID:                  req.StoreID,
		UserID:                   req.UserID,
		CustomerPaymentAmount:    req.CustomerPaymentAmount,
		FulfillmentCost:          req.FulfillmentCost,
		PlatformFee:              req.PlatformFee,
		StorePayout:              req.StorePayout,
		CustomerPaymentStatus:    req.CustomerPaymentStatus,
		FulfillmentPaymentStatus: domain.FulfillmentPaymentPending,
		PayoutStatus:             domain.EscrowInEscrow,
		PaymentRef:               req.PaymentRef,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if escrow.CustomerPaymentStatus == "" {
		escrow.CustomerPaymentStatus = domain.CustomerPaymentPending
	}
	if !escrow.SplitBalanced() {
		s.metrics.EscrowEvent("split_mismatch")
		return nil, apperror.ErrSplitMismatch()
	}

	err := s.runner.run(ctx, "escrow.create", func(tx pgx.Tx) error {
		if err := s.escrowRepo.Create(ctx, tx, escrow); err != nil {
			if errors.Is(err, ports.ErrDuplicate) {
				return apperror.ErrDuplicateOrder()
			}
			return apperror.ErrDatabaseError(fmt.Errorf("create escrow: %w", err))
		}
		if _, err := s.ledger.HoldPendingTx(ctx, tx, escrow.WalletKey(), escrow.StorePayout, req.Actor, escrow.OrderID); err != nil {
			return err
		}
		return writeAuditTx(ctx, s.auditRepo, tx, ports.AuditEntry{
			Actor:      req.Actor,
			Action:     domain.AuditActionEscrowCreate,
			TargetID:   escrow.ID.String(),
			TargetType: domain.TargetEscrow,
			Details: map[string]any{
				"orderId":               escrow.OrderID,
				"customerPaymentAmount": domain.FormatAmount(escrow.CustomerPaymentAmount),
				"fulfillmentCost":       domain.FormatAmount(escrow.FulfillmentCost),
				"platformFee":           domain.FormatAmount(escrow.PlatformFee),
				"storePayout":           domain.FormatAmount(escrow.StorePayout),
			},
		}, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.EscrowEvent("created")
	s.log.Info().
		Str("order_id", escrow.OrderID).
		Str("escrow_id", escrow.ID.String()).
		Int64("store_payout", escrow.StorePayout).
		Msg("escrow created")
	return escrow, nil
}

func (s *EscrowServiceImpl) GetByOrderID(ctx context.Context, orderID string) (*domain.EscrowTransaction, error) {
	escrow, err := read(ctx, s.runner, "get_escrow", func(ctx context.Context) (*domain.EscrowTransaction, error) {
		return s.escrowRepo.GetByOrderID(ctx, orderID)
	})
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if escrow == nil {
		return nil, apperror.ErrEscrowNotFound()
	}
	return escrow, nil
}

func (s *EscrowServiceImpl) List(ctx context.Context, filter ports.EscrowFilter) ([]domain.EscrowTransaction, error) {
	if filter.PayoutStatus != "" && !filter.PayoutStatus.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid payoutStatus %q", filter.PayoutStatus))
	}
	filter.Limit = clampLimit(filter.Limit, s.listLimit, s.listLimit)
	escrows, err := read(ctx, s.runner, "list_escrows", func(ctx context.Context) ([]domain.EscrowTransaction, error) {
		return s.escrowRepo.List(ctx, filter)
	})
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if escrows == nil {
		escrows = []domain.EscrowTransaction{}
	}
	return escrows, nil
}

// Release moves the store payout from pending to the payout balance. Releasing
// an escrow that already left in_escrow changes nothing.
func (s *EscrowServiceImpl) Release(ctx context.Context, escrowID uuid.UUID, actor domain.Actor) (*ports.ReleaseResult, error) {
	var result *ports.ReleaseResult
	err := s.runner.run(ctx, "escrow.release", func(tx pgx.Tx) error {
		escrow, err := s.escrowRepo.GetByIDForUpdate(ctx, tx, escrowID)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("lock escrow: %w", err))
		}
		if escrow == nil {
			return apperror.ErrEscrowNotFound()
		}
		if escrow.PayoutStatus != domain.EscrowInEscrow {
			result = &ports.ReleaseResult{Escrow: escrow, AlreadyReleased: true}
			return nil
		}
		if !escrow.Releasable() {
			return apperror.ErrInvalidTransition(
				fmt.Sprintf("%s (customer payment %s)", escrow.PayoutStatus, escrow.CustomerPaymentStatus),
				string(domain.EscrowReleased),
			)
		}

		now := s.now()
		result = &ports.ReleaseResult{Escrow: escrow}
		if escrow.StorePayout > 0 {
			orderID := escrow.OrderID
			ledgerRes, err := s.ledger.ApplyTx(ctx, tx, ports.Mutation{
				Key:                 escrow.WalletKey(),
				Target:              domain.BalancePayout,
				Type:                domain.TransactionTypeCredit,
				Amount:              escrow.StorePayout,
				Category:            domain.CategoryCustomerPayment,
				Description:         "Payout from order " + orderID,
				Actor:               actor,
				OrderID:             &orderID,
				EscrowTransactionID: &escrow.ID,
				FromPending:         true,
				CountEarnings:       true,
				AutoCreate:          true,
			})
			if err != nil {
				return err
			}
			result.Wallet = ledgerRes.Wallet
			result.Transaction = ledgerRes.Transaction
		}

		escrow.PayoutStatus = domain.EscrowReleased
		escrow.ReleasedAt = &now
		escrow.UpdatedAt = now
		if err := s.escrowRepo.Update(ctx, tx, escrow); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("update escrow: %w", err))
		}

		return writeAuditTx(ctx, s.auditRepo, tx, ports.AuditEntry{
			Actor:      actor,
			Action:     domain.AuditActionEscrowRelease,
			TargetID:   escrow.ID.String(),
			TargetType: domain.TargetEscrow,
			Details: map[string]any{
				"orderId":     escrow.OrderID,
				"storePayout": domain.FormatAmount(escrow.StorePayout),
			},
		}, now)
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyReleased {
		s.log.Debug().Str("escrow_id", escrowID.String()).Msg("escrow already released")
		return result, nil
	}
	s.metrics.EscrowEvent("released")
	s.log.Info().
		Str("escrow_id", escrowID.String()).
		Str("order_id", result.Escrow.OrderID).
		Int64("store_payout", result.Escrow.StorePayout).
		Msg("escrow released to payout balance")
	return result, nil
}

// UpdatePaymentStatus advances the customer and fulfillment payment sub-states.
// Repeating the current status is a no-op.
func (s *EscrowServiceImpl) UpdatePaymentStatus(ctx context.Context, req ports.EscrowStatusUpdate) (*domain.EscrowTransaction, error) {
	if req.CustomerPaymentStatus == nil && req.FulfillmentPaymentStatus == nil {
		return nil, apperror.Validation("customerPaymentStatus or fulfillmentPaymentStatus is required")
	}
	if cps := req.CustomerPaymentStatus; cps != nil && !cps.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid customerPaymentStatus %q", *cps))
	}
	if fps := req.FulfillmentPaymentStatus; fps != nil && !fps.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid fulfillmentPaymentStatus %q", *fps))
	}

	var escrow *domain.EscrowTransaction
	err := s.runner.run(ctx, "escrow.status", func(tx pgx.Tx) error {
		e, err := s.escrowRepo.GetByIDForUpdate(ctx, tx, req.EscrowID)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("lock escrow: %w", err))
		}
		if e == nil {
			return apperror.ErrEscrowNotFound()
		}
		escrow = e

		details := map[string]any{"orderId": e.OrderID}
		changed := false
		if next := req.CustomerPaymentStatus; next != nil && *next != e.CustomerPaymentStatus {
			if !e.CustomerPaymentStatus.CanTransitionTo(*next) {
				return apperror.ErrInvalidTransition(string(e.CustomerPaymentStatus), string(*next))
			}
			details["customerPaymentStatus"] = map[string]any{"old": e.CustomerPaymentStatus, "new": *next}
			e.CustomerPaymentStatus = *next
			changed = true
		}
		if next := req.FulfillmentPaymentStatus; next != nil && *next != e.FulfillmentPaymentStatus {
			if !e.FulfillmentPaymentStatus.CanTransitionTo(*next) {
				return apperror.ErrInvalidTransition(string(e.FulfillmentPaymentStatus), string(*next))
			}
			details["fulfillmentPaymentStatus"] = map[string]any{"old": e.FulfillmentPaymentStatus, "new": *next}
			e.FulfillmentPaymentStatus = *next
			changed = true
		}
		if !changed {
			return nil
		}

		now := s.now()
		e.UpdatedAt = now
		if err := s.escrowRepo.Update(ctx, tx, e); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("update escrow: %w", err))
		}
		return writeAuditTx(ctx, s.auditRepo, tx, ports.AuditEntry{
			Actor:      req.Actor,
			Action:     domain.AuditActionEscrowStatusUpdate,
			TargetID:   e.ID.String(),
			TargetType: domain.TargetEscrow,
			Details:    details,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.EscrowEvent("status_update")
	return escrow, nil
}

func validateEscrowRequest(req ports.CreateEscrowRequest) error {
	switch {
	case strings.TrimSpace(req.OrderID) == "":
		return apperror.Validation("orderId is required")
	case req.StoreID == "":
		return apperror.Validation("storeId is required")
	case req.UserID == "":
		return apperror.Validation("userId is required")
	}
	if req.CustomerPaymentAmount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if req.FulfillmentCost < 0 || req.PlatformFee < 0 || req.StorePayout < 0 {
		return apperror.ErrInvalidAmount()
	}
	if req.CustomerPaymentStatus != "" && !req.CustomerPaymentStatus.Valid() {
		return apperror.Validation(fmt.Sprintf("invalid customerPaymentStatus %q", req.CustomerPaymentStatus))
	}
	return nil
}
