package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// InvoiceServiceImpl implements ports.InvoiceService.
type InvoiceServiceImpl struct {
	invoiceRepo ports.InvoiceRepository
	auditRepo   ports.AuditRepository
	auditSvc    ports.AuditService
	runner      *txRunner
	listLimit   int
	log         zerolog.Logger
	now         func() time.Time
}

// NewInvoiceService creates a new InvoiceServiceImpl.
func NewInvoiceService(
	invoiceRepo ports.InvoiceRepository,
	auditRepo ports.AuditRepository,
	auditSvc ports.AuditService,
	transactor ports.DBTransactor,
	listLimit int,
	log zerolog.Logger,
) *InvoiceServiceImpl {
	if listLimit <= 0 {
		listLimit = 1000
	}
	return &InvoiceServiceImpl{
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		auditSvc:    auditSvc,
		runner:      newTxRunner(transactor, RetryPolicy{MaxAttempts: 1}, nil, log),
		listLimit:   listLimit,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *InvoiceServiceImpl) Generate(ctx context.Context, req ports.GenerateInvoiceRequest) (*domain.Invoice, error) {
	switch {
	case strings.TrimSpace(req.OrderID) == "":
		return nil, apperror.Validation("orderId is required")
	case req.BuyerID == "":
		return nil, apperror.Validation("buyerId is required")
	case req.SellerID == "":
		return nil, apperror.Validation("sellerId is required")
	}

	now := s.now()
	invoice := &domain.Invoice{
		ID:        uuid.New(),
		OrderID:   req.OrderID,
		BuyerID:   req.BuyerID,
		SellerID:  req.SellerID,
		Items:     req.Items,
		Subtotal:  req.Subtotal,
		Tax:       req.Tax,
		Total:     req.Total,
		Status:    domain.InvoiceStatusPending,
		PDFURL:    req.PDFURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := invoice.CheckTotals(); err != nil {
		return nil, apperror.ErrInvalidInvoice(err.Error())
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.auditSvc.Log(ctx, ports.AuditEntry{
		Actor:      req.Actor,
		Action:     domain.AuditActionInvoiceCreate,
		TargetID:   invoice.ID.String(),
		TargetType: domain.TargetInvoice,
		Details: map[string]any{
			"orderId": invoice.OrderID,
			"total":   domain.FormatAmount(invoice.Total),
		},
	})
	s.log.Info().Str("invoice_id", invoice.ID.String()).Str("order_id", invoice.OrderID).Msg("invoice generated")
	return invoice, nil
}

// Get returns the invoice and records the view in the background.
func (s *InvoiceServiceImpl) Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if invoice == nil {
		return nil, apperror.ErrInvoiceNotFound()
	}

	s.auditSvc.Log(ctx, ports.AuditEntry{
		Actor:      actor,
		Action:     domain.AuditActionInvoiceView,
		TargetID:   invoice.ID.String(),
		TargetType: domain.TargetInvoice,
		Details:    map[string]any{"orderId": invoice.OrderID},
	})
	return invoice, nil
}

func (s *InvoiceServiceImpl) List(ctx context.Context, filter ports.InvoiceFilter) ([]domain.Invoice, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid status %q", filter.Status))
	}
	filter.Limit = clampLimit(filter.Limit, s.listLimit, s.listLimit)
	invoices, err := s.invoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	return invoices, nil
}

func (s *InvoiceServiceImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus, actor domain.Actor) (*domain.Invoice, error) {
	if !status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid status %q", status))
	}

	var invoice *domain.Invoice
	err := s.runner.run(ctx, "invoice.status", func(tx pgx.Tx) error {
		inv, err := s.invoiceRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("lock invoice: %w", err))
		}
		if inv == nil {
			return apperror.ErrInvoiceNotFound()
		}
		invoice = inv
		if inv.Status == status {
			return nil
		}
		if !inv.Status.CanTransitionTo(status) {
			return apperror.ErrInvalidTransition(string(inv.Status), string(status))
		}

		now := s.now()
		old := inv.Status
		if err := s.invoiceRepo.UpdateStatus(ctx, tx, id, status, now); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("update invoice: %w", err))
		}
		inv.Status = status
		inv.UpdatedAt = now

		return writeAuditTx(ctx, s.auditRepo, tx, ports.AuditEntry{
			Actor:      actor,
			Action:     domain.AuditActionInvoiceUpdate,
			TargetID:   inv.ID.String(),
			TargetType: domain.TargetInvoice,
			Details:    map[string]any{"oldStatus": old, "newStatus": status},
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}
