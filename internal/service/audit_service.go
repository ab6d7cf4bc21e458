package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditServiceImpl implements ports.AuditService.
type AuditServiceImpl struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, audit logs are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{repo: repo, log: log}
}

// Record persists the entry before returning.
func (s *AuditServiceImpl) Record(ctx context.Context, entry ports.AuditEntry) error {
	log, err := newAuditLog(entry, time.Now().UTC())
	if err != nil {
		return apperror.InternalError(err)
	}
	s.logEntry(log)
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Create(ctx, log); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("persist audit log: %w", err))
	}
	return nil
}

// Log records an audit entry asynchronously (fire-and-forget).
func (s *AuditServiceImpl) Log(ctx context.Context, entry ports.AuditEntry) {
	log, err := newAuditLog(entry, time.Now().UTC())
	if err != nil {
		s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to build audit log")
		return
	}
	// The request context ends with the response; persist on a detached one.
	bg := context.WithoutCancel(ctx)
	go func() {
		s.logEntry(log)
		if s.repo != nil {
			if err := s.repo.Create(bg, log); err != nil {
				s.log.Warn().Err(err).Str("action", string(log.Action)).Msg("failed to persist audit log")
			}
		}
	}()
}

func (s *AuditServiceImpl) List(ctx context.Context, filter ports.AuditFilter) ([]domain.AuditLog, error) {
	filter.Limit = clampLimit(filter.Limit, defaultAuditLimit, maxAuditLimit)
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}
	return logs, nil
}

func (s *AuditServiceImpl) Stats(ctx context.Context) (*domain.AuditStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return stats, nil
}

func (s *AuditServiceImpl) logEntry(log *domain.AuditLog) {
	s.log.Info().
		Str("action", string(log.Action)).
		Str("actor_id", log.ActorID).
		Str("target_type", log.TargetType).
		Str("target_id", log.TargetID).
		Str("ip", log.IPAddress).
		Msg("audit")
}

// newAuditLog builds the stored form of entry. A nil Details leaves the column empty.
func newAuditLog(entry ports.AuditEntry, now time.Time) (*domain.AuditLog, error) {
	var details string
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return nil, fmt.Errorf("marshal audit details: %w", err)
		}
		details = string(b)
	}
	return &domain.AuditLog{
		ID:         uuid.New(),
		ActorID:    entry.Actor.ID,
		Action:     entry.Action,
		TargetID:   entry.TargetID,
		TargetType: entry.TargetType,
		Details:    details,
		IPAddress:  entry.Actor.IPAddress,
		UserAgent:  entry.Actor.UserAgent,
		CreatedAt:  now,
	}, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
