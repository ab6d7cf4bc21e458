package postgres

import (
	"context"
	"fmt"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const topActorsLimit = 10

// AuditRepo implements ports.AuditRepository. Rows are insert-only.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a PostgreSQL-backed AuditRepository.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

const insertAuditQuery = `INSERT INTO audit_logs (id, actor_id, action, target_id, target_type, details, ip_address, user_agent, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	return insertAudit(ctx, r.pool, log)
}

// CreateTx writes the entry inside tx so it commits or rolls back with the mutation it describes.
func (r *AuditRepo) CreateTx(ctx context.Context, tx pgx.Tx, log *domain.AuditLog) error {
	return insertAudit(ctx, tx, log)
}

func insertAudit(ctx context.Context, q querier, log *domain.AuditLog) error {
	_, err := q.Exec(ctx, insertAuditQuery,
		log.ID, log.ActorID, log.Action, log.TargetID, log.TargetType,
		auditDetails(log.Details), log.IPAddress, log.UserAgent, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List returns audit entries matching filter, newest first.
func (r *AuditRepo) List(ctx context.Context, filter ports.AuditFilter) ([]domain.AuditLog, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.ActorID != "" {
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, filter.ActorID)
		argIdx++
	}
	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argIdx))
		args = append(args, filter.Action)
		argIdx++
	}
	if filter.TargetType != "" {
		conditions = append(conditions, fmt.Sprintf("target_type = $%d", argIdx))
		args = append(args, filter.TargetType)
		argIdx++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *filter.To)
		argIdx++
	}

	query := `SELECT id, actor_id, action, target_id, target_type, COALESCE(details::text, ''),
		ip_address, user_agent, created_at FROM audit_logs ` + where(conditions) +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		l := domain.AuditLog{}
		if err := rows.Scan(&l.ID, &l.ActorID, &l.Action, &l.TargetID, &l.TargetType,
			&l.Details, &l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log row: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Stats counts entries overall, per action, and for the most active actors.
func (r *AuditRepo) Stats(ctx context.Context) (*domain.AuditStats, error) {
	stats := &domain.AuditStats{ByAction: map[domain.AuditAction]int64{}, TopActors: []domain.ActorCount{}}

	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&stats.TotalLogs); err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT action, COUNT(*) FROM audit_logs GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("count audit logs by action: %w", err)
	}
	for rows.Next() {
		var action domain.AuditAction
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan action count: %w", err)
		}
		stats.ByAction[action] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action counts: %w", err)
	}

	rows, err = r.pool.Query(ctx, `SELECT actor_id, COUNT(*) AS n FROM audit_logs
		GROUP BY actor_id ORDER BY n DESC, actor_id LIMIT $1`, topActorsLimit)
	if err != nil {
		return nil, fmt.Errorf("top audit actors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ac domain.ActorCount
		if err := rows.Scan(&ac.ActorID, &ac.Count); err != nil {
			return nil, fmt.Errorf("scan actor count: %w", err)
		}
		stats.TopActors = append(stats.TopActors, ac)
	}
	return stats, rows.Err()
}

func auditDetails(details string) any {
	if details == "" {
		return nil
	}
	return []byte(details)
}
