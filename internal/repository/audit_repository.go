package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
)

// AuditRepository stores append-only lifecycle entries.
type AuditRepository interface {
	Append(ctx context.Context, record *domain.AuditRecord) error
	ListByRequest(ctx context.Context, requestID string) ([]domain.AuditRecord, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, record *domain.AuditRecord) error {
	const query = `
        INSERT INTO request_audit_log (request_id, event, prior_state, new_state, actor, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id::text, seq`
	var seq int64
	return r.pool.QueryRow(ctx, query,
		record.RequestID,
		record.Event,
		record.PriorState,
		record.NewState,
		record.Actor,
		record.Payload,
		record.CreatedAt,
	).Scan(&record.ID, &seq)
}

func (r *auditRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.AuditRecord, error) {
	const query = `
        SELECT id::text, request_id, event, prior_state, new_state, actor, payload, created_at
        FROM request_audit_log WHERE request_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		if err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.Event,
			&record.PriorState,
			&record.NewState,
			&record.Actor,
			&record.Payload,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
