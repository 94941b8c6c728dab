package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/ogurasousui/attendance-clean-arch/internal/core/audit"
	pgdb "github.com/ogurasousui/attendance-clean-arch/internal/platform/db/postgres"
)

// AuditRepository は監査レコードを audit_events に追記する Sink の実装です。
type AuditRepository struct {
	pool pgdb.Queryer
}

// NewAuditRepository は AuditRepository を生成します。
func NewAuditRepository(pool pgdb.Queryer) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Record は監査レコードを一件追記します。
func (r *AuditRepository) Record(ctx context.Context, event audit.Event) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err := exec.Exec(ctx, `
        INSERT INTO audit_events (id, actor_id, action, entity_type, entity_id, metadata, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `,
		uuid.NewString(),
		event.ActorID,
		string(event.Action),
		event.EntityType,
		event.EntityID,
		event.Metadata,
		event.Timestamp,
	)
	return err
}
