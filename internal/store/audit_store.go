package store

import (
	"context"

	"ledger/internal/models"
)

const auditColumns = `id, actor_account_id, action, entity_type, entity_id, data, created_at`

type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Log(ctx context.Context, input AuditInput) (models.AuditEntry, error) {
	data := input.Data
	if data == "" {
		data = "{}"
	}
	var row models.AuditEntry
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO audit_logs (id, actor_account_id, action, entity_type, entity_id, data)
		VALUES (gen_random_uuid()::text, NULLIF($1::text, ''), $2, $3, $4, $5::jsonb)
		RETURNING `+auditColumns,
		input.ActorAccountID, input.Action, input.EntityType, input.EntityID, data,
	)
	if err != nil {
		return models.AuditEntry{}, translate(err, "log audit entry")
	}
	return row, nil
}

func (s *AuditStore) List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	rows := []models.AuditEntry{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+auditColumns+`
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, translate(err, "list audit entries")
	}
	return rows, nil
}

func (s *AuditStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM audit_logs`); err != nil {
		return 0, translate(err, "count audit entries")
	}
	return count, nil
}
