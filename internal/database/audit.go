package database

import (
	"context"
	"fmt"

	"dao-governance-go/internal/models"

	"github.com/google/uuid"
)

// AppendAuditEntry writes one audit row. The fire-and-forget semantics
// live in the audit package; this is the raw write.
func (s *Service) AppendAuditEntry(ctx context.Context, entry models.AuditEntry) error {
	if entry.Id == "" {
		entry.Id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, queryInsertAuditEntry,
		entry.Id, entry.ActorId, entry.Action, entry.EntityType, entry.EntityId, entry.Detail)
	if err != nil {
		return fmt.Errorf("unable to append audit entry: %w", err)
	}
	return nil
}
