package repository

import (
	"context"
	"time"

	"crm_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// StageHistoryEntry is one entry in a lead's append-only stage log. Entries
// are never updated or deleted.
type StageHistoryEntry struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Stage     domain.Stage
	ChangedBy *uuid.UUID
	Comment   *string
	ChangedAt time.Time
}

// ListStageHistory returns the lead's stage history oldest first.
func (r *Repository) ListStageHistory(ctx context.Context, leadID uuid.UUID) ([]StageHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, stage, changed_by, comment, changed_at
		FROM lead_stage_history
		WHERE lead_id = $1
		ORDER BY changed_at ASC, id ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]StageHistoryEntry, 0)
	for rows.Next() {
		var entry StageHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.LeadID, &entry.Stage, &entry.ChangedBy, &entry.Comment, &entry.ChangedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
