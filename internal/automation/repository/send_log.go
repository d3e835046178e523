package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SendLogEntry is one attempt (successful or not) to deliver a sequence step.
// The log is append-only and feeds the scheduler's aggregate reporting.
type SendLogEntry struct {
	ID           uuid.UUID
	AutomationID uuid.UUID
	LeadID       uuid.UUID
	Step         int
	Template     string
	Success      bool
	Error        *string
	CreatedAt    time.Time
}

type InsertSendLogParams struct {
	AutomationID uuid.UUID
	LeadID       uuid.UUID
	Step         int
	Template     string
	Success      bool
	Error        *string
}

func (r *Repository) InsertSendLog(ctx context.Context, params InsertSendLogParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO automation_send_log (automation_id, lead_id, step, template, success, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, params.AutomationID, params.LeadID, params.Step, params.Template, params.Success, params.Error)
	return err
}

func (r *Repository) ListSendLog(ctx context.Context, automationID uuid.UUID) ([]SendLogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, automation_id, lead_id, step, template, success, error, created_at
		FROM automation_send_log
		WHERE automation_id = $1
		ORDER BY created_at ASC
	`, automationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]SendLogEntry, 0)
	for rows.Next() {
		var entry SendLogEntry
		if err := rows.Scan(&entry.ID, &entry.AutomationID, &entry.LeadID, &entry.Step, &entry.Template, &entry.Success, &entry.Error, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
