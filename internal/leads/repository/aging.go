package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PauseAging freezes aging for a lead. The conditional WHERE keeps the call
// idempotent: pausing an already-paused lead changes nothing.
func (r *Repository) PauseAging(ctx context.Context, leadID uuid.UUID, reason string, at time.Time) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET aging_paused = TRUE,
		    aging_paused_at = $2,
		    aging_paused_reason = $3,
		    aging_days = 0,
		    last_contact_date = $2,
		    updated_at = now()
		WHERE id = $1 AND NOT aging_paused
		RETURNING `+leadColumns,
		leadID, at, reason,
	)
	return scanLead(row)
}

// ResumeAging clears the pause state. Aging restarts from zero and the
// last-contact marker is refreshed, matching the pause/resume contract.
func (r *Repository) ResumeAging(ctx context.Context, leadID uuid.UUID, at time.Time) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET aging_paused = FALSE,
		    aging_paused_at = NULL,
		    aging_paused_reason = NULL,
		    aging_days = 0,
		    last_contact_date = $2,
		    updated_at = now()
		WHERE id = $1 AND aging_paused
		RETURNING `+leadColumns,
		leadID, at,
	)
	return scanLead(row)
}

// SetAgingDays stores a recomputed aging value for reporting. Paused leads are
// skipped so the frozen value survives recomputation sweeps.
func (r *Repository) SetAgingDays(ctx context.Context, leadID uuid.UUID, days int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET aging_days = $2, updated_at = now()
		WHERE id = $1 AND NOT aging_paused
	`, leadID, days)
	return err
}

// ListUnpausedActive returns leads eligible for aging recomputation and
// stalled-lead reporting: reachable, not paused, not in a terminal stage.
func (r *Repository) ListUnpausedActive(ctx context.Context) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE is_active AND NOT is_archived AND NOT aging_paused
		  AND stage NOT IN ('Won', 'Lost')
		ORDER BY last_contact_date ASC NULLS FIRST
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}
