package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("automation not found")
	// ErrConflict means a conditional update found the record in a different
	// state than expected. The caller's attempt must be discarded, not retried.
	ErrConflict = errors.New("automation state changed concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EmailAutomation is the per-lead follow-up state. At most one row per lead is
// active at a time (partial unique index in the schema).
type EmailAutomation struct {
	ID                uuid.UUID
	LeadID            uuid.UUID
	SequenceKey       string
	CurrentStep       int
	IsActive          bool
	LeadReplied       bool
	RepliedAt         *time.Time
	PausedAt          *time.Time
	PausedReason      *string
	NextSendAt        *time.Time
	LastSentAt        *time.Time
	DeactivatedReason *string
	SendFailures      int
	LastError         *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const automationColumns = `id, lead_id, sequence_key, current_step, is_active, lead_replied,
	replied_at, paused_at, paused_reason, next_send_at, last_sent_at,
	deactivated_reason, send_failures, last_error, created_at, updated_at`

func scanAutomation(row pgx.Row) (EmailAutomation, error) {
	var a EmailAutomation
	err := row.Scan(
		&a.ID, &a.LeadID, &a.SequenceKey, &a.CurrentStep, &a.IsActive, &a.LeadReplied,
		&a.RepliedAt, &a.PausedAt, &a.PausedReason, &a.NextSendAt, &a.LastSentAt,
		&a.DeactivatedReason, &a.SendFailures, &a.LastError, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return EmailAutomation{}, ErrNotFound
	}
	return a, err
}

// CreateForLead starts a new automation at step 0. Any previously active
// automation for the lead is deactivated in the same transaction, keeping the
// one-active-per-lead invariant under concurrent callers.
func (r *Repository) CreateForLead(ctx context.Context, leadID uuid.UUID, sequenceKey string, nextSendAt time.Time) (EmailAutomation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return EmailAutomation{}, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE email_automations
		SET is_active = FALSE, deactivated_reason = 'superseded', updated_at = now()
		WHERE lead_id = $1 AND is_active
	`, leadID)
	if err != nil {
		return EmailAutomation{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO email_automations (lead_id, sequence_key, next_send_at)
		VALUES ($1, $2, $3)
		RETURNING `+automationColumns,
		leadID, sequenceKey, nextSendAt,
	)
	automation, err := scanAutomation(row)
	if err != nil {
		return EmailAutomation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return EmailAutomation{}, err
	}
	return automation, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (EmailAutomation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+automationColumns+` FROM email_automations WHERE id = $1`, id)
	return scanAutomation(row)
}

func (r *Repository) GetActiveByLead(ctx context.Context, leadID uuid.UUID) (EmailAutomation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+automationColumns+`
		FROM email_automations
		WHERE lead_id = $1 AND is_active
	`, leadID)
	return scanAutomation(row)
}

// ListDue returns active, unreplied, unpaused automations whose next send time
// has elapsed. No cross-record ordering is guaranteed beyond oldest-due first.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]EmailAutomation, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+automationColumns+`
		FROM email_automations
		WHERE is_active AND NOT lead_replied AND paused_at IS NULL
		  AND next_send_at IS NOT NULL AND next_send_at <= $1
		ORDER BY next_send_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	due := make([]EmailAutomation, 0)
	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, automation)
	}
	return due, rows.Err()
}

// AdvanceStep moves an automation forward after a successful send. The update
// only applies while the record is still at expectedStep, active, unreplied
// and unpaused; otherwise ErrConflict is returned and the caller discards its
// attempt. Two overlapping scheduler runs can therefore never both advance the
// same step.
func (r *Repository) AdvanceStep(ctx context.Context, id uuid.UUID, expectedStep, nextStep int, nextSendAt *time.Time, stillActive bool, sentAt time.Time) error {
	var deactivatedReason *string
	if !stillActive {
		reason := "sequence completed"
		deactivatedReason = &reason
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE email_automations
		SET current_step = $3,
		    next_send_at = $4,
		    is_active = $5,
		    deactivated_reason = COALESCE($6, deactivated_reason),
		    last_sent_at = $7,
		    send_failures = 0,
		    last_error = NULL,
		    updated_at = now()
		WHERE id = $1 AND current_step = $2
		  AND is_active AND NOT lead_replied AND paused_at IS NULL
	`, id, expectedStep, nextStep, nextSendAt, stillActive, deactivatedReason, sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// MarkReplied records an inbound reply and halts the automation. Returns
// false when the record was already replied or inactive, which callers treat
// as an idempotent no-op.
func (r *Repository) MarkReplied(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE email_automations
		SET lead_replied = TRUE,
		    is_active = FALSE,
		    replied_at = $2,
		    next_send_at = NULL,
		    deactivated_reason = 'lead replied',
		    updated_at = now()
		WHERE id = $1 AND is_active AND NOT lead_replied
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Pause halts scheduled sends without ending the automation. Distinct from a
// reply-halt: a paused automation can be resumed.
func (r *Repository) Pause(ctx context.Context, id uuid.UUID, reason string, at time.Time) (EmailAutomation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE email_automations
		SET paused_at = $2, paused_reason = $3, updated_at = now()
		WHERE id = $1 AND is_active AND paused_at IS NULL
		RETURNING `+automationColumns,
		id, at, reason,
	)
	return scanAutomation(row)
}

// Resume lifts a pause and reschedules the current step.
func (r *Repository) Resume(ctx context.Context, id uuid.UUID, nextSendAt time.Time) (EmailAutomation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE email_automations
		SET paused_at = NULL, paused_reason = NULL, next_send_at = $2, updated_at = now()
		WHERE id = $1 AND is_active AND paused_at IS NOT NULL
		RETURNING `+automationColumns,
		id, nextSendAt,
	)
	return scanAutomation(row)
}

// DeactivateActiveForLead ends any active automation for the lead, e.g. when
// the lead reaches a terminal stage.
func (r *Repository) DeactivateActiveForLead(ctx context.Context, leadID uuid.UUID, reason string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE email_automations
		SET is_active = FALSE, next_send_at = NULL, deactivated_reason = $2, updated_at = now()
		WHERE lead_id = $1 AND is_active
	`, leadID, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RecordSendFailure notes a failed send attempt. next_send_at is deliberately
// left untouched so the record stays due for the next scheduler pass.
func (r *Repository) RecordSendFailure(ctx context.Context, id uuid.UUID, sendErr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE email_automations
		SET send_failures = send_failures + 1, last_error = $2, updated_at = now()
		WHERE id = $1
	`, id, sendErr)
	return err
}
