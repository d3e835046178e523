package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"crm_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                uuid.UUID
	Name              string
	Email             *string
	Phone             *string
	Address           *string
	Stage             domain.Stage
	Source            *string
	LastContactDate   *time.Time
	AgingDays         int
	AgingPaused       bool
	AgingPausedAt     *time.Time
	AgingPausedReason *string
	IsActive          bool
	IsArchived        bool
	CreatedBy         *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type CreateLeadParams struct {
	Name      string
	Email     *string
	Phone     *string
	Address   *string
	Source    *string
	CreatedBy *uuid.UUID
}

const leadColumns = `id, name, email, phone, address, stage, source, last_contact_date,
	aging_days, aging_paused, aging_paused_at, aging_paused_reason,
	is_active, is_archived, created_by, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Address,
		&lead.Stage, &lead.Source, &lead.LastContactDate,
		&lead.AgingDays, &lead.AgingPaused, &lead.AgingPausedAt, &lead.AgingPausedReason,
		&lead.IsActive, &lead.IsArchived, &lead.CreatedBy, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// Create inserts a lead at the initial pipeline stage and seeds its first
// stage-history entry in the same transaction, so the history invariant (last
// entry matches the current stage) holds from birth.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO leads (name, email, phone, address, source, created_by, last_contact_date)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+leadColumns,
		params.Name, params.Email, params.Phone, params.Address, params.Source, params.CreatedBy,
	)
	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO lead_stage_history (lead_id, stage, changed_by)
		VALUES ($1, $2, $3)
	`, lead.ID, lead.Stage, params.CreatedBy)
	if err != nil {
		return Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// GetActiveByEmail looks up a reachable lead by exact (case-insensitive) email
// match. Archived and inactive leads are excluded so that inbound replies from
// closed-out contacts are ignored.
func (r *Repository) GetActiveByEmail(ctx context.Context, email string) (Lead, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE lower(email) = $1 AND is_active AND NOT is_archived
		ORDER BY created_at DESC
		LIMIT 1
	`, normalized)
	return scanLead(row)
}

// ListByStage returns non-archived leads, optionally filtered by stage.
func (r *Repository) ListByStage(ctx context.Context, stage *domain.Stage) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE NOT is_archived AND is_active`
	args := []any{}
	if stage != nil {
		query += ` AND stage = $1`
		args = append(args, *stage)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
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

// Archive soft-deletes a lead. Leads are never hard-deleted.
func (r *Repository) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET is_archived = TRUE, is_active = FALSE, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStage atomically sets the lead's stage and appends the matching
// stage-history entry. Both writes share one transaction so history can never
// diverge from the current stage.
func (r *Repository) TransitionStage(ctx context.Context, leadID uuid.UUID, stage domain.Stage, changedBy *uuid.UUID, comment *string) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE leads SET stage = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		leadID, stage,
	)
	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO lead_stage_history (lead_id, stage, changed_by, comment)
		VALUES ($1, $2, $3, $4)
	`, leadID, stage, changedBy, comment)
	if err != nil {
		return Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// TouchLastContact refreshes the last-contact marker, used when an automated
// or manual outreach goes out.
func (r *Repository) TouchLastContact(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET last_contact_date = $2, updated_at = now()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
