package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type LeadNote struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Title       string
	Body        string
	IsImportant bool
	CreatedBy   *uuid.UUID
	CreatedAt   time.Time
}

type CreateLeadNoteParams struct {
	LeadID      uuid.UUID
	Title       string
	Body        string
	IsImportant bool
	CreatedBy   *uuid.UUID
}

func (r *Repository) CreateLeadNote(ctx context.Context, params CreateLeadNoteParams) (LeadNote, error) {
	var note LeadNote
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_notes (lead_id, title, body, is_important, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, lead_id, title, body, is_important, created_by, created_at
	`, params.LeadID, params.Title, params.Body, params.IsImportant, params.CreatedBy).Scan(
		&note.ID,
		&note.LeadID,
		&note.Title,
		&note.Body,
		&note.IsImportant,
		&note.CreatedBy,
		&note.CreatedAt,
	)
	return note, err
}

func (r *Repository) ListLeadNotes(ctx context.Context, leadID uuid.UUID) ([]LeadNote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, title, body, is_important, created_by, created_at
		FROM lead_notes
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]LeadNote, 0)
	for rows.Next() {
		var note LeadNote
		if err := rows.Scan(
			&note.ID,
			&note.LeadID,
			&note.Title,
			&note.Body,
			&note.IsImportant,
			&note.CreatedBy,
			&note.CreatedAt,
		); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return notes, nil
}
