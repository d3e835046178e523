package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrTaskNotFound = errors.New("task not found")

const (
	TaskStatusOpen      = "open"
	TaskStatusCompleted = "completed"
)

type LeadTask struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Title       string
	Status      string
	Priority    string
	AssignedTo  *uuid.UUID
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateLeadTaskParams struct {
	LeadID     uuid.UUID
	Title      string
	Priority   string
	AssignedTo *uuid.UUID
}

func (r *Repository) CreateLeadTask(ctx context.Context, params CreateLeadTaskParams) (LeadTask, error) {
	var task LeadTask
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_tasks (lead_id, title, priority, assigned_to)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, title, status, priority, assigned_to, completed_at, created_at, updated_at
	`, params.LeadID, params.Title, params.Priority, params.AssignedTo).Scan(
		&task.ID, &task.LeadID, &task.Title, &task.Status, &task.Priority,
		&task.AssignedTo, &task.CompletedAt, &task.CreatedAt, &task.UpdatedAt,
	)
	return task, err
}

// CompleteLeadTask marks a task completed and stamps completed_at. Completing
// an already-completed task keeps the original timestamp.
func (r *Repository) CompleteLeadTask(ctx context.Context, taskID uuid.UUID) (LeadTask, error) {
	var task LeadTask
	err := r.pool.QueryRow(ctx, `
		UPDATE lead_tasks
		SET status = $2,
		    completed_at = COALESCE(completed_at, now()),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, lead_id, title, status, priority, assigned_to, completed_at, created_at, updated_at
	`, taskID, TaskStatusCompleted).Scan(
		&task.ID, &task.LeadID, &task.Title, &task.Status, &task.Priority,
		&task.AssignedTo, &task.CompletedAt, &task.CreatedAt, &task.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeadTask{}, ErrTaskNotFound
	}
	return task, err
}

func (r *Repository) ListLeadTasks(ctx context.Context, leadID uuid.UUID) ([]LeadTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, title, status, priority, assigned_to, completed_at, created_at, updated_at
		FROM lead_tasks
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]LeadTask, 0)
	for rows.Next() {
		var task LeadTask
		if err := rows.Scan(
			&task.ID, &task.LeadID, &task.Title, &task.Status, &task.Priority,
			&task.AssignedTo, &task.CompletedAt, &task.CreatedAt, &task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
