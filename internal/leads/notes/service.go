// Package notes manages notes and follow-up tasks attached to a lead.
package notes

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/internal/leads/transport"
	"crm_portal_backend/platform/apperr"
)

// Store is the data access interface needed by the notes service.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	CreateLeadNote(ctx context.Context, params repository.CreateLeadNoteParams) (repository.LeadNote, error)
	ListLeadNotes(ctx context.Context, leadID uuid.UUID) ([]repository.LeadNote, error)
	CreateLeadTask(ctx context.Context, params repository.CreateLeadTaskParams) (repository.LeadTask, error)
	CompleteLeadTask(ctx context.Context, taskID uuid.UUID) (repository.LeadTask, error)
	ListLeadTasks(ctx context.Context, leadID uuid.UUID) ([]repository.LeadTask, error)
}

// Service manages lead notes and tasks.
type Service struct {
	repo Store
}

// New creates a new notes service.
func New(repo Store) *Service {
	return &Service{repo: repo}
}

func (s *Service) requireLead(ctx context.Context, leadID uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	return nil
}

// AddNote attaches a note to a lead.
func (s *Service) AddNote(ctx context.Context, leadID uuid.UUID, req transport.CreateNoteRequest, createdBy *uuid.UUID) (repository.LeadNote, error) {
	if err := s.requireLead(ctx, leadID); err != nil {
		return repository.LeadNote{}, err
	}

	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	if title == "" || body == "" {
		return repository.LeadNote{}, apperr.Validation("note title and body are required")
	}

	return s.repo.CreateLeadNote(ctx, repository.CreateLeadNoteParams{
		LeadID:      leadID,
		Title:       title,
		Body:        body,
		IsImportant: req.IsImportant,
		CreatedBy:   createdBy,
	})
}

// ListNotes returns a lead's notes, newest first.
func (s *Service) ListNotes(ctx context.Context, leadID uuid.UUID) ([]repository.LeadNote, error) {
	if err := s.requireLead(ctx, leadID); err != nil {
		return nil, err
	}
	return s.repo.ListLeadNotes(ctx, leadID)
}

// AddTask attaches a follow-up task to a lead.
func (s *Service) AddTask(ctx context.Context, leadID uuid.UUID, req transport.CreateTaskRequest) (repository.LeadTask, error) {
	if err := s.requireLead(ctx, leadID); err != nil {
		return repository.LeadTask{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return repository.LeadTask{}, apperr.Validation("task title is required")
	}
	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}

	return s.repo.CreateLeadTask(ctx, repository.CreateLeadTaskParams{
		LeadID:     leadID,
		Title:      title,
		Priority:   priority,
		AssignedTo: req.AssignedTo,
	})
}

// CompleteTask marks a task as completed. Completing a completed task keeps
// the original completion time.
func (s *Service) CompleteTask(ctx context.Context, taskID uuid.UUID) (repository.LeadTask, error) {
	task, err := s.repo.CompleteLeadTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return repository.LeadTask{}, apperr.NotFound("task not found")
		}
		return repository.LeadTask{}, err
	}
	return task, nil
}

// ListTasks returns a lead's tasks, open ones first.
func (s *Service) ListTasks(ctx context.Context, leadID uuid.UUID) ([]repository.LeadTask, error) {
	if err := s.requireLead(ctx, leadID); err != nil {
		return nil, err
	}
	return s.repo.ListLeadTasks(ctx, leadID)
}
