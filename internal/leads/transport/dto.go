// Package transport defines the request and response shapes of the leads API.
package transport

import (
	"time"

	"github.com/google/uuid"

	"crm_portal_backend/internal/leads/repository"
)

// CreateLeadRequest captures a new lead, either from the portal or from a
// website form.
type CreateLeadRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Address string `json:"address" validate:"omitempty,max=500"`
	Source  string `json:"source" validate:"omitempty,max=100"`
}

// TransitionStageRequest moves a lead to another pipeline stage.
type TransitionStageRequest struct {
	Stage   string `json:"stage" validate:"required"`
	Comment string `json:"comment" validate:"omitempty,max=1000"`
}

// ToggleAgingPauseRequest pauses or resumes aging for a lead.
type ToggleAgingPauseRequest struct {
	Paused bool   `json:"paused"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// CreateNoteRequest adds a note to a lead.
type CreateNoteRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Body        string `json:"body" validate:"required,min=1,max=5000"`
	IsImportant bool   `json:"isImportant"`
}

// CreateTaskRequest adds a follow-up task to a lead.
type CreateTaskRequest struct {
	Title      string     `json:"title" validate:"required,min=1,max=200"`
	Priority   string     `json:"priority" validate:"omitempty,oneof=low normal high"`
	AssignedTo *uuid.UUID `json:"assignedTo"`
}

// LeadResponse is the API shape of a lead.
type LeadResponse struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Email             *string    `json:"email"`
	Phone             *string    `json:"phone"`
	Address           *string    `json:"address"`
	Stage             string     `json:"stage"`
	Source            *string    `json:"source"`
	LastContactDate   *time.Time `json:"lastContactDate"`
	AgingDays         int        `json:"agingDays"`
	AgingPaused       bool       `json:"agingPaused"`
	AgingPausedReason *string    `json:"agingPausedReason,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// StageHistoryEntryResponse is one entry of a lead's stage trail.
type StageHistoryEntryResponse struct {
	ID        uuid.UUID  `json:"id"`
	Stage     string     `json:"stage"`
	ChangedBy *uuid.UUID `json:"changedBy,omitempty"`
	Comment   *string    `json:"comment,omitempty"`
	ChangedAt time.Time  `json:"changedAt"`
}

// LeadDetailResponse is a lead together with its stage history.
type LeadDetailResponse struct {
	Lead    LeadResponse                `json:"lead"`
	History []StageHistoryEntryResponse `json:"history"`
}

// NoteResponse is the API shape of a lead note.
type NoteResponse struct {
	ID          uuid.UUID  `json:"id"`
	LeadID      uuid.UUID  `json:"leadId"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	IsImportant bool       `json:"isImportant"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// TaskResponse is the API shape of a lead task.
type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	LeadID      uuid.UUID  `json:"leadId"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// StalledLeadResponse is one row of the stalled-leads report.
type StalledLeadResponse struct {
	Lead      LeadResponse `json:"lead"`
	AgingDays int          `json:"agingDays"`
}

// ToLeadResponse maps a stored lead to its API shape.
func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:                lead.ID,
		Name:              lead.Name,
		Email:             lead.Email,
		Phone:             lead.Phone,
		Address:           lead.Address,
		Stage:             lead.Stage.String(),
		Source:            lead.Source,
		LastContactDate:   lead.LastContactDate,
		AgingDays:         lead.AgingDays,
		AgingPaused:       lead.AgingPaused,
		AgingPausedReason: lead.AgingPausedReason,
		CreatedAt:         lead.CreatedAt,
		UpdatedAt:         lead.UpdatedAt,
	}
}

// ToLeadResponses maps a slice of stored leads.
func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}

// ToStageHistoryResponses maps a lead's stage trail.
func ToStageHistoryResponses(entries []repository.StageHistoryEntry) []StageHistoryEntryResponse {
	out := make([]StageHistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, StageHistoryEntryResponse{
			ID:        entry.ID,
			Stage:     entry.Stage.String(),
			ChangedBy: entry.ChangedBy,
			Comment:   entry.Comment,
			ChangedAt: entry.ChangedAt,
		})
	}
	return out
}

// ToNoteResponse maps a stored note.
func ToNoteResponse(note repository.LeadNote) NoteResponse {
	return NoteResponse{
		ID:          note.ID,
		LeadID:      note.LeadID,
		Title:       note.Title,
		Body:        note.Body,
		IsImportant: note.IsImportant,
		CreatedBy:   note.CreatedBy,
		CreatedAt:   note.CreatedAt,
	}
}

// ToTaskResponse maps a stored task.
func ToTaskResponse(task repository.LeadTask) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		LeadID:      task.LeadID,
		Title:       task.Title,
		Status:      task.Status,
		Priority:    task.Priority,
		AssignedTo:  task.AssignedTo,
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
	}
}
