// Package lifecycle manages creation, pausing and halting of per-lead email
// automations. All state changes go through the repository's conditional
// updates so the one-active-per-lead and replied-implies-inactive invariants
// hold under concurrent callers.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"crm_portal_backend/internal/automation/domain"
	"crm_portal_backend/internal/automation/repository"
	leaddomain "crm_portal_backend/internal/leads/domain"
	"crm_portal_backend/platform/apperr"
	"crm_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the data access interface needed by the lifecycle service.
type Store interface {
	CreateForLead(ctx context.Context, leadID uuid.UUID, sequenceKey string, nextSendAt time.Time) (repository.EmailAutomation, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.EmailAutomation, error)
	GetActiveByLead(ctx context.Context, leadID uuid.UUID) (repository.EmailAutomation, error)
	DeactivateActiveForLead(ctx context.Context, leadID uuid.UUID, reason string) (int64, error)
	Pause(ctx context.Context, id uuid.UUID, reason string, at time.Time) (repository.EmailAutomation, error)
	Resume(ctx context.Context, id uuid.UUID, nextSendAt time.Time) (repository.EmailAutomation, error)
	ListSendLog(ctx context.Context, automationID uuid.UUID) ([]repository.SendLogEntry, error)
}

// Service coordinates automation lifecycle transitions.
type Service struct {
	store Store
	log   *logger.Logger
}

// New creates a new lifecycle service.
func New(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// StartForStage starts the stage's follow-up sequence for a lead, if the stage
// has one and the lead has no active automation yet. Returns true when a new
// automation was created.
func (s *Service) StartForStage(ctx context.Context, leadID uuid.UUID, stage leaddomain.Stage, now time.Time) (bool, error) {
	seq, ok := domain.SequenceForStage(stage)
	if !ok {
		return false, nil
	}

	if existing, err := s.store.GetActiveByLead(ctx, leadID); err == nil {
		// A running automation is never restarted by a stage change into the
		// same or another sequenced stage.
		if existing.SequenceKey == seq.Key {
			return false, nil
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	firstDue, _ := seq.DueAt(0, now)
	automation, err := s.store.CreateForLead(ctx, leadID, seq.Key, firstDue)
	if err != nil {
		return false, err
	}

	s.log.AutomationEvent("sequence_started", leadID.String(), automation.ID.String())
	return true, nil
}

// HaltForLead ends any active automation for the lead, e.g. when the lead
// reaches a terminal stage or is archived.
func (s *Service) HaltForLead(ctx context.Context, leadID uuid.UUID, reason string) error {
	halted, err := s.store.DeactivateActiveForLead(ctx, leadID, reason)
	if err != nil {
		return err
	}
	if halted > 0 {
		s.log.AutomationEvent("sequence_halted", leadID.String(), "")
	}
	return nil
}

// GetForLead returns the lead's active automation with its send log.
func (s *Service) GetForLead(ctx context.Context, leadID uuid.UUID) (repository.EmailAutomation, []repository.SendLogEntry, error) {
	automation, err := s.store.GetActiveByLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.EmailAutomation{}, nil, apperr.NotFound("no active automation for lead")
		}
		return repository.EmailAutomation{}, nil, err
	}

	log, err := s.store.ListSendLog(ctx, automation.ID)
	if err != nil {
		return repository.EmailAutomation{}, nil, err
	}
	return automation, log, nil
}

// Pause halts scheduled sends for an automation without ending it.
func (s *Service) Pause(ctx context.Context, automationID uuid.UUID, reason string, now time.Time) (repository.EmailAutomation, error) {
	automation, err := s.store.Pause(ctx, automationID, reason, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.EmailAutomation{}, apperr.Conflict("automation is not active or already paused")
		}
		return repository.EmailAutomation{}, err
	}
	s.log.AutomationEvent("sequence_paused", automation.LeadID.String(), automation.ID.String())
	return automation, nil
}

// Resume lifts a pause. The current step is rescheduled relative to now using
// its own delay, so a long pause does not cause an immediate burst of sends.
func (s *Service) Resume(ctx context.Context, automationID uuid.UUID, now time.Time) (repository.EmailAutomation, error) {
	current, err := s.store.GetByID(ctx, automationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.EmailAutomation{}, apperr.NotFound("automation not found")
		}
		return repository.EmailAutomation{}, err
	}

	seq, ok := domain.SequenceByKey(current.SequenceKey)
	if !ok {
		return repository.EmailAutomation{}, apperr.Internal("automation references unknown sequence")
	}

	nextDue, ok := seq.DueAt(current.CurrentStep, now)
	if !ok {
		// Sequence exhausted while paused; nothing left to schedule.
		if err := s.HaltForLead(ctx, current.LeadID, "sequence completed"); err != nil {
			return repository.EmailAutomation{}, err
		}
		return s.store.GetByID(ctx, automationID)
	}

	automation, err := s.store.Resume(ctx, automationID, nextDue)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.EmailAutomation{}, apperr.Conflict("automation is not paused")
		}
		return repository.EmailAutomation{}, err
	}

	s.log.AutomationEvent("sequence_resumed", automation.LeadID.String(), automation.ID.String())
	return automation, nil
}
