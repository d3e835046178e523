// Package pipeline implements the stage transition engine: validating stage
// changes, appending version history, and driving the email-automation side
// effects of entering or leaving a stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_portal_backend/internal/events"
	"crm_portal_backend/internal/leads/domain"
	"crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/platform/apperr"
	"crm_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// LeadStore is the data access interface needed by the pipeline service.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	TransitionStage(ctx context.Context, leadID uuid.UUID, stage domain.Stage, changedBy *uuid.UUID, comment *string) (repository.Lead, error)
	ListStageHistory(ctx context.Context, leadID uuid.UUID) ([]repository.StageHistoryEntry, error)
}

// AutomationLifecycle is the automation port the engine drives as a side
// effect of stage changes. Implemented by the automation lifecycle service.
type AutomationLifecycle interface {
	StartForStage(ctx context.Context, leadID uuid.UUID, stage domain.Stage, now time.Time) (bool, error)
	HaltForLead(ctx context.Context, leadID uuid.UUID, reason string) error
}

// TransitionResult is the outcome of a stage transition.
type TransitionResult struct {
	Lead    repository.Lead
	History []repository.StageHistoryEntry
}

// Service validates and applies stage transitions.
type Service struct {
	repo       LeadStore
	automation AutomationLifecycle
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

// New creates a new pipeline service.
func New(repo LeadStore, automation AutomationLifecycle, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		automation: automation,
		bus:        bus,
		log:        log,
		now:        time.Now,
	}
}

// TransitionStage moves a lead to a new pipeline stage. The stage update and
// history append are atomic; automation side effects follow after commit and
// are themselves guarded by conditional updates, so a lost race here can never
// resurrect a halted automation.
func (s *Service) TransitionStage(ctx context.Context, leadID uuid.UUID, newStage domain.Stage, actorID *uuid.UUID, comment *string) (TransitionResult, error) {
	if !domain.IsKnownStage(newStage) {
		return TransitionResult{}, apperr.Validation(fmt.Sprintf("unknown pipeline stage %q", newStage))
	}

	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TransitionResult{}, apperr.NotFound("lead not found")
		}
		return TransitionResult{}, err
	}
	if lead.IsArchived {
		return TransitionResult{}, apperr.Validation("archived leads cannot change stage")
	}

	oldStage := lead.Stage
	lead, err = s.repo.TransitionStage(ctx, leadID, newStage, actorID, comment)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TransitionResult{}, apperr.NotFound("lead not found")
		}
		return TransitionResult{}, err
	}

	if newStage.IsTerminal() {
		// Terminal stages never send further automated emails.
		if err := s.automation.HaltForLead(ctx, leadID, "lead reached "+newStage.String()); err != nil {
			s.log.Error("failed to halt automation after terminal transition", "error", err, "leadId", leadID)
		}
	} else {
		if _, err := s.automation.StartForStage(ctx, leadID, newStage, s.now()); err != nil {
			s.log.Error("failed to start automation for stage", "error", err, "leadId", leadID, "stage", newStage)
		}
	}

	history, err := s.repo.ListStageHistory(ctx, leadID)
	if err != nil {
		return TransitionResult{}, err
	}

	s.bus.Publish(ctx, events.LeadStageChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		OldStage:  oldStage.String(),
		NewStage:  newStage.String(),
		ChangedBy: actorID,
	})

	return TransitionResult{Lead: lead, History: history}, nil
}

// ListStageHistory returns a lead's stage changes, oldest first.
func (s *Service) ListStageHistory(ctx context.Context, leadID uuid.UUID) ([]repository.StageHistoryEntry, error) {
	if _, err := s.repo.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, err
	}
	return s.repo.ListStageHistory(ctx, leadID)
}
