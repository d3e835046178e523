// Package management handles lead capture and basic lead administration.
// Stage transitions live in the pipeline package; this slice covers creation,
// lookup, listing and archival.
package management

import (
	"context"
	"errors"
	"strings"
	"time"

	"crm_portal_backend/internal/events"
	"crm_portal_backend/internal/leads/domain"
	"crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/internal/leads/transport"
	"crm_portal_backend/platform/apperr"
	"crm_portal_backend/platform/logger"
	"crm_portal_backend/platform/phone"

	"github.com/google/uuid"
)

// LeadStore is the data access interface needed by the management service.
type LeadStore interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	ListByStage(ctx context.Context, stage *domain.Stage) ([]repository.Lead, error)
	ListStageHistory(ctx context.Context, leadID uuid.UUID) ([]repository.StageHistoryEntry, error)
	Archive(ctx context.Context, id uuid.UUID) error
}

// AutomationLifecycle is the automation port used when leads enter or leave
// the pipeline.
type AutomationLifecycle interface {
	StartForStage(ctx context.Context, leadID uuid.UUID, stage domain.Stage, now time.Time) (bool, error)
	HaltForLead(ctx context.Context, leadID uuid.UUID, reason string) error
}

// Service handles lead capture and administration.
type Service struct {
	repo       LeadStore
	automation AutomationLifecycle
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

// New creates a new management service.
func New(repo LeadStore, automation AutomationLifecycle, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		automation: automation,
		bus:        bus,
		log:        log,
		now:        time.Now,
	}
}

// Create captures a new lead at the initial pipeline stage and starts the
// stage's follow-up sequence.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest, createdBy *uuid.UUID) (repository.Lead, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return repository.Lead{}, apperr.Validation("lead name is required")
	}

	var email *string
	if trimmed := strings.ToLower(strings.TrimSpace(req.Email)); trimmed != "" {
		email = &trimmed
	}
	var phoneNumber *string
	if normalized := phone.NormalizeE164(req.Phone); normalized != "" {
		phoneNumber = &normalized
	}
	var address *string
	if trimmed := strings.TrimSpace(req.Address); trimmed != "" {
		address = &trimmed
	}
	var source *string
	if trimmed := strings.TrimSpace(req.Source); trimmed != "" {
		source = &trimmed
	}

	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		Name:      name,
		Email:     email,
		Phone:     phoneNumber,
		Address:   address,
		Source:    source,
		CreatedBy: createdBy,
	})
	if err != nil {
		return repository.Lead{}, err
	}

	if _, err := s.automation.StartForStage(ctx, lead.ID, lead.Stage, s.now()); err != nil {
		s.log.Error("failed to start automation for new lead", "error", err, "leadId", lead.ID)
	}

	emailValue := ""
	if email != nil {
		emailValue = *email
	}
	sourceValue := ""
	if source != nil {
		sourceValue = *source
	}
	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Email:     emailValue,
		Source:    sourceValue,
	})

	return lead, nil
}

// Get returns a lead with its stage history.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, []repository.StageHistoryEntry, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, nil, apperr.NotFound("lead not found")
		}
		return repository.Lead{}, nil, err
	}

	history, err := s.repo.ListStageHistory(ctx, id)
	if err != nil {
		return repository.Lead{}, nil, err
	}
	return lead, history, nil
}

// List returns reachable leads, optionally filtered by pipeline stage.
func (s *Service) List(ctx context.Context, stage string) ([]repository.Lead, error) {
	var filter *domain.Stage
	if trimmed := strings.TrimSpace(stage); trimmed != "" {
		candidate := domain.Stage(trimmed)
		if !domain.IsKnownStage(candidate) {
			return nil, apperr.Validation("unknown pipeline stage filter")
		}
		filter = &candidate
	}
	return s.repo.ListByStage(ctx, filter)
}

// Archive soft-deletes a lead and halts any running automation. Archived
// leads are excluded from pipelines, stats and reply matching.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Archive(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	return s.automation.HaltForLead(ctx, id, "lead archived")
}
