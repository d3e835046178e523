// Package aging computes how long a lead has been waiting on contact and
// drives the stalled-leads report. Aging counts whole days since the last
// touchpoint and freezes while a lead is paused, for instance when a customer
// is on holiday.
package aging

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/platform/apperr"
	"crm_portal_backend/platform/logger"
)

// LeadStore is the data access interface needed by the aging service.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	PauseAging(ctx context.Context, leadID uuid.UUID, reason string, at time.Time) (repository.Lead, error)
	ResumeAging(ctx context.Context, leadID uuid.UUID, at time.Time) (repository.Lead, error)
	SetAgingDays(ctx context.Context, leadID uuid.UUID, days int) error
	ListUnpausedActive(ctx context.Context) ([]repository.Lead, error)
}

// Service computes and maintains lead aging.
type Service struct {
	repo LeadStore
	log  *logger.Logger
	now  func() time.Time
}

// New creates a new aging service.
func New(repo LeadStore, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// ComputeAging returns the number of whole days a lead has gone without
// contact as of the given moment. Paused leads return the value stored at
// pause time; the clock does not advance while paused.
func ComputeAging(lead repository.Lead, asOf time.Time) int {
	if lead.AgingPaused {
		return lead.AgingDays
	}
	reference := lead.CreatedAt
	if lead.LastContactDate != nil {
		reference = *lead.LastContactDate
	}
	days := int(asOf.Sub(reference).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// TogglePause pauses or resumes the aging clock for a lead. Pausing records
// the moment as a touchpoint, so a resumed lead starts counting from zero.
func (s *Service) TogglePause(ctx context.Context, leadID uuid.UUID, paused bool, reason string) (repository.Lead, error) {
	now := s.now()

	var (
		lead repository.Lead
		err  error
	)
	if paused {
		lead, err = s.repo.PauseAging(ctx, leadID, reason, now)
	} else {
		lead, err = s.repo.ResumeAging(ctx, leadID, now)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found or aging already in the requested state")
		}
		return repository.Lead{}, err
	}
	return lead, nil
}

// RecomputeAll refreshes the stored aging value of every unpaused active
// lead. A failure on one lead is logged and does not stop the sweep.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	leads, err := s.repo.ListUnpausedActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	updated := 0
	for _, lead := range leads {
		days := ComputeAging(lead, now)
		if days == lead.AgingDays {
			continue
		}
		if err := s.repo.SetAgingDays(ctx, lead.ID, days); err != nil {
			s.log.Error("failed to update lead aging", "error", err, "leadId", lead.ID)
			continue
		}
		updated++
	}
	return updated, nil
}

// StalledLead is one row of the stalled-leads report.
type StalledLead struct {
	Lead      repository.Lead
	AgingDays int
}

// Stalled returns the unpaused active leads whose aging meets the threshold,
// excluding terminal stages. The most neglected leads come first.
func (s *Service) Stalled(ctx context.Context, thresholdDays int) ([]StalledLead, error) {
	if thresholdDays < 1 {
		return nil, apperr.Validation("stalled threshold must be at least one day")
	}

	leads, err := s.repo.ListUnpausedActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stalled := make([]StalledLead, 0)
	for _, lead := range leads {
		if lead.Stage.IsTerminal() {
			continue
		}
		days := ComputeAging(lead, now)
		if days >= thresholdDays {
			stalled = append(stalled, StalledLead{Lead: lead, AgingDays: days})
		}
	}

	sort.SliceStable(stalled, func(i, j int) bool {
		return stalled[i].AgingDays > stalled[j].AgingDays
	})

	return stalled, nil
}
