// Package scheduler processes due email automations. A run selects every
// active automation whose next send moment has passed, sends the step's email
// and advances the record with a conditional update, so two overlapping runs
// never send the same step twice.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"crm_portal_backend/internal/automation/domain"
	"crm_portal_backend/internal/automation/repository"
	"crm_portal_backend/internal/email"
	"crm_portal_backend/internal/events"
	leadrepo "crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/platform/logger"
)

// AutomationStore is the automation data access needed by a scheduler run.
type AutomationStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]repository.EmailAutomation, error)
	AdvanceStep(ctx context.Context, id uuid.UUID, expectedStep, nextStep int, nextSendAt *time.Time, stillActive bool, sentAt time.Time) error
	DeactivateActiveForLead(ctx context.Context, leadID uuid.UUID, reason string) (int64, error)
	RecordSendFailure(ctx context.Context, id uuid.UUID, sendErr string) error
	InsertSendLog(ctx context.Context, params repository.InsertSendLogParams) error
}

// LeadStore is the lead data access needed by a scheduler run.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadrepo.Lead, error)
	TouchLastContact(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Result summarizes one scheduler run. A run never fails on a single bad
// record; per-record outcomes are tallied here instead.
type Result struct {
	Processed  int         `json:"processed"`
	Sent       int         `json:"sent"`
	Completed  int         `json:"completed"`
	Failed     int         `json:"failed"`
	Skipped    int         `json:"skipped"`
	Conflicts  int         `json:"conflicts"`
	SentIDs    []uuid.UUID `json:"sentIds,omitempty"`
	FailedIDs  []uuid.UUID `json:"failedIds,omitempty"`
	SkippedIDs []uuid.UUID `json:"skippedIds,omitempty"`
}

// Service runs the email automation scheduler.
type Service struct {
	automations AutomationStore
	leads       LeadStore
	sender      email.Sender
	bus         events.Bus
	log         *logger.Logger

	batchLimit  int
	concurrency int
	now         func() time.Time
}

// New creates a new scheduler service.
func New(automations AutomationStore, leads LeadStore, sender email.Sender, bus events.Bus, log *logger.Logger, batchLimit, concurrency int) *Service {
	if batchLimit < 1 {
		batchLimit = 100
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		automations: automations,
		leads:       leads,
		sender:      sender,
		bus:         bus,
		log:         log,
		batchLimit:  batchLimit,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// ProcessDueEmails selects due automations and works through them with a
// bounded worker group. Send failures are recorded on the automation and do
// not abort the batch; a lost claim race is counted and otherwise ignored.
func (s *Service) ProcessDueEmails(ctx context.Context) (Result, error) {
	now := s.now()

	due, err := s.automations.ListDue(ctx, now, s.batchLimit)
	if err != nil {
		return Result{}, err
	}

	var (
		mu     sync.Mutex
		result Result
	)
	result.Processed = len(due)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, automation := range due {
		automation := automation
		g.Go(func() error {
			outcome := s.processOne(gctx, automation, now)

			mu.Lock()
			defer mu.Unlock()
			switch outcome.kind {
			case outcomeSent:
				result.Sent++
				result.SentIDs = append(result.SentIDs, automation.ID)
				if outcome.completed {
					result.Completed++
				}
			case outcomeFailed:
				result.Failed++
				result.FailedIDs = append(result.FailedIDs, automation.ID)
			case outcomeSkipped:
				result.Skipped++
				result.SkippedIDs = append(result.SkippedIDs, automation.ID)
			case outcomeConflict:
				result.Conflicts++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	s.log.Info("automation run finished",
		"processed", result.Processed,
		"sent", result.Sent,
		"completed", result.Completed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"conflicts", result.Conflicts,
	)
	return result, nil
}

type outcomeKind int

const (
	outcomeSent outcomeKind = iota
	outcomeFailed
	outcomeSkipped
	outcomeConflict
)

type outcome struct {
	kind      outcomeKind
	completed bool
}

func (s *Service) processOne(ctx context.Context, automation repository.EmailAutomation, now time.Time) outcome {
	lead, err := s.leads.GetByID(ctx, automation.LeadID)
	if err != nil {
		s.log.Error("failed to load lead for due automation", "error", err, "automationId", automation.ID, "leadId", automation.LeadID)
		return outcome{kind: outcomeFailed}
	}

	// A lead can leave the pipeline between selection and processing. Those
	// automations are deactivated rather than sent.
	if !lead.IsActive || lead.IsArchived {
		s.deactivate(ctx, automation, "lead no longer active")
		return outcome{kind: outcomeSkipped}
	}
	if lead.Stage.IsTerminal() {
		s.deactivate(ctx, automation, "lead reached "+lead.Stage.String())
		return outcome{kind: outcomeSkipped}
	}
	if lead.Email == nil || *lead.Email == "" {
		s.deactivate(ctx, automation, "lead has no email address")
		return outcome{kind: outcomeSkipped}
	}

	seq, ok := domain.SequenceByKey(automation.SequenceKey)
	if !ok {
		s.deactivate(ctx, automation, "unknown sequence "+automation.SequenceKey)
		return outcome{kind: outcomeSkipped}
	}
	step, ok := seq.StepAt(automation.CurrentStep)
	if !ok {
		s.deactivate(ctx, automation, "sequence exhausted")
		return outcome{kind: outcomeSkipped}
	}

	if err := s.sender.SendSequenceStep(ctx, *lead.Email, lead.Name, step.Template); err != nil {
		s.log.Error("failed to send sequence email", "error", err, "automationId", automation.ID, "template", step.Template)
		if recErr := s.automations.RecordSendFailure(ctx, automation.ID, err.Error()); recErr != nil {
			s.log.Error("failed to record send failure", "error", recErr, "automationId", automation.ID)
		}
		s.appendSendLog(ctx, automation, step.Template, false, err)
		return outcome{kind: outcomeFailed}
	}

	nextStep := automation.CurrentStep + 1
	stillActive := !seq.Exhausted(nextStep)
	var nextSendAt *time.Time
	if stillActive {
		if due, ok := seq.DueAt(nextStep, now); ok {
			nextSendAt = &due
		}
	}

	err = s.automations.AdvanceStep(ctx, automation.ID, automation.CurrentStep, nextStep, nextSendAt, stillActive, now)
	if errors.Is(err, repository.ErrConflict) {
		// Another run claimed this step first; its email already went out, so
		// this attempt is discarded without side effects on the record.
		s.log.Warn("lost claim on automation step", "automationId", automation.ID, "step", automation.CurrentStep)
		return outcome{kind: outcomeConflict}
	}
	if err != nil {
		s.log.Error("failed to advance automation", "error", err, "automationId", automation.ID)
		return outcome{kind: outcomeFailed}
	}

	if err := s.leads.TouchLastContact(ctx, lead.ID, now); err != nil {
		s.log.Error("failed to update lead last contact", "error", err, "leadId", lead.ID)
	}
	s.appendSendLog(ctx, automation, step.Template, true, nil)

	s.log.AutomationEvent("sequence step sent", lead.ID.String(), automation.ID.String())
	s.bus.Publish(ctx, events.AutomationEmailSent{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		AutomationID: automation.ID,
		Step:         automation.CurrentStep,
		Template:     step.Template,
	})
	if !stillActive {
		s.bus.Publish(ctx, events.AutomationCompleted{
			BaseEvent:    events.NewBaseEvent(),
			LeadID:       lead.ID,
			AutomationID: automation.ID,
		})
	}

	return outcome{kind: outcomeSent, completed: !stillActive}
}

func (s *Service) deactivate(ctx context.Context, automation repository.EmailAutomation, reason string) {
	if _, err := s.automations.DeactivateActiveForLead(ctx, automation.LeadID, reason); err != nil {
		s.log.Error("failed to deactivate automation", "error", err, "automationId", automation.ID, "reason", reason)
	}
}

func (s *Service) appendSendLog(ctx context.Context, automation repository.EmailAutomation, template string, success bool, sendErr error) {
	var errText *string
	if sendErr != nil {
		msg := sendErr.Error()
		errText = &msg
	}
	err := s.automations.InsertSendLog(ctx, repository.InsertSendLogParams{
		AutomationID: automation.ID,
		LeadID:       automation.LeadID,
		Step:         automation.CurrentStep,
		Template:     template,
		Success:      success,
		Error:        errText,
	})
	if err != nil {
		s.log.Error("failed to append send log", "error", err, "automationId", automation.ID)
	}
}
