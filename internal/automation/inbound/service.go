// Package inbound resolves reply emails to leads and halts their follow-up
// sequences. Handling is idempotent: replaying the same reply leaves both the
// lead and its automation record untouched.
package inbound

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"crm_portal_backend/internal/automation/repository"
	"crm_portal_backend/internal/events"
	leadrepo "crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/platform/logger"
)

// AutomationStore is the automation data access needed for reply handling.
type AutomationStore interface {
	GetActiveByLead(ctx context.Context, leadID uuid.UUID) (repository.EmailAutomation, error)
	MarkReplied(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// LeadStore is the lead data access needed for reply handling.
type LeadStore interface {
	GetActiveByEmail(ctx context.Context, email string) (leadrepo.Lead, error)
	TouchLastContact(ctx context.Context, id uuid.UUID, at time.Time) error
}

// NoteAppender records the reply on the lead's timeline.
type NoteAppender interface {
	CreateLeadNote(ctx context.Context, params leadrepo.CreateLeadNoteParams) (leadrepo.LeadNote, error)
}

// Outcome describes what a reply resolution did.
type Outcome string

const (
	// OutcomeHalted means the reply stopped a running automation.
	OutcomeHalted Outcome = "halted"
	// OutcomeAlreadyHandled means the automation had already been stopped;
	// a duplicate delivery, handled without changes.
	OutcomeAlreadyHandled Outcome = "already_handled"
	// OutcomeNoAutomation means the lead exists but runs no automation.
	OutcomeNoAutomation Outcome = "no_automation"
	// OutcomeNoLead means no active lead matches the sender address.
	OutcomeNoLead Outcome = "no_lead"
)

// Service resolves inbound replies.
type Service struct {
	automations AutomationStore
	leads       LeadStore
	notes       NoteAppender
	bus         events.Bus
	log         *logger.Logger
	now         func() time.Time
}

// New creates a new inbound reply service.
func New(automations AutomationStore, leads LeadStore, notes NoteAppender, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		automations: automations,
		leads:       leads,
		notes:       notes,
		bus:         bus,
		log:         log,
		now:         time.Now,
	}
}

// normalizeAddress extracts the bare address from a From header value and
// lowercases it. "Jan Jansen <Jan@Example.nl>" becomes "jan@example.nl".
func normalizeAddress(from string) string {
	trimmed := strings.TrimSpace(from)
	if trimmed == "" {
		return ""
	}
	if parsed, err := mail.ParseAddress(trimmed); err == nil {
		return strings.ToLower(parsed.Address)
	}
	return strings.ToLower(trimmed)
}

// ResolveInbound matches a reply to the newest active lead with the sender's
// address and marks its automation as replied. Unmatched senders are a normal
// outcome, not an error; reply channels must never bounce.
func (s *Service) ResolveInbound(ctx context.Context, from, subject, body string) (Outcome, error) {
	address := normalizeAddress(from)
	if address == "" {
		s.log.Warn("inbound reply without sender address", "subject", subject)
		return OutcomeNoLead, nil
	}

	lead, err := s.leads.GetActiveByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, leadrepo.ErrNotFound) {
			s.log.Info("inbound reply from unknown sender", "from", address)
			return OutcomeNoLead, nil
		}
		return "", err
	}

	return s.HandleLeadReply(ctx, lead, address, subject, body)
}

// HandleLeadReply stops the lead's active automation, records the reply as a
// note and refreshes the lead's last contact. The stop is a conditional
// update that runs first and acts as the claim: only the delivery that wins
// it writes the note and last-contact touch, so a replayed delivery leaves
// the lead exactly as the first one did.
func (s *Service) HandleLeadReply(ctx context.Context, lead leadrepo.Lead, from, subject, body string) (Outcome, error) {
	now := s.now()

	automation, err := s.automations.GetActiveByLead(ctx, lead.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return OutcomeNoAutomation, nil
		}
		return "", err
	}

	marked, err := s.automations.MarkReplied(ctx, automation.ID, now)
	if err != nil {
		return "", err
	}
	if !marked {
		return OutcomeAlreadyHandled, nil
	}

	if err := s.leads.TouchLastContact(ctx, lead.ID, now); err != nil {
		s.log.Error("failed to update lead last contact", "error", err, "leadId", lead.ID)
	}
	s.appendReplyNote(ctx, lead.ID, from, subject, body)

	s.log.AutomationEvent("automation halted by reply", lead.ID.String(), automation.ID.String())
	s.bus.Publish(ctx, events.LeadReplied{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		AutomationID: automation.ID,
		FromAddress:  from,
		Subject:      subject,
	})

	return OutcomeHalted, nil
}

func (s *Service) appendReplyNote(ctx context.Context, leadID uuid.UUID, from, subject, body string) {
	title := "Reactie ontvangen"
	if trimmed := strings.TrimSpace(subject); trimmed != "" {
		title = "Re: " + trimmed
	}
	noteBody := strings.TrimSpace(body)
	if noteBody == "" {
		noteBody = "Reactie ontvangen van " + from
	}
	if len(noteBody) > 5000 {
		noteBody = noteBody[:5000]
	}

	_, err := s.notes.CreateLeadNote(ctx, leadrepo.CreateLeadNoteParams{
		LeadID: leadID,
		Title:  title,
		Body:   noteBody,
	})
	if err != nil {
		s.log.Error("failed to record reply note", "error", err, "leadId", leadID)
	}
}
