// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crm_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead is captured.
type LeadCreated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Email  string    `json:"email,omitempty"`
	Source string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadStageChanged is published after a stage transition has been persisted.
type LeadStageChanged struct {
	BaseEvent
	LeadID    uuid.UUID  `json:"leadId"`
	OldStage  string     `json:"oldStage"`
	NewStage  string     `json:"newStage"`
	ChangedBy *uuid.UUID `json:"changedBy,omitempty"`
}

func (e LeadStageChanged) EventName() string { return "leads.stage.changed" }

// LeadReplied is published when an inbound reply was matched to a lead and its
// automation was halted.
type LeadReplied struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	AutomationID uuid.UUID `json:"automationId"`
	FromAddress  string    `json:"fromAddress"`
	Subject      string    `json:"subject,omitempty"`
}

func (e LeadReplied) EventName() string { return "automation.lead.replied" }

// =============================================================================
// Automation Domain Events
// =============================================================================

// AutomationEmailSent is published after a sequence step email went out and
// the step advance was persisted.
type AutomationEmailSent struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	AutomationID uuid.UUID `json:"automationId"`
	Step         int       `json:"step"`
	Template     string    `json:"template"`
}

func (e AutomationEmailSent) EventName() string { return "automation.email.sent" }

// AutomationCompleted is published when a sequence runs out of steps.
type AutomationCompleted struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	AutomationID uuid.UUID `json:"automationId"`
}

func (e AutomationCompleted) EventName() string { return "automation.sequence.completed" }
