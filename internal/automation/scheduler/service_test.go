package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"crm_portal_backend/internal/automation/repository"
	"crm_portal_backend/internal/email"
	"crm_portal_backend/internal/events"
	"crm_portal_backend/internal/leads/domain"
	leadrepo "crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/platform/logger"
)

type fakeAutomationStore struct {
	mu          sync.Mutex
	due         []repository.EmailAutomation
	steps       map[uuid.UUID]int
	deactivated map[uuid.UUID]string
	failures    map[uuid.UUID]string
	sendLog     []repository.InsertSendLogParams
}

func newFakeAutomationStore() *fakeAutomationStore {
	return &fakeAutomationStore{
		steps:       make(map[uuid.UUID]int),
		deactivated: make(map[uuid.UUID]string),
		failures:    make(map[uuid.UUID]string),
	}
}

func (f *fakeAutomationStore) addDue(leadID uuid.UUID, sequenceKey string, step int) repository.EmailAutomation {
	a := repository.EmailAutomation{
		ID:          uuid.New(),
		LeadID:      leadID,
		SequenceKey: sequenceKey,
		CurrentStep: step,
		IsActive:    true,
	}
	f.due = append(f.due, a)
	f.steps[a.ID] = step
	return a
}

func (f *fakeAutomationStore) ListDue(_ context.Context, _ time.Time, limit int) ([]repository.EmailAutomation, error) {
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeAutomationStore) AdvanceStep(_ context.Context, id uuid.UUID, expectedStep, nextStep int, _ *time.Time, _ bool, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.steps[id] != expectedStep {
		return repository.ErrConflict
	}
	f.steps[id] = nextStep
	return nil
}

func (f *fakeAutomationStore) DeactivateActiveForLead(_ context.Context, leadID uuid.UUID, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated[leadID] = reason
	return 1, nil
}

func (f *fakeAutomationStore) RecordSendFailure(_ context.Context, id uuid.UUID, sendErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id] = sendErr
	return nil
}

func (f *fakeAutomationStore) InsertSendLog(_ context.Context, params repository.InsertSendLogParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendLog = append(f.sendLog, params)
	return nil
}

type fakeSchedulerLeadStore struct {
	mu      sync.Mutex
	leads   map[uuid.UUID]leadrepo.Lead
	touched map[uuid.UUID]time.Time
}

func newFakeSchedulerLeadStore() *fakeSchedulerLeadStore {
	return &fakeSchedulerLeadStore{
		leads:   make(map[uuid.UUID]leadrepo.Lead),
		touched: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeSchedulerLeadStore) addLead(stage domain.Stage) uuid.UUID {
	id := uuid.New()
	addr := "jan@example.nl"
	f.leads[id] = leadrepo.Lead{ID: id, Name: "Jan Jansen", Email: &addr, Stage: stage, IsActive: true}
	return id
}

func (f *fakeSchedulerLeadStore) GetByID(_ context.Context, id uuid.UUID) (leadrepo.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return leadrepo.Lead{}, leadrepo.ErrNotFound
	}
	return lead, nil
}

func (f *fakeSchedulerLeadStore) TouchLastContact(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	fail map[string]error
}

func (r *recordingSender) SendSequenceStep(_ context.Context, toEmail, _ string, templateKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[templateKey]; ok {
		return err
	}
	r.sent = append(r.sent, templateKey)
	return nil
}

func (r *recordingSender) SendCustomEmail(_ context.Context, _, _, _ string) error {
	return nil
}

var _ email.Sender = (*recordingSender)(nil)

func newTestService(store *fakeAutomationStore, leads *fakeSchedulerLeadStore, sender email.Sender) *Service {
	log := logger.New("development")
	return New(store, leads, sender, events.NewInMemoryBus(log), log, 100, 4)
}

func TestProcessDueEmails_SendsAndAdvances(t *testing.T) {
	store := newFakeAutomationStore()
	leads := newFakeSchedulerLeadStore()
	sender := &recordingSender{}

	leadID := leads.addLead(domain.StageLead)
	a := store.addDue(leadID, "lead_welcome", 0)

	svc := newTestService(store, leads, sender)

	result, err := svc.ProcessDueEmails(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Sent != 1 || result.Failed != 0 || result.Conflicts != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if store.steps[a.ID] != 1 {
		t.Fatalf("expected step advanced to 1, got %d", store.steps[a.ID])
	}
	if len(sender.sent) != 1 || sender.sent[0] != "welcome" {
		t.Fatalf("expected the welcome template, got %v", sender.sent)
	}
	if _, ok := leads.touched[leadID]; !ok {
		t.Fatal("expected last contact to be refreshed after a send")
	}
	if len(store.sendLog) != 1 || !store.sendLog[0].Success {
		t.Fatalf("expected one successful send log entry, got %+v", store.sendLog)
	}
}

func TestProcessDueEmails_LastStepCompletesSequence(t *testing.T) {
	store := newFakeAutomationStore()
	leads := newFakeSchedulerLeadStore()
	sender := &recordingSender{}

	leadID := leads.addLead(domain.StageLead)
	store.addDue(leadID, "lead_welcome", 2)

	svc := newTestService(store, leads, sender)

	result, err := svc.ProcessDueEmails(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 1 || result.Completed != 1 {
		t.Fatalf("expected the final step to complete the sequence, got %+v", result)
	}
}

func TestProcessDueEmails_LostClaimCountsAsConflict(t *testing.T) {
	store := newFakeAutomationStore()
	leads := newFakeSchedulerLeadStore()
	sender := &recordingSender{}

	leadID := leads.addLead(domain.StageLead)
	a := store.addDue(leadID, "lead_welcome", 0)
	// Another run already advanced the record.
	store.steps[a.ID] = 1

	svc := newTestService(store, leads, sender)

	result, err := svc.ProcessDueEmails(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Conflicts != 1 {
		t.Fatalf("expected 1 conflict, got %+v", result)
	}
	if result.Sent != 0 || result.Failed != 0 {
		t.Fatalf("expected a lost claim to be discarded quietly, got %+v", result)
	}
	if store.steps[a.ID] != 1 {
		t.Fatalf("expected the record to stay at step 1, got %d", store.steps[a.ID])
	}
}

func TestProcessDueEmails_TerminalLeadIsSkippedAndDeactivated(t *testing.T) {
	store := newFakeAutomationStore()
	leads := newFakeSchedulerLeadStore()
	sender := &recordingSender{}

	leadID := leads.addLead(domain.StageWon)
	store.addDue(leadID, "lead_welcome", 1)

	svc := newTestService(store, leads, sender)

	result, err := svc.ProcessDueEmails(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Skipped != 1 || result.Sent != 0 {
		t.Fatalf("expected the record to be skipped, got %+v", result)
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no email for a lead in a terminal stage")
	}
	if _, ok := store.deactivated[leadID]; !ok {
		t.Fatal("expected the automation to be deactivated")
	}
}

func TestProcessDueEmails_SendFailureIsIsolated(t *testing.T) {
	store := newFakeAutomationStore()
	leads := newFakeSchedulerLeadStore()
	sender := &recordingSender{fail: map[string]error{"welcome": errors.New("smtp unavailable")}}

	failingLead := leads.addLead(domain.StageLead)
	failing := store.addDue(failingLead, "lead_welcome", 0)

	healthyLead := leads.addLead(domain.StageNeverReplied)
	healthy := store.addDue(healthyLead, "never_replied", 0)

	svc := newTestService(store, leads, sender)

	result, err := svc.ProcessDueEmails(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Failed != 1 || result.Sent != 1 {
		t.Fatalf("expected one failure and one send, got %+v", result)
	}
	if store.steps[failing.ID] != 0 {
		t.Fatalf("expected the failed record to keep its step, got %d", store.steps[failing.ID])
	}
	if store.failures[failing.ID] == "" {
		t.Fatal("expected the send failure to be recorded")
	}
	if store.steps[healthy.ID] != 1 {
		t.Fatalf("expected the healthy record to advance, got %d", store.steps[healthy.ID])
	}
}

func TestProcessDueEmails_MissingEmailDeactivates(t *testing.T) {
	store := newFakeAutomationStore()
	leads := newFakeSchedulerLeadStore()
	sender := &recordingSender{}

	leadID := leads.addLead(domain.StageLead)
	lead := leads.leads[leadID]
	lead.Email = nil
	leads.leads[leadID] = lead
	store.addDue(leadID, "lead_welcome", 0)

	svc := newTestService(store, leads, sender)

	result, err := svc.ProcessDueEmails(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected the record to be skipped, got %+v", result)
	}
	if store.deactivated[leadID] == "" {
		t.Fatal("expected the automation to be deactivated for a lead without email")
	}
}
