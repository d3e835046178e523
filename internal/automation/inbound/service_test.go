package inbound

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"crm_portal_backend/internal/automation/repository"
	"crm_portal_backend/internal/events"
	"crm_portal_backend/internal/leads/domain"
	leadrepo "crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/platform/logger"
)

type fakeInboundAutomationStore struct {
	active map[uuid.UUID]repository.EmailAutomation
}

func (f *fakeInboundAutomationStore) GetActiveByLead(_ context.Context, leadID uuid.UUID) (repository.EmailAutomation, error) {
	for _, a := range f.active {
		if a.LeadID == leadID && a.IsActive {
			return a, nil
		}
	}
	return repository.EmailAutomation{}, repository.ErrNotFound
}

func (f *fakeInboundAutomationStore) MarkReplied(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	a, ok := f.active[id]
	if !ok || !a.IsActive || a.LeadReplied {
		return false, nil
	}
	a.IsActive = false
	a.LeadReplied = true
	a.RepliedAt = &at
	f.active[id] = a
	return true, nil
}

type fakeInboundLeadStore struct {
	byEmail map[string]leadrepo.Lead
	touched map[uuid.UUID]time.Time
	notes   []leadrepo.CreateLeadNoteParams
}

func newFakeInboundLeadStore() *fakeInboundLeadStore {
	return &fakeInboundLeadStore{
		byEmail: make(map[string]leadrepo.Lead),
		touched: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeInboundLeadStore) GetActiveByEmail(_ context.Context, email string) (leadrepo.Lead, error) {
	lead, ok := f.byEmail[email]
	if !ok {
		return leadrepo.Lead{}, leadrepo.ErrNotFound
	}
	return lead, nil
}

func (f *fakeInboundLeadStore) TouchLastContact(_ context.Context, id uuid.UUID, at time.Time) error {
	f.touched[id] = at
	return nil
}

func (f *fakeInboundLeadStore) CreateLeadNote(_ context.Context, params leadrepo.CreateLeadNoteParams) (leadrepo.LeadNote, error) {
	f.notes = append(f.notes, params)
	return leadrepo.LeadNote{ID: uuid.New(), LeadID: params.LeadID, Title: params.Title, Body: params.Body}, nil
}

func newInboundService(store *fakeInboundAutomationStore, leads *fakeInboundLeadStore) *Service {
	log := logger.New("development")
	return New(store, leads, leads, events.NewInMemoryBus(log), log)
}

func seedLeadWithAutomation(store *fakeInboundAutomationStore, leads *fakeInboundLeadStore, address string) (uuid.UUID, uuid.UUID) {
	leadID := uuid.New()
	leads.byEmail[address] = leadrepo.Lead{ID: leadID, Name: "Jan Jansen", Stage: domain.StageLead, IsActive: true}

	automationID := uuid.New()
	store.active[automationID] = repository.EmailAutomation{
		ID:          automationID,
		LeadID:      leadID,
		SequenceKey: "lead_welcome",
		IsActive:    true,
	}
	return leadID, automationID
}

func TestResolveInbound_HaltsActiveAutomation(t *testing.T) {
	store := &fakeInboundAutomationStore{active: make(map[uuid.UUID]repository.EmailAutomation)}
	leads := newFakeInboundLeadStore()
	leadID, automationID := seedLeadWithAutomation(store, leads, "jan@example.nl")

	svc := newInboundService(store, leads)

	outcome, err := svc.ResolveInbound(context.Background(), "Jan Jansen <Jan@Example.nl>", "Re: Welkom", "Graag een afspraak.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeHalted {
		t.Fatalf("expected halted, got %q", outcome)
	}

	a := store.active[automationID]
	if a.IsActive {
		t.Fatal("expected automation to be inactive after a reply")
	}
	if !a.LeadReplied {
		t.Fatal("expected leadReplied to be set")
	}
	if _, ok := leads.touched[leadID]; !ok {
		t.Fatal("expected the reply to refresh last contact")
	}
	if len(leads.notes) != 1 {
		t.Fatalf("expected one reply note, got %d", len(leads.notes))
	}
}

func TestResolveInbound_ReplayIsIdempotent(t *testing.T) {
	store := &fakeInboundAutomationStore{active: make(map[uuid.UUID]repository.EmailAutomation)}
	leads := newFakeInboundLeadStore()
	leadID, automationID := seedLeadWithAutomation(store, leads, "jan@example.nl")

	svc := newInboundService(store, leads)

	first, err := svc.ResolveInbound(context.Background(), "jan@example.nl", "Re: Welkom", "Ja, interesse.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != OutcomeHalted {
		t.Fatalf("expected halted on first delivery, got %q", first)
	}

	repliedAt := *store.active[automationID].RepliedAt
	touchedAt := leads.touched[leadID]

	second, err := svc.ResolveInbound(context.Background(), "jan@example.nl", "Re: Welkom", "Ja, interesse.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second == OutcomeHalted {
		t.Fatalf("expected the replay not to halt again, got %q", second)
	}
	if got := *store.active[automationID].RepliedAt; !got.Equal(repliedAt) {
		t.Fatal("expected the original replied timestamp to be preserved")
	}
	if len(leads.notes) != 1 {
		t.Fatalf("expected the replay not to append a second note, got %d notes", len(leads.notes))
	}
	if got := leads.touched[leadID]; !got.Equal(touchedAt) {
		t.Fatal("expected the replay not to refresh last contact again")
	}
}

func TestResolveInbound_UnknownSenderIsBenign(t *testing.T) {
	store := &fakeInboundAutomationStore{active: make(map[uuid.UUID]repository.EmailAutomation)}
	leads := newFakeInboundLeadStore()

	svc := newInboundService(store, leads)

	outcome, err := svc.ResolveInbound(context.Background(), "stranger@example.com", "Hallo", "")
	if err != nil {
		t.Fatalf("expected no error for an unknown sender, got %v", err)
	}
	if outcome != OutcomeNoLead {
		t.Fatalf("expected no_lead, got %q", outcome)
	}
}

func TestResolveInbound_LeadWithoutAutomation(t *testing.T) {
	store := &fakeInboundAutomationStore{active: make(map[uuid.UUID]repository.EmailAutomation)}
	leads := newFakeInboundLeadStore()
	leadID := uuid.New()
	leads.byEmail["jan@example.nl"] = leadrepo.Lead{ID: leadID, Stage: domain.StageQualified, IsActive: true}

	svc := newInboundService(store, leads)

	outcome, err := svc.ResolveInbound(context.Background(), "jan@example.nl", "Vraag", "Wat kost het?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeNoAutomation {
		t.Fatalf("expected no_automation, got %q", outcome)
	}
	if _, ok := leads.touched[leadID]; ok {
		t.Fatal("expected no last-contact update when no automation was claimed")
	}
	if len(leads.notes) != 0 {
		t.Fatalf("expected no reply note without a claimed automation, got %d", len(leads.notes))
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"jan@example.nl", "jan@example.nl"},
		{"Jan Jansen <Jan@Example.nl>", "jan@example.nl"},
		{"  JAN@EXAMPLE.NL  ", "jan@example.nl"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := normalizeAddress(tc.in); got != tc.want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
