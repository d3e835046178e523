package management

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"crm_portal_backend/internal/events"
	"crm_portal_backend/internal/leads/domain"
	"crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/internal/leads/transport"
	"crm_portal_backend/platform/apperr"
	"crm_portal_backend/platform/logger"
)

type fakeLeadStore struct {
	leads    map[uuid.UUID]repository.Lead
	archived map[uuid.UUID]bool
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{
		leads:    make(map[uuid.UUID]repository.Lead),
		archived: make(map[uuid.UUID]bool),
	}
}

func (f *fakeLeadStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	lead := repository.Lead{
		ID:        uuid.New(),
		Name:      params.Name,
		Email:     params.Email,
		Phone:     params.Phone,
		Address:   params.Address,
		Source:    params.Source,
		Stage:     domain.StageLead,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeLeadStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeLeadStore) ListByStage(_ context.Context, stage *domain.Stage) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0)
	for _, lead := range f.leads {
		if f.archived[lead.ID] {
			continue
		}
		if stage == nil || lead.Stage == *stage {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeLeadStore) ListStageHistory(_ context.Context, leadID uuid.UUID) ([]repository.StageHistoryEntry, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return nil, nil
	}
	return []repository.StageHistoryEntry{{ID: uuid.New(), LeadID: leadID, Stage: lead.Stage}}, nil
}

func (f *fakeLeadStore) Archive(_ context.Context, id uuid.UUID) error {
	if _, ok := f.leads[id]; !ok {
		return repository.ErrNotFound
	}
	f.archived[id] = true
	return nil
}

type fakeLifecycle struct {
	started int
	halted  []string
}

func (f *fakeLifecycle) StartForStage(_ context.Context, _ uuid.UUID, _ domain.Stage, _ time.Time) (bool, error) {
	f.started++
	return true, nil
}

func (f *fakeLifecycle) HaltForLead(_ context.Context, _ uuid.UUID, reason string) error {
	f.halted = append(f.halted, reason)
	return nil
}

func newManagementService(store *fakeLeadStore, lc *fakeLifecycle) *Service {
	log := logger.New("development")
	return New(store, lc, events.NewInMemoryBus(log), log)
}

func TestCreate_NormalizesAndStartsAutomation(t *testing.T) {
	store := newFakeLeadStore()
	lc := &fakeLifecycle{}
	svc := newManagementService(store, lc)

	lead, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		Name:  "  Jan Jansen ",
		Email: " Jan@Example.NL ",
		Phone: "06 12345678",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lead.Name != "Jan Jansen" {
		t.Fatalf("expected trimmed name, got %q", lead.Name)
	}
	if lead.Email == nil || *lead.Email != "jan@example.nl" {
		t.Fatalf("expected lowercased email, got %v", lead.Email)
	}
	if lead.Phone == nil || *lead.Phone != "+31612345678" {
		t.Fatalf("expected E.164 phone, got %v", lead.Phone)
	}
	if lead.Stage != domain.StageLead {
		t.Fatalf("expected initial stage Lead, got %q", lead.Stage)
	}
	if lc.started != 1 {
		t.Fatalf("expected the welcome sequence to start once, got %d", lc.started)
	}
}

func TestCreate_RequiresName(t *testing.T) {
	svc := newManagementService(newFakeLeadStore(), &fakeLifecycle{})

	_, err := svc.Create(context.Background(), transport.CreateLeadRequest{Name: "   "}, nil)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestList_RejectsUnknownStageFilter(t *testing.T) {
	svc := newManagementService(newFakeLeadStore(), &fakeLifecycle{})

	if _, err := svc.List(context.Background(), "Closed"); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if _, err := svc.List(context.Background(), ""); err != nil {
		t.Fatalf("expected empty filter to be fine, got %v", err)
	}
}

func TestArchive_HaltsAutomation(t *testing.T) {
	store := newFakeLeadStore()
	lc := &fakeLifecycle{}
	svc := newManagementService(store, lc)

	lead, err := svc.Create(context.Background(), transport.CreateLeadRequest{Name: "Jan Jansen"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Archive(context.Background(), lead.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.archived[lead.ID] {
		t.Fatal("expected the lead to be archived")
	}
	if len(lc.halted) != 1 {
		t.Fatalf("expected the automation to be halted, got %d", len(lc.halted))
	}

	if err := svc.Archive(context.Background(), uuid.New()); apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
