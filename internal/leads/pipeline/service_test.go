package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"crm_portal_backend/internal/events"
	"crm_portal_backend/internal/leads/domain"
	"crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/platform/apperr"
	"crm_portal_backend/platform/logger"
)

type fakeLeadStore struct {
	leads   map[uuid.UUID]repository.Lead
	history map[uuid.UUID][]repository.StageHistoryEntry
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{
		leads:   make(map[uuid.UUID]repository.Lead),
		history: make(map[uuid.UUID][]repository.StageHistoryEntry),
	}
}

func (f *fakeLeadStore) addLead(stage domain.Stage) uuid.UUID {
	id := uuid.New()
	f.leads[id] = repository.Lead{ID: id, Name: "Jan Jansen", Stage: stage, IsActive: true}
	f.history[id] = []repository.StageHistoryEntry{{ID: uuid.New(), LeadID: id, Stage: stage}}
	return id
}

func (f *fakeLeadStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeLeadStore) TransitionStage(_ context.Context, leadID uuid.UUID, stage domain.Stage, changedBy *uuid.UUID, comment *string) (repository.Lead, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	lead.Stage = stage
	f.leads[leadID] = lead
	f.history[leadID] = append(f.history[leadID], repository.StageHistoryEntry{
		ID:        uuid.New(),
		LeadID:    leadID,
		Stage:     stage,
		ChangedBy: changedBy,
		Comment:   comment,
		ChangedAt: time.Now(),
	})
	return lead, nil
}

func (f *fakeLeadStore) ListStageHistory(_ context.Context, leadID uuid.UUID) ([]repository.StageHistoryEntry, error) {
	return f.history[leadID], nil
}

type fakeLifecycle struct {
	started []domain.Stage
	halted  []string
}

func (f *fakeLifecycle) StartForStage(_ context.Context, _ uuid.UUID, stage domain.Stage, _ time.Time) (bool, error) {
	f.started = append(f.started, stage)
	return true, nil
}

func (f *fakeLifecycle) HaltForLead(_ context.Context, _ uuid.UUID, reason string) error {
	f.halted = append(f.halted, reason)
	return nil
}

func newPipelineService(store *fakeLeadStore, lc *fakeLifecycle) *Service {
	log := logger.New("development")
	return New(store, lc, events.NewInMemoryBus(log), log)
}

func TestTransitionStage_AppendsHistory(t *testing.T) {
	store := newFakeLeadStore()
	lc := &fakeLifecycle{}
	svc := newPipelineService(store, lc)
	id := store.addLead(domain.StageLead)

	result, err := svc.TransitionStage(context.Background(), id, domain.StageQualified, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Lead.Stage != domain.StageQualified {
		t.Fatalf("expected stage Qualified, got %q", result.Lead.Stage)
	}
	if len(result.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(result.History))
	}
	if last := result.History[len(result.History)-1]; last.Stage != domain.StageQualified {
		t.Fatalf("expected last history entry to match current stage, got %q", last.Stage)
	}
}

func TestTransitionStage_RejectsUnknownStage(t *testing.T) {
	store := newFakeLeadStore()
	svc := newPipelineService(store, &fakeLifecycle{})
	id := store.addLead(domain.StageLead)

	_, err := svc.TransitionStage(context.Background(), id, domain.Stage("Closed"), nil, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown stage")
	}
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}

	if len(store.history[id]) != 1 {
		t.Fatal("expected no history entry for a rejected transition")
	}
}

func TestTransitionStage_UnknownLead(t *testing.T) {
	store := newFakeLeadStore()
	svc := newPipelineService(store, &fakeLifecycle{})

	_, err := svc.TransitionStage(context.Background(), uuid.New(), domain.StageQualified, nil, nil)
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionStage_TerminalHaltsAutomation(t *testing.T) {
	store := newFakeLeadStore()
	lc := &fakeLifecycle{}
	svc := newPipelineService(store, lc)
	id := store.addLead(domain.StageNegotiations)

	if _, err := svc.TransitionStage(context.Background(), id, domain.StageWon, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(lc.halted) != 1 {
		t.Fatalf("expected automation halt on terminal stage, got %d", len(lc.halted))
	}
	if len(lc.started) != 0 {
		t.Fatal("expected no sequence start on terminal stage")
	}
}

func TestTransitionStage_SequencedStageStartsAutomation(t *testing.T) {
	store := newFakeLeadStore()
	lc := &fakeLifecycle{}
	svc := newPipelineService(store, lc)
	id := store.addLead(domain.StageLead)

	if _, err := svc.TransitionStage(context.Background(), id, domain.StageNeverReplied, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(lc.started) != 1 || lc.started[0] != domain.StageNeverReplied {
		t.Fatalf("expected a sequence start for Never replied, got %v", lc.started)
	}
	if len(lc.halted) != 0 {
		t.Fatal("expected no halt for a non-terminal transition")
	}
}

func TestListStageHistory_ReturnsEntriesOldestFirst(t *testing.T) {
	store := newFakeLeadStore()
	svc := newPipelineService(store, &fakeLifecycle{})
	id := store.addLead(domain.StageLead)

	if _, err := svc.TransitionStage(context.Background(), id, domain.StageQualified, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err := svc.ListStageHistory(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Stage != domain.StageLead || history[1].Stage != domain.StageQualified {
		t.Fatalf("expected history Lead then Qualified, got %q, %q", history[0].Stage, history[1].Stage)
	}
}

func TestListStageHistory_UnknownLead(t *testing.T) {
	store := newFakeLeadStore()
	svc := newPipelineService(store, &fakeLifecycle{})

	_, err := svc.ListStageHistory(context.Background(), uuid.New())
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionStage_ArchivedLeadRejected(t *testing.T) {
	store := newFakeLeadStore()
	svc := newPipelineService(store, &fakeLifecycle{})
	id := store.addLead(domain.StageLead)
	lead := store.leads[id]
	lead.IsArchived = true
	store.leads[id] = lead

	_, err := svc.TransitionStage(context.Background(), id, domain.StageQualified, nil, nil)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected a validation error for an archived lead, got %v", err)
	}
}
