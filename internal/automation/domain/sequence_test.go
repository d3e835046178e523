package domain

import (
	"testing"
	"time"

	leaddomain "crm_portal_backend/internal/leads/domain"
)

func TestSequenceForStage(t *testing.T) {
	seq, ok := SequenceForStage(leaddomain.StageLead)
	if !ok {
		t.Fatal("expected a sequence for the Lead stage")
	}
	if seq.Key != "lead_welcome" {
		t.Fatalf("expected lead_welcome, got %q", seq.Key)
	}
	if seq.Len() != 3 {
		t.Fatalf("expected 3 steps, got %d", seq.Len())
	}

	seq, ok = SequenceForStage(leaddomain.StageNeverReplied)
	if !ok {
		t.Fatal("expected a sequence for the Never replied stage")
	}
	if seq.Key != "never_replied" {
		t.Fatalf("expected never_replied, got %q", seq.Key)
	}
	if seq.Len() != 2 {
		t.Fatalf("expected 2 steps, got %d", seq.Len())
	}

	for _, stage := range []leaddomain.Stage{
		leaddomain.StageQualified,
		leaddomain.StageProposalSent,
		leaddomain.StageNegotiations,
		leaddomain.StageWon,
		leaddomain.StageLost,
	} {
		if _, ok := SequenceForStage(stage); ok {
			t.Fatalf("expected no sequence for stage %q", stage)
		}
	}
}

func TestSequenceByKey(t *testing.T) {
	seq, ok := SequenceByKey("lead_welcome")
	if !ok || seq.Key != "lead_welcome" {
		t.Fatalf("expected to resolve lead_welcome, got %q ok=%v", seq.Key, ok)
	}
	if _, ok := SequenceByKey("unknown"); ok {
		t.Fatal("expected unknown key to resolve to nothing")
	}
}

func TestStepAtAndExhausted(t *testing.T) {
	seq, _ := SequenceForStage(leaddomain.StageLead)

	step, ok := seq.StepAt(0)
	if !ok || step.Template != "welcome" {
		t.Fatalf("expected welcome at step 0, got %q ok=%v", step.Template, ok)
	}
	if step.Delay != 0 {
		t.Fatalf("expected the welcome step to be due immediately, got %v", step.Delay)
	}

	if _, ok := seq.StepAt(3); ok {
		t.Fatal("expected no step past the end")
	}
	if _, ok := seq.StepAt(-1); ok {
		t.Fatal("expected no step at negative index")
	}

	if seq.Exhausted(2) {
		t.Fatal("expected step 2 to exist")
	}
	if !seq.Exhausted(3) {
		t.Fatal("expected step 3 to be past the end")
	}
}

func TestDueAt(t *testing.T) {
	seq, _ := SequenceForStage(leaddomain.StageLead)
	from := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	due, ok := seq.DueAt(1, from)
	if !ok {
		t.Fatal("expected step 1 to have a due moment")
	}
	if want := from.Add(48 * time.Hour); !due.Equal(want) {
		t.Fatalf("expected step 1 due at %v, got %v", want, due)
	}

	if _, ok := seq.DueAt(5, from); ok {
		t.Fatal("expected no due moment past the sequence end")
	}
}
