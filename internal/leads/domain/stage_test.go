package domain

import "testing"

func TestIsKnownStage(t *testing.T) {
	for _, stage := range PipelineStages {
		if !IsKnownStage(stage) {
			t.Fatalf("expected %q to be a known stage", stage)
		}
	}

	if IsKnownStage(Stage("Closed")) {
		t.Fatal("expected unknown stage to be rejected")
	}
	if IsKnownStage(Stage("")) {
		t.Fatal("expected empty stage to be rejected")
	}
	if IsKnownStage(Stage("lead")) {
		t.Fatal("stage names are case sensitive")
	}
}

func TestIsTerminal(t *testing.T) {
	if !StageWon.IsTerminal() {
		t.Fatal("expected Won to be terminal")
	}
	if !StageLost.IsTerminal() {
		t.Fatal("expected Lost to be terminal")
	}

	for _, stage := range []Stage{StageLead, StageNeverReplied, StageQualified, StageProposalSent, StageNegotiations} {
		if stage.IsTerminal() {
			t.Fatalf("expected %q to be non-terminal", stage)
		}
	}
}

func TestStageOrder(t *testing.T) {
	previous := -1
	for _, stage := range PipelineStages {
		order := stage.Order()
		if order <= previous {
			t.Fatalf("expected pipeline order to increase, got %d after %d for %q", order, previous, stage)
		}
		previous = order
	}

	if Stage("Closed").Order() != -1 {
		t.Fatal("expected unknown stage to have order -1")
	}
}
