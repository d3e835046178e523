// Package domain holds the lead pipeline domain model shared by the leads
// services and the automation engine.
package domain

// Stage is a position in the fixed sales pipeline. The set is closed: stages
// are not user-definable.
type Stage string

const (
	StageLead         Stage = "Lead"
	StageNeverReplied Stage = "Never replied"
	StageQualified    Stage = "Qualified"
	StageProposalSent Stage = "Proposal Sent"
	StageNegotiations Stage = "Negotiations"
	StageWon          Stage = "Won"
	StageLost         Stage = "Lost"
)

// PipelineStages lists every stage in pipeline order. Won and Lost are terminal.
var PipelineStages = []Stage{
	StageLead,
	StageNeverReplied,
	StageQualified,
	StageProposalSent,
	StageNegotiations,
	StageWon,
	StageLost,
}

var knownStages = func() map[Stage]int {
	m := make(map[Stage]int, len(PipelineStages))
	for i, s := range PipelineStages {
		m[s] = i
	}
	return m
}()

// IsKnownStage reports whether the value is one of the fixed pipeline stages.
func IsKnownStage(stage Stage) bool {
	_, ok := knownStages[stage]
	return ok
}

// IsTerminal reports whether the stage ends the pipeline. Terminal leads never
// receive further automated follow-up.
func (s Stage) IsTerminal() bool {
	return s == StageWon || s == StageLost
}

// Order returns the stage's position in the pipeline, or -1 for unknown stages.
func (s Stage) Order() int {
	if i, ok := knownStages[s]; ok {
		return i
	}
	return -1
}

// String returns the stage's wire value.
func (s Stage) String() string {
	return string(s)
}
