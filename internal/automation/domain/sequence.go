// Package domain defines the fixed email follow-up sequences. Sequences are a
// closed set keyed by the pipeline stage that starts them; steps are not
// user-definable.
package domain

import (
	"time"

	leaddomain "crm_portal_backend/internal/leads/domain"
)

// Step is a single scheduled email in a sequence.
type Step struct {
	// Template selects both the subject line and the HTML body.
	Template string
	// Delay is how long after the previous send (or after sequence start for
	// the first step) this step becomes due.
	Delay time.Duration
}

// Sequence is an ordered list of follow-up steps.
type Sequence struct {
	Key   string
	Steps []Step
}

// Len returns the number of steps in the sequence.
func (s Sequence) Len() int {
	return len(s.Steps)
}

// StepAt returns the step at the given index, or false when the index is past
// the end of the sequence.
func (s Sequence) StepAt(index int) (Step, bool) {
	if index < 0 || index >= len(s.Steps) {
		return Step{}, false
	}
	return s.Steps[index], true
}

// Exhausted reports whether the given step index is past the last step.
func (s Sequence) Exhausted(index int) bool {
	return index >= len(s.Steps)
}

// DueAt computes when the step at the given index becomes due, relative to the
// previous send (or sequence start).
func (s Sequence) DueAt(index int, from time.Time) (time.Time, bool) {
	step, ok := s.StepAt(index)
	if !ok {
		return time.Time{}, false
	}
	return from.Add(step.Delay), true
}

const day = 24 * time.Hour

var sequencesByStage = map[leaddomain.Stage]Sequence{
	leaddomain.StageLead: {
		Key: "lead_welcome",
		Steps: []Step{
			{Template: "welcome", Delay: 0},
			{Template: "followup_first", Delay: 2 * day},
			{Template: "followup_second", Delay: 4 * day},
		},
	},
	leaddomain.StageNeverReplied: {
		Key: "never_replied",
		Steps: []Step{
			{Template: "reengage_first", Delay: day},
			{Template: "reengage_second", Delay: 3 * day},
		},
	},
}

// SequenceForStage returns the follow-up sequence started by entering the
// given stage, if any.
func SequenceForStage(stage leaddomain.Stage) (Sequence, bool) {
	seq, ok := sequencesByStage[stage]
	return seq, ok
}

// SequenceByKey resolves a stored sequence key back to its definition.
func SequenceByKey(key string) (Sequence, bool) {
	for _, seq := range sequencesByStage {
		if seq.Key == key {
			return seq, true
		}
	}
	return Sequence{}, false
}
