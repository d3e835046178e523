package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskAutomationProcessDue = "automation.process_due"

const TaskLeadAgingRecompute = "leads.aging.recompute"

type AutomationProcessDuePayload struct {
	TriggeredAt time.Time `json:"triggeredAt"`
}

type LeadAgingRecomputePayload struct {
	TriggeredAt time.Time `json:"triggeredAt"`
}

func NewAutomationProcessDueTask(payload AutomationProcessDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAutomationProcessDue, data), nil
}

func ParseAutomationProcessDuePayload(task *asynq.Task) (AutomationProcessDuePayload, error) {
	var payload AutomationProcessDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AutomationProcessDuePayload{}, err
	}
	return payload, nil
}

func NewLeadAgingRecomputeTask(payload LeadAgingRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadAgingRecompute, data), nil
}

func ParseLeadAgingRecomputePayload(task *asynq.Task) (LeadAgingRecomputePayload, error) {
	var payload LeadAgingRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadAgingRecomputePayload{}, err
	}
	return payload, nil
}
