package scheduler

import (
	"context"

	"github.com/hibiken/asynq"

	automation "crm_portal_backend/internal/automation/scheduler"
	"crm_portal_backend/platform/config"
	"crm_portal_backend/platform/logger"
)

// AutomationRunner runs one scheduler pass over due automations.
type AutomationRunner interface {
	ProcessDueEmails(ctx context.Context) (automation.Result, error)
}

// AgingRecomputer refreshes stored aging values.
type AgingRecomputer interface {
	RecomputeAll(ctx context.Context) (int, error)
}

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	automation AutomationRunner
	aging      AgingRecomputer
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, automation AutomationRunner, aging AgingRecomputer, log *logger.Logger) (*Worker, error) {
	opt, err := clientOptFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	queue := queueName(cfg)
	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		automation: automation,
		aging:      aging,
		log:        log,
	}

	mux.HandleFunc(TaskAutomationProcessDue, w.handleAutomationProcessDue)
	mux.HandleFunc(TaskLeadAgingRecompute, w.handleLeadAgingRecompute)

	return w, nil
}

func (w *Worker) handleAutomationProcessDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAutomationProcessDuePayload(task)
	if err != nil {
		return err
	}

	w.log.Info("processing due automations", "triggeredAt", payload.TriggeredAt)
	result, err := w.automation.ProcessDueEmails(ctx)
	if err != nil {
		return err
	}
	w.log.Info("automation task finished", "sent", result.Sent, "failed", result.Failed, "conflicts", result.Conflicts)
	return nil
}

func (w *Worker) handleLeadAgingRecompute(ctx context.Context, task *asynq.Task) error {
	if _, err := ParseLeadAgingRecomputePayload(task); err != nil {
		return err
	}

	updated, err := w.aging.RecomputeAll(ctx)
	if err != nil {
		return err
	}
	w.log.Info("lead aging recomputed", "updated", updated)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
