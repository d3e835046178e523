package scheduler

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"crm_portal_backend/platform/config"
	"crm_portal_backend/platform/logger"
)

// Dispatcher enqueues the periodic automation and aging tasks. It is the only
// producer; the worker consumes. Because scheduler runs may overlap (two
// dispatchers, a slow worker), the processing itself guards every step with a
// conditional update.
type Dispatcher struct {
	client   *asynq.Client
	queue    string
	interval time.Duration
	log      *logger.Logger
}

// NewDispatcher creates the task dispatcher.
func NewDispatcher(cfg interface {
	config.SchedulerConfig
	config.AutomationConfig
}, log *logger.Logger) (*Dispatcher, error) {
	opt, err := clientOptFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.GetAutomationDispatchInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Dispatcher{
		client:   asynq.NewClient(opt),
		queue:    queueName(cfg),
		interval: interval,
		log:      log,
	}, nil
}

func (d *Dispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

// Run enqueues a process-due task every interval and an aging recompute once
// an hour, until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	processTicker := time.NewTicker(d.interval)
	defer processTicker.Stop()
	agingTicker := time.NewTicker(time.Hour)
	defer agingTicker.Stop()

	// First pass right away so a restart does not delay due emails.
	d.enqueueProcessDue(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-processTicker.C:
			d.enqueueProcessDue(ctx)
		case <-agingTicker.C:
			d.enqueueAgingRecompute(ctx)
		}
	}
}

func (d *Dispatcher) enqueueProcessDue(ctx context.Context) {
	task, err := NewAutomationProcessDueTask(AutomationProcessDuePayload{TriggeredAt: time.Now()})
	if err != nil {
		d.log.Error("failed to build process-due task", "error", err)
		return
	}
	if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(d.queue)); err != nil {
		d.log.Warn("failed to enqueue process-due task", "error", err)
	}
}

func (d *Dispatcher) enqueueAgingRecompute(ctx context.Context) {
	task, err := NewLeadAgingRecomputeTask(LeadAgingRecomputePayload{TriggeredAt: time.Now()})
	if err != nil {
		d.log.Error("failed to build aging recompute task", "error", err)
		return
	}
	if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(d.queue)); err != nil {
		d.log.Warn("failed to enqueue aging recompute task", "error", err)
	}
}
