// Package automation provides the email automation bounded context module:
// sequence lifecycle, the due-email scheduler and inbound reply resolution.
package automation

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"crm_portal_backend/internal/automation/handler"
	"crm_portal_backend/internal/automation/inbound"
	"crm_portal_backend/internal/automation/lifecycle"
	"crm_portal_backend/internal/automation/repository"
	"crm_portal_backend/internal/automation/scheduler"
	"crm_portal_backend/internal/email"
	"crm_portal_backend/internal/events"
	apphttp "crm_portal_backend/internal/http"
	leadrepo "crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/platform/config"
	"crm_portal_backend/platform/logger"
	"crm_portal_backend/platform/validator"
)

// Module is the automation bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	lifecycle *lifecycle.Service
	scheduler *scheduler.Service
	inbound   *inbound.Service
}

// NewModule creates and initializes the automation module.
func NewModule(pool *pgxpool.Pool, leadRepo *leadrepo.Repository, sender email.Sender, eventBus events.Bus, val *validator.Validator, cfg config.AutomationConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)

	lifecycleSvc := lifecycle.New(repo, log)
	schedulerSvc := scheduler.New(repo, leadRepo, sender, eventBus, log,
		cfg.GetAutomationBatchLimit(), cfg.GetAutomationSendConcurrency())
	inboundSvc := inbound.New(repo, leadRepo, leadRepo, eventBus, log)

	h := handler.New(lifecycleSvc, schedulerSvc, val)

	return &Module{
		handler:   h,
		lifecycle: lifecycleSvc,
		scheduler: schedulerSvc,
		inbound:   inboundSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "automation"
}

// LifecycleService returns the lifecycle service; the leads module uses it to
// start and stop sequences on stage changes.
func (m *Module) LifecycleService() *lifecycle.Service {
	return m.lifecycle
}

// SchedulerService returns the scheduler service for the background worker.
func (m *Module) SchedulerService() *scheduler.Service {
	return m.scheduler
}

// InboundService returns the reply resolution service for the webhook module.
func (m *Module) InboundService() *inbound.Service {
	return m.inbound
}

// RegisterRoutes mounts automation routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/automations")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
