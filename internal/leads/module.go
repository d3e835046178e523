// Package leads provides the lead lifecycle bounded context module.
// This file defines the module that encapsulates all leads setup and route
// registration.
package leads

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"crm_portal_backend/internal/events"
	apphttp "crm_portal_backend/internal/http"
	"crm_portal_backend/internal/leads/aging"
	"crm_portal_backend/internal/leads/handler"
	"crm_portal_backend/internal/leads/management"
	"crm_portal_backend/internal/leads/notes"
	"crm_portal_backend/internal/leads/pipeline"
	"crm_portal_backend/internal/leads/repository"
	"crm_portal_backend/platform/config"
	"crm_portal_backend/platform/logger"
	"crm_portal_backend/platform/validator"
)

// AutomationLifecycle is what the leads module needs from the automation
// module: start a sequence when a lead enters a stage, stop it when the lead
// leaves the pipeline. Satisfied by the automation lifecycle service.
type AutomationLifecycle interface {
	management.AutomationLifecycle
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	management *management.Service
	pipeline   *pipeline.Service
	aging      *aging.Service
	notes      *notes.Service
	repo       *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, automation AutomationLifecycle, eventBus events.Bus, val *validator.Validator, cfg config.AutomationConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)

	mgmtSvc := management.New(repo, automation, eventBus, log)
	pipelineSvc := pipeline.New(repo, automation, eventBus, log)
	agingSvc := aging.New(repo, log)
	notesSvc := notes.New(repo)

	h := handler.New(mgmtSvc, pipelineSvc, agingSvc, notesSvc, val, cfg.GetStalledLeadThresholdDays())

	return &Module{
		handler:    h,
		management: mgmtSvc,
		pipeline:   pipelineSvc,
		aging:      agingSvc,
		notes:      notesSvc,
		repo:       repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// ManagementService returns the lead management service for external use.
func (m *Module) ManagementService() *management.Service {
	return m.management
}

// AgingService returns the aging service for scheduled recomputation.
func (m *Module) AgingService() *aging.Service {
	return m.aging
}

// Repository returns the shared leads repository for cross-module wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All leads routes require authentication
	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
