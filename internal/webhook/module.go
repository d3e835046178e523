package webhook

import (
	"crm_portal_backend/internal/automation/inbound"
	apphttp "crm_portal_backend/internal/http"
	"crm_portal_backend/internal/leads/management"
	"crm_portal_backend/platform/logger"
	"crm_portal_backend/platform/validator"
)

// Module is the public capture module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the webhook module.
func NewModule(leads *management.Service, inboundSvc *inbound.Service, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(leads, inboundSvc, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the capture endpoints on the public, rate-limited
// group. No authentication: these are called by the website and the mail
// provider.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Public.Group("/webhook")
	group.POST("/forms", m.handler.HandleFormSubmission)
	group.POST("/email/inbound", m.handler.HandleInboundEmail)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
