// Package webhook exposes the public capture endpoints: website lead forms
// and inbound reply email. Both are unauthenticated and rate limited; the
// email endpoint always acknowledges so the mail provider never retries or
// bounces.
package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crm_portal_backend/internal/automation/inbound"
	"crm_portal_backend/internal/leads/management"
	"crm_portal_backend/internal/leads/transport"
	"crm_portal_backend/platform/httpkit"
	"crm_portal_backend/platform/logger"
	"crm_portal_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles webhook HTTP requests.
type Handler struct {
	leads   *management.Service
	inbound *inbound.Service
	val     *validator.Validator
	log     *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(leads *management.Service, inboundSvc *inbound.Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{leads: leads, inbound: inboundSvc, val: val, log: log}
}

// FormSubmission is a website lead form payload.
type FormSubmission struct {
	Name    string `json:"name" validate:"required,min=2,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Address string `json:"address" validate:"omitempty,max=500"`
	Source  string `json:"source" validate:"omitempty,max=100"`
	Message string `json:"message" validate:"omitempty,max=5000"`
}

// InboundEmail is the payload the mail provider posts for a received reply.
type InboundEmail struct {
	From    string `json:"from" validate:"required,max=320"`
	Subject string `json:"subject" validate:"omitempty,max=998"`
	Body    string `json:"body" validate:"omitempty"`
}

// HandleFormSubmission captures a website form as a new lead.
// POST /api/v1/webhook/forms
func (h *Handler) HandleFormSubmission(c *gin.Context) {
	var req FormSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = "website"
	}

	lead, err := h.leads.Create(c.Request.Context(), transport.CreateLeadRequest{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Source:  source,
	}, nil)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": lead.ID})
}

// HandleInboundEmail resolves a reply email to a lead. The endpoint responds
// 200 for every well-formed payload, whether or not a lead matched; the
// provider only needs to know the message was accepted.
// POST /api/v1/webhook/email/inbound
func (h *Handler) HandleInboundEmail(c *gin.Context) {
	var req InboundEmail
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	outcome, err := h.inbound.ResolveInbound(c.Request.Context(), req.From, req.Subject, req.Body)
	if err != nil {
		// Processing failures are logged but still acknowledged; the reply
		// itself arrived fine and a retry would not change the outcome.
		h.log.Error("failed to process inbound email", "error", err, "from", req.From)
		httpkit.OK(c, gin.H{"status": "accepted"})
		return
	}

	httpkit.OK(c, gin.H{"status": "accepted", "outcome": string(outcome)})
}
