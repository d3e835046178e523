package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crm_portal_backend/internal/automation/lifecycle"
	"crm_portal_backend/internal/automation/repository"
	"crm_portal_backend/internal/automation/scheduler"
	"crm_portal_backend/platform/httpkit"
	"crm_portal_backend/platform/validator"
)

const msgInvalidRequest = "invalid request"

type Handler struct {
	lifecycle *lifecycle.Service
	scheduler *scheduler.Service
	validate  *validator.Validator
}

func New(lc *lifecycle.Service, sched *scheduler.Service, validate *validator.Validator) *Handler {
	return &Handler{lifecycle: lc, scheduler: sched, validate: validate}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/process-due", h.ProcessDue)
	rg.GET("/leads/:leadId", h.GetForLead)
	rg.POST("/:id/pause", h.Pause)
	rg.POST("/:id/resume", h.Resume)
}

// PauseRequest pauses an automation with an optional reason.
type PauseRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// AutomationResponse is the API shape of an automation record.
type AutomationResponse struct {
	ID                uuid.UUID  `json:"id"`
	LeadID            uuid.UUID  `json:"leadId"`
	SequenceKey       string     `json:"sequenceKey"`
	CurrentStep       int        `json:"currentStep"`
	IsActive          bool       `json:"isActive"`
	LeadReplied       bool       `json:"leadReplied"`
	RepliedAt         *time.Time `json:"repliedAt,omitempty"`
	PausedAt          *time.Time `json:"pausedAt,omitempty"`
	PausedReason      *string    `json:"pausedReason,omitempty"`
	NextSendAt        *time.Time `json:"nextSendAt,omitempty"`
	LastSentAt        *time.Time `json:"lastSentAt,omitempty"`
	DeactivatedReason *string    `json:"deactivatedReason,omitempty"`
	SendFailures      int        `json:"sendFailures"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// SendLogEntryResponse is one delivery attempt of a sequence step.
type SendLogEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	Step      int       `json:"step"`
	Template  string    `json:"template"`
	Success   bool      `json:"success"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AutomationDetailResponse is an automation with its send log.
type AutomationDetailResponse struct {
	Automation AutomationResponse     `json:"automation"`
	SendLog    []SendLogEntryResponse `json:"sendLog"`
}

func toAutomationResponse(a repository.EmailAutomation) AutomationResponse {
	return AutomationResponse{
		ID:                a.ID,
		LeadID:            a.LeadID,
		SequenceKey:       a.SequenceKey,
		CurrentStep:       a.CurrentStep,
		IsActive:          a.IsActive,
		LeadReplied:       a.LeadReplied,
		RepliedAt:         a.RepliedAt,
		PausedAt:          a.PausedAt,
		PausedReason:      a.PausedReason,
		NextSendAt:        a.NextSendAt,
		LastSentAt:        a.LastSentAt,
		DeactivatedReason: a.DeactivatedReason,
		SendFailures:      a.SendFailures,
		CreatedAt:         a.CreatedAt,
	}
}

// ProcessDue runs one scheduler pass and returns the run summary. The worker
// triggers the same code path on a timer; this endpoint exists for manual
// runs and smoke checks.
func (h *Handler) ProcessDue(c *gin.Context) {
	result, err := h.scheduler.ProcessDueEmails(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) GetForLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	automation, sendLog, err := h.lifecycle.GetForLead(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	entries := make([]SendLogEntryResponse, 0, len(sendLog))
	for _, entry := range sendLog {
		entries = append(entries, SendLogEntryResponse{
			ID:        entry.ID,
			Step:      entry.Step,
			Template:  entry.Template,
			Success:   entry.Success,
			Error:     entry.Error,
			CreatedAt: entry.CreatedAt,
		})
	}

	httpkit.OK(c, AutomationDetailResponse{
		Automation: toAutomationResponse(automation),
		SendLog:    entries,
	})
}

func (h *Handler) Pause(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	// Body is optional; a pause without reason is fine.
	var req PauseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	automation, err := h.lifecycle.Pause(c.Request.Context(), id, req.Reason, time.Now())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toAutomationResponse(automation))
}

func (h *Handler) Resume(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	automation, err := h.lifecycle.Resume(c.Request.Context(), id, time.Now())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toAutomationResponse(automation))
}
