package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crm_portal_backend/internal/leads/aging"
	"crm_portal_backend/internal/leads/domain"
	"crm_portal_backend/internal/leads/management"
	"crm_portal_backend/internal/leads/notes"
	"crm_portal_backend/internal/leads/pipeline"
	"crm_portal_backend/internal/leads/transport"
	"crm_portal_backend/platform/httpkit"
	"crm_portal_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	management    *management.Service
	pipeline      *pipeline.Service
	aging         *aging.Service
	notes         *notes.Service
	validate      *validator.Validator
	stalledCutoff int
}

func New(mgmt *management.Service, pipe *pipeline.Service, ag *aging.Service, nts *notes.Service, validate *validator.Validator, stalledCutoffDays int) *Handler {
	return &Handler{
		management:    mgmt,
		pipeline:      pipe,
		aging:         ag,
		notes:         nts,
		validate:      validate,
		stalledCutoff: stalledCutoffDays,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/stalled", h.Stalled)
	rg.GET("/:id", h.GetByID)
	rg.DELETE("/:id", h.Archive)
	rg.PATCH("/:id/stage", h.TransitionStage)
	rg.GET("/:id/history", h.ListStageHistory)
	rg.PATCH("/:id/aging", h.ToggleAgingPause)
	rg.GET("/:id/notes", h.ListNotes)
	rg.POST("/:id/notes", h.AddNote)
	rg.GET("/:id/tasks", h.ListTasks)
	rg.POST("/:id/tasks", h.AddTask)
	rg.POST("/tasks/:taskId/complete", h.CompleteTask)
}

func actorID(c *gin.Context) *uuid.UUID {
	value, ok := c.Get(httpkit.ContextUserIDKey)
	if !ok {
		return nil
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.management.Create(c.Request.Context(), req, actorID(c))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToLeadResponse(lead))
}

func (h *Handler) List(c *gin.Context) {
	leads, err := h.management.List(c.Request.Context(), c.Query("stage"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, history, err := h.management.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.LeadDetailResponse{
		Lead:    transport.ToLeadResponse(lead),
		History: transport.ToStageHistoryResponses(history),
	})
}

func (h *Handler) Archive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if httpkit.HandleError(c, h.management.Archive(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) TransitionStage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.TransitionStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	var comment *string
	if req.Comment != "" {
		comment = &req.Comment
	}

	result, err := h.pipeline.TransitionStage(c.Request.Context(), id, domain.Stage(req.Stage), actorID(c), comment)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.LeadDetailResponse{
		Lead:    transport.ToLeadResponse(result.Lead),
		History: transport.ToStageHistoryResponses(result.History),
	})
}

func (h *Handler) ListStageHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	history, err := h.pipeline.ListStageHistory(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToStageHistoryResponses(history))
}

func (h *Handler) ToggleAgingPause(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ToggleAgingPauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.aging.TogglePause(c.Request.Context(), id, req.Paused, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) Stalled(c *gin.Context) {
	threshold := h.stalledCutoff
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		threshold = parsed
	}

	stalled, err := h.aging.Stalled(c.Request.Context(), threshold)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.StalledLeadResponse, 0, len(stalled))
	for _, row := range stalled {
		out = append(out, transport.StalledLeadResponse{
			Lead:      transport.ToLeadResponse(row.Lead),
			AgingDays: row.AgingDays,
		})
	}
	httpkit.OK(c, out)
}

func (h *Handler) AddNote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	note, err := h.notes.AddNote(c.Request.Context(), id, req, actorID(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToNoteResponse(note))
}

func (h *Handler) ListNotes(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	list, err := h.notes.ListNotes(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.NoteResponse, 0, len(list))
	for _, note := range list {
		out = append(out, transport.ToNoteResponse(note))
	}
	httpkit.OK(c, out)
}

func (h *Handler) AddTask(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	task, err := h.notes.AddTask(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToTaskResponse(task))
}

func (h *Handler) ListTasks(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	list, err := h.notes.ListTasks(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.TaskResponse, 0, len(list))
	for _, task := range list {
		out = append(out, transport.ToTaskResponse(task))
	}
	httpkit.OK(c, out)
}

func (h *Handler) CompleteTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("taskId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	task, err := h.notes.CompleteTask(c.Request.Context(), taskID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToTaskResponse(task))
}
