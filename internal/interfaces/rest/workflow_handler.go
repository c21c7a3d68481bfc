package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/pkg/constants"
)

// TemplateService defines the interface for template operations
type TemplateService interface {
	Create(ctx context.Context, req services.CreateTemplateRequest) (*models.WorkflowTemplate, error)
	Get(ctx context.Context, id string) (*models.WorkflowTemplate, error)
	List(ctx context.Context) ([]*models.WorkflowTemplate, error)
	SetStatus(ctx context.Context, id string, status models.TemplateStatus) (*models.WorkflowTemplate, error)
}

// WorkflowHandler handles workflow template API endpoints
type WorkflowHandler struct {
	svc TemplateService
}

// NewWorkflowHandler creates a new WorkflowHandler
func NewWorkflowHandler(svc TemplateService) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// ============================================================================
// Request Types
// ============================================================================

// CreateTemplateRequest represents a template creation request
type CreateTemplateRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	Steps       []CreateStepRequest `json:"steps" binding:"required"`
}

// CreateStepRequest represents one step of a template creation request
type CreateStepRequest struct {
	Name          string               `json:"name" binding:"required"`
	Description   string               `json:"description"`
	ApprovalMode  models.ApprovalMode  `json:"approval_mode" binding:"required"`
	MaxDelayHours *int                 `json:"max_delay_hours"`
	Approvers     []models.ApproverRef `json:"approvers" binding:"required"`
}

// SetStatusRequest represents a template status change request
type SetStatusRequest struct {
	Status models.TemplateStatus `json:"status" binding:"required"`
}

// ============================================================================
// Endpoints
// ============================================================================

// List handles GET /api/workflows
func (h *WorkflowHandler) List(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svc.List(c.Request.Context())
	})
}

// Get handles GET /api/workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), id)
	})
}

// GetSteps handles GET /api/workflows/:id/steps
func (h *WorkflowHandler) GetSteps(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		tpl, err := h.svc.Get(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}
		return tpl.Steps, nil
	})
}

// Create handles POST /api/workflows
func (h *WorkflowHandler) Create(c *gin.Context) {
	var req CreateTemplateRequest
	if !BindJSON(c, &req) {
		return
	}

	serviceReq := services.CreateTemplateRequest{
		Name:        req.Name,
		Description: req.Description,
	}
	for _, step := range req.Steps {
		serviceReq.Steps = append(serviceReq.Steps, services.CreateStepRequest{
			Name:          step.Name,
			Description:   step.Description,
			ApprovalMode:  step.ApprovalMode,
			MaxDelayHours: step.MaxDelayHours,
			Approvers:     step.Approvers,
		})
	}

	tpl, err := h.svc.Create(c.Request.Context(), serviceReq)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		constants.FieldMessage: "Workflow template created",
		constants.ResponseData: tpl,
	})
}

// SetStatus handles PATCH /api/workflows/:id/status
func (h *WorkflowHandler) SetStatus(c *gin.Context) {
	id := c.Param("id")

	var req SetStatusRequest
	if !BindJSON(c, &req) {
		return
	}

	tpl, err := h.svc.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		constants.FieldMessage: "Workflow template status updated",
		constants.ResponseData: tpl,
	})
}
