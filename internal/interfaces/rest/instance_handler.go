package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/pkg/auth"
	"github.com/docuflow/backend/pkg/constants"
)

// OrchestratorService defines the interface for instance operations
type OrchestratorService interface {
	Start(ctx context.Context, templateID, documentID string, initiator *auth.UserSession) (*models.WorkflowInstance, error)
	CastVote(ctx context.Context, req services.VoteRequest, actor *auth.UserSession) (*models.WorkflowInstance, error)
	Cancel(ctx context.Context, instanceID string, actor *auth.UserSession) (*models.WorkflowInstance, error)
	GetInstance(ctx context.Context, instanceID string) (*models.WorkflowInstance, error)
	ListPendingForActor(ctx context.Context, actor *auth.UserSession) ([]services.PendingApproval, error)
}

// InstanceHandler handles workflow instance API endpoints
type InstanceHandler struct {
	svc OrchestratorService
}

// NewInstanceHandler creates a new InstanceHandler
func NewInstanceHandler(svc OrchestratorService) *InstanceHandler {
	return &InstanceHandler{svc: svc}
}

// ============================================================================
// Request Types
// ============================================================================

// StartInstanceRequest represents a request to start a workflow on a document
type StartInstanceRequest struct {
	WorkflowID string `json:"workflow_id" binding:"required"`
	DocumentID string `json:"document_id" binding:"required"`
	Comment    string `json:"comment"`
}

// VoteActionRequest represents an approve/reject request
type VoteActionRequest struct {
	StepID  string `json:"step_id" binding:"required"`
	Comment string `json:"comment"`
}

// ============================================================================
// Endpoints
// ============================================================================

// Start handles POST /api/workflow-instances
func (h *InstanceHandler) Start(c *gin.Context) {
	user := GetUserFromContext(c)

	var req StartInstanceRequest
	if !BindJSON(c, &req) {
		return
	}

	inst, err := h.svc.Start(c.Request.Context(), req.WorkflowID, req.DocumentID, user)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		constants.FieldMessage: "Workflow instance started",
		constants.ResponseData: gin.H{
			"instance_id": inst.ID,
		},
	})
}

// Get handles GET /api/workflow-instances/:id
func (h *InstanceHandler) Get(c *gin.Context) {
	id := c.Param("id")
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svc.GetInstance(c.Request.Context(), id)
	})
}

// Approve handles POST /api/workflow-instances/:id/approve
func (h *InstanceHandler) Approve(c *gin.Context) {
	h.vote(c, models.DecisionApprove, "Approval recorded")
}

// Reject handles POST /api/workflow-instances/:id/reject
func (h *InstanceHandler) Reject(c *gin.Context) {
	h.vote(c, models.DecisionReject, "Rejection recorded")
}

// Cancel handles POST /api/workflow-instances/:id/cancel
func (h *InstanceHandler) Cancel(c *gin.Context) {
	user := GetUserFromContext(c)
	instanceID := c.Param("id")

	if _, err := h.svc.Cancel(c.Request.Context(), instanceID, user); err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		constants.FieldMessage: "Workflow instance cancelled",
	})
}

// GetPending handles GET /api/pending-approvals
func (h *InstanceHandler) GetPending(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svc.ListPendingForActor(c.Request.Context(), user)
	})
}

// Private helpers

func (h *InstanceHandler) vote(c *gin.Context, decision models.Decision, successMsg string) {
	user := GetUserFromContext(c)
	instanceID := c.Param("id")

	var req VoteActionRequest
	if !BindJSON(c, &req) {
		return
	}

	inst, err := h.svc.CastVote(c.Request.Context(), services.VoteRequest{
		InstanceID: instanceID,
		StepID:     req.StepID,
		Decision:   decision,
		Comment:    req.Comment,
	}, user)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		constants.FieldMessage: successMsg,
		constants.ResponseData: gin.H{
			"instance_status": inst.Status,
		},
	})
}
