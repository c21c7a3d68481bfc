package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/internal/domain/ports"
	appErrors "github.com/docuflow/backend/pkg/errors"
)

// CreateTemplateRequest is the input for creating a workflow template
type CreateTemplateRequest struct {
	Name        string
	Description string
	Steps       []CreateStepRequest
}

// CreateStepRequest is one step of a template creation request
type CreateStepRequest struct {
	Name          string
	Description   string
	ApprovalMode  models.ApprovalMode
	MaxDelayHours *int
	Approvers     []models.ApproverRef
}

// TemplateService manages workflow template definitions. Templates are
// immutable once published: activate/deactivate is the only mutation, and
// deactivation never touches running instances.
type TemplateService struct {
	store ports.TemplateStore
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(store ports.TemplateStore) *TemplateService {
	return &TemplateService{store: store}
}

// Create validates and stores a new template in Draft status. Step order is
// normalized to a gapless 1..N sequence following the request order.
func (s *TemplateService) Create(ctx context.Context, req CreateTemplateRequest) (*models.WorkflowTemplate, error) {
	if req.Name == "" {
		return nil, appErrors.NewValidationError("name", "template name is required")
	}
	if len(req.Steps) == 0 {
		return nil, appErrors.NewValidationError("steps", "template must define at least one step")
	}

	now := time.Now().UTC()
	tpl := &models.WorkflowTemplate{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		Status:       models.TemplateStatusDraft,
		Steps:        make([]models.StepDefinition, 0, len(req.Steps)),
		CreatedDate:  now,
		LastModified: now,
	}

	for i, step := range req.Steps {
		if step.Name == "" {
			return nil, appErrors.NewValidationError("steps", fmt.Sprintf("step %d has no name", i+1))
		}
		if !step.ApprovalMode.Valid() {
			return nil, appErrors.NewValidationError("approval_mode",
				fmt.Sprintf("step %d has unknown approval mode %q", i+1, step.ApprovalMode))
		}
		if len(step.Approvers) == 0 {
			return nil, appErrors.NewValidationError("approvers",
				fmt.Sprintf("step %d has an empty approver set", i+1))
		}
		for _, ref := range step.Approvers {
			if !ref.Kind.Valid() || ref.ID == "" {
				return nil, appErrors.NewValidationError("approvers",
					fmt.Sprintf("step %d has an invalid approver reference", i+1))
			}
		}
		if step.MaxDelayHours != nil && *step.MaxDelayHours <= 0 {
			return nil, appErrors.NewValidationError("max_delay_hours",
				fmt.Sprintf("step %d deadline must be a positive number of hours", i+1))
		}

		tpl.Steps = append(tpl.Steps, models.StepDefinition{
			ID:            uuid.NewString(),
			Name:          step.Name,
			Description:   step.Description,
			Order:         i + 1,
			ApprovalMode:  step.ApprovalMode,
			MaxDelayHours: step.MaxDelayHours,
			Approvers:     step.Approvers,
		})
	}

	if err := s.store.Insert(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to store template: %w", err)
	}
	return tpl, nil
}

// Get retrieves a template by id
func (s *TemplateService) Get(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	tpl, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, appErrors.NewNotFoundError("Workflow Template", id)
	}
	return tpl, nil
}

// List returns all templates
func (s *TemplateService) List(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	return s.store.List(ctx)
}

// SetStatus moves a template through its lifecycle. Draft -> Active -> Inactive;
// re-activation of an Inactive template is allowed. Deactivation leaves running
// instances untouched, it only blocks new starts.
func (s *TemplateService) SetStatus(ctx context.Context, id string, status models.TemplateStatus) (*models.WorkflowTemplate, error) {
	if !status.Valid() {
		return nil, appErrors.NewValidationError("status", fmt.Sprintf("unknown template status %q", status))
	}

	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if tpl.Status == status {
		return tpl, nil
	}
	if status == models.TemplateStatusDraft {
		return nil, appErrors.NewValidationError("status", "a published template cannot return to draft")
	}

	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to update template status: %w", err)
	}
	tpl.Status = status
	return tpl, nil
}
