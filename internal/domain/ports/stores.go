package ports

import (
	"context"
	"time"

	"github.com/docuflow/backend/internal/domain/models"
)

// TemplateStore persists workflow templates. Templates are read-mostly and
// safe to share across goroutines.
type TemplateStore interface {
	Insert(ctx context.Context, tpl *models.WorkflowTemplate) error
	GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error)
	List(ctx context.Context) ([]*models.WorkflowTemplate, error)
	UpdateStatus(ctx context.Context, id string, status models.TemplateStatus) error
	Count(ctx context.Context) (int, error)
}

// InstanceStore persists workflow instances. Save enforces optimistic
// concurrency via the instance version; a version mismatch returns a
// ConflictError.
type InstanceStore interface {
	Insert(ctx context.Context, inst *models.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	// Save persists the instance if its stored version still equals
	// expectedVersion, then bumps the version.
	Save(ctx context.Context, inst *models.WorkflowInstance, expectedVersion int) error
	ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error)
	CountByStatus(ctx context.Context, status models.InstanceStatus) (int, error)
	CountFinishedSince(ctx context.Context, status models.InstanceStatus, since time.Time) (int, error)
}
