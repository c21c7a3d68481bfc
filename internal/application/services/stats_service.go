package services

import (
	"context"
	"time"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/internal/domain/ports"
	"github.com/docuflow/backend/pkg/auth"
)

// WorkflowStats is the aggregate dashboard projection
type WorkflowStats struct {
	TotalTemplates   int `json:"total_templates"`
	ActiveInstances  int `json:"active_instances"`
	PendingApprovals int `json:"pending_approvals"`
	CompletedToday   int `json:"completed_today"`
}

// StatsService computes read-only projections by querying the stores. There
// are no engine-maintained running totals: the stores are the single source
// of truth for every count.
type StatsService struct {
	templates    ports.TemplateStore
	instances    ports.InstanceStore
	orchestrator *OrchestratorService
}

// NewStatsService creates a new StatsService
func NewStatsService(templates ports.TemplateStore, instances ports.InstanceStore, orchestrator *OrchestratorService) *StatsService {
	return &StatsService{
		templates:    templates,
		instances:    instances,
		orchestrator: orchestrator,
	}
}

// GetStats computes the aggregate counts for the given actor
func (s *StatsService) GetStats(ctx context.Context, actor *auth.UserSession) (*WorkflowStats, error) {
	stats := &WorkflowStats{}

	totalTemplates, err := s.templates.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalTemplates = totalTemplates

	active, err := s.instances.CountByStatus(ctx, models.InstanceStatusInProgress)
	if err != nil {
		return nil, err
	}
	stats.ActiveInstances = active

	pending, err := s.orchestrator.ListPendingForActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	stats.PendingApprovals = len(pending)

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	completedToday, err := s.instances.CountFinishedSince(ctx, models.InstanceStatusCompleted, midnight)
	if err != nil {
		return nil, err
	}
	stats.CompletedToday = completedToday

	return stats, nil
}
