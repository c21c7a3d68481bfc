package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/docuflow/backend/internal/domain/events"
	"github.com/docuflow/backend/internal/domain/models"
	appErrors "github.com/docuflow/backend/pkg/errors"
)

// In-memory store fakes used across service tests. They mirror the SQL
// adapters' contracts, including the instance store's optimistic version
// check.

type fakeTemplateStore struct {
	mu        sync.Mutex
	templates map[string]*models.WorkflowTemplate
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{templates: make(map[string]*models.WorkflowTemplate)}
}

func (s *fakeTemplateStore) Insert(ctx context.Context, tpl *models.WorkflowTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.ID] = tpl
	return nil
}

func (s *fakeTemplateStore) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.templates[id], nil
}

func (s *fakeTemplateStore) List(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.WorkflowTemplate, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, tpl)
	}
	return out, nil
}

func (s *fakeTemplateStore) UpdateStatus(ctx context.Context, id string, status models.TemplateStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, ok := s.templates[id]
	if !ok {
		return appErrors.NewNotFoundError("Workflow Template", id)
	}
	tpl.Status = status
	return nil
}

func (s *fakeTemplateStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.templates), nil
}

type fakeInstanceStore struct {
	mu        sync.Mutex
	instances map[string]*models.WorkflowInstance
}

func newFakeInstanceStore() *fakeInstanceStore {
	return &fakeInstanceStore{instances: make(map[string]*models.WorkflowInstance)}
}

func (s *fakeInstanceStore) Insert(ctx context.Context, inst *models.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst.Version = 1
	s.instances[inst.ID] = inst
	return nil
}

func (s *fakeInstanceStore) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances[id], nil
}

func (s *fakeInstanceStore) Save(ctx context.Context, inst *models.WorkflowInstance, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.instances[inst.ID]
	if !ok || stored.Version != expectedVersion {
		return appErrors.NewConflictError("Workflow Instance",
			"instance was modified concurrently, reload and retry")
	}
	inst.Version = expectedVersion + 1
	s.instances[inst.ID] = inst
	return nil
}

func (s *fakeInstanceStore) ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.WorkflowInstance, 0)
	for _, inst := range s.instances {
		if inst.Status == status {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (s *fakeInstanceStore) CountByStatus(ctx context.Context, status models.InstanceStatus) (int, error) {
	list, _ := s.ListByStatus(ctx, status)
	return len(list), nil
}

func (s *fakeInstanceStore) CountFinishedSince(ctx context.Context, status models.InstanceStatus, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, inst := range s.instances {
		if inst.Status == status && inst.FinishedAt != nil && !inst.FinishedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// fakeIdentityResolver expands Role and Organization refs from a static
// membership table; User refs expand to themselves.
type fakeIdentityResolver struct {
	members map[string][]string // role/org id -> user ids
}

func (r *fakeIdentityResolver) Expand(ctx context.Context, ref models.ApproverRef) ([]string, error) {
	if ref.Kind == models.ApproverKindUser {
		return []string{ref.ID}, nil
	}
	return r.members[ref.ID], nil
}

// fakeEventSink records emitted events for assertions
type fakeEventSink struct {
	mu     sync.Mutex
	events []emittedEvent
}

type emittedEvent struct {
	Type    events.EventType
	Payload events.WorkflowEventPayload
}

func (s *fakeEventSink) Emit(ctx context.Context, eventType events.EventType, payload events.WorkflowEventPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, emittedEvent{Type: eventType, Payload: payload})
	return nil
}

func (s *fakeEventSink) typesEmitted() []events.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}
