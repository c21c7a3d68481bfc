package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/backend/internal/domain"
	"github.com/docuflow/backend/internal/domain/events"
	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/internal/domain/ports"
	"github.com/docuflow/backend/pkg/auth"
	appErrors "github.com/docuflow/backend/pkg/errors"
)

// VoteRequest is the input for casting a vote on an instance's current step
type VoteRequest struct {
	InstanceID string
	StepID     string
	Decision   models.Decision
	Comment    string
}

// PendingApproval is one entry in an actor's approval inbox
type PendingApproval struct {
	Instance *models.WorkflowInstance `json:"instance"`
	Step     *models.StepDefinition   `json:"step"`
	Deadline *time.Time               `json:"deadline,omitempty"`
}

// OrchestratorService drives the workflow instance lifecycle: it starts
// instances, applies resolver decisions, advances or terminates, and records
// escalations raised by the scheduler.
//
// All mutating operations on a single instance are serialized by a
// per-instance lock held across load, resolve and persist; the instance
// store's version check guards against writers outside this process.
// Different instances never contend.
type OrchestratorService struct {
	templates ports.TemplateStore
	instances ports.InstanceStore
	identity  ports.IdentityResolver
	sink      ports.EventSink

	resolver     *domain.Resolver
	stateMachine *domain.InstanceStateMachine

	locks sync.Map // instance id -> *sync.Mutex
}

// NewOrchestratorService creates a new OrchestratorService
func NewOrchestratorService(
	templates ports.TemplateStore,
	instances ports.InstanceStore,
	identity ports.IdentityResolver,
	sink ports.EventSink,
) *OrchestratorService {
	return &OrchestratorService{
		templates:    templates,
		instances:    instances,
		identity:     identity,
		sink:         sink,
		resolver:     domain.NewResolver(),
		stateMachine: domain.NewInstanceStateMachine(),
	}
}

func (s *OrchestratorService) lockInstance(id string) func() {
	muIface, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Start creates a new instance against an active template, cloning the
// template's step list so later template edits never affect this run, and
// activates the first step.
func (s *OrchestratorService) Start(ctx context.Context, templateID, documentID string, initiator *auth.UserSession) (*models.WorkflowInstance, error) {
	tpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, appErrors.NewNotFoundError("Workflow Template", templateID)
	}
	if tpl.Status != models.TemplateStatusActive {
		return nil, appErrors.NewTemplateNotActiveError(templateID, string(tpl.Status))
	}
	if len(tpl.Steps) == 0 {
		return nil, appErrors.NewEmptyTemplateError(templateID)
	}

	now := time.Now().UTC()
	inst := &models.WorkflowInstance{
		ID:               uuid.NewString(),
		TemplateID:       tpl.ID,
		DocumentID:       documentID,
		InitiatorID:      initiator.ID,
		Status:           models.InstanceStatusInProgress,
		CurrentStepIndex: 0,
		Steps:            cloneSteps(tpl.Steps),
		StepStates:       make([]models.StepState, 0, len(tpl.Steps)),
		StartedAt:        now,
	}
	s.activateStep(inst, now)

	if err := s.instances.Insert(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}
	log.Printf("✅ WorkflowInstance started: %s (template %s, document %s)", inst.ID, tpl.ID, documentID)

	s.emit(ctx, events.InstanceStarted, events.WorkflowEventPayload{
		InstanceID: inst.ID,
		TemplateID: tpl.ID,
		DocumentID: documentID,
		ActorID:    initiator.ID,
		OccurredAt: now,
	})
	s.emit(ctx, events.StepActivated, events.WorkflowEventPayload{
		InstanceID: inst.ID,
		StepID:     inst.Steps[0].ID,
		OccurredAt: now,
	})

	return inst, nil
}

// CastVote records an approver's decision on the instance's current step and
// applies the resolver outcome: advance on satisfaction, terminate on
// rejection, nothing on pending.
func (s *OrchestratorService) CastVote(ctx context.Context, req VoteRequest, actor *auth.UserSession) (*models.WorkflowInstance, error) {
	if !req.Decision.Valid() {
		return nil, appErrors.NewValidationError("decision", fmt.Sprintf("unknown decision %q", req.Decision))
	}

	unlock := s.lockInstance(req.InstanceID)
	defer unlock()

	inst, err := s.instances.GetByID(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, appErrors.NewNotFoundError("Workflow Instance", req.InstanceID)
	}
	if inst.Status != models.InstanceStatusInProgress {
		return nil, appErrors.NewInstanceNotActiveError(inst.ID, string(inst.Status))
	}

	step := inst.CurrentStep()
	if step == nil || step.ID != req.StepID {
		return nil, appErrors.NewStaleStepVoteError(req.StepID)
	}
	state := inst.CurrentStepState()

	expanded, err := s.expandApprovers(ctx, step.Approvers)
	if err != nil {
		return nil, fmt.Errorf("failed to expand approvers: %w", err)
	}
	if err := s.resolver.Authorize(actor.ID, expanded); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expectedVersion := inst.Version
	state.RecordVote(models.Vote{
		ApproverID: actor.ID,
		Decision:   req.Decision,
		Comment:    req.Comment,
		CastAt:     now,
	})

	outcome := s.resolver.Resolve(step.ApprovalMode, expanded, state.Votes)

	var emitted []pendingEvent
	emitted = append(emitted, pendingEvent{events.VoteCast, events.WorkflowEventPayload{
		InstanceID: inst.ID,
		StepID:     step.ID,
		ActorID:    actor.ID,
		Decision:   string(req.Decision),
		Comment:    req.Comment,
		OccurredAt: now,
	}})

	switch outcome {
	case models.StepOutcomeSatisfied:
		state.Outcome = models.StepOutcomeSatisfied
		emitted = append(emitted, pendingEvent{events.StepResolved, events.WorkflowEventPayload{
			InstanceID: inst.ID,
			StepID:     step.ID,
			Outcome:    string(models.StepOutcomeSatisfied),
			OccurredAt: now,
		}})

		if inst.CurrentStepIndex == len(inst.Steps)-1 {
			next, err := s.stateMachine.Transition(inst.Status, domain.TransitionComplete)
			if err != nil {
				return nil, err
			}
			inst.Status = next
			inst.FinishedAt = &now
			emitted = append(emitted, pendingEvent{events.InstanceCompleted, events.WorkflowEventPayload{
				InstanceID: inst.ID,
				DocumentID: inst.DocumentID,
				OccurredAt: now,
			}})
		} else {
			inst.CurrentStepIndex++
			s.activateStep(inst, now)
			emitted = append(emitted, pendingEvent{events.StepActivated, events.WorkflowEventPayload{
				InstanceID: inst.ID,
				StepID:     inst.Steps[inst.CurrentStepIndex].ID,
				OccurredAt: now,
			}})
		}

	case models.StepOutcomeRejected:
		state.Outcome = models.StepOutcomeRejected
		next, err := s.stateMachine.Transition(inst.Status, domain.TransitionReject)
		if err != nil {
			return nil, err
		}
		inst.Status = next
		inst.FinishedAt = &now
		emitted = append(emitted,
			pendingEvent{events.StepResolved, events.WorkflowEventPayload{
				InstanceID: inst.ID,
				StepID:     step.ID,
				Outcome:    string(models.StepOutcomeRejected),
				OccurredAt: now,
			}},
			pendingEvent{events.InstanceRejected, events.WorkflowEventPayload{
				InstanceID: inst.ID,
				DocumentID: inst.DocumentID,
				OccurredAt: now,
			}})

	case models.StepOutcomePending:
		// Ledger updated, no instance-level change. An escalated step keeps
		// its Escalated marker until it resolves.
	}

	if err := s.instances.Save(ctx, inst, expectedVersion); err != nil {
		return nil, err
	}

	for _, e := range emitted {
		s.emit(ctx, e.eventType, e.payload)
	}
	return inst, nil
}

// Cancel terminates an in-progress instance. Only the initiator or an
// administrator may cancel; the authorization policy itself lives with the
// caller's identity, not in workflow state.
func (s *OrchestratorService) Cancel(ctx context.Context, instanceID string, actor *auth.UserSession) (*models.WorkflowInstance, error) {
	unlock := s.lockInstance(instanceID)
	defer unlock()

	inst, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, appErrors.NewNotFoundError("Workflow Instance", instanceID)
	}
	if inst.Status != models.InstanceStatusInProgress {
		return nil, appErrors.NewInstanceNotActiveError(inst.ID, string(inst.Status))
	}
	if actor.ID != inst.InitiatorID && !actor.IsAdmin {
		return nil, appErrors.NewUnauthorizedActorError(actor.ID)
	}

	now := time.Now().UTC()
	expectedVersion := inst.Version
	next, err := s.stateMachine.Transition(inst.Status, domain.TransitionCancel)
	if err != nil {
		return nil, err
	}
	inst.Status = next
	inst.FinishedAt = &now

	if err := s.instances.Save(ctx, inst, expectedVersion); err != nil {
		return nil, err
	}
	log.Printf("🛑 WorkflowInstance cancelled: %s by %s", inst.ID, actor.ID)

	s.emit(ctx, events.InstanceCancelled, events.WorkflowEventPayload{
		InstanceID: inst.ID,
		DocumentID: inst.DocumentID,
		ActorID:    actor.ID,
		OccurredAt: now,
	})
	return inst, nil
}

// Escalate marks the instance's current step as escalated. Invoked by the
// escalation scheduler; idempotent — a step already escalated is a no-op and
// emits nothing. Escalation never changes instance status: termination after
// escalation requires an explicit external decision.
func (s *OrchestratorService) Escalate(ctx context.Context, instanceID, stepID string) error {
	unlock := s.lockInstance(instanceID)
	defer unlock()

	inst, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		return err
	}
	if inst == nil {
		return appErrors.NewNotFoundError("Workflow Instance", instanceID)
	}
	if inst.Status != models.InstanceStatusInProgress {
		return nil // Terminal instances have nothing left to escalate
	}

	step := inst.CurrentStep()
	if step == nil || step.ID != stepID {
		return nil // Step advanced between sweep read and this call
	}
	state := inst.CurrentStepState()
	if state.Outcome != models.StepOutcomePending {
		return nil // Already escalated or resolved
	}

	now := time.Now().UTC()
	expectedVersion := inst.Version
	state.Outcome = models.StepOutcomeEscalated

	if err := s.instances.Save(ctx, inst, expectedVersion); err != nil {
		return err
	}
	log.Printf("⏰ Step escalated: instance %s step %s", instanceID, stepID)

	s.emit(ctx, events.StepEscalated, events.WorkflowEventPayload{
		InstanceID: inst.ID,
		StepID:     stepID,
		OccurredAt: now,
	})
	return nil
}

// GetInstance retrieves an instance by id
func (s *OrchestratorService) GetInstance(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	inst, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, appErrors.NewNotFoundError("Workflow Instance", instanceID)
	}
	return inst, nil
}

// ListPendingForActor returns the approval inbox for an actor: every
// in-progress instance whose current step names the actor (directly or via
// role/organization membership) and where the actor has not voted yet.
func (s *OrchestratorService) ListPendingForActor(ctx context.Context, actor *auth.UserSession) ([]PendingApproval, error) {
	inFlight, err := s.instances.ListByStatus(ctx, models.InstanceStatusInProgress)
	if err != nil {
		return nil, err
	}

	pending := make([]PendingApproval, 0)
	for _, inst := range inFlight {
		step := inst.CurrentStep()
		state := inst.CurrentStepState()
		if step == nil || state == nil {
			continue
		}
		if state.Outcome != models.StepOutcomePending && state.Outcome != models.StepOutcomeEscalated {
			continue
		}
		if state.VoteBy(actor.ID) != nil {
			continue
		}

		expanded, err := s.expandApprovers(ctx, step.Approvers)
		if err != nil {
			log.Printf("⚠️ Failed to expand approvers for instance %s: %v", inst.ID, err)
			continue
		}
		if !containsIdentity(expanded, actor.ID) {
			continue
		}

		pending = append(pending, PendingApproval{
			Instance: inst,
			Step:     step,
			Deadline: state.DeadlineAt,
		})
	}
	return pending, nil
}

// Private helpers

type pendingEvent struct {
	eventType events.EventType
	payload   events.WorkflowEventPayload
}

// activateStep lazily creates the StepState for the current step and computes
// its deadline from the step's max delay (hours are the canonical unit).
func (s *OrchestratorService) activateStep(inst *models.WorkflowInstance, now time.Time) {
	step := inst.CurrentStep()
	state := models.StepState{
		StepID:      step.ID,
		ActivatedAt: now,
		Outcome:     models.StepOutcomePending,
		Votes:       make([]models.Vote, 0),
	}
	if step.MaxDelayHours != nil {
		deadline := now.Add(time.Duration(*step.MaxDelayHours) * time.Hour)
		state.DeadlineAt = &deadline
	}
	inst.StepStates = append(inst.StepStates, state)
}

// expandApprovers resolves every approver reference and deduplicates the
// union of the resulting identity sets.
func (s *OrchestratorService) expandApprovers(ctx context.Context, refs []models.ApproverRef) ([]string, error) {
	seen := make(map[string]bool)
	expanded := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids, err := s.identity.Expand(ctx, ref)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				expanded = append(expanded, id)
			}
		}
	}
	return expanded, nil
}

func (s *OrchestratorService) emit(ctx context.Context, eventType events.EventType, payload events.WorkflowEventPayload) {
	if err := s.sink.Emit(ctx, eventType, payload); err != nil {
		// The state transition is the source of truth; event delivery is
		// best-effort and replayable by the collaborator.
		log.Printf("⚠️ Failed to emit %s for instance %s: %v", eventType, payload.InstanceID, err)
	}
}

func cloneSteps(steps []models.StepDefinition) []models.StepDefinition {
	cloned := make([]models.StepDefinition, len(steps))
	copy(cloned, steps)
	for i := range cloned {
		approvers := make([]models.ApproverRef, len(steps[i].Approvers))
		copy(approvers, steps[i].Approvers)
		cloned[i].Approvers = approvers
	}
	return cloned
}

func containsIdentity(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
