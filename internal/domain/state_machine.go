package domain

import (
	"fmt"

	"github.com/docuflow/backend/internal/domain/models"
)

// InstanceTransition represents an action that can change instance status
type InstanceTransition string

const (
	// TransitionComplete marks the instance completed after its last step
	TransitionComplete InstanceTransition = "Complete"
	// TransitionReject terminates the instance on a rejected step
	TransitionReject InstanceTransition = "Reject"
	// TransitionCancel terminates the instance on the initiator's request
	TransitionCancel InstanceTransition = "Cancel"
)

// InstanceStateMachine enforces valid status transitions for workflow
// instances. Invalid transitions return an error (fail-fast approach).
type InstanceStateMachine struct {
	transitions map[stateTransitionKey]models.InstanceStatus
}

type stateTransitionKey struct {
	status     models.InstanceStatus
	transition InstanceTransition
}

// NewInstanceStateMachine creates the state machine with the instance
// lifecycle rules. Completed, Rejected and Cancelled are terminal; escalation
// is a step-level marker and never changes instance status.
func NewInstanceStateMachine() *InstanceStateMachine {
	sm := &InstanceStateMachine{
		transitions: make(map[stateTransitionKey]models.InstanceStatus),
	}

	sm.addTransition(models.InstanceStatusInProgress, TransitionComplete, models.InstanceStatusCompleted)
	sm.addTransition(models.InstanceStatusInProgress, TransitionReject, models.InstanceStatusRejected)
	sm.addTransition(models.InstanceStatusInProgress, TransitionCancel, models.InstanceStatusCancelled)

	return sm
}

func (sm *InstanceStateMachine) addTransition(from models.InstanceStatus, via InstanceTransition, to models.InstanceStatus) {
	key := stateTransitionKey{status: from, transition: via}
	sm.transitions[key] = to
}

// Transition attempts to transition from the current status using the given
// action. Returns the new status or an error if the transition is invalid.
func (sm *InstanceStateMachine) Transition(current models.InstanceStatus, action InstanceTransition) (models.InstanceStatus, error) {
	key := stateTransitionKey{status: current, transition: action}
	next, ok := sm.transitions[key]
	if !ok {
		return current, fmt.Errorf("invalid state transition: cannot %s from %s", action, current)
	}
	return next, nil
}

// CanTransition checks if a transition is valid without performing it.
func (sm *InstanceStateMachine) CanTransition(current models.InstanceStatus, action InstanceTransition) bool {
	key := stateTransitionKey{status: current, transition: action}
	_, ok := sm.transitions[key]
	return ok
}
