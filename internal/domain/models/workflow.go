package models

import (
	"time"
)

// TemplateStatus is the lifecycle status of a workflow template
type TemplateStatus string

const (
	TemplateStatusDraft    TemplateStatus = "Draft"
	TemplateStatusActive   TemplateStatus = "Active"
	TemplateStatusInactive TemplateStatus = "Inactive"
)

// Valid reports whether s is a known template status
func (s TemplateStatus) Valid() bool {
	switch s {
	case TemplateStatusDraft, TemplateStatusActive, TemplateStatusInactive:
		return true
	}
	return false
}

// ApprovalMode decides when a step is satisfied or rejected.
// The resolver is the single exhaustive match point for this type.
type ApprovalMode string

const (
	// ApprovalModeSingle resolves on the first decisive vote
	ApprovalModeSingle ApprovalMode = "Single"
	// ApprovalModeUnanimous requires every approver to approve; one reject fails fast
	ApprovalModeUnanimous ApprovalMode = "Unanimous"
	// ApprovalModeMajority requires a strict majority of approvers
	ApprovalModeMajority ApprovalMode = "Majority"
)

// Valid reports whether m is a known approval mode
func (m ApprovalMode) Valid() bool {
	switch m {
	case ApprovalModeSingle, ApprovalModeUnanimous, ApprovalModeMajority:
		return true
	}
	return false
}

// ApproverKind is the reference type of an approver
type ApproverKind string

const (
	ApproverKindUser         ApproverKind = "User"
	ApproverKindRole         ApproverKind = "Role"
	ApproverKindOrganization ApproverKind = "Organization"
)

// Valid reports whether k is a known approver kind
func (k ApproverKind) Valid() bool {
	switch k {
	case ApproverKindUser, ApproverKindRole, ApproverKindOrganization:
		return true
	}
	return false
}

// ApproverRef references an approver. Role and Organization refs expand to
// their current member set at vote time; membership is owned by the identity
// service and never copied into workflow state.
type ApproverRef struct {
	Kind ApproverKind `json:"kind"`
	ID   string       `json:"id"`
}

// StepDefinition is one stage of a template
type StepDefinition struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Order         int           `json:"order"`
	ApprovalMode  ApprovalMode  `json:"approval_mode"`
	MaxDelayHours *int          `json:"max_delay_hours,omitempty"`
	Approvers     []ApproverRef `json:"approvers"`
}

// WorkflowTemplate is a reusable definition of an ordered approval process.
// Templates are immutable once any instance references them; step edits on a
// published template create a new version rather than mutating in place.
type WorkflowTemplate struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Status       TemplateStatus   `json:"status"`
	Steps        []StepDefinition `json:"steps"`
	CreatedDate  time.Time        `json:"created_date"`
	LastModified time.Time        `json:"last_modified"`
}

// InstanceStatus is the lifecycle status of a workflow instance
type InstanceStatus string

const (
	InstanceStatusInProgress InstanceStatus = "InProgress"
	InstanceStatusCompleted  InstanceStatus = "Completed"
	InstanceStatusRejected   InstanceStatus = "Rejected"
	InstanceStatusCancelled  InstanceStatus = "Cancelled"
)

// Terminal reports whether the status admits no further transitions
func (s InstanceStatus) Terminal() bool {
	return s == InstanceStatusCompleted || s == InstanceStatusRejected || s == InstanceStatusCancelled
}

// StepOutcome is the resolution state of an activated step
type StepOutcome string

const (
	StepOutcomePending   StepOutcome = "Pending"
	StepOutcomeSatisfied StepOutcome = "Satisfied"
	StepOutcomeRejected  StepOutcome = "Rejected"
	// StepOutcomeEscalated marks a deadline breach. It is informational: the
	// instance stays in progress and votes are still accepted until an external
	// decision terminates it.
	StepOutcomeEscalated StepOutcome = "Escalated"
)

// Decision is an approver's vote
type Decision string

const (
	DecisionApprove Decision = "Approve"
	DecisionReject  Decision = "Reject"
)

// Valid reports whether d is a known decision
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Vote is one approver's latest decision on a step. Votes are kept in cast
// order; a re-vote by the same identity overwrites in place.
type Vote struct {
	ApproverID string    `json:"approver_id"`
	Decision   Decision  `json:"decision"`
	Comment    string    `json:"comment,omitempty"`
	CastAt     time.Time `json:"cast_at"`
}

// StepState is the runtime ledger for one activated step
type StepState struct {
	StepID      string      `json:"step_id"`
	ActivatedAt time.Time   `json:"activated_at"`
	DeadlineAt  *time.Time  `json:"deadline_at,omitempty"`
	Outcome     StepOutcome `json:"outcome"`
	Votes       []Vote      `json:"votes"`
}

// VoteBy returns the vote cast by the given identity, or nil
func (st *StepState) VoteBy(identity string) *Vote {
	for i := range st.Votes {
		if st.Votes[i].ApproverID == identity {
			return &st.Votes[i]
		}
	}
	return nil
}

// RecordVote appends a vote, overwriting a previous vote by the same identity
// while keeping its position in the ledger.
func (st *StepState) RecordVote(v Vote) {
	for i := range st.Votes {
		if st.Votes[i].ApproverID == v.ApproverID {
			st.Votes[i] = v
			return
		}
	}
	st.Votes = append(st.Votes, v)
}

// WorkflowInstance is one execution of a template against a document. Steps
// are cloned from the template at start time so later template edits never
// affect a running instance.
type WorkflowInstance struct {
	ID               string           `json:"id"`
	TemplateID       string           `json:"template_id"`
	DocumentID       string           `json:"document_id"`
	InitiatorID      string           `json:"initiator_id"`
	Status           InstanceStatus   `json:"status"`
	CurrentStepIndex int              `json:"current_step_index"`
	Steps            []StepDefinition `json:"steps"`
	StepStates       []StepState      `json:"step_states"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
	// Version guards optimistic concurrency at the instance store
	Version int `json:"version"`
}

// CurrentStep returns the step definition at the current index, or nil when
// the instance has run past its last step.
func (w *WorkflowInstance) CurrentStep() *StepDefinition {
	if w.CurrentStepIndex < 0 || w.CurrentStepIndex >= len(w.Steps) {
		return nil
	}
	return &w.Steps[w.CurrentStepIndex]
}

// CurrentStepState returns the step state for the current step, or nil.
// Step states are created lazily when a step activates, so the slice length
// tracks the highest activated index.
func (w *WorkflowInstance) CurrentStepState() *StepState {
	if w.CurrentStepIndex < 0 || w.CurrentStepIndex >= len(w.StepStates) {
		return nil
	}
	return &w.StepStates[w.CurrentStepIndex]
}

// StateForStep returns the step state matching the given step id, or nil
func (w *WorkflowInstance) StateForStep(stepID string) *StepState {
	for i := range w.StepStates {
		if w.StepStates[i].StepID == stepID {
			return &w.StepStates[i]
		}
	}
	return nil
}
