package errors

// Workflow-specific error constructors. These map the engine's failure taxonomy
// onto the shared AppError types so handlers get the right HTTP status without
// string matching.

// NewTemplateNotActiveError signals a start attempt against a template that is
// not in the Active status.
func NewTemplateNotActiveError(templateID, status string) *ValidationError {
	return &ValidationError{
		Field:   "workflow_id",
		Message: "template " + templateID + " is not active (status: " + status + ")",
	}
}

// NewEmptyTemplateError signals a template with zero steps.
func NewEmptyTemplateError(templateID string) *ValidationError {
	return &ValidationError{
		Field:   "steps",
		Message: "template " + templateID + " has no steps",
	}
}

// NewStaleStepVoteError signals a vote against a step that is no longer the
// instance's current step. The caller may retry against the current step.
func NewStaleStepVoteError(stepID string) *ConflictError {
	return &ConflictError{
		Resource: "workflow step",
		Message:  "step " + stepID + " is not the current step of this instance",
	}
}

// NewInstanceNotActiveError signals a mutating call on a terminal instance.
func NewInstanceNotActiveError(instanceID, status string) *ConflictError {
	return &ConflictError{
		Resource: "workflow instance",
		Message:  "instance " + instanceID + " is no longer in progress (status: " + status + ")",
	}
}

// NewUnauthorizedApproverError signals a vote from an identity outside the
// step's expanded approver set.
func NewUnauthorizedApproverError(identity string) *PermissionError {
	return &PermissionError{Action: "vote as " + identity + " on", Resource: "this step"}
}

// NewUnauthorizedActorError signals a cancel attempt by an actor who is neither
// the initiator nor an administrator.
func NewUnauthorizedActorError(actorID string) *PermissionError {
	return &PermissionError{Action: "cancel as " + actorID, Resource: "this instance"}
}
