package events

import "time"

// EventType defines the type of event in the system
type EventType string

const (
	// Instance lifecycle events
	InstanceStarted   EventType = "workflow.instance_started"
	InstanceCompleted EventType = "workflow.instance_completed"
	InstanceRejected  EventType = "workflow.instance_rejected"
	InstanceCancelled EventType = "workflow.instance_cancelled"

	// Step-level events
	StepActivated EventType = "workflow.step_activated"
	VoteCast      EventType = "workflow.vote_cast"
	StepResolved  EventType = "workflow.step_resolved"
	StepEscalated EventType = "workflow.step_escalated"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// WorkflowEventPayload is the payload attached to every workflow event.
// Fields irrelevant to a given event type are left empty.
type WorkflowEventPayload struct {
	InstanceID string    `json:"instance_id"`
	TemplateID string    `json:"template_id,omitempty"`
	DocumentID string    `json:"document_id,omitempty"`
	StepID     string    `json:"step_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
