package domain

import "time"

// State enumerates workflow lifecycle states for a contact event.
type State string

const (
	StateReceived        State = "received"
	StateClassified      State = "classified"
	StateQueued          State = "queued"
	StateAssigned        State = "assigned"
	StateInProgress      State = "inProgress"
	StateCompleted       State = "completed"
	StateFailedRetryable State = "failedRetryable"
	StateFailedTerminal  State = "failedTerminal"
)

// IsTerminal reports whether no further automatic transition occurs from s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailedTerminal
}

// StateTransition is a single history entry. ExitedAt stays nil while the
// instance is still in the state.
type StateTransition struct {
	State     State
	EnteredAt time.Time
	ExitedAt  *time.Time
}

// WorkflowInstance tracks one ContactEvent through the state machine.
// History is append-only; CurrentState always equals the state of the last
// history entry, and only the state machine writes either.
type WorkflowInstance struct {
	EventID      string
	Entity       string
	CurrentState State
	History      []StateTransition
	AttemptCount int
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewWorkflowInstance seeds an instance in the received state.
func NewWorkflowInstance(eventID, entity string, at time.Time) *WorkflowInstance {
	return &WorkflowInstance{
		EventID:      eventID,
		Entity:       entity,
		CurrentState: StateReceived,
		History:      []StateTransition{{State: StateReceived, EnteredAt: at}},
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

// AgentTask is the unit of work handed to an agent handler. It exists only
// between entering the assigned state and handler completion.
type AgentTask struct {
	InstanceID string
	Entity     string
	Capability string
	Payload    map[string]string
	Deadline   *time.Time
}
