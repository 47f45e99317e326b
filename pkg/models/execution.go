package models

import "time"

// ExecutionStatus is the lifecycle state of a flow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusStopped   ExecutionStatus = "stopped"
	ExecutionStatusTimeout   ExecutionStatus = "timeout"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed,
		ExecutionStatusStopped, ExecutionStatusTimeout:
		return true
	default:
		return false
	}
}

// StepRecord is one append-only entry of an execution's history.
type StepRecord struct {
	NodeID         string         `json:"node_id"`
	EnteredAt      time.Time      `json:"entered_at"`
	ExitedAt       *time.Time     `json:"exited_at,omitempty"`
	Outcome        string         `json:"outcome,omitempty"` // short summary of what the node produced
	Output         map[string]any `json:"output,omitempty"`  // node's structured result
	TakenEdge      string         `json:"taken_edge,omitempty"` // target node of the edge the router chose, empty when none was taken
	SentMessageIDs []string       `json:"sent_message_ids,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Execution is one in-flight automated conversation. The engine is its
// only writer; once Status is terminal the record is immutable. At most
// one non-terminal execution exists per ticket.
type Execution struct {
	ID            string          `json:"id"            validate:"required"`
	FlowID        string          `json:"flow_id"       validate:"required"`
	FlowVersion   int             `json:"flow_version"`
	TicketID      string          `json:"ticket_id"     validate:"required"`
	ContactID     string          `json:"contact_id"`
	CompanyID     string          `json:"company_id"    validate:"required"`
	Status        ExecutionStatus `json:"status"`
	CurrentNodeID string          `json:"current_node_id"`
	Variables     map[string]any  `json:"variables"`
	History       []StepRecord    `json:"history"`
	PausedUntil   *time.Time      `json:"paused_until,omitempty"` // wait-for-reply deadline, set while paused with a node timeout
	StartedAt     time.Time       `json:"started_at"`
	EndedAt       *time.Time      `json:"ended_at,omitempty"`
	Error         string          `json:"error,omitempty"` // reason string for every terminal non-completed status
}

// AppendStep records a finished step. History is append-only; existing
// records are never rewritten.
func (e *Execution) AppendStep(rec StepRecord) {
	e.History = append(e.History, rec)
}

// SetVariable merges one variable into the execution scope.
func (e *Execution) SetVariable(name string, value any) {
	if e.Variables == nil {
		e.Variables = make(map[string]any)
	}

	e.Variables[name] = value
}
