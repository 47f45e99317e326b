// Package protocol defines the contracts for pluggable flow nodes.
package protocol

import (
	"context"
	"log/slog"

	"github.com/atendohq/atendo/pkg/models"
)

// NodeOutcome is what a node execution produced. Variables are merged into
// the execution's variable map before edges are evaluated; Pause suspends
// the execution until the contact's next inbound message.
type NodeOutcome struct {
	// Summary is a short human-readable label persisted on the step record.
	Summary string

	// Output is the node's structured result, persisted on the step record.
	Output map[string]any

	// Variables to merge into the execution before routing.
	Variables map[string]any

	// SentMessageIDs are the external ids of messages the node sent.
	SentMessageIDs []string

	// Pause suspends the execution at the current node. The node is
	// executed again, with NodeContext.Inbound set, when a reply arrives.
	Pause bool
}

// NodeContext carries the execution state a node may read. Nodes never
// mutate the execution directly; everything flows back via NodeOutcome.
type NodeContext struct {
	Flow      *models.FlowGraph
	Execution *models.Execution

	// Inbound is the reply that resumed a paused execution, nil otherwise.
	Inbound *models.NormalizedMessage

	Logger *slog.Logger
}

// Node executes one step of a flow.
type Node interface {
	Execute(ctx context.Context, nodeCtx NodeContext) (NodeOutcome, error)
	Kind() models.NodeKind
}

// NodeFactory builds nodes of one kind from a validated configuration.
type NodeFactory interface {
	Create(id string, config map[string]any) (Node, error)
	Kind() models.NodeKind

	// Schema is the JSON schema the node's configuration must satisfy.
	Schema() map[string]any
}

// MessageSender is the outbound capability nodes use. The gateway facade
// implements it in production.
type MessageSender interface {
	SendMessage(ctx context.Context, ticketID string, msg models.NormalizedMessage) (string, error)
}

// QueueRouter hands a ticket over to a human attendance queue.
type QueueRouter interface {
	TransferToQueue(ctx context.Context, companyID, ticketID, queueID string) error
}
