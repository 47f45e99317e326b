// Package waitreply implements the node that suspends an execution until
// the contact's next inbound message.
package waitreply

import (
	"context"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

const defaultVariable = "last_reply"

type WaitReplyNode struct {
	id       string
	variable string
}

func NewWaitReplyNode(id string, config map[string]any) (*WaitReplyNode, error) {
	variable, _ := config["variable"].(string)
	if variable == "" {
		variable = defaultVariable
	}

	return &WaitReplyNode{id: id, variable: variable}, nil
}

func (n *WaitReplyNode) Kind() models.NodeKind {
	return models.NodeKindWaitReply
}

// Execute pauses on first entry. The engine re-executes the node with
// Inbound set once the reply arrives; the reply body is then captured into
// the configured variable.
func (n *WaitReplyNode) Execute(_ context.Context, nodeCtx protocol.NodeContext) (protocol.NodeOutcome, error) {
	if nodeCtx.Inbound == nil {
		return protocol.NodeOutcome{
			Summary: "waiting for reply",
			Pause:   true,
		}, nil
	}

	return protocol.NodeOutcome{
		Summary: "reply received",
		Output:  map[string]any{"reply": nodeCtx.Inbound.Body},
		Variables: map[string]any{
			n.variable: nodeCtx.Inbound.Body,
		},
	}, nil
}
