// Package branch implements the decision node. The node itself carries no
// behavior: routing happens on its outgoing edges, whose conditions the
// engine evaluates against the execution variables in declaration order.
package branch

import (
	"context"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

type BranchNode struct {
	id string
}

func NewBranchNode(id string) *BranchNode {
	return &BranchNode{id: id}
}

func (n *BranchNode) Kind() models.NodeKind {
	return models.NodeKindBranch
}

func (n *BranchNode) Execute(_ context.Context, _ protocol.NodeContext) (protocol.NodeOutcome, error) {
	return protocol.NodeOutcome{Summary: "branch evaluated"}, nil
}
