// Package transferqueue implements the node that hands the ticket over to
// a human attendance queue.
package transferqueue

import (
	"context"
	"fmt"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

type TransferQueueNode struct {
	id      string
	queueID string
	router  protocol.QueueRouter
}

func NewTransferQueueNode(id string, router protocol.QueueRouter, config map[string]any) (*TransferQueueNode, error) {
	queueID, _ := config["queue_id"].(string)
	if queueID == "" {
		return nil, fmt.Errorf("transfer-to-queue node %s: queue_id is required", id)
	}

	return &TransferQueueNode{id: id, queueID: queueID, router: router}, nil
}

func (n *TransferQueueNode) Kind() models.NodeKind {
	return models.NodeKindTransferQueue
}

func (n *TransferQueueNode) Execute(ctx context.Context, nodeCtx protocol.NodeContext) (protocol.NodeOutcome, error) {
	execution := nodeCtx.Execution

	if err := n.router.TransferToQueue(ctx, execution.CompanyID, execution.TicketID, n.queueID); err != nil {
		return protocol.NodeOutcome{}, fmt.Errorf("transferring ticket %s to queue %s: %w", execution.TicketID, n.queueID, err)
	}

	nodeCtx.Logger.Info("Ticket transferred to queue",
		"ticket_id", execution.TicketID,
		"queue_id", n.queueID)

	return protocol.NodeOutcome{
		Summary:   "transferred to queue",
		Output:    map[string]any{"queue_id": n.queueID},
		Variables: map[string]any{"queue_id": n.queueID},
	}, nil
}
