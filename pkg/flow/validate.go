package flow

import (
	"fmt"
	"strings"

	"github.com/atendohq/atendo/pkg/models"
)

// InvalidFlowError aggregates every structural violation of a graph, so a
// flow author sees all of them in one round instead of fixing one at a time.
type InvalidFlowError struct {
	FlowID     string
	Violations []string
}

func (e *InvalidFlowError) Error() string {
	return fmt.Sprintf("flow %s is invalid: %s", e.FlowID, strings.Join(e.Violations, "; "))
}

var knownNodeKinds = map[models.NodeKind]bool{
	models.NodeKindStart:         true,
	models.NodeKindSendMessage:   true,
	models.NodeKindBranch:        true,
	models.NodeKindWaitReply:     true,
	models.NodeKindHTTPRequest:   true,
	models.NodeKindSetVariable:   true,
	models.NodeKindTransferQueue: true,
	models.NodeKindEnd:           true,
}

// ValidateGraph checks the structural invariants every runnable flow must
// satisfy: exactly one start node matching the entry, at least one end
// node, edges that only reference existing nodes, and an end node
// reachable from the entry.
func ValidateGraph(graph *models.FlowGraph) error {
	var violations []string

	var startIDs []string

	endCount := 0

	for id, node := range graph.Nodes {
		if node == nil {
			violations = append(violations, fmt.Sprintf("node %s has no definition", id))

			continue
		}

		if !knownNodeKinds[node.Kind] {
			violations = append(violations, fmt.Sprintf("node %s has unknown kind '%s'", id, node.Kind))
		}

		switch node.Kind {
		case models.NodeKindStart:
			startIDs = append(startIDs, id)
		case models.NodeKindEnd:
			endCount++
		}
	}

	if len(startIDs) != 1 {
		violations = append(violations, fmt.Sprintf("flow must have exactly one start node, found %d", len(startIDs)))
	}

	if endCount == 0 {
		violations = append(violations, "flow must have at least one end node")
	}

	if graph.Node(graph.EntryNodeID) == nil {
		violations = append(violations, fmt.Sprintf("entry node %s does not exist", graph.EntryNodeID))
	} else if len(startIDs) == 1 && graph.EntryNodeID != startIDs[0] {
		violations = append(violations, fmt.Sprintf("entry node %s is not the start node", graph.EntryNodeID))
	}

	for _, edge := range graph.Edges {
		if graph.Node(edge.SourceNodeID) == nil {
			violations = append(violations, fmt.Sprintf("edge references missing source node %s", edge.SourceNodeID))
		}

		if graph.Node(edge.TargetNodeID) == nil {
			violations = append(violations, fmt.Sprintf("edge references missing target node %s", edge.TargetNodeID))
		}
	}

	if endCount > 0 && graph.Node(graph.EntryNodeID) != nil && !endReachable(graph) {
		violations = append(violations, "no end node is reachable from the entry node")
	}

	if len(violations) > 0 {
		return &InvalidFlowError{FlowID: graph.ID, Violations: violations}
	}

	return nil
}

func endReachable(graph *models.FlowGraph) bool {
	visited := map[string]bool{graph.EntryNodeID: true}
	queue := []string{graph.EntryNodeID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if node := graph.Node(current); node != nil && node.Kind == models.NodeKindEnd {
			return true
		}

		for _, edge := range graph.OutgoingEdges(current) {
			if !visited[edge.TargetNodeID] {
				visited[edge.TargetNodeID] = true
				queue = append(queue, edge.TargetNodeID)
			}
		}
	}

	return false
}
