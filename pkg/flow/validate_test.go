package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/models"
)

func graphOf(entry string, nodes []*models.NodeSpec, edges []models.Edge) *models.FlowGraph {
	specs := make(map[string]*models.NodeSpec, len(nodes))
	for _, spec := range nodes {
		specs[spec.ID] = spec
	}

	return &models.FlowGraph{
		ID:          "f-1",
		CompanyID:   "c-1",
		Name:        "test flow",
		Version:     1,
		Nodes:       specs,
		Edges:       edges,
		EntryNodeID: entry,
	}
}

func TestValidateGraphAcceptsMinimalFlow(t *testing.T) {
	graph := graphOf("start",
		[]*models.NodeSpec{
			node("start", models.NodeKindStart, nil),
			node("end", models.NodeKindEnd, nil),
		},
		[]models.Edge{{SourceNodeID: "start", TargetNodeID: "end"}})

	require.NoError(t, ValidateGraph(graph))
}

func TestValidateGraphAggregatesViolations(t *testing.T) {
	graph := graphOf("missing",
		[]*models.NodeSpec{
			node("a", models.NodeKindStart, nil),
			node("b", models.NodeKindStart, nil),
			node("c", models.NodeKind("warp"), nil),
		},
		[]models.Edge{
			{SourceNodeID: "a", TargetNodeID: "ghost"},
		})

	err := ValidateGraph(graph)

	var invalid *InvalidFlowError
	require.ErrorAs(t, err, &invalid)

	// Two starts, unknown kind, no end, missing entry, missing edge target.
	assert.Len(t, invalid.Violations, 5)
}

func TestValidateGraphRequiresReachableEnd(t *testing.T) {
	graph := graphOf("start",
		[]*models.NodeSpec{
			node("start", models.NodeKindStart, nil),
			node("loop", models.NodeKindBranch, nil),
			node("end", models.NodeKindEnd, nil),
		},
		[]models.Edge{
			{SourceNodeID: "start", TargetNodeID: "loop"},
			{SourceNodeID: "loop", TargetNodeID: "loop"},
		})

	err := ValidateGraph(graph)

	var invalid *InvalidFlowError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Violations, "no end node is reachable from the entry node")
}

func TestValidateGraphEntryMustBeStart(t *testing.T) {
	graph := graphOf("greet",
		[]*models.NodeSpec{
			node("start", models.NodeKindStart, nil),
			node("greet", models.NodeKindSendMessage, map[string]any{"body": "oi"}),
			node("end", models.NodeKindEnd, nil),
		},
		[]models.Edge{
			{SourceNodeID: "start", TargetNodeID: "greet"},
			{SourceNodeID: "greet", TargetNodeID: "end"},
		})

	err := ValidateGraph(graph)

	var invalid *InvalidFlowError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Violations[0], "not the start node")
}
