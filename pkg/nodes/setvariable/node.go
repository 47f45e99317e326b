// Package setvariable implements the node that writes a templated value
// into the execution's variable scope.
package setvariable

import (
	"context"
	"fmt"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
	"github.com/atendohq/atendo/pkg/template"
)

type SetVariableNode struct {
	id    string
	name  string
	value any
}

func NewSetVariableNode(id string, config map[string]any) (*SetVariableNode, error) {
	name, _ := config["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("set-variable node %s: name is required", id)
	}

	value, ok := config["value"]
	if !ok {
		return nil, fmt.Errorf("set-variable node %s: value is required", id)
	}

	return &SetVariableNode{id: id, name: name, value: value}, nil
}

func (n *SetVariableNode) Kind() models.NodeKind {
	return models.NodeKindSetVariable
}

func (n *SetVariableNode) Execute(_ context.Context, nodeCtx protocol.NodeContext) (protocol.NodeOutcome, error) {
	value := n.value

	// Only string values are templated; numbers and booleans pass through.
	if str, ok := n.value.(string); ok {
		rendered, err := template.RenderWithExecution(str, nodeCtx.Execution, nodeCtx.Inbound)
		if err != nil {
			return protocol.NodeOutcome{}, fmt.Errorf("rendering variable value: %w", err)
		}

		value = rendered
	}

	return protocol.NodeOutcome{
		Summary:   "variable set",
		Output:    map[string]any{"name": n.name, "value": value},
		Variables: map[string]any{n.name: value},
	}, nil
}
