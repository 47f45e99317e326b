package setvariable

import (
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(id string, config map[string]any) (protocol.Node, error) {
	return NewSetVariableNode(id, config)
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindSetVariable
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Variable name to set",
				"minLength":   1,
			},
			"value": map[string]any{
				"description": "Value to store. String values support templating",
			},
		},
		"required": []string{"name", "value"},
	}
}
