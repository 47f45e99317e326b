package waitreply

import (
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(id string, config map[string]any) (protocol.Node, error) {
	return NewWaitReplyNode(id, config)
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindWaitReply
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"variable": map[string]any{
				"type":        "string",
				"description": "Variable name the reply body is captured into",
				"default":     defaultVariable,
			},
		},
	}
}
