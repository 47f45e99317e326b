package transferqueue

import (
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

type Factory struct {
	router protocol.QueueRouter
}

func NewFactory(router protocol.QueueRouter) *Factory {
	return &Factory{router: router}
}

func (f *Factory) Create(id string, config map[string]any) (protocol.Node, error) {
	return NewTransferQueueNode(id, f.router, config)
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindTransferQueue
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"queue_id": map[string]any{
				"type":        "string",
				"description": "Attendance queue receiving the ticket",
				"minLength":   1,
			},
		},
		"required": []string{"queue_id"},
	}
}
