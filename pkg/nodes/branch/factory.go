package branch

import (
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(id string, _ map[string]any) (protocol.Node, error) {
	return NewBranchNode(id), nil
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindBranch
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
