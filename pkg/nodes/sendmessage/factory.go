package sendmessage

import (
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

type Factory struct {
	sender protocol.MessageSender
}

func NewFactory(sender protocol.MessageSender) *Factory {
	return &Factory{sender: sender}
}

func (f *Factory) Create(id string, config map[string]any) (protocol.Node, error) {
	return NewSendMessageNode(id, f.sender, config)
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindSendMessage
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"body": map[string]any{
				"type":        "string",
				"description": "Message text. Supports templating with {{.variables.name}}",
				"minLength":   1,
			},
			"media_ref": map[string]any{
				"type":        "string",
				"description": "Optional media reference to attach",
			},
			"media_kind": map[string]any{
				"type": "string",
				"enum": []string{"image", "video", "audio", "document"},
			},
		},
		"required": []string{"body"},
	}
}
