// Package sendmessage implements the node that delivers a templated
// message to the contact through the provider gateway.
package sendmessage

import (
	"context"
	"fmt"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
	"github.com/atendohq/atendo/pkg/template"
)

type SendMessageNode struct {
	id        string
	sender    protocol.MessageSender
	body      string
	mediaRef  string
	mediaKind models.MediaKind
}

func NewSendMessageNode(id string, sender protocol.MessageSender, config map[string]any) (*SendMessageNode, error) {
	body, _ := config["body"].(string)
	if body == "" {
		return nil, fmt.Errorf("send-message node %s: body is required", id)
	}

	mediaRef, _ := config["media_ref"].(string)
	mediaKind, _ := config["media_kind"].(string)

	return &SendMessageNode{
		id:        id,
		sender:    sender,
		body:      body,
		mediaRef:  mediaRef,
		mediaKind: models.MediaKind(mediaKind),
	}, nil
}

func (n *SendMessageNode) Kind() models.NodeKind {
	return models.NodeKindSendMessage
}

func (n *SendMessageNode) Execute(ctx context.Context, nodeCtx protocol.NodeContext) (protocol.NodeOutcome, error) {
	body, err := template.RenderWithExecution(n.body, nodeCtx.Execution, nodeCtx.Inbound)
	if err != nil {
		return protocol.NodeOutcome{}, fmt.Errorf("rendering message body: %w", err)
	}

	msg := models.NormalizedMessage{
		CompanyID: nodeCtx.Execution.CompanyID,
		ToAddress: nodeCtx.Execution.ContactID,
		Body:      body,
		MediaRef:  n.mediaRef,
		MediaKind: n.mediaKind,
	}

	externalID, err := n.sender.SendMessage(ctx, nodeCtx.Execution.TicketID, msg)
	if err != nil {
		return protocol.NodeOutcome{}, err
	}

	nodeCtx.Logger.Debug("Message sent", "node_id", n.id, "external_id", externalID)

	return protocol.NodeOutcome{
		Summary:        "message sent",
		Output:         map[string]any{"external_id": externalID},
		SentMessageIDs: []string{externalID},
	}, nil
}
