package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

type nopSender struct{}

func (nopSender) SendMessage(_ context.Context, _ string, _ models.NormalizedMessage) (string, error) {
	return "ext-1", nil
}

type nopRouter struct{}

func (nopRouter) TransferToQueue(_ context.Context, _, _, _ string) error {
	return nil
}

func newTestRegistry() *Registry {
	r := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.RegisterDefaultNodes(nopSender{}, nopRouter{})

	return r
}

func TestCreateNodeValidConfig(t *testing.T) {
	r := newTestRegistry()

	node, err := r.CreateNode(models.NodeKindSendMessage, "msg-1", map[string]any{
		"body": "ola",
	})
	require.NoError(t, err)
	assert.Equal(t, models.NodeKindSendMessage, node.Kind())
}

func TestCreateNodeRejectsInvalidConfig(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name   string
		kind   models.NodeKind
		config map[string]any
	}{
		{"send-message without body", models.NodeKindSendMessage, map[string]any{}},
		{"send-message with bad media kind", models.NodeKindSendMessage, map[string]any{"body": "oi", "media_kind": "hologram"}},
		{"set-variable without name", models.NodeKindSetVariable, map[string]any{"value": "x"}},
		{"call-external-api without url", models.NodeKindHTTPRequest, map[string]any{"method": "GET"}},
		{"transfer without queue", models.NodeKindTransferQueue, map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.CreateNode(tt.kind, "n-1", tt.config)
			require.Error(t, err)
		})
	}
}

func TestCreateNodeUnknownKind(t *testing.T) {
	r := newTestRegistry()

	_, err := r.CreateNode(models.NodeKind("teleport"), "n-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestDefaultNodesRegistered(t *testing.T) {
	r := newTestRegistry()

	for _, kind := range []models.NodeKind{
		models.NodeKindSendMessage,
		models.NodeKindWaitReply,
		models.NodeKindBranch,
		models.NodeKindSetVariable,
		models.NodeKindHTTPRequest,
		models.NodeKindTransferQueue,
	} {
		assert.True(t, r.IsRegistered(kind), string(kind))
	}

	assert.False(t, r.IsRegistered(models.NodeKindStart))
	assert.False(t, r.IsRegistered(models.NodeKindEnd))
}

var _ protocol.NodeFactory = (*fakeFactory)(nil)

type fakeFactory struct{}

func (fakeFactory) Create(_ string, _ map[string]any) (protocol.Node, error) { return nil, nil }
func (fakeFactory) Kind() models.NodeKind                                    { return models.NodeKind("fake") }
func (fakeFactory) Schema() map[string]any                                   { return map[string]any{"type": "object"} }

func TestRegisterNodeOverrides(t *testing.T) {
	r := newTestRegistry()
	r.RegisterNode(fakeFactory{})

	assert.True(t, r.IsRegistered(models.NodeKind("fake")))
}
