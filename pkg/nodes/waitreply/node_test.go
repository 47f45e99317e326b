package waitreply

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

func TestExecutePausesUntilReply(t *testing.T) {
	node, err := NewWaitReplyNode("wait-1", map[string]any{"variable": "answer"})
	require.NoError(t, err)

	execution := &models.Execution{ID: "e-1"}

	outcome, err := node.Execute(context.Background(), protocol.NodeContext{Execution: execution})
	require.NoError(t, err)
	assert.True(t, outcome.Pause)
	assert.Empty(t, outcome.Variables)

	outcome, err = node.Execute(context.Background(), protocol.NodeContext{
		Execution: execution,
		Inbound:   &models.NormalizedMessage{Body: "segunda via"},
	})
	require.NoError(t, err)
	assert.False(t, outcome.Pause)
	assert.Equal(t, "segunda via", outcome.Variables["answer"])
}

func TestDefaultVariableName(t *testing.T) {
	node, err := NewWaitReplyNode("wait-1", map[string]any{})
	require.NoError(t, err)

	outcome, err := node.Execute(context.Background(), protocol.NodeContext{
		Execution: &models.Execution{ID: "e-1"},
		Inbound:   &models.NormalizedMessage{Body: "oi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "oi", outcome.Variables[defaultVariable])
}
