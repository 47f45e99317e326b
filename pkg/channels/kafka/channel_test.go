package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendohq/atendo/pkg/events"
)

func TestPartitionKeyUsesRoutingKeyMetadata(t *testing.T) {
	first := message.NewMessage("id-1", nil)
	first.Metadata.Set(events.EventMetadataKey, "t-42")

	second := message.NewMessage("id-2", nil)
	second.Metadata.Set(events.EventMetadataKey, "t-42")

	keyA, err := partitionKey("events", first)
	require.NoError(t, err)

	keyB, err := partitionKey("events", second)
	require.NoError(t, err)

	// Same ticket, same partition, regardless of message identity.
	assert.Equal(t, "t-42", keyA)
	assert.Equal(t, keyA, keyB)
}

func TestPartitionKeyFallsBackToUUID(t *testing.T) {
	msg := message.NewMessage("id-3", nil)

	key, err := partitionKey("events", msg)
	require.NoError(t, err)
	assert.Equal(t, "id-3", key)
}
