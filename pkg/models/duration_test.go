package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_RoundTrip(t *testing.T) {
	spec := NodeSpec{
		ID:          "wait-1",
		Kind:        NodeKindWaitReply,
		WaitTimeout: Duration(30 * time.Second),
	}

	encoded, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"30s"`)

	var decoded NodeSpec

	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, 30*time.Second, decoded.WaitTimeout.Std())
}

func TestDuration_UnmarshalBareSeconds(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte("45"), &d))
	assert.Equal(t, 45*time.Second, d.Std())
}

func TestDuration_UnmarshalInvalid(t *testing.T) {
	var d Duration

	assert.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}
