package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeStampsTimestamp(t *testing.T) {
	payload, err := Encode(TurnEvent{SessionID: "s-1", Outcome: OutcomeAnswered, QueryLength: 17})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, "s-1", decoded["session_id"])
	assert.Equal(t, OutcomeAnswered, decoded["outcome"])
	_, err = time.Parse(time.RFC3339, decoded["timestamp"].(string))
	assert.NoError(t, err)
	assert.NotContains(t, decoded, "error")
}

func TestEncodeKeepsExplicitTimestamp(t *testing.T) {
	payload, err := Encode(TurnEvent{Outcome: OutcomeFailed, Error: "boom", Timestamp: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)

	var decoded TurnEvent
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "2024-01-01T00:00:00Z", decoded.Timestamp)
	assert.Equal(t, "boom", decoded.Error)
}

func TestNoopPublisher(t *testing.T) {
	var publisher Publisher = Noop{}
	assert.NotPanics(t, func() {
		publisher.Publish(context.Background(), TurnEvent{Outcome: OutcomeAnswered})
	})
}
