package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fire-team/ticket-router/internal/models"
)

func TestDecodeEventPayload(t *testing.T) {
	id := uuid.New()
	msg := redis.XMessage{ID: "1-0", Values: map[string]any{
		"payload": `{"clientId":"` + id.String() + `","rawTicketId":7,"priority":4,"language":"KZ","summary":"s"}`,
	}}
	ev, err := decodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, id, ev.ClientID)
	require.NotNil(t, ev.RawTicketID)
	assert.Equal(t, int64(7), *ev.RawTicketID)
	require.NotNil(t, ev.Priority)
	assert.Equal(t, 4, *ev.Priority)
	assert.Equal(t, "KZ", ev.Language)
}

func TestDecodeEventFlatFields(t *testing.T) {
	id := uuid.New()
	msg := redis.XMessage{ID: "2-0", Values: map[string]any{
		"clientId":    id.String(),
		"rawTicketId": "12",
		"priority":    "",
		"latitude":    "43.25",
		"longitude":   "76.95",
		"summary":     "12345",
	}}
	ev, err := decodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, id, ev.ClientID)
	assert.Equal(t, int64(12), *ev.RawTicketID)
	assert.Nil(t, ev.Priority)
	assert.InDelta(t, 43.25, *ev.Latitude, 1e-9)
	assert.Equal(t, "12345", ev.Summary)
}

func TestDecodeEventErrors(t *testing.T) {
	_, err := decodeEvent(redis.XMessage{ID: "3-0", Values: map[string]any{"payload": "{not json"}})
	assert.Error(t, err)

	_, err = decodeEvent(redis.XMessage{ID: "4-0", Values: map[string]any{"payload": 5}})
	assert.Error(t, err)
}

func TestEncodeResult(t *testing.T) {
	mgr := int64(3)
	r := models.AssignmentResult{
		ClientID:          uuid.New(),
		EnrichedTicketID:  9,
		AssignedManagerID: &mgr,
		Status:            models.StatusAssigned,
	}
	values, data, err := encodeResult(r)
	require.NoError(t, err)
	assert.Equal(t, r.ClientID.String(), values["clientId"])
	assert.Equal(t, string(data), values["payload"])

	var back models.AssignmentResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.EnrichedTicketID, back.EnrichedTicketID)
}
