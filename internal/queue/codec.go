package queue

import (
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fire-team/ticket-router/internal/models"
)

const (
	fieldPayload  = "payload"
	fieldClientID = "clientId"
)

// decodeEvent reads an event from a stream entry. Producers put the JSON body
// under "payload"; entries without it are treated as flat field maps.
func decodeEvent(msg redis.XMessage) (models.EnrichmentEvent, error) {
	var ev models.EnrichmentEvent
	if raw, ok := msg.Values[fieldPayload]; ok {
		s, ok := raw.(string)
		if !ok {
			return ev, fmt.Errorf("entry %s: payload is %T, want string", msg.ID, raw)
		}
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			return ev, fmt.Errorf("entry %s: decode payload: %w", msg.ID, err)
		}
		return ev, nil
	}

	data, err := json.Marshal(flatten(msg.Values))
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("entry %s: decode fields: %w", msg.ID, err)
	}
	return ev, nil
}

// numericFields are decoded as JSON numbers from flat entries, since Redis
// stores every field as a string.
var numericFields = map[string]bool{
	"rawTicketId": true,
	"priority":    true,
	"latitude":    true,
	"longitude":   true,
}

func flatten(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok && numericFields[k] {
			if s == "" {
				continue
			}
			out[k] = json.Number(s)
			continue
		}
		out[k] = v
	}
	return out
}

func encodeResult(r models.AssignmentResult) (map[string]any, []byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{
		fieldClientID: r.ClientID.String(),
		fieldPayload:  string(data),
	}, data, nil
}

func jsonMarshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
