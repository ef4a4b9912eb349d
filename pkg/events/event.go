package events

import (
	"encoding/json"
	"time"
)

// Event is the contract for everything the engine announces to the outside.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func NewEvent(eventType string, data map[string]interface{}, at time.Time) BaseEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: at}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Encode is the wire form used on the in-process bus.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(BaseEvent{Type: e.EventType(), Data: e.Payload(), OccurredAt: e.Timestamp()})
}

func Decode(raw []byte) (BaseEvent, error) {
	var e BaseEvent
	err := json.Unmarshal(raw, &e)
	return e, err
}
