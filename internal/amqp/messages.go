package amqp

import (
	"encoding/json"
	"time"
)

// MutationEvent announces a mutation that was applied against the finance API.
// Consumers reload the listed resources; the event never carries snapshots.
type MutationEvent struct {
	RequestID string    `json:"request_id"`
	Origin    string    `json:"origin"`
	Kind      string    `json:"kind"`
	Operation string    `json:"operation"`
	EntityID  int64     `json:"entity_id,omitempty"`
	Refreshed []string  `json:"refreshed"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMutationEvent creates an event stamped with the current time
func NewMutationEvent(requestID, origin, kind, operation string, entityID int64, refreshed []string) *MutationEvent {
	return &MutationEvent{
		RequestID: requestID,
		Origin:    origin,
		Kind:      kind,
		Operation: operation,
		EntityID:  entityID,
		Refreshed: refreshed,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MutationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationEventFromJSON creates an event from JSON bytes
func MutationEventFromJSON(data []byte) (*MutationEvent, error) {
	var msg MutationEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
