package models

import (
	"encoding/json"
	"fmt"
)

// AbandonmentEvent is the message published for every abandoned cart.
type AbandonmentEvent struct {
	UserID          string     `json:"user_id"`
	IdleTimeSeconds int64      `json:"idle_time_seconds"`
	Items           []CartItem `json:"items"`
}

func NewAbandonmentEvent(record CartRecord) AbandonmentEvent {
	items := record.Items
	if items == nil {
		items = []CartItem{}
	}
	return AbandonmentEvent{
		UserID:          record.UserID,
		IdleTimeSeconds: record.IdleTimeSeconds,
		Items:           items,
	}
}

// Record rebuilds the cart record carried by the event.
func (e AbandonmentEvent) Record() CartRecord {
	return CartRecord{
		UserID:          e.UserID,
		IdleTimeSeconds: e.IdleTimeSeconds,
		Items:           e.Items,
	}
}

func (e AbandonmentEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseAbandonmentEvent decodes an event from its wire form.
func ParseAbandonmentEvent(data []byte) (AbandonmentEvent, error) {
	var event AbandonmentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return AbandonmentEvent{}, fmt.Errorf("invalid abandonment event: %w", err)
	}
	if event.Items == nil {
		event.Items = []CartItem{}
	}
	return event, nil
}

// PublishOutcome is the result of emitting one event to the bus.
type PublishOutcome struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MonitorResult is the response of one monitoring pass.
type MonitorResult struct {
	AbandonedCarts []CartRecord `json:"abandoned_carts"`
}
