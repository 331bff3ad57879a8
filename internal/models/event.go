package models

import (
	"fmt"
	"strings"
	"time"
)

// EventType identifies an operational event raised by the core product.
type EventType string

const (
	OrderCompleted     EventType = "order.completed"
	OrderCancelled     EventType = "order.cancelled"
	ReservationCreated EventType = "reservation.created"
	ReservationSeated  EventType = "reservation.seated"
	TemperatureAlert   EventType = "temperature.alert"
	InventoryLowStock  EventType = "inventory.low_stock"
	TaskCompleted      EventType = "task.completed"
	ScheduleChanged    EventType = "schedule.changed"
)

var knownEventTypes = []EventType{
	OrderCompleted,
	OrderCancelled,
	ReservationCreated,
	ReservationSeated,
	TemperatureAlert,
	InventoryLowStock,
	TaskCompleted,
	ScheduleChanged,
}

// ParseEventType validates a string against the known event catalog.
func ParseEventType(name string) (EventType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, et := range knownEventTypes {
		if string(et) == name {
			return et, nil
		}
	}
	return "", fmt.Errorf("unknown event type: %s", name)
}

// OperationalEvent is the message the core product emits when something a
// webhook subscriber may care about happens.
type OperationalEvent struct {
	EventType  EventType              `json:"event_type"`
	LocationID string                 `json:"location_id"`
	Payload    map[string]interface{} `json:"payload"`
	Timestamp  time.Time              `json:"timestamp"`
}
