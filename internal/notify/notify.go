package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Event types published on every state change.
const (
	OrderUpdated             = "order.updated"
	TableStatusChanged       = "table.status_changed"
	TableClosed              = "table.closed"
	ShiftOpened              = "shift.opened"
	ShiftClosed              = "shift.closed"
	ReservationCreated       = "reservation.created"
	ReservationAssigned      = "reservation.assigned"
	ReservationStatusChanged = "reservation.status_changed"
)

// Event is a state change. TableID is uuid.Nil for events not scoped to a table.
// TablePayload, when set, replaces Payload for the table's customer devices.
type Event struct {
	Type         string      `json:"type"`
	TableID      uuid.UUID   `json:"-"`
	Payload      interface{} `json:"payload"`
	TablePayload interface{} `json:"-"`
}

// Notifier delivers events to subscribers.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi fans an event out to every notifier, returning all delivery errors joined.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
