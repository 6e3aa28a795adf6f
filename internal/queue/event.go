// Package queue defines the domain events exchanged over RabbitMQ and
// the consumer that appends them to an audit log.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event types double as routing keys and queue names.
const (
	ReservationCreated = "reservation.created"
	ReservationDeleted = "reservation.deleted"
	CatwayDeleted      = "catway.deleted"
)

// EventTypes lists every event the service publishes.
var EventTypes = []string{ReservationCreated, ReservationDeleted, CatwayDeleted}

// Event is published after a successful write.  It carries enough
// information for downstream consumers to log, notify the harbour
// office or update analytics without querying the primary database.
type Event struct {
	EventID             string    `json:"event_id"`
	Type                string    `json:"type"`
	ActorID             uint64    `json:"actor_id,omitempty"`
	CatwayNumber        int       `json:"catway_number"`
	ReservationID       uint64    `json:"reservation_id,omitempty"`
	ClientName          string    `json:"client_name,omitempty"`
	BoatName            string    `json:"boat_name,omitempty"`
	CheckIn             string    `json:"check_in,omitempty"`
	CheckOut            string    `json:"check_out,omitempty"`
	RemovedReservations int64     `json:"removed_reservations,omitempty"`
	OccurredAt          time.Time `json:"occurred_at"`
}

// NewEvent returns an event of the given type with a fresh id.
func NewEvent(typ string, catwayNumber int, at time.Time) Event {
	return Event{
		EventID:      uuid.NewString(),
		Type:         typ,
		CatwayNumber: catwayNumber,
		OccurredAt:   at.UTC(),
	}
}
