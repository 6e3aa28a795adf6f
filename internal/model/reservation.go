package model

import "time"

// Reservation records a client's booking of a catway over the
// half-open interval [CheckIn, CheckOut).  Reservations are never
// updated in place: an edit is a delete followed by a new create.
//
// Fields:
//
//	ID           – primary key identifier.
//	CatwayNumber – number of the reserved catway (FK catways.catway_number).
//	ClientName   – name of the client.
//	BoatName     – name of the moored boat.
//	CheckIn      – start of the booking (inclusive).
//	CheckOut     – end of the booking (exclusive).
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Reservation struct {
	ID           uint64    `json:"id"`            // reservations.id
	CatwayNumber int       `json:"catway_number"` // reservations.catway_number
	ClientName   string    `json:"client_name"`   // reservations.client_name
	BoatName     string    `json:"boat_name"`     // reservations.boat_name
	CheckIn      time.Time `json:"check_in"`      // reservations.check_in
	CheckOut     time.Time `json:"check_out"`     // reservations.check_out
	CreatedAt    time.Time `json:"created_at"`    // reservations.created_at
	UpdatedAt    time.Time `json:"updated_at"`    // reservations.updated_at
}

// ActiveAt reports whether the reservation still holds the catway at t.
func (r Reservation) ActiveAt(t time.Time) bool {
	return r.CheckOut.After(t)
}

// Overlaps reports whether r intersects [checkIn, checkOut).  Touching
// intervals (one ends exactly when the other starts) do not overlap.
func (r Reservation) Overlaps(checkIn, checkOut time.Time) bool {
	return r.CheckIn.Before(checkOut) && r.CheckOut.After(checkIn)
}
