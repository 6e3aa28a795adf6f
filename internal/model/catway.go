package model

import "time"

// Catway types accepted by the catways.type column.
const (
	CatwayLong  = "long"
	CatwayShort = "short"
)

// Catway represents a physical berth at the marina.  It corresponds
// to a row in the `catways` table.  CatwayNumber is the identity used
// everywhere in the API; ID is only the storage surrogate.
//
// Fields:
//
//	ID           – primary key identifier.
//	CatwayNumber – unique, human-readable berth number (> 0).
//	Type         – berth length class (long, short).
//	CatwayState  – free-form operational label (e.g. "good condition").
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Catway struct {
	ID           uint64    `json:"id"`            // catways.id
	CatwayNumber int       `json:"catway_number"` // catways.catway_number
	Type         string    `json:"type"`          // catways.type
	CatwayState  string    `json:"catway_state"`  // catways.catway_state
	CreatedAt    time.Time `json:"created_at"`    // catways.created_at
	UpdatedAt    time.Time `json:"updated_at"`    // catways.updated_at
}

// ValidCatwayType reports whether t is one of the accepted catway types.
func ValidCatwayType(t string) bool {
	return t == CatwayLong || t == CatwayShort
}
