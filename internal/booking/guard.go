package booking

import (
	"strings"
	"time"

	"github.com/iliyamo/marina-reservation/internal/model"
)

// CatwayInput is the raw request for creating or replacing a catway.
type CatwayInput struct {
	CatwayNumber int    `json:"catway_number" validate:"required"`
	Type         string `json:"type" validate:"required"`
	CatwayState  string `json:"catway_state" validate:"required"`
}

// ValidateCatway checks a create/replace request and returns the
// normalized catway.  Uniqueness of the number is checked separately
// by CanCreate because it needs the existing numbers.
func ValidateCatway(in CatwayInput) (model.Catway, error) {
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.CatwayState = strings.TrimSpace(in.CatwayState)
	if err := validate.Struct(in); err != nil {
		return model.Catway{}, Wrap(MissingFields, "catway number, type and state are required", err)
	}
	if in.CatwayNumber <= 0 {
		return model.Catway{}, Fail(InvalidCatway, "catway number must be positive")
	}
	if !model.ValidCatwayType(in.Type) {
		return model.Catway{}, Fail(InvalidCatway, "catway type must be long or short")
	}
	return model.Catway{
		CatwayNumber: in.CatwayNumber,
		Type:         in.Type,
		CatwayState:  in.CatwayState,
	}, nil
}

// CanCreate refuses a catway number that is already taken.
func CanCreate(catwayNumber int, existing []int) error {
	for _, n := range existing {
		if n == catwayNumber {
			return Fail(DuplicateNumber, "this catway already exists")
		}
	}
	return nil
}

// CanChangeState accepts any non-blank state label.
func CanChangeState(newState string) error {
	if strings.TrimSpace(newState) == "" {
		return Fail(EmptyState, "catway state cannot be empty")
	}
	return nil
}

// CanDelete refuses deletion while the catway has a reservation that
// has not checked out yet at now.  Expired reservations do not block;
// the store removes them together with the catway.
func CanDelete(catwayNumber int, reservations []model.Reservation, now time.Time) error {
	for _, r := range reservations {
		if r.CatwayNumber == catwayNumber && r.ActiveAt(now) {
			return Fail(HasActiveReservations, "the catway has active or upcoming reservations")
		}
	}
	return nil
}
