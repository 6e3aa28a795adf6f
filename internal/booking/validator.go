package booking

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/marina-reservation/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ReservationInput is the raw request for a new reservation.  Dates
// are kept as strings so that parsing failures can be reported as
// InvalidDate rather than as a binding error.
type ReservationInput struct {
	CatwayNumber int    `json:"catway_number" validate:"required"`
	ClientName   string `json:"client_name" validate:"required"`
	BoatName     string `json:"boat_name" validate:"required"`
	CheckIn      string `json:"check_in" validate:"required"`
	CheckOut     string `json:"check_out" validate:"required"`
}

// accepted date layouts, most specific first.  Layouts without a zone
// are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	dateOnly,
}

const dateOnly = "2006-01-02"

// ParseDate parses a check-in/check-out value to whole seconds, the
// precision of the reservations table.  The second result is true when
// the value carried no time of day.
func ParseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC().Truncate(time.Second), layout == dateOnly, nil
		}
		lastErr = err
	}
	return time.Time{}, false, lastErr
}

// ParseReservation runs the field, date, range and past checks, in
// that order, and returns the candidate reservation.  It does not look
// at other reservations; see Validate.
func ParseReservation(in ReservationInput, now time.Time) (model.Reservation, error) {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.BoatName = strings.TrimSpace(in.BoatName)
	in.CheckIn = strings.TrimSpace(in.CheckIn)
	in.CheckOut = strings.TrimSpace(in.CheckOut)
	if err := validate.Struct(in); err != nil {
		return model.Reservation{}, Wrap(MissingFields, "catway number, client name, boat name, check-in and check-out are required", err)
	}

	checkIn, dayOnly, err := ParseDate(in.CheckIn)
	if err != nil {
		return model.Reservation{}, Wrap(InvalidDate, "check-in is not a valid date", err)
	}
	checkOut, _, err := ParseDate(in.CheckOut)
	if err != nil {
		return model.Reservation{}, Wrap(InvalidDate, "check-out is not a valid date", err)
	}

	if !checkIn.Before(checkOut) {
		return model.Reservation{}, Fail(InvalidRange, "check-out must be after check-in")
	}

	// A bare date for today books the rest of the day: the stay starts
	// at the next whole second.
	now = now.UTC()
	if dayOnly && checkIn.Equal(startOfDay(now)) {
		checkIn = ceilSecond(now)
		if !checkIn.Before(checkOut) {
			return model.Reservation{}, Fail(CheckInInPast, "the requested stay has already ended")
		}
	}
	if checkIn.Before(now) {
		return model.Reservation{}, Fail(CheckInInPast, "check-in cannot be in the past")
	}

	return model.Reservation{
		CatwayNumber: in.CatwayNumber,
		ClientName:   in.ClientName,
		BoatName:     in.BoatName,
		CheckIn:      checkIn,
		CheckOut:     checkOut,
	}, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ceilSecond(t time.Time) time.Time {
	s := t.Truncate(time.Second)
	if s.Before(t) {
		return s.Add(time.Second)
	}
	return s
}

// CheckOverlap refuses the candidate when any reservation of the same
// catway intersects its [CheckIn, CheckOut) interval.  Back-to-back
// bookings are accepted.
func CheckOverlap(candidate model.Reservation, existing []model.Reservation) error {
	for _, r := range existing {
		if r.CatwayNumber != candidate.CatwayNumber {
			continue
		}
		if r.Overlaps(candidate.CheckIn, candidate.CheckOut) {
			return Fail(OverlapConflict, "the catway is already reserved for these dates")
		}
	}
	return nil
}

// Validate decides whether the requested reservation may be created
// given the reservations already held on the catway.  It returns the
// candidate to persist, or an *Error describing the first failed rule.
func Validate(in ReservationInput, existing []model.Reservation, now time.Time) (model.Reservation, error) {
	candidate, err := ParseReservation(in, now)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := CheckOverlap(candidate, existing); err != nil {
		return model.Reservation{}, err
	}
	return candidate, nil
}
