package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/marina-reservation/internal/booking"
	"github.com/iliyamo/marina-reservation/internal/model"
	"github.com/iliyamo/marina-reservation/internal/queue"
)

const reservationNotFound = "reservation not found"

// ListReservations returns every reservation in creation order.
func (s *Service) ListReservations(ctx context.Context) ([]model.Reservation, error) {
	return read(ctx, s, "list reservations", reservationNotFound, s.reservations.FindAll)
}

// ListCatwayReservations returns the reservations of one catway.
func (s *Service) ListCatwayReservations(ctx context.Context, number int) ([]model.Reservation, error) {
	if _, err := s.findCatway(ctx, number); err != nil {
		return nil, err
	}
	return read(ctx, s, "list catway reservations", reservationNotFound,
		func(ctx context.Context) ([]model.Reservation, error) {
			return s.reservations.FindByCatway(ctx, number)
		})
}

// GetReservation returns reservation id if it belongs to catway number.
func (s *Service) GetReservation(ctx context.Context, number int, id uint64) (model.Reservation, error) {
	r, err := read(ctx, s, "find reservation", reservationNotFound,
		func(ctx context.Context) (model.Reservation, error) { return s.reservations.FindByID(ctx, id) })
	if err != nil {
		return model.Reservation{}, err
	}
	if r.CatwayNumber != number {
		return model.Reservation{}, booking.Fail(booking.NotFound, "reservation not found for this catway")
	}
	return r, nil
}

// CreateReservation books catway number.  The request is checked
// before any store access; the overlap check then runs on a fresh read
// under the catway lock and the store repeats it at insert time.  An
// overlap detected only by the store is reported as ConflictError.
func (s *Service) CreateReservation(ctx context.Context, number int, in booking.ReservationInput) (model.Reservation, error) {
	in.CatwayNumber = number
	now := s.now()
	if _, err := booking.ParseReservation(in, now); err != nil {
		return model.Reservation{}, err
	}

	res, err := s.insertReservation(ctx, number, in, now)
	if err != nil {
		return model.Reservation{}, err
	}
	log.Info().Int("catway", number).Uint64("reservation_id", res.ID).
		Time("check_in", res.CheckIn).Time("check_out", res.CheckOut).Msg("reservation created")

	ev := queue.NewEvent(queue.ReservationCreated, number, now)
	ev.ReservationID = res.ID
	ev.ClientName = res.ClientName
	ev.BoatName = res.BoatName
	ev.CheckIn = res.CheckIn.Format(time.RFC3339)
	ev.CheckOut = res.CheckOut.Format(time.RFC3339)
	s.publish(ctx, ev)
	return res, nil
}

// insertReservation validates and stores the reservation while holding
// the catway lock.
func (s *Service) insertReservation(ctx context.Context, number int, in booking.ReservationInput, now time.Time) (model.Reservation, error) {
	unlock := s.locks.Lock(number)
	defer unlock()

	if _, err := s.findCatway(ctx, number); err != nil {
		return model.Reservation{}, err
	}
	existing, err := read(ctx, s, "list catway reservations", catwayNotFound,
		func(ctx context.Context) ([]model.Reservation, error) {
			return s.reservations.FindByCatway(ctx, number)
		})
	if err != nil {
		return model.Reservation{}, err
	}
	res, err := booking.Validate(in, existing, now)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := s.reservations.Insert(ctx, &res); err != nil {
		return model.Reservation{}, storeErr("insert reservation", catwayNotFound, err)
	}
	return res, nil
}

// DeleteReservation removes reservation id of catway number.
func (s *Service) DeleteReservation(ctx context.Context, number int, id uint64) error {
	if err := s.removeReservation(ctx, number, id); err != nil {
		return err
	}
	log.Info().Int("catway", number).Uint64("reservation_id", id).Msg("reservation deleted")

	ev := queue.NewEvent(queue.ReservationDeleted, number, s.now())
	ev.ReservationID = id
	s.publish(ctx, ev)
	return nil
}

func (s *Service) removeReservation(ctx context.Context, number int, id uint64) error {
	unlock := s.locks.Lock(number)
	defer unlock()

	if _, err := s.GetReservation(ctx, number, id); err != nil {
		return err
	}
	if err := s.reservations.Delete(ctx, id); err != nil {
		return storeErr("delete reservation", reservationNotFound, err)
	}
	return nil
}
