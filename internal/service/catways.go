package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/marina-reservation/internal/booking"
	"github.com/iliyamo/marina-reservation/internal/model"
	"github.com/iliyamo/marina-reservation/internal/queue"
)

const catwayNotFound = "catway not found"

// CatwayDetail is a catway together with its reservations.
type CatwayDetail struct {
	model.Catway
	Reservations []model.Reservation `json:"reservations"`
}

// ListCatways returns every catway ordered by number.
func (s *Service) ListCatways(ctx context.Context) ([]model.Catway, error) {
	return read(ctx, s, "list catways", catwayNotFound, s.catways.FindAll)
}

// GetCatway returns a catway and its reservations ordered by check-in.
func (s *Service) GetCatway(ctx context.Context, number int) (CatwayDetail, error) {
	c, err := s.findCatway(ctx, number)
	if err != nil {
		return CatwayDetail{}, err
	}
	res, err := read(ctx, s, "list catway reservations", catwayNotFound,
		func(ctx context.Context) ([]model.Reservation, error) {
			return s.reservations.FindByCatway(ctx, number)
		})
	if err != nil {
		return CatwayDetail{}, err
	}
	return CatwayDetail{Catway: c, Reservations: res}, nil
}

func (s *Service) findCatway(ctx context.Context, number int) (model.Catway, error) {
	return read(ctx, s, "find catway", catwayNotFound,
		func(ctx context.Context) (model.Catway, error) { return s.catways.FindByNumber(ctx, number) })
}

// CreateCatway validates the request and inserts a new catway.  A
// number taken between the uniqueness check and the insert is reported
// by the store as a duplicate.
func (s *Service) CreateCatway(ctx context.Context, in booking.CatwayInput) (model.Catway, error) {
	c, err := booking.ValidateCatway(in)
	if err != nil {
		return model.Catway{}, err
	}
	numbers, err := read(ctx, s, "list catway numbers", catwayNotFound, s.catways.Numbers)
	if err != nil {
		return model.Catway{}, err
	}
	if err := booking.CanCreate(c.CatwayNumber, numbers); err != nil {
		return model.Catway{}, err
	}
	if err := s.catways.Insert(ctx, &c); err != nil {
		return model.Catway{}, storeErr("insert catway", catwayNotFound, err)
	}
	log.Info().Int("catway", c.CatwayNumber).Str("type", c.Type).Msg("catway created")
	return c, nil
}

// ReplaceCatway overwrites number, type and state of a catway.  When
// the number changes its reservations follow it.
func (s *Service) ReplaceCatway(ctx context.Context, number int, in booking.CatwayInput) (model.Catway, error) {
	c, err := booking.ValidateCatway(in)
	if err != nil {
		return model.Catway{}, err
	}
	unlock := s.locks.Lock(number)
	defer unlock()

	if _, err := s.findCatway(ctx, number); err != nil {
		return model.Catway{}, err
	}
	if c.CatwayNumber != number {
		numbers, err := read(ctx, s, "list catway numbers", catwayNotFound, s.catways.Numbers)
		if err != nil {
			return model.Catway{}, err
		}
		if err := booking.CanCreate(c.CatwayNumber, numbers); err != nil {
			return model.Catway{}, err
		}
	}
	updated, err := s.catways.Replace(ctx, number, c)
	if err != nil {
		return model.Catway{}, storeErr("replace catway", catwayNotFound, err)
	}
	log.Info().Int("catway", number).Int("new_number", updated.CatwayNumber).Msg("catway replaced")
	return updated, nil
}

// ChangeCatwayState sets the free-text state of a catway.
func (s *Service) ChangeCatwayState(ctx context.Context, number int, state string) (model.Catway, error) {
	if err := booking.CanChangeState(state); err != nil {
		return model.Catway{}, err
	}
	updated, err := s.catways.UpdateState(ctx, number, strings.TrimSpace(state))
	if err != nil {
		return model.Catway{}, storeErr("update catway state", catwayNotFound, err)
	}
	return updated, nil
}

// DeleteCatway removes a catway and its expired reservations in one
// store transaction.  The guard runs on the reservations read inside
// that transaction, so a reservation created concurrently is seen.
// It returns the number of reservations removed with the catway.
func (s *Service) DeleteCatway(ctx context.Context, number int) (int64, error) {
	now := s.now()
	removed, err := s.removeCatway(ctx, number, now)
	if err != nil {
		return 0, err
	}
	log.Info().Int("catway", number).Int64("removed_reservations", removed).Msg("catway deleted")

	ev := queue.NewEvent(queue.CatwayDeleted, number, now)
	ev.RemovedReservations = removed
	s.publish(ctx, ev)
	return removed, nil
}

// removeCatway runs the lifecycle guard and the cascade under the
// catway lock.
func (s *Service) removeCatway(ctx context.Context, number int, now time.Time) (int64, error) {
	unlock := s.locks.Lock(number)
	defer unlock()

	removed, err := s.catways.Delete(ctx, number, func(rs []model.Reservation) error {
		return booking.CanDelete(number, rs, now)
	})
	if err != nil {
		return 0, storeErr("delete catway", catwayNotFound, err)
	}
	return removed, nil
}
