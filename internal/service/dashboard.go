package service

import (
	"context"

	"github.com/iliyamo/marina-reservation/internal/occupancy"
)

// Dashboard loads catways, reservations and the user count and
// computes the occupancy view at the service clock's current time.
func (s *Service) Dashboard(ctx context.Context) (occupancy.Dashboard, error) {
	catways, err := read(ctx, s, "list catways", catwayNotFound, s.catways.FindAll)
	if err != nil {
		return occupancy.Dashboard{}, err
	}
	reservations, err := read(ctx, s, "list reservations", reservationNotFound, s.reservations.FindAll)
	if err != nil {
		return occupancy.Dashboard{}, err
	}
	users, err := read(ctx, s, "count users", userNotFound, s.users.Count)
	if err != nil {
		return occupancy.Dashboard{}, err
	}
	return occupancy.Build(catways, reservations, users, s.now(), s.recentLimit), nil
}
