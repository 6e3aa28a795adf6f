// Package occupancy computes the dashboard metrics of the marina from
// the full set of catways and reservations.  Every function is pure
// and takes the reference time explicitly.
package occupancy

import (
	"math"
	"sort"
	"time"

	"github.com/iliyamo/marina-reservation/internal/model"
)

// Split is the number of catways holding at least one active
// reservation versus the rest.
type Split struct {
	Occupied  int `json:"occupied"`
	Available int `json:"available"`
}

// Dashboard is the view data of the admin dashboard.
type Dashboard struct {
	TotalCatways            int                 `json:"total_catways"`
	TotalReservations       int                 `json:"total_reservations"`
	TotalUsers              int                 `json:"total_users"`
	LastCatway              *model.Catway       `json:"last_catway"`
	OccupancyPercentage     float64             `json:"occupancy_percentage"`
	TotalActiveReservations int                 `json:"total_active_reservations"`
	NextReservationToExpire *model.Reservation  `json:"next_reservation_to_expire"`
	RecentBookings          []model.Reservation `json:"recent_bookings"`
	AverageDurationDays     float64             `json:"average_duration_days"`
	Catways                 Split               `json:"catways"`
	GeneratedAt             time.Time           `json:"generated_at"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// activeCatways returns the distinct catway numbers with a reservation
// still running at now.
func activeCatways(reservations []model.Reservation, now time.Time) map[int]struct{} {
	set := make(map[int]struct{})
	for _, r := range reservations {
		if r.ActiveAt(now) {
			set[r.CatwayNumber] = struct{}{}
		}
	}
	return set
}

// OccupancyPercentage is the share of catways with an active
// reservation, in percent with two decimals.  Zero catways yields 0.
func OccupancyPercentage(catways []model.Catway, reservations []model.Reservation, now time.Time) float64 {
	if len(catways) == 0 {
		return 0
	}
	occupied := len(activeCatways(reservations, now))
	return round2(float64(occupied) / float64(len(catways)) * 100)
}

// TotalActiveReservations counts reservations with CheckOut after now.
func TotalActiveReservations(reservations []model.Reservation, now time.Time) int {
	n := 0
	for _, r := range reservations {
		if r.ActiveAt(now) {
			n++
		}
	}
	return n
}

// NextReservationToExpire returns the active reservation with the
// earliest CheckOut, or nil.  Ties keep the first one seen.
func NextReservationToExpire(reservations []model.Reservation, now time.Time) *model.Reservation {
	var next *model.Reservation
	for i := range reservations {
		r := reservations[i]
		if !r.ActiveAt(now) {
			continue
		}
		if next == nil || r.CheckOut.Before(next.CheckOut) {
			next = &r
		}
	}
	return next
}

// RecentBookings returns up to limit reservations, newest CreatedAt
// first.  Reservations created at the same instant keep their input
// order.  The input slice is not modified.
func RecentBookings(reservations []model.Reservation, limit int) []model.Reservation {
	if limit <= 0 {
		return []model.Reservation{}
	}
	sorted := make([]model.Reservation, len(reservations))
	copy(sorted, reservations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// AverageBookingDurationDays is the mean length of all reservations,
// active or not, in days with two decimals.  An empty set yields 0.
func AverageBookingDurationDays(reservations []model.Reservation) float64 {
	if len(reservations) == 0 {
		return 0
	}
	var total time.Duration
	for _, r := range reservations {
		total += r.CheckOut.Sub(r.CheckIn)
	}
	days := total.Hours() / 24 / float64(len(reservations))
	return round2(days)
}

// OccupiedVsAvailable splits the catways into occupied and available.
func OccupiedVsAvailable(catways []model.Catway, reservations []model.Reservation, now time.Time) Split {
	occupied := len(activeCatways(reservations, now))
	return Split{Occupied: occupied, Available: len(catways) - occupied}
}

// Build assembles the whole dashboard.  LastCatway is the most
// recently created catway; ties go to the later element.
func Build(catways []model.Catway, reservations []model.Reservation, totalUsers int, now time.Time, recentLimit int) Dashboard {
	d := Dashboard{
		TotalCatways:            len(catways),
		TotalReservations:       len(reservations),
		TotalUsers:              totalUsers,
		OccupancyPercentage:     OccupancyPercentage(catways, reservations, now),
		TotalActiveReservations: TotalActiveReservations(reservations, now),
		NextReservationToExpire: NextReservationToExpire(reservations, now),
		RecentBookings:          RecentBookings(reservations, recentLimit),
		AverageDurationDays:     AverageBookingDurationDays(reservations),
		Catways:                 OccupiedVsAvailable(catways, reservations, now),
		GeneratedAt:             now,
	}
	for i := range catways {
		c := catways[i]
		if d.LastCatway == nil || !c.CreatedAt.Before(d.LastCatway.CreatedAt) {
			d.LastCatway = &c
		}
	}
	return d
}
