package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marina-reservation/internal/model"
)

func TestCanDelete(t *testing.T) {
	past := model.Reservation{CatwayNumber: 7, CheckIn: now.Add(-72 * time.Hour), CheckOut: now.Add(-24 * time.Hour)}
	current := model.Reservation{CatwayNumber: 7, CheckIn: now.Add(-24 * time.Hour), CheckOut: now.Add(24 * time.Hour)}
	future := model.Reservation{CatwayNumber: 7, CheckIn: now.Add(48 * time.Hour), CheckOut: now.Add(72 * time.Hour)}
	endsNow := model.Reservation{CatwayNumber: 7, CheckIn: now.Add(-time.Hour), CheckOut: now}
	otherCatway := model.Reservation{CatwayNumber: 8, CheckIn: now, CheckOut: now.Add(time.Hour)}

	testCases := []struct {
		name         string
		reservations []model.Reservation
		wantErr      bool
	}{
		{name: "no reservations", reservations: nil},
		{name: "only expired", reservations: []model.Reservation{past, past}},
		{name: "ends exactly now", reservations: []model.Reservation{endsNow}},
		{name: "current blocks", reservations: []model.Reservation{past, current}, wantErr: true},
		{name: "future blocks", reservations: []model.Reservation{future}, wantErr: true},
		{name: "other catway ignored", reservations: []model.Reservation{otherCatway}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := CanDelete(7, tc.reservations, now)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, HasActiveReservations, KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCanChangeState(t *testing.T) {
	assert.NoError(t, CanChangeState("needs repair"))
	assert.Equal(t, EmptyState, KindOf(CanChangeState("")))
	assert.Equal(t, EmptyState, KindOf(CanChangeState(" \t ")))
}

func TestCanCreate(t *testing.T) {
	assert.NoError(t, CanCreate(3, []int{1, 2, 4}))
	assert.Equal(t, DuplicateNumber, KindOf(CanCreate(2, []int{1, 2, 4})))
	assert.NoError(t, CanCreate(1, nil))
}

func TestValidateCatway(t *testing.T) {
	c, err := ValidateCatway(CatwayInput{CatwayNumber: 4, Type: " Long ", CatwayState: " good "})
	require.NoError(t, err)
	assert.Equal(t, model.Catway{CatwayNumber: 4, Type: model.CatwayLong, CatwayState: "good"}, c)

	_, err = ValidateCatway(CatwayInput{CatwayNumber: 4, Type: "long"})
	assert.Equal(t, MissingFields, KindOf(err))

	_, err = ValidateCatway(CatwayInput{CatwayNumber: -2, Type: "long", CatwayState: "ok"})
	assert.Equal(t, InvalidCatway, KindOf(err))

	_, err = ValidateCatway(CatwayInput{CatwayNumber: 2, Type: "medium", CatwayState: "ok"})
	assert.Equal(t, InvalidCatway, KindOf(err))
}
