package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/marina-reservation/internal/booking"
)

func TestStatusFor(t *testing.T) {
	cases := map[booking.Kind]int{
		booking.MissingFields:         http.StatusBadRequest,
		booking.InvalidDate:           http.StatusBadRequest,
		booking.InvalidRange:          http.StatusBadRequest,
		booking.CheckInInPast:         http.StatusBadRequest,
		booking.EmptyState:            http.StatusBadRequest,
		booking.InvalidCatway:         http.StatusBadRequest,
		booking.InvalidUser:           http.StatusBadRequest,
		booking.NotFound:              http.StatusNotFound,
		booking.OverlapConflict:       http.StatusConflict,
		booking.DuplicateNumber:       http.StatusConflict,
		booking.HasActiveReservations: http.StatusConflict,
		booking.ConflictError:         http.StatusConflict,
		booking.DuplicateEmail:        http.StatusConflict,
		booking.Unauthorized:          http.StatusUnauthorized,
		booking.StoreUnavailable:      http.StatusServiceUnavailable,
		booking.Kind("other"):         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(kind), string(kind))
	}
}

func TestWriteError(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = writeError(c, booking.Fail(booking.OverlapConflict, "the catway is already reserved for these dates"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"overlap_conflict","message":"the catway is already reserved for these dates"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = writeError(c, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal","message":"internal server error"}`, rec.Body.String())
}

func TestCatwayNumberParam(t *testing.T) {
	e := echo.New()
	for raw, ok := range map[string]bool{"3": true, "0": false, "-1": false, "abc": false} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("number")
		c.SetParamValues(raw)
		_, err := catwayNumber(c)
		if ok {
			assert.NoError(t, err, raw)
		} else {
			assert.Equal(t, booking.InvalidCatway, booking.KindOf(err), raw)
		}
	}
}
