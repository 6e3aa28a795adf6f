package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marina-reservation/internal/config"
	"github.com/iliyamo/marina-reservation/internal/handler"
	"github.com/iliyamo/marina-reservation/internal/middleware"
	"github.com/iliyamo/marina-reservation/internal/repository/memory"
	"github.com/iliyamo/marina-reservation/internal/service"
)

const secret = "router-test-secret"

type api struct {
	t     *testing.T
	e     *echo.Echo
	token string
	now   time.Time
}

func newAPI(t *testing.T) *api {
	t.Helper()
	a := &api{t: t, now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return a.now }
	st := memory.New()
	svc := service.New(service.Stores{
		Catways:      st.Catways(),
		Reservations: st.Reservations(),
		Users:        st.Users(),
		Tokens:       st.Tokens(),
	},
		service.WithClock(clock),
		service.WithAuth(service.AuthConfig{JWTSecret: secret, AccessTTLMin: 60, RefreshTTLDays: 1, BcryptCost: 4}),
	)
	cacheCfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "test", MaxBodyBytes: 1 << 20}
	e := echo.New()
	Register(e, handler.New(svc, secret, time.Second), nil, Options{
		JWTSecret:  secret,
		Clock:      clock,
		Cache:      cacheCfg,
		CacheStore: middleware.NewResponseStore(cacheCfg, nil),
	})
	a.e = e
	return a
}

func (a *api) call(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if a.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+a.token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func (a *api) login() {
	rec := a.call(http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Harbour Master", "email": "hm@port.test", "password": "secret123", "password_confirm": "secret123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	access := decode(a.t, rec)["access"].(map[string]any)
	a.token = access["token"].(string)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.call(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	a := newAPI(t)
	rec := a.call(http.MethodGet, "/v1/catways", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.call(http.MethodGet, "/v1/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthEndpoints(t *testing.T) {
	a := newAPI(t)
	a.login()

	rec := a.call(http.MethodGet, "/v1/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode(t, rec)
	assert.Equal(t, "hm@port.test", me["email"])
	assert.NotContains(t, me, "password_hash")

	a.token = ""
	rec = a.call(http.MethodPost, "/v1/auth/login", map[string]string{"email": "hm@port.test", "password": "bad-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode(t, rec)["error"])

	rec = a.call(http.MethodPost, "/v1/auth/login", map[string]string{"email": "hm@port.test", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	refresh := decode(t, rec)["refresh"].(map[string]any)["token"].(string)

	rec = a.call(http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode(t, rec)["refresh"].(map[string]any)["token"].(string)

	rec = a.call(http.MethodPost, "/v1/auth/logout", map[string]string{"refresh_token": rotated})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.call(http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": rotated})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccessTokenFollowsServiceClock(t *testing.T) {
	a := newAPI(t)
	a.login()

	a.now = a.now.Add(59 * time.Minute)
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/v1/me", nil).Code)

	a.now = a.now.Add(2 * time.Minute)
	rec := a.call(http.MethodGet, "/v1/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode(t, rec)["error"])
}

func TestCatwayAndReservationFlow(t *testing.T) {
	a := newAPI(t)
	a.login()

	rec := a.call(http.MethodPost, "/v1/catways", map[string]any{"catway_number": 1, "type": "long", "catway_state": "good"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.call(http.MethodPost, "/v1/catways", map[string]any{"catway_number": 1, "type": "short", "catway_state": "good"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_number", decode(t, rec)["error"])

	rec = a.call(http.MethodPost, "/v1/catways/1/reservations", map[string]any{
		"client_name": "Jane", "boat_name": "Sea Breeze", "check_in": "2025-06-10", "check_out": "2025-06-12",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := int(decode(t, rec)["id"].(float64))

	rec = a.call(http.MethodPost, "/v1/catways/1/reservations", map[string]any{
		"client_name": "Joe", "boat_name": "Gull", "check_in": "2025-06-11", "check_out": "2025-06-13",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "overlap_conflict", decode(t, rec)["error"])

	rec = a.call(http.MethodPost, "/v1/catways/1/reservations", map[string]any{
		"client_name": "Joe", "boat_name": "Gull", "check_in": "2025-06-13", "check_out": "2025-06-11",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_range", decode(t, rec)["error"])

	rec = a.call(http.MethodGet, "/v1/catways/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["reservations"], 1)

	rec = a.call(http.MethodGet, "/v1/catways/2/reservations/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.call(http.MethodDelete, "/v1/catways/1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "has_active_reservations", decode(t, rec)["error"])

	rec = a.call(http.MethodPatch, "/v1/catways/1", map[string]any{"catway_state": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.call(http.MethodPatch, "/v1/catways/1", map[string]any{"catway_state": "under repair"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "under repair", decode(t, rec)["catway_state"])

	rec = a.call(http.MethodDelete, "/v1/catways/1/reservations/"+itoa(id), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.call(http.MethodDelete, "/v1/catways/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["removed_reservations"])

	rec = a.call(http.MethodGet, "/v1/catways/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardIsCachedUntilWrite(t *testing.T) {
	a := newAPI(t)
	a.login()

	rec := a.call(http.MethodGet, "/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, float64(0), decode(t, rec)["total_catways"])

	rec = a.call(http.MethodGet, "/v1/dashboard", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec = a.call(http.MethodPost, "/v1/catways", map[string]any{"catway_number": 4, "type": "short", "catway_state": "ok"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.call(http.MethodGet, "/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	d := decode(t, rec)
	assert.Equal(t, float64(1), d["total_catways"])
	assert.Equal(t, float64(1), d["total_users"])
}

func TestUserEndpoints(t *testing.T) {
	a := newAPI(t)
	a.login()

	rec := a.call(http.MethodPost, "/v1/users", map[string]string{
		"name": "Deck Hand", "email": "dh@port.test", "password": "secret123", "password_confirm": "nope12345",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_user", decode(t, rec)["error"])

	rec = a.call(http.MethodPost, "/v1/users", map[string]string{
		"name": "Deck Hand", "email": "HM@port.test", "password": "secret123", "password_confirm": "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.call(http.MethodPost, "/v1/users", map[string]string{
		"name": "Deck Hand", "email": "dh@port.test", "password": "secret123", "password_confirm": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := itoa(int(decode(t, rec)["id"].(float64)))

	rec = a.call(http.MethodPut, "/v1/users/"+id, map[string]string{
		"name": "First Mate", "email": "dh@port.test", "password": "secret456", "password_confirm": "secret456",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "First Mate", decode(t, rec)["name"])

	rec = a.call(http.MethodGet, "/v1/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 2)

	assert.Equal(t, http.StatusNoContent, a.call(http.MethodDelete, "/v1/users/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/v1/users/"+id, nil).Code)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
