package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marina-reservation/internal/booking"
	"github.com/iliyamo/marina-reservation/internal/model"
	"github.com/iliyamo/marina-reservation/internal/queue"
	"github.com/iliyamo/marina-reservation/internal/repository/memory"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recorder) Publish(_ context.Context, ev queue.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// tickingClock advances one second per call so CreatedAt values are
// distinct and ordered.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func stores(st *memory.Store) Stores {
	return Stores{Catways: st.Catways(), Reservations: st.Reservations(), Users: st.Users(), Tokens: st.Tokens()}
}

func newTestService(t *testing.T) (*Service, *memory.Store, *recorder) {
	t.Helper()
	st := memory.New().WithClock(tickingClock(testNow))
	rec := &recorder{}
	svc := New(stores(st),
		WithClock(func() time.Time { return testNow }),
		WithPublisher(rec),
		WithRetry(RetryConfig{Attempts: 3, Delay: time.Millisecond}),
		WithAuth(AuthConfig{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}),
	)
	return svc, st, rec
}

func mustCatway(t *testing.T, svc *Service, number int) model.Catway {
	t.Helper()
	c, err := svc.CreateCatway(context.Background(), booking.CatwayInput{CatwayNumber: number, Type: "long", CatwayState: "good"})
	require.NoError(t, err)
	return c
}

func resInput(in, out string) booking.ReservationInput {
	return booking.ReservationInput{ClientName: "Jane", BoatName: "Sea Breeze", CheckIn: in, CheckOut: out}
}

func TestCreateCatway(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	c := mustCatway(t, svc, 1)
	assert.Equal(t, 1, c.CatwayNumber)
	assert.NotZero(t, c.ID)

	_, err := svc.CreateCatway(ctx, booking.CatwayInput{CatwayNumber: 1, Type: "short", CatwayState: "ok"})
	assert.Equal(t, booking.DuplicateNumber, booking.KindOf(err))

	_, err = svc.CreateCatway(ctx, booking.CatwayInput{CatwayNumber: 2, Type: "medium", CatwayState: "ok"})
	assert.Equal(t, booking.InvalidCatway, booking.KindOf(err))

	_, err = svc.CreateCatway(ctx, booking.CatwayInput{CatwayNumber: 2, Type: "short"})
	assert.Equal(t, booking.MissingFields, booking.KindOf(err))
}

func TestListAndGetCatway(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustCatway(t, svc, 3)
	mustCatway(t, svc, 1)

	list, err := svc.ListCatways(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].CatwayNumber)
	assert.Equal(t, 3, list[1].CatwayNumber)

	_, err = svc.CreateReservation(ctx, 3, resInput("2025-06-10", "2025-06-12"))
	require.NoError(t, err)
	d, err := svc.GetCatway(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, d.Reservations, 1)

	_, err = svc.GetCatway(ctx, 99)
	assert.Equal(t, booking.NotFound, booking.KindOf(err))
}

func TestChangeCatwayState(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustCatway(t, svc, 1)

	c, err := svc.ChangeCatwayState(ctx, 1, "  needs repair ")
	require.NoError(t, err)
	assert.Equal(t, "needs repair", c.CatwayState)

	_, err = svc.ChangeCatwayState(ctx, 1, "   ")
	assert.Equal(t, booking.EmptyState, booking.KindOf(err))

	_, err = svc.ChangeCatwayState(ctx, 42, "ok")
	assert.Equal(t, booking.NotFound, booking.KindOf(err))
}

func TestReplaceCatwayMovesReservations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustCatway(t, svc, 1)
	mustCatway(t, svc, 2)
	r, err := svc.CreateReservation(ctx, 1, resInput("2025-06-10", "2025-06-12"))
	require.NoError(t, err)

	_, err = svc.ReplaceCatway(ctx, 1, booking.CatwayInput{CatwayNumber: 2, Type: "short", CatwayState: "ok"})
	assert.Equal(t, booking.DuplicateNumber, booking.KindOf(err))

	c, err := svc.ReplaceCatway(ctx, 1, booking.CatwayInput{CatwayNumber: 7, Type: "Short", CatwayState: "ok"})
	require.NoError(t, err)
	assert.Equal(t, 7, c.CatwayNumber)
	assert.Equal(t, model.CatwayShort, c.Type)

	got, err := svc.GetReservation(ctx, 7, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.CatwayNumber)

	_, err = svc.ReplaceCatway(ctx, 1, booking.CatwayInput{CatwayNumber: 1, Type: "short", CatwayState: "ok"})
	assert.Equal(t, booking.NotFound, booking.KindOf(err))
}

func TestCreateReservation(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := WithActor(context.Background(), 9)
	mustCatway(t, svc, 1)

	r, err := svc.CreateReservation(ctx, 1, resInput("2025-06-10", "2025-06-12"))
	require.NoError(t, err)
	assert.Equal(t, 1, r.CatwayNumber)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), r.CheckIn)

	// back-to-back is allowed
	_, err = svc.CreateReservation(ctx, 1, resInput("2025-06-12", "2025-06-14"))
	require.NoError(t, err)

	cases := []struct {
		name   string
		number int
		in     booking.ReservationInput
		kind   booking.Kind
	}{
		{"overlap", 1, resInput("2025-06-11", "2025-06-13"), booking.OverlapConflict},
		{"missing boat", 1, booking.ReservationInput{ClientName: "x", CheckIn: "2025-06-20", CheckOut: "2025-06-21"}, booking.MissingFields},
		{"bad date", 1, resInput("20/06/2025", "2025-06-21"), booking.InvalidDate},
		{"inverted", 1, resInput("2025-06-21", "2025-06-20"), booking.InvalidRange},
		{"past", 1, resInput("2025-05-01", "2025-05-03"), booking.CheckInInPast},
		{"unknown catway", 5, resInput("2025-06-20", "2025-06-21"), booking.NotFound},
		{"missing fields beat missing catway", 5, booking.ReservationInput{}, booking.MissingFields},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateReservation(ctx, tc.number, tc.in)
			assert.Equal(t, tc.kind, booking.KindOf(err))
		})
	}

	// same dates on another catway are fine
	mustCatway(t, svc, 2)
	_, err = svc.CreateReservation(ctx, 2, resInput("2025-06-11", "2025-06-13"))
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 3)
	assert.Equal(t, queue.ReservationCreated, rec.events[0].Type)
	assert.Equal(t, uint64(9), rec.events[0].ActorID)
	assert.Equal(t, r.ID, rec.events[0].ReservationID)
	assert.Equal(t, "2025-06-10T00:00:00Z", rec.events[0].CheckIn)
}

func TestGetAndDeleteReservation(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	mustCatway(t, svc, 1)
	mustCatway(t, svc, 2)
	r, err := svc.CreateReservation(ctx, 1, resInput("2025-06-10", "2025-06-12"))
	require.NoError(t, err)

	_, err = svc.GetReservation(ctx, 2, r.ID)
	assert.Equal(t, booking.NotFound, booking.KindOf(err))
	assert.Equal(t, booking.NotFound, booking.KindOf(svc.DeleteReservation(ctx, 2, r.ID)))

	require.NoError(t, svc.DeleteReservation(ctx, 1, r.ID))
	_, err = svc.GetReservation(ctx, 1, r.ID)
	assert.Equal(t, booking.NotFound, booking.KindOf(err))

	list, err := svc.ListCatwayReservations(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = svc.ListCatwayReservations(ctx, 3)
	assert.Equal(t, booking.NotFound, booking.KindOf(err))

	assert.Equal(t, []string{queue.ReservationCreated, queue.ReservationDeleted}, rec.types())
}

func TestDeleteCatway(t *testing.T) {
	svc, st, rec := newTestService(t)
	ctx := context.Background()
	mustCatway(t, svc, 1)

	// expired reservation seeded directly; the validator refuses past dates
	expired := model.Reservation{CatwayNumber: 1, ClientName: "Old", BoatName: "Relic",
		CheckIn: testNow.AddDate(0, 0, -10), CheckOut: testNow.AddDate(0, 0, -8)}
	require.NoError(t, st.Reservations().Insert(ctx, &expired))

	active, err := svc.CreateReservation(ctx, 1, resInput("2025-06-10", "2025-06-12"))
	require.NoError(t, err)

	_, err = svc.DeleteCatway(ctx, 1)
	assert.Equal(t, booking.HasActiveReservations, booking.KindOf(err))
	_, err = svc.GetCatway(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReservation(ctx, 1, active.ID))
	removed, err := svc.DeleteCatway(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	all, err := svc.ListReservations(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "expired reservation is removed with the catway")

	_, err = svc.DeleteCatway(ctx, 1)
	assert.Equal(t, booking.NotFound, booking.KindOf(err))

	types := rec.types()
	assert.Equal(t, queue.CatwayDeleted, types[len(types)-1])
}

func TestConcurrentReservationsExactlyOneWins(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustCatway(t, svc, 1)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		kinds     []booking.Kind
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			in := resInput(fmt.Sprintf("2025-06-10T%02d:00", i), "2025-06-12T00:00")
			_, err := svc.CreateReservation(ctx, 1, in)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			kinds = append(kinds, booking.KindOf(err))
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	require.Len(t, kinds, n-1)
	for _, k := range kinds {
		assert.Contains(t, []booking.Kind{booking.OverlapConflict, booking.ConflictError}, k)
	}
	list, err := svc.ListCatwayReservations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// stallingPublisher blocks the first publish until release is closed.
type stallingPublisher struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *stallingPublisher) Publish(context.Context, queue.Event) error {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.entered)
		<-p.release
	}
	return nil
}

func TestSlowPublishDoesNotHoldCatwayLock(t *testing.T) {
	pub := &stallingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	st := memory.New()
	svc := New(stores(st), WithClock(func() time.Time { return testNow }), WithPublisher(pub))
	ctx := context.Background()
	mustCatway(t, svc, 1)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.CreateReservation(ctx, 1, resInput("2025-06-10", "2025-06-12"))
		firstDone <- err
	}()
	<-pub.entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := svc.CreateReservation(ctx, 1, resInput("2025-06-20", "2025-06-22"))
		secondDone <- err
	}()
	select {
	case err := <-secondDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second reservation waited for the first one's event")
	}

	close(pub.release)
	require.NoError(t, <-firstDone)
}

// Two service instances share a store but not their locks, as two
// server processes would share a database.
func TestStoreRejectsOverlapAcrossInstances(t *testing.T) {
	st := memory.New()
	a := New(stores(st), WithClock(func() time.Time { return testNow }))
	b := New(stores(st), WithClock(func() time.Time { return testNow }))
	ctx := context.Background()
	_, err := a.CreateCatway(ctx, booking.CatwayInput{CatwayNumber: 1, Type: "long", CatwayState: "ok"})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 10)
	)
	for i := range errs {
		svc := a
		if i%2 == 1 {
			svc = b
		}
		wg.Add(1)
		go func(i int, svc *Service) {
			defer wg.Done()
			_, errs[i] = svc.CreateReservation(ctx, 1, resInput("2025-06-10", "2025-06-12"))
		}(i, svc)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Contains(t, []booking.Kind{booking.OverlapConflict, booking.ConflictError}, booking.KindOf(err))
	}
	assert.Equal(t, 1, ok)
}

func TestReadsRetryTransientFailures(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	mustCatway(t, svc, 1)

	st.FailNextReads(2)
	list, err := svc.ListCatways(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	st.FailNextReads(5)
	_, err = svc.ListCatways(ctx)
	assert.Equal(t, booking.StoreUnavailable, booking.KindOf(err))
	assert.True(t, booking.Retryable(err))
}

func TestDashboard(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustCatway(t, svc, 1)
	mustCatway(t, svc, 2)
	_, err := svc.CreateReservation(ctx, 1, resInput("2025-06-01T12:00", "2025-06-03T12:00"))
	require.NoError(t, err)
	last, err := svc.CreateReservation(ctx, 1, resInput("2025-06-10", "2025-06-14"))
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, UserInput{Name: "Admin", Email: "admin@port.test", Password: "secret123", PasswordConfirm: "secret123"})
	require.NoError(t, err)

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalCatways)
	assert.Equal(t, 2, d.TotalReservations)
	assert.Equal(t, 1, d.TotalUsers)
	assert.Equal(t, 50.0, d.OccupancyPercentage)
	assert.Equal(t, 2, d.TotalActiveReservations)
	assert.Equal(t, 3.0, d.AverageDurationDays)
	require.NotNil(t, d.LastCatway)
	assert.Equal(t, 2, d.LastCatway.CatwayNumber)
	require.NotEmpty(t, d.RecentBookings)
	assert.Equal(t, last.ID, d.RecentBookings[0].ID)
	assert.Equal(t, 1, d.Catways.Occupied)
	assert.Equal(t, 1, d.Catways.Available)
}

func TestUsers(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	valid := UserInput{Name: "Ana", Email: "Ana@Port.test", Password: "secret123", PasswordConfirm: "secret123"}
	u, err := svc.CreateUser(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, "ana@port.test", u.Email)

	cases := []struct {
		name string
		in   UserInput
		kind booking.Kind
	}{
		{"duplicate email", UserInput{Name: "B", Email: "ANA@port.test", Password: "secret123", PasswordConfirm: "secret123"}, booking.DuplicateEmail},
		{"missing name", UserInput{Email: "b@port.test", Password: "secret123", PasswordConfirm: "secret123"}, booking.MissingFields},
		{"short password", UserInput{Name: "B", Email: "b@port.test", Password: "short", PasswordConfirm: "short"}, booking.InvalidUser},
		{"mismatch", UserInput{Name: "B", Email: "b@port.test", Password: "secret123", PasswordConfirm: "secret124"}, booking.InvalidUser},
		{"bad email", UserInput{Name: "B", Email: "not-an-email", Password: "secret123", PasswordConfirm: "secret123"}, booking.InvalidUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tc.in)
			assert.Equal(t, tc.kind, booking.KindOf(err))
		})
	}

	other, err := svc.CreateUser(ctx, UserInput{Name: "Bo", Email: "bo@port.test", Password: "secret123", PasswordConfirm: "secret123"})
	require.NoError(t, err)

	// keeping one's own email is fine, taking another's is not
	updated, err := svc.UpdateUser(ctx, u.ID, UserInput{Name: "Ana M", Email: "ana@port.test", Password: "newsecret1", PasswordConfirm: "newsecret1"})
	require.NoError(t, err)
	assert.Equal(t, "Ana M", updated.Name)
	_, err = svc.UpdateUser(ctx, u.ID, UserInput{Name: "Ana", Email: "bo@port.test", Password: "newsecret1", PasswordConfirm: "newsecret1"})
	assert.Equal(t, booking.DuplicateEmail, booking.KindOf(err))
	_, err = svc.UpdateUser(ctx, 999, valid)
	assert.Equal(t, booking.NotFound, booking.KindOf(err))

	list, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, svc.DeleteUser(ctx, other.ID))
	assert.Equal(t, booking.NotFound, booking.KindOf(svc.DeleteUser(ctx, other.ID)))
}

func TestAuthFlow(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, UserInput{Name: "Ana", Email: "ana@port.test", Password: "secret123", PasswordConfirm: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Access.Token)
	assert.NotEmpty(t, sess.Refresh.Raw)

	_, err = svc.Login(ctx, "ana@port.test", "wrong-pass")
	assert.Equal(t, booking.Unauthorized, booking.KindOf(err))
	_, err = svc.Login(ctx, "nobody@port.test", "secret123")
	assert.Equal(t, booking.Unauthorized, booking.KindOf(err))

	login, err := svc.Login(ctx, "ANA@port.test", "secret123")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)

	rotated, err := svc.Refresh(ctx, login.Refresh.Raw)
	require.NoError(t, err)
	assert.NotEqual(t, login.Refresh.Raw, rotated.Refresh.Raw)

	// the rotated-out token is revoked
	_, err = svc.Refresh(ctx, login.Refresh.Raw)
	assert.Equal(t, booking.Unauthorized, booking.KindOf(err))

	require.NoError(t, svc.Logout(WithActor(ctx, sess.User.ID), ""))
	_, err = svc.Refresh(ctx, rotated.Refresh.Raw)
	assert.Equal(t, booking.Unauthorized, booking.KindOf(err))

	assert.Equal(t, booking.Unauthorized, booking.KindOf(svc.Logout(ctx, "")))
	assert.Equal(t, booking.Unauthorized, booking.KindOf(svc.Logout(ctx, rotated.Refresh.Raw)))

	again, err := svc.Login(ctx, "ana@port.test", "secret123")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, again.Refresh.Raw))
	_, err = svc.Refresh(ctx, again.Refresh.Raw)
	assert.Equal(t, booking.Unauthorized, booking.KindOf(err))
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock(1)
	done := make(chan struct{})
	go func() {
		u := k.Lock(1)
		u()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
