// Package service is the application layer of the marina.  It loads
// the data the booking rules need from the stores, applies the rules,
// persists the outcome and emits domain events.  Every exported method
// returns either data or a *booking.Error so the HTTP layer can map the
// error kind to a status code.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/marina-reservation/internal/booking"
	"github.com/iliyamo/marina-reservation/internal/model"
	"github.com/iliyamo/marina-reservation/internal/queue"
	"github.com/iliyamo/marina-reservation/internal/repository"
)

// CatwayStore persists catways.  Delete hands the catway's reservations
// to allow inside the store's transaction; a non-nil result aborts the
// deletion.
type CatwayStore interface {
	FindAll(ctx context.Context) ([]model.Catway, error)
	FindByNumber(ctx context.Context, number int) (model.Catway, error)
	Numbers(ctx context.Context) ([]int, error)
	Insert(ctx context.Context, c *model.Catway) error
	UpdateState(ctx context.Context, number int, state string) (model.Catway, error)
	Replace(ctx context.Context, number int, c model.Catway) (model.Catway, error)
	Delete(ctx context.Context, number int, allow func([]model.Reservation) error) (int64, error)
}

// ReservationStore persists reservations.  Insert must return
// repository.ErrConflict when an overlapping reservation exists at
// commit time and repository.ErrNotFound when the catway is missing.
type ReservationStore interface {
	FindAll(ctx context.Context) ([]model.Reservation, error)
	FindByCatway(ctx context.Context, number int) ([]model.Reservation, error)
	FindByID(ctx context.Context, id uint64) (model.Reservation, error)
	Insert(ctx context.Context, r *model.Reservation) error
	Delete(ctx context.Context, id uint64) error
}

// UserStore persists user accounts.  Passwords are hashed by the store
// with the given bcrypt cost.
type UserStore interface {
	Create(ctx context.Context, name, email, password string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id uint64, name, email, password string, cost int) error
	Delete(ctx context.Context, id uint64) error
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// Stores groups the persistence dependencies of the service.
type Stores struct {
	Catways      CatwayStore
	Reservations ReservationStore
	Users        UserStore
	Tokens       TokenStore
}

// RetryConfig bounds the automatic retry of idempotent reads that
// failed with a transient store error.
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
}

// AuthConfig holds token lifetimes and hashing cost.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

type Service struct {
	catways      CatwayStore
	reservations ReservationStore
	users        UserStore
	tokens       TokenStore

	events      Publisher
	now         func() time.Time
	locks       *keyedMutex
	retry       RetryConfig
	auth        AuthConfig
	recentLimit int
}

type Option func(*Service)

// WithClock replaces time.Now; tests pin the clock with it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Now is the service clock.  Token checks at the edge use it so that
// issuing and verifying agree on the time.
func (s *Service) Now() time.Time { return s.now() }

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

func WithRetry(rc RetryConfig) Option {
	return func(s *Service) {
		if rc.Attempts == 0 {
			rc.Attempts = 1
		}
		s.retry = rc
	}
}

func WithAuth(ac AuthConfig) Option {
	return func(s *Service) { s.auth = ac }
}

// WithRecentLimit sets how many bookings the dashboard lists.
func WithRecentLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

func New(st Stores, opts ...Option) *Service {
	s := &Service{
		catways:      st.Catways,
		reservations: st.Reservations,
		users:        st.Users,
		tokens:       st.Tokens,
		events:       NopPublisher{},
		now:          func() time.Time { return time.Now().UTC() },
		locks:        newKeyedMutex(),
		retry:        RetryConfig{Attempts: 3, Delay: 50 * time.Millisecond},
		auth:         AuthConfig{AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 10},
		recentLimit:  5,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// read runs an idempotent store read, retrying transient failures with
// exponential back-off.  Errors come back translated to booking kinds.
func read[T any](ctx context.Context, s *Service, op, notFound string, fn func(context.Context) (T, error)) (T, error) {
	v, err := retry.DoWithData(
		func() (T, error) { return fn(ctx) },
		retry.Context(ctx),
		retry.Attempts(s.retry.Attempts),
		retry.Delay(s.retry.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(repository.IsUnavailable),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Str("op", op).Uint("attempt", n+1).Msg("store read failed, retrying")
		}),
	)
	if err != nil {
		return v, storeErr(op, notFound, err)
	}
	return v, nil
}

// storeErr translates repository sentinels into booking errors.
// Unclassified errors are wrapped with the operation name and surface
// as internal errors.
func storeErr(op, notFound string, err error) error {
	if err == nil {
		return nil
	}
	if booking.KindOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return booking.Wrap(booking.NotFound, notFound, err)
	case errors.Is(err, repository.ErrConflict):
		return booking.Wrap(booking.ConflictError, "the record was changed by a concurrent request, please retry", err)
	case errors.Is(err, repository.ErrDuplicate):
		return booking.Wrap(booking.DuplicateNumber, "catway number already exists", err)
	case errors.Is(err, repository.ErrEmailExists):
		return booking.Wrap(booking.DuplicateEmail, "email already registered", err)
	case repository.IsUnavailable(err):
		return booking.Wrap(booking.StoreUnavailable, "storage is temporarily unavailable", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// publish emits ev after a committed write.  Delivery failures are
// logged; the write has already succeeded.
func (s *Service) publish(ctx context.Context, ev queue.Event) {
	ev.ActorID = ActorFrom(ctx)
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		log.Warn().Err(err).Str("event", ev.Type).Str("event_id", ev.EventID).Msg("publish event failed")
	}
}

type actorKey struct{}

// WithActor records the authenticated user on the request context.
func WithActor(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the user recorded by WithActor, or 0.
func ActorFrom(ctx context.Context) uint64 {
	id, _ := ctx.Value(actorKey{}).(uint64)
	return id
}

// keyedMutex serializes work per catway number.  Entries are dropped
// once no goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int]*lockEntry)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key int) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
