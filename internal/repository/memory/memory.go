// Package memory is an in-process implementation of the catway,
// reservation and user stores.  It enforces the same constraints as the
// MySQL repositories (unique catway numbers and emails, no overlapping
// reservations, cascade on catway deletion) under a single lock, and is
// used for tests and for running the service without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/marina-reservation/internal/model"
	"github.com/iliyamo/marina-reservation/internal/repository"
	"github.com/iliyamo/marina-reservation/internal/utils"
)

type Store struct {
	mu           sync.RWMutex
	now          func() time.Time
	nextID       uint64
	catways      map[int]model.Catway
	reservations []model.Reservation // insertion order
	users        map[uint64]model.User
	tokens       map[string]refreshRow
	failReads    int
}

// New returns an empty store.  Timestamps come from time.Now unless
// WithClock is used.
func New() *Store {
	return &Store{
		now:     func() time.Time { return time.Now().UTC() },
		catways: make(map[int]model.Catway),
		users:   make(map[uint64]model.User),
		tokens:  make(map[string]refreshRow),
	}
}

// WithClock sets the clock used for CreatedAt/UpdatedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// FailNextReads makes the next n read operations fail with
// repository.ErrUnavailable.
func (s *Store) FailNextReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = n
}

// read takes the write lock only to consume an injected failure.
func (s *Store) read() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads > 0 {
		s.failReads--
		return repository.ErrUnavailable
	}
	return nil
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

// Catways exposes the catway operations.
func (s *Store) Catways() *Catways { return &Catways{s: s} }

// Reservations exposes the reservation operations.
func (s *Store) Reservations() *Reservations { return &Reservations{s: s} }

// Users exposes the user operations.
func (s *Store) Users() *Users { return &Users{s: s} }

// Tokens exposes the refresh token operations.
func (s *Store) Tokens() *Tokens { return &Tokens{s: s} }

type Catways struct{ s *Store }

func (c *Catways) FindAll(_ context.Context) ([]model.Catway, error) {
	if err := c.s.read(); err != nil {
		return nil, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	out := make([]model.Catway, 0, len(c.s.catways))
	for _, cw := range c.s.catways {
		out = append(out, cw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CatwayNumber < out[j].CatwayNumber })
	return out, nil
}

func (c *Catways) FindByNumber(_ context.Context, number int) (model.Catway, error) {
	if err := c.s.read(); err != nil {
		return model.Catway{}, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	cw, ok := c.s.catways[number]
	if !ok {
		return model.Catway{}, repository.ErrNotFound
	}
	return cw, nil
}

func (c *Catways) Numbers(_ context.Context) ([]int, error) {
	if err := c.s.read(); err != nil {
		return nil, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	out := make([]int, 0, len(c.s.catways))
	for n := range c.s.catways {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func (c *Catways) Insert(_ context.Context, cw *model.Catway) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.catways[cw.CatwayNumber]; ok {
		return repository.ErrDuplicate
	}
	now := c.s.now()
	cw.ID = c.s.id()
	cw.CreatedAt, cw.UpdatedAt = now, now
	c.s.catways[cw.CatwayNumber] = *cw
	return nil
}

func (c *Catways) UpdateState(_ context.Context, number int, state string) (model.Catway, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cw, ok := c.s.catways[number]
	if !ok {
		return model.Catway{}, repository.ErrNotFound
	}
	cw.CatwayState = state
	cw.UpdatedAt = c.s.now()
	c.s.catways[number] = cw
	return cw, nil
}

func (c *Catways) Replace(_ context.Context, number int, repl model.Catway) (model.Catway, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cw, ok := c.s.catways[number]
	if !ok {
		return model.Catway{}, repository.ErrNotFound
	}
	if repl.CatwayNumber != number {
		if _, taken := c.s.catways[repl.CatwayNumber]; taken {
			return model.Catway{}, repository.ErrDuplicate
		}
		for i := range c.s.reservations {
			if c.s.reservations[i].CatwayNumber == number {
				c.s.reservations[i].CatwayNumber = repl.CatwayNumber
			}
		}
		delete(c.s.catways, number)
	}
	cw.CatwayNumber = repl.CatwayNumber
	cw.Type = repl.Type
	cw.CatwayState = repl.CatwayState
	cw.UpdatedAt = c.s.now()
	c.s.catways[cw.CatwayNumber] = cw
	return cw, nil
}

// Delete mirrors repository.CatwayRepo.Delete: allow sees the catway's
// reservations under the lock and may veto the deletion.
func (c *Catways) Delete(_ context.Context, number int, allow func([]model.Reservation) error) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.catways[number]; !ok {
		return 0, repository.ErrNotFound
	}
	var mine []model.Reservation
	for _, r := range c.s.reservations {
		if r.CatwayNumber == number {
			mine = append(mine, r)
		}
	}
	if allow != nil {
		if err := allow(mine); err != nil {
			return 0, err
		}
	}
	removed := c.s.deleteReservationsLocked(number)
	delete(c.s.catways, number)
	return removed, nil
}

type Reservations struct{ s *Store }

func (r *Reservations) FindAll(_ context.Context) ([]model.Reservation, error) {
	if err := r.s.read(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Reservation, len(r.s.reservations))
	copy(out, r.s.reservations)
	return out, nil
}

func (r *Reservations) FindByCatway(_ context.Context, number int) ([]model.Reservation, error) {
	if err := r.s.read(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Reservation, 0)
	for _, res := range r.s.reservations {
		if res.CatwayNumber == number {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	return out, nil
}

func (r *Reservations) FindByID(_ context.Context, id uint64) (model.Reservation, error) {
	if err := r.s.read(); err != nil {
		return model.Reservation{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, res := range r.s.reservations {
		if res.ID == id {
			return res, nil
		}
	}
	return model.Reservation{}, repository.ErrNotFound
}

// Insert repeats the overlap test under the store lock, like the
// MySQL repository does under its row lock.
func (r *Reservations) Insert(_ context.Context, res *model.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.catways[res.CatwayNumber]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range r.s.reservations {
		if existing.CatwayNumber == res.CatwayNumber && existing.Overlaps(res.CheckIn, res.CheckOut) {
			return repository.ErrConflict
		}
	}
	now := r.s.now()
	res.ID = r.s.id()
	res.CreatedAt, res.UpdatedAt = now, now
	r.s.reservations = append(r.s.reservations, *res)
	return nil
}

func (r *Reservations) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, res := range r.s.reservations {
		if res.ID == id {
			r.s.reservations = append(r.s.reservations[:i], r.s.reservations[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *Reservations) DeleteByCatway(_ context.Context, number int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.deleteReservationsLocked(number), nil
}

// deleteReservationsLocked drops the reservations of a catway.  The
// caller holds s.mu.
func (s *Store) deleteReservationsLocked(number int) int64 {
	kept := make([]model.Reservation, 0, len(s.reservations))
	var removed int64
	for _, res := range s.reservations {
		if res.CatwayNumber == number {
			removed++
			continue
		}
		kept = append(kept, res)
	}
	s.reservations = kept
	return removed
}

type Users struct{ s *Store }

func (u *Users) emailTakenLocked(email string, except uint64) bool {
	for id, usr := range u.s.users {
		if id != except && usr.Email == email {
			return true
		}
	}
	return false
}

func (u *Users) Create(_ context.Context, name, email, password string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	email = repository.NormalizeEmail(email)
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if u.emailTakenLocked(email, 0) {
		return 0, repository.ErrEmailExists
	}
	now := u.s.now()
	usr := model.User{ID: u.s.id(), Name: strings.TrimSpace(name), Email: email, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	u.s.users[usr.ID] = usr
	return usr.ID, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	if err := u.s.read(); err != nil {
		return model.User{}, err
	}
	email = repository.NormalizeEmail(email)
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, usr := range u.s.users {
		if usr.Email == email {
			return usr, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (u *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	if err := u.s.read(); err != nil {
		return model.User{}, err
	}
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	usr, ok := u.s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return usr, nil
}

func (u *Users) List(_ context.Context) ([]model.User, error) {
	if err := u.s.read(); err != nil {
		return nil, err
	}
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	out := make([]model.User, 0, len(u.s.users))
	for _, usr := range u.s.users {
		out = append(out, usr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (u *Users) Count(_ context.Context) (int, error) {
	if err := u.s.read(); err != nil {
		return 0, err
	}
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	return len(u.s.users), nil
}

func (u *Users) Update(_ context.Context, id uint64, name, email, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	email = repository.NormalizeEmail(email)
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr, ok := u.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.emailTakenLocked(email, id) {
		return repository.ErrEmailExists
	}
	usr.Name, usr.Email, usr.PasswordHash = strings.TrimSpace(name), email, hash
	usr.UpdatedAt = u.s.now()
	u.s.users[id] = usr
	return nil
}

func (u *Users) Delete(_ context.Context, id uint64) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(u.s.users, id)
	for hash, row := range u.s.tokens {
		if row.userID == id {
			delete(u.s.tokens, hash)
		}
	}
	return nil
}

type refreshRow struct {
	userID    uint64
	expiresAt time.Time
	revoked   bool
}

type Tokens struct{ s *Store }

func (t *Tokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.users[userID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := t.s.tokens[tokenHash]; ok {
		return repository.ErrDuplicate
	}
	t.s.tokens[tokenHash] = refreshRow{userID: userID, expiresAt: exp}
	return nil
}

func (t *Tokens) ValidateRefresh(_ context.Context, tokenHash string, now time.Time) (uint64, error) {
	if err := t.s.read(); err != nil {
		return 0, err
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	row, ok := t.s.tokens[tokenHash]
	if !ok || row.revoked || !now.Before(row.expiresAt) {
		return 0, repository.ErrNotFound
	}
	return row.userID, nil
}

func (t *Tokens) RevokeByHash(_ context.Context, tokenHash string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if row, ok := t.s.tokens[tokenHash]; ok {
		row.revoked = true
		t.s.tokens[tokenHash] = row
	}
	return nil
}

func (t *Tokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for hash, row := range t.s.tokens {
		if row.userID == userID {
			row.revoked = true
			t.s.tokens[hash] = row
		}
	}
	return nil
}
