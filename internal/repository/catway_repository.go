package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/marina-reservation/internal/model"
)

// CatwayRepo provides persistence for catways.  Catways are addressed
// by their human-readable number; the surrogate id never leaves the
// store.
type CatwayRepo struct {
	db *sql.DB
}

// NewCatwayRepo constructs a CatwayRepo with the given DB handle.
func NewCatwayRepo(db *sql.DB) *CatwayRepo { return &CatwayRepo{db: db} }

const catwayColumns = `id, catway_number, type, catway_state, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatway(s rowScanner) (model.Catway, error) {
	var c model.Catway
	err := s.Scan(&c.ID, &c.CatwayNumber, &c.Type, &c.CatwayState, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// FindAll returns every catway ordered by number.
func (r *CatwayRepo) FindAll(ctx context.Context) ([]model.Catway, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+catwayColumns+` FROM catways ORDER BY catway_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Catway, 0)
	for rows.Next() {
		c, err := scanCatway(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindByNumber returns the catway with the given number or ErrNotFound.
func (r *CatwayRepo) FindByNumber(ctx context.Context, number int) (model.Catway, error) {
	c, err := scanCatway(r.db.QueryRowContext(ctx,
		`SELECT `+catwayColumns+` FROM catways WHERE catway_number = ?`, number))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Catway{}, ErrNotFound
	}
	return c, err
}

// Numbers lists every catway number in use.
func (r *CatwayRepo) Numbers(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT catway_number FROM catways`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Insert creates a catway and reads it back so timestamps are
// populated.  A taken number yields ErrDuplicate; the unique index is
// the final arbiter when two creations race.
func (r *CatwayRepo) Insert(ctx context.Context, c *model.Catway) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO catways (catway_number, type, catway_state) VALUES (?, ?, ?)`,
		c.CatwayNumber, c.Type, c.CatwayState)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := scanCatway(r.db.QueryRowContext(ctx, `SELECT `+catwayColumns+` FROM catways WHERE id = ?`, id))
	if err != nil {
		return err
	}
	*c = got
	return nil
}

// UpdateState sets the state label of a catway.
func (r *CatwayRepo) UpdateState(ctx context.Context, number int, state string) (model.Catway, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE catways SET catway_state = ?, updated_at = CURRENT_TIMESTAMP WHERE catway_number = ?`,
		state, number); err != nil {
		return model.Catway{}, err
	}
	// MySQL reports zero affected rows for an unchanged value, so
	// existence is decided by reading the row back.
	return r.FindByNumber(ctx, number)
}

// Replace overwrites number, type and state of the catway currently
// numbered `number`.  Reservations follow a renumbering through the
// ON UPDATE CASCADE foreign key.
func (r *CatwayRepo) Replace(ctx context.Context, number int, c model.Catway) (model.Catway, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE catways SET catway_number = ?, type = ?, catway_state = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE catway_number = ?`,
		c.CatwayNumber, c.Type, c.CatwayState, number); err != nil {
		if isDuplicate(err) {
			return model.Catway{}, ErrDuplicate
		}
		return model.Catway{}, err
	}
	return r.FindByNumber(ctx, c.CatwayNumber)
}

// Delete removes a catway together with its reservations in a single
// transaction.  The catway row is locked first so no reservation can be
// inserted for it meanwhile; allow is then called with the catway's
// reservations and may veto the deletion by returning an error, which
// is returned unchanged.  It returns the number of reservations removed.
func (r *CatwayRepo) Delete(ctx context.Context, number int, allow func([]model.Reservation) error) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var id uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM catways WHERE catway_number = ? FOR UPDATE`, number).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	reservations, err := queryReservations(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations WHERE catway_number = ? ORDER BY check_in`, number)
	if err != nil {
		return 0, err
	}
	if allow != nil {
		if err := allow(reservations); err != nil {
			return 0, err
		}
	}

	removed, err := deleteReservationsByCatway(ctx, tx, number)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM catways WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("delete catway %d: %w", number, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return removed, nil
}
