package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/marina-reservation/internal/model"
)

// ReservationRepo provides persistence for reservations.  All
// timestamp fields are assumed to be stored in UTC.  Reservations are
// never updated: they are inserted through Insert, which enforces the
// no-overlap rule inside a transaction, and removed by id.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, catway_number, client_name, boat_name, check_in, check_out, created_at, updated_at`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var r model.Reservation
	err := s.Scan(&r.ID, &r.CatwayNumber, &r.ClientName, &r.BoatName, &r.CheckIn, &r.CheckOut, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func queryReservations(ctx context.Context, q querier, query string, args ...any) ([]model.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindAll returns every reservation in creation order.
func (r *ReservationRepo) FindAll(ctx context.Context) ([]model.Reservation, error) {
	return queryReservations(ctx, r.db, `SELECT `+reservationColumns+` FROM reservations ORDER BY created_at, id`)
}

// FindByCatway returns the reservations of one catway ordered by check-in.
func (r *ReservationRepo) FindByCatway(ctx context.Context, number int) ([]model.Reservation, error) {
	return queryReservations(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations WHERE catway_number = ? ORDER BY check_in, id`, number)
}

// FindByID returns a single reservation or ErrNotFound.
func (r *ReservationRepo) FindByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// Insert stores a reservation unless it overlaps one already held on
// the same catway.  The catway row is locked with SELECT ... FOR UPDATE
// so concurrent inserts for one catway are serialized across service
// instances, and the overlap test is repeated under that lock.  It
// returns ErrNotFound when the catway does not exist and ErrConflict
// when an overlapping reservation is present.
func (r *ReservationRepo) Insert(ctx context.Context, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var catwayID uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM catways WHERE catway_number = ? FOR UPDATE`, res.CatwayNumber).Scan(&catwayID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	var overlapping int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE catway_number = ? AND check_in < ? AND check_out > ?`,
		res.CatwayNumber, res.CheckOut, res.CheckIn).Scan(&overlapping)
	if err != nil {
		return err
	}
	if overlapping > 0 {
		return ErrConflict
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (catway_number, client_name, boat_name, check_in, check_out) VALUES (?, ?, ?, ?, ?)`,
		res.CatwayNumber, res.ClientName, res.BoatName, res.CheckIn, res.CheckOut)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate timestamps
	got, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	*res = got
	return nil
}

// Delete removes one reservation by id.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DeleteByCatway removes every reservation of a catway and returns how
// many rows were deleted.
func (r *ReservationRepo) DeleteByCatway(ctx context.Context, number int) (int64, error) {
	return deleteReservationsByCatway(ctx, r.db, number)
}

func deleteReservationsByCatway(ctx context.Context, e execer, number int) (int64, error) {
	res, err := e.ExecContext(ctx, `DELETE FROM reservations WHERE catway_number = ?`, number)
	if err != nil {
		return 0, fmt.Errorf("delete reservations of catway %d: %w", number, err)
	}
	return res.RowsAffected()
}
