// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios. For
// example, ErrNotFound indicates that the addressed row does not
// exist, while ErrConflict signals that a write was refused because a
// concurrent write got there first (e.g. an overlapping reservation
// inserted between the caller's check and its insert).
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state detected inside the store, such as an overlapping
// reservation on the same catway.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when a unique key (catway number) is
// already taken.
var ErrDuplicate = errors.New("duplicate")

// ErrUnavailable marks transient store failures (timeouts, dropped
// connections).  Callers may retry idempotent reads.
var ErrUnavailable = errors.New("store unavailable")

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// mysqlMissingParent is the MySQL error number for a failed foreign key
// check on insert.
const mysqlMissingParent = 1452

func isMissingParent(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlMissingParent
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}

// IsUnavailable reports whether err is a transient store failure.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
