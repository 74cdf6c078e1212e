// Package repository holds the SQL data access layer. Queries use "?"
// placeholders and portable SQL so the same code runs on MySQL and SQLite.
//
// Sentinel errors defined here let the service layer tell "row missing"
// apart from real failures without importing database/sql.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already exists")

	// ErrInsufficientSeats is returned by the guarded seat decrement when the
	// event no longer has enough available seats.
	ErrInsufficientSeats = errors.New("insufficient seats")

	// ErrNotConfirmed is returned when a cancellation targets a booking that
	// is no longer confirmed.
	ErrNotConfirmed = errors.New("booking not confirmed")

	// ErrInvalidRefresh covers unknown, expired and revoked refresh tokens.
	ErrInvalidRefresh = errors.New("invalid refresh token")
)

// isDuplicateKey reports whether err is a unique constraint violation on
// either supported driver.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
