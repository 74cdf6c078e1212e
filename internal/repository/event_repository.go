package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// EventRepo manages persistence for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, user_id, title, description, location, date, total_seats, available_seats, price, img, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }, e *model.Event) error {
	return row.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &e.Location, &e.Date,
		&e.TotalSeats, &e.AvailableSeats, &e.Price, &e.Img, &e.CreatedAt, &e.UpdatedAt)
}

// Create inserts e and assigns the generated ID back to it. CreatedAt and
// UpdatedAt must be set by the caller.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (user_id, title, description, location, date, total_seats, available_seats, price, img, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q,
		e.UserID, e.Title, e.Description, e.Location, e.Date.UTC(), e.TotalSeats, e.AvailableSeats,
		e.Price, e.Img, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// GetByID returns ErrEventNotFound if there is no matching row.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	var e model.Event
	if err := scanEvent(conn(ctx, r.db).QueryRowContext(ctx, q, id), &e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

// List returns every event, newest first.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q)
}

// ListByOwner returns the events created by ownerID, newest first.
func (r *EventRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q, ownerID)
}

func (r *EventRepo) list(ctx context.Context, q string, args ...any) ([]model.Event, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Patch writes only the non-nil fields of p plus updated_at. Columns that
// are not patched keep their current value, so a concurrent seat change is
// not overwritten by a stale read. Returns ErrEventNotFound when no row
// matches.
func (r *EventRepo) Patch(ctx context.Context, id uint64, p model.EventPatch, at time.Time) error {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Location != nil {
		add("location", *p.Location)
	}
	if p.Date != nil {
		add("date", p.Date.UTC())
	}
	if p.TotalSeats != nil {
		add("total_seats", *p.TotalSeats)
	}
	if p.AvailableSeats != nil {
		add("available_seats", *p.AvailableSeats)
	}
	if p.Price != nil {
		add("price", *p.Price)
	}
	if p.Img != nil {
		add("img", *p.Img)
	}
	add("updated_at", at.UTC())
	args = append(args, id)

	q := `UPDATE events SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	// updated_at always changes, so zero rows means the event is gone.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// Delete removes the event row. Bookings that reference it are left in
// place. Returns ErrEventNotFound when no row matches.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// DecrementSeats subtracts qty from available_seats only if at least qty
// seats remain. The check and the write are one statement, so two
// concurrent bookings cannot both pass it. Returns ErrInsufficientSeats
// when the guard fails and ErrEventNotFound when the event is missing.
func (r *EventRepo) DecrementSeats(ctx context.Context, id uint64, qty int, at time.Time) error {
	const q = `UPDATE events SET available_seats = available_seats - ?, updated_at = ?
               WHERE id = ? AND available_seats >= ?`
	db := conn(ctx, r.db)
	res, err := db.ExecContext(ctx, q, qty, at.UTC(), id, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	if err := db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return err
	}
	return ErrInsufficientSeats
}

// IncrementSeats adds qty back to available_seats. It reports false, with
// no error, when the event no longer exists.
func (r *EventRepo) IncrementSeats(ctx context.Context, id uint64, qty int, at time.Time) (bool, error) {
	const q = `UPDATE events SET available_seats = available_seats + ?, updated_at = ? WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, qty, at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
