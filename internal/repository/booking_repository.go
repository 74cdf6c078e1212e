package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// BookingRepo provides persistence for bookings. All timestamp fields are
// stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `b.id, b.event_id, b.user_id, b.name, b.email, b.mobile, b.quantity, b.total_amount, b.booking_date, b.status, b.created_at, b.updated_at`

// Create inserts b and populates its generated ID. Timestamps and status
// must be set by the caller.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (event_id, user_id, name, email, mobile, quantity, total_amount, booking_date, status, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q,
		b.EventID, b.UserID, b.Name, b.Email, b.Mobile, b.Quantity, b.TotalAmount,
		b.BookingDate.UTC(), string(b.Status), b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID returns ErrBookingNotFound when no row matches.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ?`
	var b model.Booking
	var status string
	err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.EventID, &b.UserID, &b.Name, &b.Email, &b.Mobile, &b.Quantity,
		&b.TotalAmount, &b.BookingDate, &status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	return &b, nil
}

const detailQuery = `SELECT ` + bookingColumns + `, e.id, e.title, e.location, e.date, e.price, e.img
    FROM bookings b LEFT JOIN events e ON e.id = b.event_id`

// GetDetail returns the booking together with a summary of its event. The
// summary is nil when the event has been deleted.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (*model.BookingDetail, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, detailQuery+` WHERE b.id = ?`, id)
	d, err := scanDetail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListByUser returns every booking owned by userID, newest first, with
// event summaries populated where the event still exists.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		detailQuery+` WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []model.BookingDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanDetail(row interface{ Scan(...any) error }) (*model.BookingDetail, error) {
	var (
		d       model.BookingDetail
		status  string
		evID    sql.NullInt64
		evTitle sql.NullString
		evLoc   sql.NullString
		evDate  sql.NullTime
		evPrice sql.NullFloat64
		evImg   sql.NullString
	)
	err := row.Scan(
		&d.ID, &d.EventID, &d.UserID, &d.Name, &d.Email, &d.Mobile, &d.Quantity,
		&d.TotalAmount, &d.BookingDate, &status, &d.CreatedAt, &d.UpdatedAt,
		&evID, &evTitle, &evLoc, &evDate, &evPrice, &evImg)
	if err != nil {
		return nil, err
	}
	d.Status = model.BookingStatus(status)
	if evID.Valid {
		d.Event = &model.EventSummary{
			ID:       uint64(evID.Int64),
			Title:    evTitle.String,
			Location: evLoc.String,
			Date:     evDate.Time,
			Price:    evPrice.Float64,
			Img:      evImg.String,
		}
	}
	return &d, nil
}

// MarkCancelled flips a confirmed booking to cancelled. The status guard
// lives in the WHERE clause so only one of two concurrent cancellations
// succeeds; the loser gets ErrNotConfirmed.
func (r *BookingRepo) MarkCancelled(ctx context.Context, id uint64, at time.Time) error {
	const q = `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q,
		string(model.BookingCancelled), at.UTC(), id, string(model.BookingConfirmed))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotConfirmed
	}
	return nil
}
