// Package queue publishes booking domain events to a message broker and
// consumes them into an append-only booking log.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// Event types carried in BookingEvent.Type.
const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
)

// BookingEvent is published after a booking is committed or cancelled. It
// carries enough for consumers to log or notify without reading the
// database.
type BookingEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	BookingID   uint64    `json:"bookingId"`
	EventID     uint64    `json:"eventId"`
	UserID      uint64    `json:"userId"`
	EventTitle  string    `json:"eventTitle,omitempty"`
	Quantity    int       `json:"quantity"`
	TotalAmount float64   `json:"totalAmount"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// ConfirmedEvent builds the event for a new booking.
func ConfirmedEvent(r *model.BookingReceipt) BookingEvent {
	return BookingEvent{
		ID:          uuid.NewString(),
		Type:        TypeBookingConfirmed,
		BookingID:   r.ID,
		EventID:     r.EventID,
		UserID:      r.UserID,
		EventTitle:  r.EventTitle,
		Quantity:    r.Quantity,
		TotalAmount: r.TotalAmount,
		OccurredAt:  r.CreatedAt,
	}
}

// CancelledEvent builds the event for a cancellation.
func CancelledEvent(b *model.Booking) BookingEvent {
	return BookingEvent{
		ID:          uuid.NewString(),
		Type:        TypeBookingCancelled,
		BookingID:   b.ID,
		EventID:     b.EventID,
		UserID:      b.UserID,
		Quantity:    b.Quantity,
		TotalAmount: b.TotalAmount,
		OccurredAt:  b.UpdatedAt,
	}
}
