package model

import "time"

// BookingStatus is the lifecycle state of a booking. The only transition
// is confirmed -> cancelled, and cancelled is terminal.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a reservation of Quantity seats against an event, owned by
// the user who made it. TotalAmount is fixed at booking time and never
// re-derived from the event price.
type Booking struct {
	ID          uint64        `json:"id"`          // bookings.id
	EventID     uint64        `json:"eventId"`     // bookings.event_id
	UserID      uint64        `json:"userId"`      // bookings.user_id
	Name        string        `json:"name"`        // bookings.name
	Email       string        `json:"email"`       // bookings.email
	Mobile      string        `json:"mobile"`      // bookings.mobile
	Quantity    int           `json:"quantity"`    // bookings.quantity
	TotalAmount float64       `json:"totalAmount"` // bookings.total_amount
	BookingDate time.Time     `json:"bookingDate"` // bookings.booking_date
	Status      BookingStatus `json:"status"`      // bookings.status
	CreatedAt   time.Time     `json:"createdAt"`   // bookings.created_at
	UpdatedAt   time.Time     `json:"updatedAt"`   // bookings.updated_at
}

// BookingDetail is a booking with its event populated. Event is nil when
// the event has since been deleted.
type BookingDetail struct {
	Booking
	Event *EventSummary `json:"event"`
}

// BookingReceipt is returned from a successful booking: the stored booking
// plus the event fields shown on the confirmation screen.
type BookingReceipt struct {
	Booking
	EventTitle    string    `json:"eventTitle"`
	EventDate     time.Time `json:"eventDate"`
	EventLocation string    `json:"eventLocation"`
}
