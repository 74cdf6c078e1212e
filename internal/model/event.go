package model

import "time"

// Event is a bookable occurrence with a finite seat inventory. It is
// created by an admin, whose id is stored in UserID, and is hard deleted
// by that same admin.
//
// Fields:
//
//	TotalSeats     – capacity, at least 1.
//	AvailableSeats – remaining capacity; decremented on booking and
//	                 restored on cancellation. Seeded to TotalSeats.
//	Price          – price of one seat, at least 0.
//	Img            – image URL or path.
type Event struct {
	ID             uint64    `json:"id"`             // events.id
	UserID         uint64    `json:"userId"`         // events.user_id
	Title          string    `json:"title"`          // events.title
	Description    string    `json:"description"`    // events.description
	Location       string    `json:"location"`       // events.location
	Date           time.Time `json:"date"`           // events.date
	TotalSeats     int       `json:"totalSeats"`     // events.total_seats
	AvailableSeats int       `json:"availableSeats"` // events.available_seats
	Price          float64   `json:"price"`          // events.price
	Img            string    `json:"img"`            // events.img
	CreatedAt      time.Time `json:"createdAt"`      // events.created_at
	UpdatedAt      time.Time `json:"updatedAt"`      // events.updated_at
}

// EventPatch lists the event fields an owner may change. Nil fields are
// left untouched.
type EventPatch struct {
	Title          *string
	Description    *string
	Location       *string
	Date           *time.Time
	TotalSeats     *int
	AvailableSeats *int
	Price          *float64
	Img            *string
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Location == nil && p.Date == nil &&
		p.TotalSeats == nil && p.AvailableSeats == nil && p.Price == nil && p.Img == nil
}

// EventSummary is the subset of an event embedded in booking listings.
type EventSummary struct {
	ID       uint64    `json:"id"`
	Title    string    `json:"title"`
	Location string    `json:"location"`
	Date     time.Time `json:"date"`
	Price    float64   `json:"price"`
	Img      string    `json:"img"`
}
