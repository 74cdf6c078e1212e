package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/clock"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

var now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func concert(id uint64, total, available int, price float64) model.Event {
	return model.Event{
		ID:             id,
		UserID:         100,
		Title:          "Rooftop Concert",
		Location:       "Pier 9",
		Date:           now.Add(48 * time.Hour),
		TotalSeats:     total,
		AvailableSeats: available,
		Price:          price,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func newBookingSvc(events *fakeEvents, bookings *fakeBookings) *BookingService {
	return NewBookingService(fakeTx{events: events, bookings: bookings}, events, bookings, clock.NewFixed(now))
}

func validInput(eventID uint64, qty int) CreateBookingInput {
	return CreateBookingInput{
		EventID:     eventID,
		Name:        "Grace Hopper",
		Email:       "grace@example.com",
		Mobile:      "5550001111",
		Quantity:    qty,
		RequesterID: 7,
	}
}

func TestCreateBookingValidation(t *testing.T) {
	events := newFakeEvents(concert(1, 10, 10, 15))
	svc := newBookingSvc(events, newFakeBookings(events))

	tests := []struct {
		name   string
		mutate func(*CreateBookingInput)
		msg    string
	}{
		{"missing event", func(in *CreateBookingInput) { in.EventID = 0 }, "All fields are required"},
		{"blank name", func(in *CreateBookingInput) { in.Name = "   " }, "All fields are required"},
		{"missing email", func(in *CreateBookingInput) { in.Email = "" }, "All fields are required"},
		{"missing mobile", func(in *CreateBookingInput) { in.Mobile = "" }, "All fields are required"},
		{"zero quantity", func(in *CreateBookingInput) { in.Quantity = 0 }, "All fields are required"},
		{"negative quantity", func(in *CreateBookingInput) { in.Quantity = -2 }, "Quantity must be greater than 0"},
		{"email without at", func(in *CreateBookingInput) { in.Email = "grace.example.com" }, "Invalid email format"},
		{"email without dot", func(in *CreateBookingInput) { in.Email = "grace@example" }, "Invalid email format"},
		{"short mobile", func(in *CreateBookingInput) { in.Mobile = "555123" }, "Mobile number must be at least 10 digits"},
		{"required before quantity", func(in *CreateBookingInput) { in.Quantity = -1; in.Name = "" }, "All fields are required"},
		{"quantity before email", func(in *CreateBookingInput) { in.Quantity = -1; in.Email = "bad" }, "Quantity must be greater than 0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput(1, 1)
			tc.mutate(&in)
			_, err := svc.CreateBooking(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Equal(t, tc.msg, MessageOf(err))
		})
	}
	assert.Equal(t, 10, events.rows[1].AvailableSeats)
}

func TestCreateBooking(t *testing.T) {
	t.Run("stores booking and decrements seats", func(t *testing.T) {
		events := newFakeEvents(concert(1, 10, 10, 12.5))
		bookings := newFakeBookings(events)
		svc := newBookingSvc(events, bookings)

		in := validInput(1, 3)
		in.Email = "  Grace@Example.COM "
		in.Name = " Grace Hopper "
		receipt, err := svc.CreateBooking(context.Background(), in)
		require.NoError(t, err)

		assert.NotZero(t, receipt.ID)
		assert.Equal(t, 37.5, receipt.TotalAmount)
		assert.Equal(t, model.BookingConfirmed, receipt.Status)
		assert.Equal(t, uint64(7), receipt.UserID)
		assert.Equal(t, "grace@example.com", receipt.Email)
		assert.Equal(t, "Grace Hopper", receipt.Name)
		assert.Equal(t, now, receipt.BookingDate)
		assert.Equal(t, "Rooftop Concert", receipt.EventTitle)
		assert.Equal(t, "Pier 9", receipt.EventLocation)
		assert.Equal(t, 7, events.rows[1].AvailableSeats)
		assert.Len(t, bookings.rows, 1)
	})

	t.Run("event not found", func(t *testing.T) {
		events := newFakeEvents()
		svc := newBookingSvc(events, newFakeBookings(events))

		_, err := svc.CreateBooking(context.Background(), validInput(9, 1))
		assert.Equal(t, KindNotFound, KindOf(err))
		assert.Equal(t, "Event not found", MessageOf(err))
	})

	t.Run("more seats than available", func(t *testing.T) {
		events := newFakeEvents(concert(1, 10, 2, 15))
		bookings := newFakeBookings(events)
		svc := newBookingSvc(events, bookings)

		_, err := svc.CreateBooking(context.Background(), validInput(1, 3))
		assert.Equal(t, KindConflict, KindOf(err))
		assert.Equal(t, "Only 2 seats available", MessageOf(err))
		assert.Equal(t, 2, events.rows[1].AvailableSeats)
		assert.Empty(t, bookings.rows)
	})

	t.Run("lost race rolls back the booking", func(t *testing.T) {
		events := newFakeEvents(concert(1, 10, 4, 15))
		bookings := newFakeBookings(events)
		svc := newBookingSvc(events, bookings)
		events.failDecrement = errInsufficient()

		_, err := svc.CreateBooking(context.Background(), validInput(1, 3))
		assert.Equal(t, KindConflict, KindOf(err))
		assert.Equal(t, "Only 4 seats available", MessageOf(err))
		assert.Empty(t, bookings.rows)
	})

	t.Run("lost race reports seats left by the winner", func(t *testing.T) {
		events := newFakeEvents(concert(1, 10, 4, 15))
		bookings := newFakeBookings(events)
		svc := newBookingSvc(events, bookings)
		zero := 0
		events.lostRaceTo = &zero

		_, err := svc.CreateBooking(context.Background(), validInput(1, 3))
		assert.Equal(t, KindConflict, KindOf(err))
		assert.Equal(t, "Only 0 seats available", MessageOf(err))
		assert.ErrorIs(t, err, repository.ErrInsufficientSeats)
		assert.Empty(t, bookings.rows)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		events := newFakeEvents(concert(1, 10, 4, 15))
		bookings := newFakeBookings(events)
		svc := newBookingSvc(events, bookings)
		events.failDecrement = errStore

		_, err := svc.CreateBooking(context.Background(), validInput(1, 1))
		require.ErrorIs(t, err, errStore)
		assert.Equal(t, KindInternal, KindOf(err))
		assert.Empty(t, bookings.rows)
	})
}

func TestBookingSellOutScenario(t *testing.T) {
	events := newFakeEvents(concert(1, 5, 5, 20))
	svc := newBookingSvc(events, newFakeBookings(events))
	ctx := context.Background()

	receipt, err := svc.CreateBooking(ctx, validInput(1, 5))
	require.NoError(t, err)
	assert.Equal(t, 100.0, receipt.TotalAmount)
	assert.Equal(t, 0, events.rows[1].AvailableSeats)

	_, err = svc.CreateBooking(ctx, validInput(1, 1))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "Only 0 seats available", MessageOf(err))
}

func TestCancelBooking(t *testing.T) {
	setup := func() (*BookingService, *fakeEvents, *fakeBookings, uint64) {
		events := newFakeEvents(concert(1, 10, 10, 20))
		bookings := newFakeBookings(events)
		svc := newBookingSvc(events, bookings)
		receipt, err := svc.CreateBooking(context.Background(), validInput(1, 4))
		require.NoError(t, err)
		return svc, events, bookings, receipt.ID
	}

	t.Run("restores seats", func(t *testing.T) {
		svc, events, bookings, id := setup()
		require.Equal(t, 6, events.rows[1].AvailableSeats)

		b, err := svc.CancelBooking(context.Background(), id, 7)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, b.Status)
		assert.Equal(t, 10, events.rows[1].AvailableSeats)
		assert.Equal(t, model.BookingCancelled, bookings.rows[id].Status)
	})

	t.Run("second cancel conflicts", func(t *testing.T) {
		svc, events, _, id := setup()
		_, err := svc.CancelBooking(context.Background(), id, 7)
		require.NoError(t, err)

		_, err = svc.CancelBooking(context.Background(), id, 7)
		assert.Equal(t, KindConflict, KindOf(err))
		assert.Equal(t, "Booking already cancelled", MessageOf(err))
		assert.Equal(t, 10, events.rows[1].AvailableSeats)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		svc, events, bookings, id := setup()
		_, err := svc.CancelBooking(context.Background(), id, 8)
		assert.Equal(t, KindForbidden, KindOf(err))
		assert.Equal(t, model.BookingConfirmed, bookings.rows[id].Status)
		assert.Equal(t, 6, events.rows[1].AvailableSeats)
	})

	t.Run("missing booking", func(t *testing.T) {
		svc, _, _, _ := setup()
		_, err := svc.CancelBooking(context.Background(), 404, 7)
		assert.Equal(t, KindNotFound, KindOf(err))
		assert.Equal(t, "Booking not found", MessageOf(err))
	})

	t.Run("deleted event is skipped", func(t *testing.T) {
		svc, events, bookings, id := setup()
		delete(events.rows, 1)

		b, err := svc.CancelBooking(context.Background(), id, 7)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, b.Status)
		assert.Equal(t, model.BookingCancelled, bookings.rows[id].Status)
		assert.Empty(t, events.rows)
	})
}

func TestGetAndListBookings(t *testing.T) {
	events := newFakeEvents(concert(1, 10, 10, 20))
	bookings := newFakeBookings(events)
	svc := newBookingSvc(events, bookings)
	ctx := context.Background()

	first, err := svc.CreateBooking(ctx, validInput(1, 1))
	require.NoError(t, err)
	second, err := svc.CreateBooking(ctx, validInput(1, 2))
	require.NoError(t, err)
	other := validInput(1, 1)
	other.RequesterID = 99
	_, err = svc.CreateBooking(ctx, other)
	require.NoError(t, err)

	list, err := svc.ListBookings(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	require.NotNil(t, list[0].Event)
	assert.Equal(t, "Rooftop Concert", list[0].Event.Title)

	d, err := svc.GetBooking(ctx, first.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 20.0, d.TotalAmount)

	_, err = svc.GetBooking(ctx, first.ID, 99)
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, "Unauthorized to view this booking", MessageOf(err))

	_, err = svc.GetBooking(ctx, 500, 7)
	assert.Equal(t, KindNotFound, KindOf(err))
}
