package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/clock"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

const minMobileLength = 10

// BookingService creates, lists and cancels bookings while keeping each
// event's availableSeats in step with its confirmed bookings.
type BookingService struct {
	tx       Transactor
	events   EventStore
	bookings BookingStore
	clock    clock.Clock
}

func NewBookingService(tx Transactor, events EventStore, bookings BookingStore, clk clock.Clock) *BookingService {
	return &BookingService{tx: tx, events: events, bookings: bookings, clock: clk}
}

// CreateBookingInput is the booking request after decoding. RequesterID is
// the authenticated user and becomes the booking owner.
type CreateBookingInput struct {
	EventID     uint64
	Name        string
	Email       string
	Mobile      string
	Quantity    int
	RequesterID uint64
}

func (in *CreateBookingInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Mobile = strings.TrimSpace(in.Mobile)
}

func (in CreateBookingInput) validate() error {
	if in.EventID == 0 || in.Name == "" || in.Email == "" || in.Mobile == "" || in.Quantity == 0 {
		return validation("All fields are required")
	}
	if in.Quantity < 0 {
		return validation("Quantity must be greater than 0")
	}
	if !strings.Contains(in.Email, "@") || !strings.Contains(in.Email, ".") {
		return validation("Invalid email format")
	}
	if len(in.Mobile) < minMobileLength {
		return validation("Mobile number must be at least 10 digits")
	}
	return nil
}

func seatsConflict(available int, err error) error {
	return conflict(fmt.Sprintf("Only %d seats available", available), err)
}

// CreateBooking validates in, reserves the seats and stores a confirmed
// booking. The booking insert and the seat decrement share one
// transaction, and the decrement only applies while enough seats remain.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.BookingReceipt, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		receipt *model.BookingReceipt
		lost    bool
		seen    int
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		ev, err := s.events.GetByID(ctx, in.EventID)
		if errors.Is(err, repository.ErrEventNotFound) {
			return notFound("Event not found", err)
		}
		if err != nil {
			return fmt.Errorf("load event %d: %w", in.EventID, err)
		}
		seen = ev.AvailableSeats
		if ev.AvailableSeats < in.Quantity {
			return seatsConflict(ev.AvailableSeats, repository.ErrInsufficientSeats)
		}

		b := &model.Booking{
			EventID:     ev.ID,
			UserID:      in.RequesterID,
			Name:        in.Name,
			Email:       in.Email,
			Mobile:      in.Mobile,
			Quantity:    in.Quantity,
			TotalAmount: float64(in.Quantity) * ev.Price,
			BookingDate: now,
			Status:      model.BookingConfirmed,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.bookings.Create(ctx, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		switch err := s.events.DecrementSeats(ctx, ev.ID, in.Quantity, now); {
		case errors.Is(err, repository.ErrInsufficientSeats):
			lost = true
			return err
		case errors.Is(err, repository.ErrEventNotFound):
			return notFound("Event not found", err)
		case err != nil:
			return fmt.Errorf("decrement seats for event %d: %w", ev.ID, err)
		}

		receipt = &model.BookingReceipt{
			Booking:       *b,
			EventTitle:    ev.Title,
			EventDate:     ev.Date,
			EventLocation: ev.Location,
		}
		return nil
	})
	if lost {
		return nil, s.currentSeatsConflict(ctx, in.EventID, seen)
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// currentSeatsConflict reports the seat count after a lost race. It runs
// once the transaction has rolled back, so the read sees the winning
// commit rather than the transaction's snapshot. The count seen inside the
// transaction is the fallback.
func (s *BookingService) currentSeatsConflict(ctx context.Context, eventID uint64, seen int) error {
	available := seen
	if fresh, err := s.events.GetByID(ctx, eventID); err == nil {
		available = fresh.AvailableSeats
	}
	return seatsConflict(available, repository.ErrInsufficientSeats)
}

// ListBookings returns the requester's bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	list, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for user %d: %w", userID, err)
	}
	return list, nil
}

// GetBooking returns one booking with its event summary. Only the owner
// may read it.
func (s *BookingService) GetBooking(ctx context.Context, id, requesterID uint64) (*model.BookingDetail, error) {
	d, err := s.bookings.GetDetail(ctx, id)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, notFound("Booking not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("load booking %d: %w", id, err)
	}
	if d.UserID != requesterID {
		return nil, forbidden("Unauthorized to view this booking")
	}
	return d, nil
}

// CancelBooking moves a confirmed booking to cancelled and returns its
// seats to the event. If the event has been deleted the seats are dropped
// and the cancellation still succeeds.
func (s *BookingService) CancelBooking(ctx context.Context, id, requesterID uint64) (*model.Booking, error) {
	now := s.clock.Now()
	var cancelled *model.Booking
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetByID(ctx, id)
		if errors.Is(err, repository.ErrBookingNotFound) {
			return notFound("Booking not found", err)
		}
		if err != nil {
			return fmt.Errorf("load booking %d: %w", id, err)
		}
		if b.UserID != requesterID {
			return forbidden("Unauthorized to cancel this booking")
		}
		if b.Status == model.BookingCancelled {
			return conflict("Booking already cancelled", repository.ErrNotConfirmed)
		}

		if err := s.bookings.MarkCancelled(ctx, b.ID, now); err != nil {
			if errors.Is(err, repository.ErrNotConfirmed) {
				return conflict("Booking already cancelled", err)
			}
			return fmt.Errorf("cancel booking %d: %w", b.ID, err)
		}

		restored, err := s.events.IncrementSeats(ctx, b.EventID, b.Quantity, now)
		if err != nil {
			return fmt.Errorf("restore seats for event %d: %w", b.EventID, err)
		}
		if !restored {
			logrus.WithFields(logrus.Fields{
				"booking_id": b.ID,
				"event_id":   b.EventID,
			}).Debug("event no longer exists; seats not restored")
		}

		b.Status = model.BookingCancelled
		b.UpdatedAt = now
		cancelled = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}
