package service

import (
	"context"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// EventStore is the event persistence the services need. Implemented by
// repository.EventRepo.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Event, error)
	Patch(ctx context.Context, id uint64, p model.EventPatch, at time.Time) error
	Delete(ctx context.Context, id uint64) error
	DecrementSeats(ctx context.Context, id uint64, qty int, at time.Time) error
	IncrementSeats(ctx context.Context, id uint64, qty int, at time.Time) (bool, error)
}

// BookingStore is implemented by repository.BookingRepo.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetDetail(ctx context.Context, id uint64) (*model.BookingDetail, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error)
	MarkCancelled(ctx context.Context, id uint64, at time.Time) error
}

// Transactor runs fn so that every store call made with the ctx it
// receives commits or rolls back together.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
