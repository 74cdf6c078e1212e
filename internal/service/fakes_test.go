package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

type fakeEvents struct {
	rows   map[uint64]model.Event
	nextID uint64
	// failDecrement, when set, is returned by DecrementSeats.
	failDecrement error
	// lostRaceTo simulates another booking committing while ours is in
	// flight: DecrementSeats fails and, once our transaction rolls back,
	// every event is left with this many seats.
	lostRaceTo *int
}

type snapshotKey struct{}

func newFakeEvents(events ...model.Event) *fakeEvents {
	f := &fakeEvents{rows: map[uint64]model.Event{}}
	for _, e := range events {
		f.rows[e.ID] = e
		if e.ID > f.nextID {
			f.nextID = e.ID
		}
	}
	return f
}

func (f *fakeEvents) Create(_ context.Context, e *model.Event) error {
	f.nextID++
	e.ID = f.nextID
	f.rows[e.ID] = *e
	return nil
}

// GetByID reads from the transaction snapshot when ctx carries one, like a
// repeatable-read transaction would.
func (f *fakeEvents) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	rows := f.rows
	if snap, ok := ctx.Value(snapshotKey{}).(map[uint64]model.Event); ok {
		rows = snap
	}
	e, ok := rows[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return &e, nil
}

func (f *fakeEvents) sorted(keep func(model.Event) bool) []model.Event {
	out := []model.Event{}
	for _, e := range f.rows {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f *fakeEvents) List(context.Context) ([]model.Event, error) {
	return f.sorted(func(model.Event) bool { return true }), nil
}

func (f *fakeEvents) ListByOwner(_ context.Context, ownerID uint64) ([]model.Event, error) {
	return f.sorted(func(e model.Event) bool { return e.UserID == ownerID }), nil
}

func (f *fakeEvents) Patch(_ context.Context, id uint64, p model.EventPatch, at time.Time) error {
	e, ok := f.rows[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.TotalSeats != nil {
		e.TotalSeats = *p.TotalSeats
	}
	if p.AvailableSeats != nil {
		e.AvailableSeats = *p.AvailableSeats
	}
	if p.Price != nil {
		e.Price = *p.Price
	}
	if p.Img != nil {
		e.Img = *p.Img
	}
	e.UpdatedAt = at
	f.rows[id] = e
	return nil
}

func (f *fakeEvents) Delete(_ context.Context, id uint64) error {
	if _, ok := f.rows[id]; !ok {
		return repository.ErrEventNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeEvents) DecrementSeats(_ context.Context, id uint64, qty int, at time.Time) error {
	if f.failDecrement != nil {
		return f.failDecrement
	}
	if f.lostRaceTo != nil {
		return repository.ErrInsufficientSeats
	}
	e, ok := f.rows[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	if e.AvailableSeats < qty {
		return repository.ErrInsufficientSeats
	}
	e.AvailableSeats -= qty
	e.UpdatedAt = at
	f.rows[id] = e
	return nil
}

func (f *fakeEvents) IncrementSeats(_ context.Context, id uint64, qty int, at time.Time) (bool, error) {
	e, ok := f.rows[id]
	if !ok {
		return false, nil
	}
	e.AvailableSeats += qty
	e.UpdatedAt = at
	f.rows[id] = e
	return true, nil
}

type fakeBookings struct {
	rows   map[uint64]model.Booking
	nextID uint64
	events *fakeEvents
}

func newFakeBookings(events *fakeEvents, bookings ...model.Booking) *fakeBookings {
	f := &fakeBookings{rows: map[uint64]model.Booking{}, events: events}
	for _, b := range bookings {
		f.rows[b.ID] = b
		if b.ID > f.nextID {
			f.nextID = b.ID
		}
	}
	return f
}

func (f *fakeBookings) Create(_ context.Context, b *model.Booking) error {
	f.nextID++
	b.ID = f.nextID
	f.rows[b.ID] = *b
	return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	b, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (f *fakeBookings) detail(b model.Booking) model.BookingDetail {
	d := model.BookingDetail{Booking: b}
	if e, ok := f.events.rows[b.EventID]; ok {
		d.Event = &model.EventSummary{ID: e.ID, Title: e.Title, Location: e.Location, Date: e.Date, Price: e.Price, Img: e.Img}
	}
	return d
}

func (f *fakeBookings) GetDetail(_ context.Context, id uint64) (*model.BookingDetail, error) {
	b, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	d := f.detail(b)
	return &d, nil
}

func (f *fakeBookings) ListByUser(_ context.Context, userID uint64) ([]model.BookingDetail, error) {
	out := []model.BookingDetail{}
	for _, b := range f.rows {
		if b.UserID == userID {
			out = append(out, f.detail(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeBookings) MarkCancelled(_ context.Context, id uint64, at time.Time) error {
	b, ok := f.rows[id]
	if !ok || b.Status != model.BookingConfirmed {
		return repository.ErrNotConfirmed
	}
	b.Status = model.BookingCancelled
	b.UpdatedAt = at
	f.rows[id] = b
	return nil
}

// fakeTx snapshots both stores and restores them when fn fails.
type fakeTx struct {
	events   *fakeEvents
	bookings *fakeBookings
}

func (t fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	evSnap := make(map[uint64]model.Event, len(t.events.rows))
	for k, v := range t.events.rows {
		evSnap[k] = v
	}
	bkSnap := make(map[uint64]model.Booking, len(t.bookings.rows))
	for k, v := range t.bookings.rows {
		bkSnap[k] = v
	}
	read := make(map[uint64]model.Event, len(evSnap))
	for k, v := range evSnap {
		read[k] = v
	}
	if err := fn(context.WithValue(ctx, snapshotKey{}, read)); err != nil {
		t.events.rows = evSnap
		t.bookings.rows = bkSnap
		if n := t.events.lostRaceTo; n != nil {
			for id, e := range t.events.rows {
				e.AvailableSeats = *n
				t.events.rows[id] = e
			}
		}
		return err
	}
	return nil
}

var errStore = errors.New("store unavailable")

func errInsufficient() error { return repository.ErrInsufficientSeats }
