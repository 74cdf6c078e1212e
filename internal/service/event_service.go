package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-ticket-booking/internal/clock"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// EventService implements event administration. Writes are restricted to
// the admin who created the event.
type EventService struct {
	events EventStore
	clock  clock.Clock
}

func NewEventService(events EventStore, clk clock.Clock) *EventService {
	return &EventService{events: events, clock: clk}
}

// EventInput carries the fields accepted on create. Seat availability is
// not an input: it always starts at TotalSeats.
type EventInput struct {
	Title       string
	Description string
	Location    string
	Date        time.Time
	TotalSeats  int
	Price       float64
	Img         string
}

func (in *EventInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Img = strings.TrimSpace(in.Img)
}

func (in EventInput) validate() error {
	switch {
	case in.Title == "":
		return validation("title is required")
	case in.Description == "":
		return validation("description is required")
	case in.Location == "":
		return validation("location is required")
	case in.Date.IsZero():
		return validation("date is required")
	case in.Img == "":
		return validation("img is required")
	case in.TotalSeats < 1:
		return validation("totalSeats must be at least 1")
	case in.Price < 0:
		return validation("price must be at least 0")
	}
	return nil
}

// Create stores a new event owned by ownerID.
func (s *EventService) Create(ctx context.Context, ownerID uint64, in EventInput) (*model.Event, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	ev := &model.Event{
		UserID:         ownerID,
		Title:          in.Title,
		Description:    in.Description,
		Location:       in.Location,
		Date:           in.Date.UTC(),
		TotalSeats:     in.TotalSeats,
		AvailableSeats: in.TotalSeats,
		Price:          in.Price,
		Img:            in.Img,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.events.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

// List returns all events, newest first.
func (s *EventService) List(ctx context.Context) ([]model.Event, error) {
	list, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return list, nil
}

// ListByOwner returns the events created by ownerID, newest first.
func (s *EventService) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Event, error) {
	list, err := s.events.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list events for owner %d: %w", ownerID, err)
	}
	return list, nil
}

func (s *EventService) Get(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := s.events.GetByID(ctx, id)
	if errors.Is(err, repository.ErrEventNotFound) {
		return nil, notFound("Event not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", id, err)
	}
	return ev, nil
}

func (s *EventService) owned(ctx context.Context, id, requesterID uint64) (*model.Event, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.UserID != requesterID {
		return nil, forbidden("Unauthorized")
	}
	return ev, nil
}

func validatePatch(p *model.EventPatch) error {
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"title", p.Title}, {"description", p.Description}, {"location", p.Location}, {"img", p.Img},
	} {
		if f.v == nil {
			continue
		}
		*f.v = strings.TrimSpace(*f.v)
		if *f.v == "" {
			return validation(f.name + " is required")
		}
	}
	if p.Date != nil && p.Date.IsZero() {
		return validation("date is required")
	}
	if p.TotalSeats != nil && *p.TotalSeats < 1 {
		return validation("totalSeats must be at least 1")
	}
	if p.AvailableSeats != nil && *p.AvailableSeats < 0 {
		return validation("availableSeats must be at least 0")
	}
	if p.Price != nil && *p.Price < 0 {
		return validation("price must be at least 0")
	}
	return nil
}

// Update applies p to an event owned by requesterID and returns the stored
// result. Each patched value is range checked on its own; availableSeats
// is not reconciled with existing bookings.
func (s *EventService) Update(ctx context.Context, id, requesterID uint64, p model.EventPatch) (*model.Event, error) {
	if _, err := s.owned(ctx, id, requesterID); err != nil {
		return nil, err
	}
	if err := validatePatch(&p); err != nil {
		return nil, err
	}
	if err := s.events.Patch(ctx, id, p, s.clock.Now()); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, notFound("Event not found", err)
		}
		return nil, fmt.Errorf("patch event %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete hard deletes an event owned by requesterID. Its bookings are kept.
func (s *EventService) Delete(ctx context.Context, id, requesterID uint64) error {
	if _, err := s.owned(ctx, id, requesterID); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return notFound("Event not found", err)
		}
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	return nil
}
