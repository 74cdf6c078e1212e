package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/service"
)

// EventAPI is implemented by service.EventService.
type EventAPI interface {
	Create(ctx context.Context, ownerID uint64, in service.EventInput) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Event, error)
	Get(ctx context.Context, id uint64) (*model.Event, error)
	Update(ctx context.Context, id, requesterID uint64, p model.EventPatch) (*model.Event, error)
	Delete(ctx context.Context, id, requesterID uint64) error
}

// EventHandler serves /event. Reads are public; writes are admin-only and
// further restricted to the event's creator by the service.
type EventHandler struct {
	Events EventAPI
	Cache  Invalidator
}

func NewEventHandler(e EventAPI, cache Invalidator) *EventHandler {
	if e == nil {
		panic("nil event service passed to NewEventHandler")
	}
	return &EventHandler{Events: e, Cache: cache}
}

var eventDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// eventDate decodes the date formats browsers send from date and
// datetime-local inputs as well as full RFC 3339 timestamps. Values without
// a zone are taken as UTC.
type eventDate struct{ time.Time }

func (d *eventDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised date %q", s)
}

type createEventReq struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Date        eventDate `json:"date"`
	TotalSeats  flexInt   `json:"totalSeats"`
	Price       flexFloat `json:"price"`
	Img         string    `json:"img"`
}

type updateEventReq struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Location       *string    `json:"location"`
	Date           *eventDate `json:"date"`
	TotalSeats     *flexInt   `json:"totalSeats"`
	AvailableSeats *flexInt   `json:"availableSeats"`
	Price          *flexFloat `json:"price"`
	Img            *string    `json:"img"`
}

func (r updateEventReq) patch() model.EventPatch {
	p := model.EventPatch{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Img:         r.Img,
	}
	if r.TotalSeats != nil {
		n := int(*r.TotalSeats)
		p.TotalSeats = &n
	}
	if r.AvailableSeats != nil {
		n := int(*r.AvailableSeats)
		p.AvailableSeats = &n
	}
	if r.Price != nil {
		v := float64(*r.Price)
		p.Price = &v
	}
	if r.Date != nil {
		t := r.Date.Time
		p.Date = &t
	}
	return p
}

// Create handles POST /event/create-event.
func (h *EventHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Not authorized")
	}
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ev, err := h.Events.Create(ctx, uid, service.EventInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Date:        req.Date.Time,
		TotalSeats:  int(req.TotalSeats),
		Price:       float64(req.Price),
		Img:         req.Img,
	})
	if err != nil {
		return serviceError(c, "event.create", err, "Failed to create event")
	}
	invalidate(ctx, h.Cache, CacheGroupEvents)
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Event created successfully", "data": ev})
}

// List handles GET /event/get-events.
func (h *EventHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	events, err := h.Events.List(ctx)
	if err != nil {
		return serviceError(c, "event.list", err, "Server error")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(events), "events": events})
}

// Get handles GET /event/get-events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid event ID")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ev, err := h.Events.Get(ctx, id)
	if err != nil {
		return serviceError(c, "event.get", err, "Server error")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": ev})
}

// ListMine handles GET /event/get-admin-events.
func (h *EventHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Not authorized")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	events, err := h.Events.ListByOwner(ctx, uid)
	if err != nil {
		return serviceError(c, "event.list_mine", err, "Server error")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "events": events})
}

// Update handles PUT /event/update-event/:id.
func (h *EventHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Not authorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid event ID")
	}
	var req updateEventReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ev, err := h.Events.Update(ctx, id, uid, req.patch())
	if err != nil {
		return serviceError(c, "event.update", err, "Failed to update event")
	}
	invalidate(ctx, h.Cache, CacheGroupEvents)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Event updated successfully", "data": ev})
}

// Delete handles DELETE /event/delete-event/:id.
func (h *EventHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Not authorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid event ID")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Events.Delete(ctx, id, uid); err != nil {
		return serviceError(c, "event.delete", err, "Failed to delete event")
	}
	invalidate(ctx, h.Cache, CacheGroupEvents)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Event deleted successfully"})
}
