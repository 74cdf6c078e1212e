package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/queue"
	"github.com/iliyamo/event-ticket-booking/internal/service"
)

// BookingAPI is implemented by service.BookingService.
type BookingAPI interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*model.BookingReceipt, error)
	ListBookings(ctx context.Context, userID uint64) ([]model.BookingDetail, error)
	GetBooking(ctx context.Context, id, requesterID uint64) (*model.BookingDetail, error)
	CancelBooking(ctx context.Context, id, requesterID uint64) (*model.Booking, error)
}

// BookingHandler serves /booking. Every route requires authentication.
type BookingHandler struct {
	Bookings  BookingAPI
	Publisher BookingPublisher
	Cache     Invalidator
}

func NewBookingHandler(b BookingAPI, p BookingPublisher, cache Invalidator) *BookingHandler {
	if b == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b, Publisher: p, Cache: cache}
}

type createBookingReq struct {
	EventID  flexID  `json:"eventId"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Mobile   string  `json:"mobile"`
	Quantity flexInt `json:"quantity"`
}

// Create handles POST /booking/.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Not authorized")
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	receipt, err := h.Bookings.CreateBooking(ctx, service.CreateBookingInput{
		EventID:     uint64(req.EventID),
		Name:        req.Name,
		Email:       req.Email,
		Mobile:      req.Mobile,
		Quantity:    int(req.Quantity),
		RequesterID: uid,
	})
	if err != nil {
		return serviceError(c, "booking.create", err, "Internal server error during booking")
	}

	invalidate(ctx, h.Cache, CacheGroupEvents)
	publish(ctx, h.Publisher, queue.ConfirmedEvent(receipt))

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Booking confirmed successfully",
		"data":    receipt,
	})
}

// List handles GET /booking/.
func (h *BookingHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Not authorized")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	list, err := h.Bookings.ListBookings(ctx, uid)
	if err != nil {
		return serviceError(c, "booking.list", err, "Error fetching bookings")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(list), "data": list})
}

// Get handles GET /booking/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Not authorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid booking ID")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	d, err := h.Bookings.GetBooking(ctx, id, uid)
	if err != nil {
		return serviceError(c, "booking.get", err, "Invalid booking ID or server error")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": d})
}

// Cancel handles PUT /booking/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Not authorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "Invalid booking ID")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	b, err := h.Bookings.CancelBooking(ctx, id, uid)
	if err != nil {
		return serviceError(c, "booking.cancel", err, "Error cancelling booking")
	}

	invalidate(ctx, h.Cache, CacheGroupEvents)
	publish(ctx, h.Publisher, queue.CancelledEvent(b))

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Booking cancelled successfully"})
}
