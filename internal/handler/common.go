package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/queue"
	"github.com/iliyamo/event-ticket-booking/internal/service"
)

// CacheGroupEvents names the response cache group holding public event
// reads. Every write that changes an event or its seats drops it.
const CacheGroupEvents = "events"

const (
	requestTimeout = 5 * time.Second
	publishTimeout = 3 * time.Second
)

// Invalidator drops cached responses. *middleware.ResponseCache satisfies
// it, including as a nil pointer.
type Invalidator interface {
	Invalidate(ctx context.Context, groups ...string) error
}

// BookingPublisher is the part of queue.Publisher the handlers use.
type BookingPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// getUserID extracts the user_id from echo.Context and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		if t != 0 {
			return t, nil
		}
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	return id, err == nil && id > 0
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// serviceError maps a service failure to its HTTP status. Anything that is
// not a classified service error is logged and reported as a 500 with
// fallback as the message.
func serviceError(c echo.Context, op string, err error, fallback string) error {
	switch service.KindOf(err) {
	case service.KindValidation, service.KindConflict:
		return fail(c, http.StatusBadRequest, service.MessageOf(err))
	case service.KindNotFound:
		return fail(c, http.StatusNotFound, service.MessageOf(err))
	case service.KindForbidden:
		return fail(c, http.StatusForbidden, service.MessageOf(err))
	}
	logrus.WithFields(logrus.Fields{
		"op":         op,
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
	}).WithError(err).Error("request failed")
	return fail(c, http.StatusInternalServerError, fallback)
}

// invalidate drops cached groups after a committed write. Failures only
// shorten cache freshness, so they are logged.
func invalidate(ctx context.Context, inv Invalidator, groups ...string) {
	if inv == nil {
		return
	}
	if err := inv.Invalidate(context.WithoutCancel(ctx), groups...); err != nil {
		logrus.WithError(err).WithField("groups", groups).Warn("cache invalidation failed")
	}
}

// publish sends ev after the write it describes has committed. The request
// has already succeeded, so a broker failure is logged and swallowed.
func publish(ctx context.Context, p BookingPublisher, ev queue.BookingEvent) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"type":       ev.Type,
			"booking_id": ev.BookingID,
		}).Warn("publish booking event failed")
	}
}
