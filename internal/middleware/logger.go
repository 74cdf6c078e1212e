package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestID ensures every request carries an X-Request-ID, generating a
// UUID when the client did not send one. The id is echoed on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
				c.Request().Header.Set(echo.HeaderXRequestID, id)
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// Logger writes one logrus entry per request once the handler returns.
func Logger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let echo's error handler write the response so the status is known.
				c.Error(err)
			}

			res := c.Response()
			req := c.Request()
			fields := logrus.Fields{
				"method":     req.Method,
				"path":       req.URL.Path,
				"route":      c.Path(),
				"status":     res.Status,
				"duration":   time.Since(start).String(),
				"client_ip":  c.RealIP(),
				"user_agent": req.UserAgent(),
				"request_id": res.Header().Get(echo.HeaderXRequestID),
			}
			if id, ok := UserID(c); ok {
				fields["user_id"] = id
			}
			entry := logrus.WithFields(fields)
			switch {
			case res.Status >= 500:
				entry.Error("Request failed")
			case res.Status >= 400:
				entry.Warn("Request rejected")
			default:
				entry.Info("Request processed")
			}
			return nil
		}
	}
}
