package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
)

// RegisterBookings registers /booking. Every route requires a valid
// access token; any role may book.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/booking", middleware.JWTAuth(jwtSecret))
	g.POST("", h.Create)
	g.POST("/", h.Create)
	g.GET("", h.List)
	g.GET("/", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id/cancel", h.Cancel)
}
