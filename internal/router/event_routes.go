package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// RegisterEvents registers /event. The public reads go through the
// response cache; writes and the admin listing require an admin token.
func RegisterEvents(e *echo.Echo, h *handler.EventHandler, jwtSecret string, cache *middleware.ResponseCache) {
	g := e.Group("/event")

	cached := cache.Middleware(handler.CacheGroupEvents)
	g.GET("/get-events", h.List, cached)
	g.GET("/get-events/:id", h.Get, cached)

	admin := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin)}
	g.POST("/create-event", h.Create, admin...)
	g.GET("/get-admin-events", h.ListMine, admin...)
	g.PUT("/update-event/:id", h.Update, admin...)
	g.DELETE("/delete-event/:id", h.Delete, admin...)
}
