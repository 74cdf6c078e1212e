// Package router wires handlers and middleware onto echo routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session endpoints under /auth. Only checkauth
// needs an existing access token; signout works from the refresh cookie
// alone so a user with an expired access token can still log out.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/auth")
	g.POST("/signup", a.Signup)
	g.POST("/signin", a.Signin)
	g.POST("/refresh", a.Refresh)
	g.POST("/signout", a.Signout)
	g.GET("/checkauth", a.CheckAuth, middleware.JWTAuth(jwtSecret))
}
