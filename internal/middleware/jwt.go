package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/utils"
)

// TokenCookie is the HTTP-only cookie that carries the access token.
const TokenCookie = "token"

// JWTAuth validates the access token and injects its subject, role and
// name into the echo context. The token is read from the "token" cookie
// first and from an "Authorization: Bearer" header otherwise.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Not authorized, no token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Not authorized, invalid token"})
			}
			// ParseAccessToken already checked the subject.
			id, _ := claims.UserID()
			c.Set(CtxUserID, id)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxName, claims.Name)
			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(TokenCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
