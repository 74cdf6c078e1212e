package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/config"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/utils"
)

// RefreshCookie carries the raw refresh token. It is scoped to /auth so it
// is only sent to the endpoints that consume it.
const RefreshCookie = "refresh_token"

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// TokenStore is implemented by repository.TokenRepo.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID uint64, at time.Time) error
}

// AuthHandler serves /auth: signup, signin, refresh, signout and checkauth.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

type signupReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"` // user | admin
}

type signinReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// issueSession creates an access/refresh pair for u, stores the refresh
// hash and sets both cookies. The access token is also returned in the
// body for clients that send it as a Bearer header.
func (h *AuthHandler) issueSession(ctx context.Context, c echo.Context, u *model.User) (utils.AccessToken, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, u.Name, h.Cfg.AccessTTLMin)
	if err != nil {
		return utils.AccessToken{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return utils.AccessToken{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return utils.AccessToken{}, err
	}
	c.SetCookie(h.cookie(middleware.TokenCookie, access.Token, "/", access.Exp))
	c.SetCookie(h.cookie(RefreshCookie, refresh.Raw, "/auth", refresh.Exp))
	return access, nil
}

func (h *AuthHandler) cookie(name, value, path string, exp time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if exp.IsZero() {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	}
	// Cross-site SPA deployments need SameSite=None, which browsers only
	// accept on secure cookies.
	if h.Cfg.CookieSecure {
		ck.SameSite = http.SameSiteNoneMode
	}
	return ck
}

func sessionBody(msg string, u *model.User, access utils.AccessToken) echo.Map {
	return echo.Map{
		"success":   true,
		"message":   msg,
		"user":      u,
		"token":     access.Token,
		"expiresAt": access.Exp,
	}
}

// Signup handles POST /auth/signup: create the user and sign them in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "All fields are required")
	}
	if !strings.Contains(req.Email, "@") || !strings.Contains(req.Email, ".") {
		return fail(c, http.StatusBadRequest, "Invalid email format")
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != model.RoleAdmin {
		role = model.RoleUser
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if errors.Is(err, utils.ErrPasswordTooShort) {
		return fail(c, http.StatusBadRequest, "Password must be at least 6 characters")
	}
	if err != nil {
		logrus.WithError(err).Error("hash password failed")
		return fail(c, http.StatusInternalServerError, "Signup failed")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	now := time.Now().UTC()
	u := &model.User{Name: req.Name, Email: req.Email, PasswordHash: hash, Role: role, CreatedAt: now, UpdatedAt: now}
	if err := h.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "User already exists")
		}
		logrus.WithError(err).Error("create user failed")
		return fail(c, http.StatusInternalServerError, "Signup failed")
	}

	access, err := h.issueSession(ctx, c, u)
	if err != nil {
		logrus.WithError(err).WithField("user_id", u.ID).Error("issue session failed")
		return fail(c, http.StatusInternalServerError, "Signup failed")
	}
	return c.JSON(http.StatusCreated, sessionBody("User registered successfully", u, access))
}

// Signin handles POST /auth/signin.
func (h *AuthHandler) Signin(c echo.Context) error {
	var req signinReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "All fields are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fail(c, http.StatusUnauthorized, "Invalid credentials")
		}
		logrus.WithError(err).Error("load user failed")
		return fail(c, http.StatusInternalServerError, "Signin failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	}

	access, err := h.issueSession(ctx, c, u)
	if err != nil {
		logrus.WithError(err).WithField("user_id", u.ID).Error("issue session failed")
		return fail(c, http.StatusInternalServerError, "Signin failed")
	}
	return c.JSON(http.StatusOK, sessionBody("Login successful", u, access))
}

func refreshFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(RefreshCookie); err == nil && strings.TrimSpace(ck.Value) != "" {
		return strings.TrimSpace(ck.Value)
	}
	var req refreshReq
	_ = c.Bind(&req)
	return strings.TrimSpace(req.RefreshToken)
}

// Refresh handles POST /auth/refresh. The presented token is consumed and a
// fresh pair is issued, so each refresh token works once.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := refreshFromRequest(c)
	if raw == "" {
		return fail(c, http.StatusUnauthorized, "Refresh token required")
	}
	hash := utils.HashRefreshRaw(raw)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	now := time.Now().UTC()
	userID, err := h.Tokens.Consume(ctx, hash, now)
	if err != nil {
		if !errors.Is(err, repository.ErrInvalidRefresh) {
			logrus.WithError(err).Error("consume refresh failed")
		}
		return fail(c, http.StatusUnauthorized, "Invalid refresh token")
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fail(c, http.StatusUnauthorized, "Invalid refresh token")
		}
		logrus.WithError(err).Error("load user failed")
		return fail(c, http.StatusInternalServerError, "Refresh failed")
	}
	access, err := h.issueSession(ctx, c, u)
	if err != nil {
		logrus.WithError(err).WithField("user_id", u.ID).Error("issue session failed")
		return fail(c, http.StatusInternalServerError, "Refresh failed")
	}
	return c.JSON(http.StatusOK, sessionBody("Session refreshed", u, access))
}

// Signout handles POST /auth/signout. It revokes the presented refresh
// token, or every refresh token of the caller when ?all=true is given with
// a valid access token, and clears both cookies either way.
func (h *AuthHandler) Signout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	now := time.Now().UTC()

	if c.QueryParam("all") == "true" {
		if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, accessFromRequest(c)); err == nil {
			uid, _ := claims.UserID()
			if err := h.Tokens.RevokeAllForUser(ctx, uid, now); err != nil {
				logrus.WithError(err).WithField("user_id", uid).Error("revoke all refresh failed")
				return fail(c, http.StatusInternalServerError, "Signout failed")
			}
		}
	}
	if raw := refreshFromRequest(c); raw != "" {
		if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw), now); err != nil {
			logrus.WithError(err).Error("revoke refresh failed")
			return fail(c, http.StatusInternalServerError, "Signout failed")
		}
	}

	c.SetCookie(h.cookie(middleware.TokenCookie, "", "/", time.Time{}))
	c.SetCookie(h.cookie(RefreshCookie, "", "/auth", time.Time{}))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Logged out successfully"})
}

func accessFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(middleware.TokenCookie); err == nil {
		return ck.Value
	}
	return strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
}

// CheckAuth handles GET /auth/checkauth and returns the signed-in user.
func (h *AuthHandler) CheckAuth(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Not authorized")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fail(c, http.StatusUnauthorized, "Not authorized")
		}
		logrus.WithError(err).Error("load user failed")
		return fail(c, http.StatusInternalServerError, "Server error")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": u})
}
