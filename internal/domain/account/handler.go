package account

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/web"
)

type Handler struct {
	svc      *Service
	sessions *auth.SessionManager
	logger   zerolog.Logger
}

func NewHandler(svc *Service, sessions *auth.SessionManager, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// RegisterRoutes mounts the account pages. limited wraps the credential
// endpoints, typically with a stricter rate limit.
func (h *Handler) RegisterRoutes(e *echo.Echo, limited ...echo.MiddlewareFunc) {
	e.GET("/", h.Index)
	e.GET("/login/:role", h.LoginPage)
	e.POST("/login/:role", h.Login, limited...)
	e.GET("/register/patient", h.RegisterPage)
	e.POST("/register/patient", h.Register, limited...)
	e.GET("/logout", h.Logout)
}

type entryPoint struct {
	Role     auth.Role `json:"role"`
	Login    string    `json:"login"`
	Register string    `json:"register,omitempty"`
}

func (h *Handler) Index(c echo.Context) error {
	entries := make([]entryPoint, 0, len(auth.Roles()))
	for _, r := range auth.Roles() {
		ep := entryPoint{Role: r, Login: r.LoginPath()}
		if r == auth.RolePatient {
			ep.Register = "/register/patient"
		}
		entries = append(entries, ep)
	}
	body := map[string]interface{}{"roles": entries}
	if s, ok := auth.SessionFromContext(c.Request().Context()); ok {
		body["session"] = s
	}
	return web.Render(c, body)
}

func (h *Handler) LoginPage(c echo.Context) error {
	role, err := auth.ParseRole(c.Param("role"))
	if err != nil {
		return web.Redirect(c, "/", web.LevelDanger, "Unknown role")
	}
	return web.Render(c, map[string]interface{}{
		"role":   role,
		"action": role.LoginPath(),
		"fields": []string{"email", "password"},
	})
}

type loginForm struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var f loginForm
	if err := c.Bind(&f); err != nil {
		return web.FormError(err, "invalid login form")
	}

	sess, err := h.svc.Login(c.Request().Context(), c.Param("role"), f.Email, f.Password)
	switch {
	case errors.Is(err, auth.ErrUnknownRole):
		return web.Redirect(c, "/", web.LevelDanger, "Unknown role")
	case errors.Is(err, ErrInvalidCredentials):
		role, _ := auth.ParseRole(c.Param("role"))
		return web.Redirect(c, role.LoginPath(), web.LevelDanger, "Invalid credentials")
	case err != nil:
		h.logger.Error().Err(err).Str("role", c.Param("role")).Msg("login lookup failed")
		return web.Fail(c, http.StatusServiceUnavailable, "service unavailable")
	}

	if err := h.sessions.Issue(c, sess); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not start session")
	}
	return web.Redirect(c, sess.Role.DashboardPath(), web.LevelSuccess, fmt.Sprintf("Logged in as %s", sess.Role))
}

func (h *Handler) RegisterPage(c echo.Context) error {
	return web.Render(c, map[string]interface{}{
		"action": "/register/patient",
		"fields": []string{"name", "email", "password", "phone", "age"},
	})
}

func (h *Handler) Register(c echo.Context) error {
	var reg Registration
	if err := c.Bind(&reg); err != nil {
		return web.FormError(err, "invalid registration form")
	}

	_, err := h.svc.RegisterPatient(c.Request().Context(), reg)
	switch {
	case errors.Is(err, ErrAccountExists):
		return web.Redirect(c, "/register/patient", web.LevelDanger, "Account already exists")
	case errors.Is(err, ErrMissingField):
		return web.Redirect(c, "/register/patient", web.LevelDanger, "Name, email and password are required")
	case err != nil:
		h.logger.Error().Err(err).Msg("registration failed")
		return web.Fail(c, http.StatusServiceUnavailable, "service unavailable")
	}
	return web.Redirect(c, auth.RolePatient.LoginPath(), web.LevelSuccess, "Registration successful. Please log in.")
}

func (h *Handler) Logout(c echo.Context) error {
	h.sessions.Clear(c)
	return web.Redirect(c, "/", web.LevelInfo, "Logged out")
}
