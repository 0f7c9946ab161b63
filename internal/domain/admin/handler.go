package admin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/web"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	admin := auth.RequireRole(auth.RoleAdmin)
	e.GET("/dashboard/admin", h.Dashboard, admin)
	e.POST("/add_staff", h.AddStaff, admin)
	e.GET("/view/patients", h.ListPatients, admin)
}

func (h *Handler) Dashboard(c echo.Context) error {
	return web.Render(c, h.svc.Dashboard(c.Request().Context()))
}

func (h *Handler) AddStaff(c echo.Context) error {
	const back = "/dashboard/admin"

	var req StaffRequest
	if err := c.Bind(&req); err != nil {
		return web.FormError(err, "invalid staff form")
	}

	staff, err := h.svc.AddStaff(c.Request().Context(), req)
	switch {
	case errors.Is(err, ErrUnknownStaffRole):
		return web.Redirect(c, back, web.LevelDanger, fmt.Sprintf("Unknown staff role %q", req.Role))
	case errors.Is(err, ErrMissingField):
		return web.Redirect(c, back, web.LevelDanger, "Name, email and password are required")
	case errors.Is(err, ErrStaffExists):
		return web.Redirect(c, back, web.LevelDanger, "A staff member with that email already exists")
	case err != nil:
		return web.Redirect(c, back, web.LevelDanger, fmt.Sprintf("Error adding staff: %v", err))
	}
	return web.Redirect(c, back, web.LevelSuccess, fmt.Sprintf("%s added successfully!", title(string(staff.Role))))
}

func (h *Handler) ListPatients(c echo.Context) error {
	p := pagination.FromContext(c)
	patients, total := h.svc.ListPatients(c.Request().Context(), p)
	return web.Render(c, pagination.NewResponse(patients, total, p).WithLinks(c.Request().URL.Path))
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
