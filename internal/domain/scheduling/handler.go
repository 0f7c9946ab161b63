package scheduling

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/recordstore"
	"github.com/clinic/clinic/internal/platform/web"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	patient := auth.RequireRole(auth.RolePatient)
	e.GET("/dashboard/patient", h.PatientDashboard, patient)
	e.GET("/book_appointment", h.BookingPage, patient)
	e.POST("/book_appointment", h.Book, patient)

	doctor := auth.RequireRole(auth.RoleDoctor)
	e.GET("/dashboard/doctor", h.DoctorDashboard, doctor)
	e.POST("/update_status/:id/:status", h.DoctorUpdateStatus, doctor)

	nurse := auth.RequireRole(auth.RoleNurse)
	e.GET("/dashboard/nurse", h.NurseDashboard, nurse)
	e.POST("/dashboard/nurse", h.NurseUpdateStatus, nurse)
}

func session(c echo.Context) auth.Session {
	s, _ := auth.SessionFromContext(c.Request().Context())
	return s
}

func (h *Handler) PatientDashboard(c echo.Context) error {
	return web.Render(c, h.svc.PatientHome(c.Request().Context(), session(c).Email))
}

func (h *Handler) BookingPage(c echo.Context) error {
	return web.Render(c, h.svc.BookingPage(c.Request().Context(), session(c).Email))
}

func (h *Handler) Book(c echo.Context) error {
	if _, err := c.FormParams(); err != nil {
		return web.FormError(err, "invalid booking form")
	}

	appt, err := h.svc.Book(c.Request().Context(), session(c).Email, c.FormValue("doctor_email"))
	switch {
	case errors.Is(err, ErrDoctorRequired):
		return web.Redirect(c, "/book_appointment", web.LevelDanger, "Please choose a doctor.")
	case errors.Is(err, ErrDoctorNotFound):
		return web.Redirect(c, "/book_appointment", web.LevelDanger, "Doctor not found!")
	case err != nil:
		return web.Redirect(c, "/book_appointment", web.LevelDanger, fmt.Sprintf("Error booking appointment: %v", err))
	}
	return web.Redirect(c, "/dashboard/patient", web.LevelSuccess,
		fmt.Sprintf("Appointment booked successfully with Dr. %s!", appt.DoctorName))
}

func (h *Handler) DoctorDashboard(c echo.Context) error {
	return web.Render(c, map[string]interface{}{
		"appointments": h.svc.ListForDoctor(c.Request().Context(), session(c).Email),
	})
}

func (h *Handler) DoctorUpdateStatus(c echo.Context) error {
	const back = "/dashboard/doctor"

	if _, err := c.FormParams(); err != nil {
		return web.FormError(err, "invalid status form")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return web.Redirect(c, back, web.LevelDanger, "Appointment not found.")
	}
	status, err := statusParam(c)
	if err != nil {
		return web.Redirect(c, back, web.LevelDanger, "Invalid status.")
	}

	appt, err := h.svc.UpdateStatus(c.Request().Context(), session(c), StatusUpdate{
		AppointmentID: id,
		Status:        status,
		DoctorEmail:   c.FormValue("doctor_email"),
	})
	if err != nil {
		return web.Redirect(c, back, web.LevelDanger, doctorUpdateMessage(err))
	}
	return web.Redirect(c, back, web.LevelSuccess, fmt.Sprintf("Appointment marked as %s", appt.Status))
}

// statusParam returns the :status path segment decoded. Echo matches on the
// raw path when the URL carries escapes such as %2F and leaves them in place.
func statusParam(c echo.Context) (string, error) {
	status := c.Param("status")
	if c.Request().URL.RawPath == "" {
		return status, nil
	}
	return url.PathUnescape(status)
}

func doctorUpdateMessage(err error) string {
	switch {
	case errors.Is(err, recordstore.ErrColumnNotFound):
		return "Couldn't find 'status' column!"
	case errors.Is(err, ErrAppointmentNotFound):
		return "Appointment not found."
	case errors.Is(err, ErrNotOwner):
		return "You can only update your own appointments."
	}
	return fmt.Sprintf("Error updating status: %v", err)
}

func (h *Handler) NurseDashboard(c echo.Context) error {
	return web.Render(c, map[string]interface{}{
		"appointments": h.svc.ListForNurse(c.Request().Context()),
	})
}

func (h *Handler) NurseUpdateStatus(c echo.Context) error {
	const back = "/dashboard/nurse"

	if _, err := c.FormParams(); err != nil {
		return web.FormError(err, "invalid status form")
	}
	id, err := uuid.Parse(c.FormValue("appointment_id"))
	if err != nil {
		return web.Redirect(c, back, web.LevelDanger, "Failed to update status: "+ErrAppointmentNotFound.Error())
	}

	_, err = h.svc.UpdateStatus(c.Request().Context(), session(c), StatusUpdate{
		AppointmentID: id,
		Status:        c.FormValue("status"),
	})
	if err != nil {
		if errors.Is(err, recordstore.ErrColumnNotFound) {
			return web.Redirect(c, back, web.LevelDanger, "Couldn't find 'status' column!")
		}
		return web.Redirect(c, back, web.LevelDanger, "Failed to update status: "+err.Error())
	}
	return web.Redirect(c, back, web.LevelSuccess, "Appointment status updated.")
}
