package scheduling

import (
	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/recordstore"
)

const (
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusCancelled = "Cancelled"
)

// BookedOnLayout is the wall-clock format of Appointment.BookedOn.
const BookedOnLayout = "2006-01-02 15:04:05"

// MaxStatusLength bounds free-text statuses.
const MaxStatusLength = 64

// Appointment is a row of the appointments table. The doctor fields are a
// copy taken at booking time.
type Appointment struct {
	ID             uuid.UUID `json:"id"`
	Position       int       `json:"position"`
	PatientEmail   string    `json:"patient_email"`
	DoctorEmail    string    `json:"doctor_email"`
	DoctorName     string    `json:"doctor_name"`
	Specialization string    `json:"specialization"`
	AvailableTime  string    `json:"available_time"`
	BookedOn       string    `json:"booked_on"`
	Status         string    `json:"status"`
}

func AppointmentFromRow(r recordstore.Row) *Appointment {
	return &Appointment{
		ID:             r.ID,
		Position:       r.Position,
		PatientEmail:   r.Get("patient_email"),
		DoctorEmail:    r.Get("doctor_email"),
		DoctorName:     r.Get("doctor_name"),
		Specialization: r.Get("specialization"),
		AvailableTime:  r.Get("available_time"),
		BookedOn:       r.Get("booked_on"),
		Status:         r.Get("status"),
	}
}

// Values returns the row values in header order.
func (a *Appointment) Values() []string {
	return []string{a.PatientEmail, a.DoctorEmail, a.DoctorName, a.Specialization, a.AvailableTime, a.BookedOn, a.Status}
}

// DisplayStatus shows an unset status as Pending.
func (a *Appointment) DisplayStatus() string {
	if a.Status == "" {
		return StatusPending
	}
	return a.Status
}

// NurseView is an appointment with both parties' names resolved.
type NurseView struct {
	ID             uuid.UUID `json:"id"`
	Position       int       `json:"position"`
	PatientEmail   string    `json:"patient_email"`
	PatientName    string    `json:"patient_name"`
	DoctorEmail    string    `json:"doctor_email"`
	DoctorName     string    `json:"doctor_name"`
	Specialization string    `json:"specialization"`
	AvailableTime  string    `json:"available_time"`
	BookedOn       string    `json:"booked_on"`
	Status         string    `json:"status"`
}

// StatusUpdate asks for the status of one appointment to change. DoctorEmail
// names the owning doctor and is required from doctors.
type StatusUpdate struct {
	AppointmentID uuid.UUID
	Status        string
	DoctorEmail   string
}
