// Package scheduling books appointments and moves them through their
// statuses.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/directory"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/recordstore"
)

var (
	ErrDoctorRequired      = errors.New("doctor email is required")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrNotOwner            = errors.New("appointment belongs to another doctor")
	ErrForbidden           = errors.New("role may not update appointments")
)

type Service struct {
	appointments AppointmentRepository
	store        recordstore.Store
	dir          *directory.Directory
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(appts AppointmentRepository, store recordstore.Store, dir *directory.Directory, logger zerolog.Logger) *Service {
	return &Service{appointments: appts, store: store, dir: dir, logger: logger, now: time.Now}
}

// Book creates a Pending appointment for patientEmail with the doctor found
// by doctorEmail. The doctor lookup fails loudly: a backend error is never
// reported as an unknown doctor.
func (s *Service) Book(ctx context.Context, patientEmail, doctorEmail string) (*Appointment, error) {
	if strings.TrimSpace(doctorEmail) == "" {
		return nil, ErrDoctorRequired
	}

	row, err := s.dir.FindByEmail(ctx, recordstore.Doctors, doctorEmail)
	if errors.Is(err, directory.ErrNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find doctor: %w", err)
	}
	doc := directory.DoctorFromRow(row)

	a := &Appointment{
		PatientEmail:   strings.TrimSpace(patientEmail),
		DoctorEmail:    strings.TrimSpace(doc.Email),
		DoctorName:     doc.Name,
		Specialization: doc.Specialization,
		AvailableTime:  doc.AvailableTime,
		BookedOn:       s.now().Format(BookedOnLayout),
		Status:         StatusPending,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logger.Info().Str("appointment_id", a.ID.String()).Msg("appointment booked")
	return a, nil
}

func (s *Service) all(ctx context.Context) []*Appointment {
	appts, err := s.appointments.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("table", string(recordstore.Appointments)).Msg("appointment fetch failed, showing empty list")
		return []*Appointment{}
	}
	return appts
}

// ListForPatient returns the patient's appointments in booking order.
func (s *Service) ListForPatient(ctx context.Context, email string) []*Appointment {
	out := []*Appointment{}
	for _, a := range s.all(ctx) {
		if directory.SameEmail(a.PatientEmail, email) {
			out = append(out, a)
		}
	}
	return out
}

// ListForDoctor returns the doctor's appointments in booking order. Unset
// statuses are shown as Pending.
func (s *Service) ListForDoctor(ctx context.Context, email string) []*Appointment {
	out := []*Appointment{}
	for _, a := range s.all(ctx) {
		if directory.SameEmail(a.DoctorEmail, email) {
			a.Status = a.DisplayStatus()
			out = append(out, a)
		}
	}
	return out
}

// ListForNurse returns every appointment with patient and doctor names.
// The patient name falls back to the email. The doctor name is taken from
// the appointment, then the doctors table, then the email.
func (s *Service) ListForNurse(ctx context.Context) []NurseView {
	appts := s.all(ctx)
	if len(appts) == 0 {
		return []NurseView{}
	}
	patients := directory.NameIndex(recordstore.FetchAllOrEmpty(ctx, s.store, recordstore.Patients, s.logger))
	doctors := directory.NameIndex(recordstore.FetchAllOrEmpty(ctx, s.store, recordstore.Doctors, s.logger))

	out := make([]NurseView, 0, len(appts))
	for _, a := range appts {
		v := NurseView{
			ID:             a.ID,
			Position:       a.Position,
			PatientEmail:   a.PatientEmail,
			PatientName:    patients[directory.NormalizeEmail(a.PatientEmail)],
			DoctorEmail:    a.DoctorEmail,
			DoctorName:     a.DoctorName,
			Specialization: a.Specialization,
			AvailableTime:  a.AvailableTime,
			BookedOn:       a.BookedOn,
			Status:         a.Status,
		}
		if v.PatientName == "" {
			v.PatientName = a.PatientEmail
		}
		if v.DoctorName == "" {
			v.DoctorName = doctors[directory.NormalizeEmail(a.DoctorEmail)]
		}
		if v.DoctorName == "" {
			v.DoctorName = a.DoctorEmail
		}
		out = append(out, v)
	}
	return out
}

// NormalizeStatus trims status and checks its length.
func NormalizeStatus(status string) (string, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return "", fmt.Errorf("%w: status is empty", ErrInvalidStatus)
	}
	if len([]rune(status)) > MaxStatusLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidStatus, MaxStatusLength)
	}
	return status, nil
}

// UpdateStatus sets the status of one appointment. Doctors may only update
// their own appointments and must name themselves in the request; nurses may
// update any appointment.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Session, req StatusUpdate) (*Appointment, error) {
	status, err := NormalizeStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleDoctor && actor.Role != auth.RoleNurse {
		return nil, ErrForbidden
	}

	appt, err := s.find(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	if actor.Role == auth.RoleDoctor {
		if !directory.SameEmail(req.DoctorEmail, actor.Email) || !directory.SameEmail(appt.DoctorEmail, actor.Email) {
			return nil, ErrNotOwner
		}
	}

	if err := s.appointments.UpdateStatus(ctx, appt.ID, status); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("role", string(actor.Role)).
		Str("status", status).
		Msg("appointment status updated")
	appt.Status = status
	return appt, nil
}

func (s *Service) find(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appts, err := s.appointments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	for _, a := range appts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

// PatientHome is the patient dashboard.
type PatientHome struct {
	Patient      *directory.Patient `json:"patient"`
	Appointments []*Appointment     `json:"appointments"`
}

// BookingPage lists the doctors a patient can book.
type BookingPage struct {
	Patient *directory.Patient `json:"patient"`
	Doctors []directory.Doctor `json:"doctors"`
}

func (s *Service) profile(ctx context.Context, email string) *directory.Patient {
	row, err := s.dir.FindByEmail(ctx, recordstore.Patients, email)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			s.logger.Warn().Err(err).Str("table", string(recordstore.Patients)).Msg("patient profile fetch failed")
		}
		return nil
	}
	p := directory.PatientFromRow(row)
	return &p
}

func (s *Service) PatientHome(ctx context.Context, email string) PatientHome {
	return PatientHome{Patient: s.profile(ctx, email), Appointments: s.ListForPatient(ctx, email)}
}

func (s *Service) BookingPage(ctx context.Context, email string) BookingPage {
	return BookingPage{Patient: s.profile(ctx, email), Doctors: s.dir.Doctors(ctx)}
}
