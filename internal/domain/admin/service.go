// Package admin provisions staff accounts and backs the admin pages.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/directory"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/recordstore"
	"github.com/clinic/clinic/pkg/pagination"
)

var (
	ErrUnknownStaffRole = errors.New("staff role must be doctor or nurse")
	ErrMissingField     = errors.New("missing required field")
	ErrStaffExists      = errors.New("staff member already exists")
	ErrAdminExists      = errors.New("admin already exists")
)

// StaffRequest is the add-staff form. Specialization and AvailableTime are
// only stored for doctors.
type StaffRequest struct {
	Role           string `form:"role" json:"role"`
	Name           string `form:"name" json:"name"`
	Email          string `form:"email" json:"email"`
	Password       string `form:"password" json:"password"`
	Specialization string `form:"specialization" json:"specialization"`
	Phone          string `form:"phone" json:"phone"`
	AvailableTime  string `form:"available_time" json:"available_time"`
}

// Staff is the result of a successful AddStaff.
type Staff struct {
	ID    string    `json:"id"`
	Role  auth.Role `json:"role"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Dashboard is everything the admin home page lists.
type Dashboard struct {
	Patients []directory.Patient `json:"patients"`
	Doctors  []directory.Doctor  `json:"doctors"`
	Nurses   []directory.Nurse   `json:"nurses"`
}

type Service struct {
	store  recordstore.Store
	dir    *directory.Directory
	logger zerolog.Logger
}

func NewService(store recordstore.Store, dir *directory.Directory, logger zerolog.Logger) *Service {
	return &Service{store: store, dir: dir, logger: logger}
}

func staffTable(role string) (auth.Role, recordstore.Table, error) {
	r, err := auth.ParseRole(role)
	if err != nil {
		return "", "", ErrUnknownStaffRole
	}
	switch r {
	case auth.RoleDoctor:
		return r, recordstore.Doctors, nil
	case auth.RoleNurse:
		return r, recordstore.Nurses, nil
	}
	return "", "", ErrUnknownStaffRole
}

// AddStaff appends a doctor or nurse with the next id of its table.
func (s *Service) AddStaff(ctx context.Context, req StaffRequest) (Staff, error) {
	role, table, err := staffTable(req.Role)
	if err != nil {
		return Staff{}, err
	}
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return Staff{}, fmt.Errorf("%w: name, email and password are required", ErrMissingField)
	}

	exists, err := s.dir.Exists(ctx, table, email)
	if err != nil {
		return Staff{}, fmt.Errorf("check %s: %w", role, err)
	}
	if exists {
		return Staff{}, ErrStaffExists
	}

	n, err := s.store.NextID(ctx, table)
	if err != nil {
		return Staff{}, fmt.Errorf("issue %s id: %w", role, err)
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return Staff{}, err
	}
	id := strconv.Itoa(n)

	var values []string
	if role == auth.RoleDoctor {
		values = directory.Doctor{
			ID:             id,
			Name:           name,
			Email:          email,
			Password:       hash,
			Specialization: strings.TrimSpace(req.Specialization),
			Phone:          strings.TrimSpace(req.Phone),
			AvailableTime:  strings.TrimSpace(req.AvailableTime),
		}.Values()
	} else {
		values = directory.Nurse{ID: id, Name: name, Email: email, Password: hash, Phone: strings.TrimSpace(req.Phone)}.Values()
	}

	if _, err := s.store.AppendRow(ctx, table, values); err != nil {
		if errors.Is(err, recordstore.ErrDuplicate) {
			return Staff{}, ErrStaffExists
		}
		return Staff{}, fmt.Errorf("append %s: %w", role, err)
	}

	s.logger.Info().Str("role", string(role)).Str("staff_id", id).Msg("staff added")
	return Staff{ID: id, Role: role, Name: name, Email: email}, nil
}

// Dashboard lists patients, doctors and nurses. Each table degrades to an
// empty list on its own when it cannot be read.
func (s *Service) Dashboard(ctx context.Context) Dashboard {
	return Dashboard{
		Patients: s.dir.Patients(ctx),
		Doctors:  s.dir.Doctors(ctx),
		Nurses:   s.dir.Nurses(ctx),
	}
}

// ListPatients returns one page of patients and the total count.
func (s *Service) ListPatients(ctx context.Context, p pagination.Params) ([]directory.Patient, int) {
	all := s.dir.Patients(ctx)
	return pagination.Slice(all, p), len(all)
}

// AddAdmin seeds an admin account. There is no self-registration for admins.
func (s *Service) AddAdmin(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return fmt.Errorf("%w: name, email and password are required", ErrMissingField)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.store.AppendRow(ctx, recordstore.Admins, directory.Admin{Name: name, Email: email, Password: hash}.Values())
	if errors.Is(err, recordstore.ErrDuplicate) {
		return ErrAdminExists
	}
	if err != nil {
		return fmt.Errorf("append admin: %w", err)
	}
	s.logger.Info().Str("email", email).Msg("admin added")
	return nil
}
