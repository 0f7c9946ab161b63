// Package account handles role login and patient self-registration.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/directory"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/recordstore"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrMissingField       = errors.New("missing required field")
)

// TableFor returns the table holding accounts of role.
func TableFor(role auth.Role) (recordstore.Table, error) {
	switch role {
	case auth.RolePatient:
		return recordstore.Patients, nil
	case auth.RoleDoctor:
		return recordstore.Doctors, nil
	case auth.RoleNurse:
		return recordstore.Nurses, nil
	case auth.RoleAdmin:
		return recordstore.Admins, nil
	}
	return "", auth.ErrUnknownRole
}

// Registration is the patient sign-up form.
type Registration struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Phone    string `form:"phone" json:"phone"`
	Age      string `form:"age" json:"age"`
}

type Service struct {
	store  recordstore.Store
	dir    *directory.Directory
	logger zerolog.Logger
}

func NewService(store recordstore.Store, dir *directory.Directory, logger zerolog.Logger) *Service {
	return &Service{store: store, dir: dir, logger: logger}
}

// Login checks email and password against the table of role. A lookup that
// fails on the backend is returned as an error and never as a session.
func (s *Service) Login(ctx context.Context, roleName, email, password string) (auth.Session, error) {
	role, err := auth.ParseRole(roleName)
	if err != nil {
		return auth.Session{}, err
	}
	table, err := TableFor(role)
	if err != nil {
		return auth.Session{}, err
	}

	row, err := s.dir.FindByEmail(ctx, table, email)
	if errors.Is(err, directory.ErrNotFound) {
		return auth.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return auth.Session{}, fmt.Errorf("login %s: %w", role, err)
	}
	if !auth.CheckPassword(row.Get("password"), password) {
		return auth.Session{}, ErrInvalidCredentials
	}

	return auth.Session{
		Role:  role,
		Email: strings.TrimSpace(row.Get("email")),
		Name:  row.Get("name"),
	}, nil
}

// RegisterPatient creates a patient account with id P<n>. An existing
// account with the same email, in any case, is never overwritten.
func (s *Service) RegisterPatient(ctx context.Context, reg Registration) (directory.Patient, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Name == "" || reg.Email == "" || reg.Password == "" {
		return directory.Patient{}, fmt.Errorf("%w: name, email and password are required", ErrMissingField)
	}

	exists, err := s.dir.Exists(ctx, recordstore.Patients, reg.Email)
	if err != nil {
		return directory.Patient{}, fmt.Errorf("check patient: %w", err)
	}
	if exists {
		return directory.Patient{}, ErrAccountExists
	}

	n, err := s.store.NextID(ctx, recordstore.Patients)
	if err != nil {
		return directory.Patient{}, fmt.Errorf("issue patient id: %w", err)
	}
	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return directory.Patient{}, err
	}

	p := directory.Patient{
		ID:       fmt.Sprintf("P%d", n),
		Name:     reg.Name,
		Email:    reg.Email,
		Password: hash,
		Phone:    strings.TrimSpace(reg.Phone),
		Age:      strings.TrimSpace(reg.Age),
	}
	if _, err := s.store.AppendRow(ctx, recordstore.Patients, p.Values()); err != nil {
		if errors.Is(err, recordstore.ErrDuplicate) {
			return directory.Patient{}, ErrAccountExists
		}
		return directory.Patient{}, fmt.Errorf("append patient: %w", err)
	}

	s.logger.Info().Str("patient_id", p.ID).Msg("patient registered")
	return p, nil
}
