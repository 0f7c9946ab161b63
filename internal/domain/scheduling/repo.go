package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	// List returns every appointment in booking order.
	List(ctx context.Context) ([]*Appointment, error)
	// Create appends a and fills in its ID and Position.
	Create(ctx context.Context, a *Appointment) error
	// UpdateStatus changes only the status of the appointment with id.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}
