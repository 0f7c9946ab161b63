package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/recordstore"
)

type appointmentRepoStore struct {
	store recordstore.Store
}

func NewAppointmentRepoStore(store recordstore.Store) AppointmentRepository {
	return &appointmentRepoStore{store: store}
}

func (r *appointmentRepoStore) List(ctx context.Context) ([]*Appointment, error) {
	rows, err := r.store.FetchAll(ctx, recordstore.Appointments)
	if err != nil {
		return nil, err
	}
	out := make([]*Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, AppointmentFromRow(row))
	}
	return out, nil
}

func (r *appointmentRepoStore) Create(ctx context.Context, a *Appointment) error {
	row, err := r.store.AppendRow(ctx, recordstore.Appointments, a.Values())
	if err != nil {
		return err
	}
	a.ID = row.ID
	a.Position = row.Position
	return nil
}

// UpdateStatus resolves the status column from the live header before
// writing, so a table without one is reported rather than written blindly.
func (r *appointmentRepoStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	header, err := r.store.Header(ctx, recordstore.Appointments)
	if err != nil {
		return fmt.Errorf("read appointments header: %w", err)
	}
	if _, err := recordstore.ColumnIndex(header, "status"); err != nil {
		return err
	}

	err = r.store.UpdateCell(ctx, recordstore.Appointments, id, "status", status)
	if errors.Is(err, recordstore.ErrRowNotFound) {
		return ErrAppointmentNotFound
	}
	return err
}
