// Package directory finds people in the record tables by email.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/recordstore"
)

var ErrNotFound = errors.New("not found")

// NormalizeEmail trims surrounding whitespace and lower-cases s.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameEmail compares two addresses after normalization.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// FirstByEmail returns the first row in table order whose email column
// matches email. Later rows with the same address are never returned.
func FirstByEmail(rows []recordstore.Row, email string) (recordstore.Row, bool) {
	want := NormalizeEmail(email)
	if want == "" {
		return recordstore.Row{}, false
	}
	for _, r := range rows {
		if NormalizeEmail(r.Get("email")) == want {
			return r, true
		}
	}
	return recordstore.Row{}, false
}

// Directory answers email lookups against the record store.
type Directory struct {
	store  recordstore.Store
	logger zerolog.Logger
}

func New(store recordstore.Store, logger zerolog.Logger) *Directory {
	return &Directory{store: store, logger: logger}
}

// FindByEmail fetches table and returns the row for email. Backend failures
// are returned wrapped and are distinct from ErrNotFound.
func (d *Directory) FindByEmail(ctx context.Context, table recordstore.Table, email string) (recordstore.Row, error) {
	rows, err := d.store.FetchAll(ctx, table)
	if err != nil {
		return recordstore.Row{}, fmt.Errorf("look up %s: %w", table, err)
	}
	r, ok := FirstByEmail(rows, email)
	if !ok {
		return recordstore.Row{}, ErrNotFound
	}
	return r, nil
}

// NameByEmail returns the name column of the row for email. A row with an
// empty name yields "" and a nil error.
func (d *Directory) NameByEmail(ctx context.Context, table recordstore.Table, email string) (string, error) {
	r, err := d.FindByEmail(ctx, table, email)
	if err != nil {
		return "", err
	}
	return r.Get("name"), nil
}

// Exists reports whether table holds a row for email.
func (d *Directory) Exists(ctx context.Context, table recordstore.Table, email string) (bool, error) {
	_, err := d.FindByEmail(ctx, table, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Patients lists every patient. A failed fetch is logged and yields an
// empty list.
func (d *Directory) Patients(ctx context.Context) []Patient {
	rows := recordstore.FetchAllOrEmpty(ctx, d.store, recordstore.Patients, d.logger)
	out := make([]Patient, 0, len(rows))
	for _, r := range rows {
		out = append(out, PatientFromRow(r))
	}
	return out
}

func (d *Directory) Doctors(ctx context.Context) []Doctor {
	rows := recordstore.FetchAllOrEmpty(ctx, d.store, recordstore.Doctors, d.logger)
	out := make([]Doctor, 0, len(rows))
	for _, r := range rows {
		out = append(out, DoctorFromRow(r))
	}
	return out
}

func (d *Directory) Nurses(ctx context.Context) []Nurse {
	rows := recordstore.FetchAllOrEmpty(ctx, d.store, recordstore.Nurses, d.logger)
	out := make([]Nurse, 0, len(rows))
	for _, r := range rows {
		out = append(out, NurseFromRow(r))
	}
	return out
}

// NameIndex maps normalized email to name for rows. The first row for an
// address wins.
func NameIndex(rows []recordstore.Row) map[string]string {
	idx := make(map[string]string, len(rows))
	for _, r := range rows {
		key := NormalizeEmail(r.Get("email"))
		if _, seen := idx[key]; seen || key == "" {
			continue
		}
		idx[key] = r.Get("name")
	}
	return idx
}
