package recordstore

import "fmt"

// Table names a record table.
type Table string

const (
	Patients     Table = "patients"
	Doctors      Table = "doctors"
	Nurses       Table = "nurses"
	Admins       Table = "admins"
	Appointments Table = "appointments"
)

// Schema describes the header of a table. Unique, when set, names a column
// whose normalized value may appear at most once.
type Schema struct {
	Table   Table
	Columns []string
	Unique  string
}

var schemas = map[Table]Schema{
	Patients: {
		Table:   Patients,
		Columns: []string{"id", "name", "email", "password", "phone", "age"},
		Unique:  "email",
	},
	Doctors: {
		Table:   Doctors,
		Columns: []string{"id", "name", "email", "password", "specialization", "phone", "available_time"},
		Unique:  "email",
	},
	Nurses: {
		Table:   Nurses,
		Columns: []string{"id", "name", "email", "password", "phone"},
		Unique:  "email",
	},
	Admins: {
		Table:   Admins,
		Columns: []string{"name", "email", "password"},
		Unique:  "email",
	},
	Appointments: {
		Table: Appointments,
		Columns: []string{"patient_email", "doctor_email", "doctor_name", "specialization",
			"available_time", "booked_on", "status"},
	},
}

// SchemaFor returns the schema of table.
func SchemaFor(table Table) (Schema, error) {
	s, ok := schemas[table]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return s, nil
}

// Tables lists every known table.
func Tables() []Table {
	return []Table{Patients, Doctors, Nurses, Admins, Appointments}
}

func (s Schema) uniqueIndex() int {
	if s.Unique == "" {
		return -1
	}
	for i, c := range s.Columns {
		if c == s.Unique {
			return i
		}
	}
	return -1
}

func (s Schema) header() []string {
	out := make([]string, len(s.Columns))
	copy(out, s.Columns)
	return out
}
