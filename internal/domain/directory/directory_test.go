package directory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/recordstore"
)

func seed(t *testing.T, table recordstore.Table, rows ...[]string) *recordstore.MemoryStore {
	t.Helper()
	s := recordstore.NewMemoryStore()
	for _, r := range rows {
		if _, err := s.AppendRow(context.Background(), table, r); err != nil {
			t.Fatalf("seed %s: %v", table, err)
		}
	}
	return s
}

func TestNormalizeEmail(t *testing.T) {
	tests := map[string]string{
		"  Alice@Example.COM ": "alice@example.com",
		"bob@x.com":            "bob@x.com",
		"\tC@X.com\n":          "c@x.com",
		"":                     "",
	}
	for in, want := range tests {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFirstByEmail_MatchesAnyVariant(t *testing.T) {
	rows := []recordstore.Row{
		{Position: 2, Values: map[string]string{"email": "other@x.com", "name": "Other"}},
		{Position: 3, Values: map[string]string{"email": "Alice@X.com", "name": "First"}},
		{Position: 4, Values: map[string]string{"email": "alice@x.com", "name": "Shadowed"}},
	}

	for _, q := range []string{"alice@x.com", " ALICE@X.COM", "Alice@x.com\t"} {
		r, ok := FirstByEmail(rows, q)
		if !ok {
			t.Fatalf("FirstByEmail(%q): not found", q)
		}
		if r.Get("name") != "First" {
			t.Errorf("FirstByEmail(%q) returned %q, want the earliest row", q, r.Get("name"))
		}
	}

	if _, ok := FirstByEmail(rows, "nobody@x.com"); ok {
		t.Error("expected no match")
	}
	if _, ok := FirstByEmail(rows, "  "); ok {
		t.Error("blank query must not match")
	}
}

func TestDirectory_FindByEmail(t *testing.T) {
	store := seed(t, recordstore.Doctors,
		[]string{"1", "Dr. Grey", "grey@clinic.org", "pw", "Surgery", "555", "Mon 9-12"},
	)
	d := New(store, zerolog.Nop())
	ctx := context.Background()

	r, err := d.FindByEmail(ctx, recordstore.Doctors, "GREY@clinic.org ")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if r.Get("specialization") != "Surgery" {
		t.Errorf("unexpected row %+v", r.Values)
	}

	_, err = d.FindByEmail(ctx, recordstore.Doctors, "missing@clinic.org")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

type failingStore struct{ recordstore.Store }

func (failingStore) FetchAll(context.Context, recordstore.Table) ([]recordstore.Row, error) {
	return nil, errors.New("backend down")
}

func TestDirectory_BackendErrorIsNotNotFound(t *testing.T) {
	d := New(failingStore{}, zerolog.Nop())

	_, err := d.FindByEmail(context.Background(), recordstore.Patients, "a@x.com")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
	if !strings.Contains(err.Error(), "backend down") {
		t.Errorf("error should wrap the cause: %v", err)
	}

	if _, err := d.Exists(context.Background(), recordstore.Patients, "a@x.com"); err == nil {
		t.Error("Exists must surface backend errors")
	}
	if got := d.Patients(context.Background()); len(got) != 0 {
		t.Errorf("listings degrade to empty, got %d", len(got))
	}
}

func TestDirectory_NameByEmail(t *testing.T) {
	store := seed(t, recordstore.Patients,
		[]string{"P1", "Alice", "alice@x.com", "pw"},
		[]string{"P2", "", "noname@x.com", "pw"},
	)
	d := New(store, zerolog.Nop())
	ctx := context.Background()

	name, err := d.NameByEmail(ctx, recordstore.Patients, "alice@x.com")
	if err != nil || name != "Alice" {
		t.Errorf("got %q, %v", name, err)
	}

	name, err = d.NameByEmail(ctx, recordstore.Patients, "noname@x.com")
	if err != nil || name != "" {
		t.Errorf("empty name must be distinct from not found: %q, %v", name, err)
	}

	if _, err := d.NameByEmail(ctx, recordstore.Patients, "zed@x.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDirectory_Exists(t *testing.T) {
	d := New(seed(t, recordstore.Nurses, []string{"1", "Nora", "nora@x.com", "pw", "555"}), zerolog.Nop())
	ctx := context.Background()

	if ok, err := d.Exists(ctx, recordstore.Nurses, "NORA@x.com"); err != nil || !ok {
		t.Errorf("expected nora to exist: %v, %v", ok, err)
	}
	if ok, err := d.Exists(ctx, recordstore.Nurses, "nobody@x.com"); err != nil || ok {
		t.Errorf("expected nobody to be absent: %v, %v", ok, err)
	}
}

func TestTypedListings(t *testing.T) {
	store := recordstore.NewMemoryStore()
	ctx := context.Background()
	doc := Doctor{ID: "1", Name: "Dr. A", Email: "a@x.com", Password: "pw", Specialization: "Cardio", Phone: "1", AvailableTime: "9-5"}
	if _, err := store.AppendRow(ctx, recordstore.Doctors, doc.Values()); err != nil {
		t.Fatal(err)
	}
	nurse := Nurse{ID: "1", Name: "N", Email: "n@x.com", Password: "pw", Phone: "2"}
	if _, err := store.AppendRow(ctx, recordstore.Nurses, nurse.Values()); err != nil {
		t.Fatal(err)
	}

	d := New(store, zerolog.Nop())
	docs := d.Doctors(ctx)
	if len(docs) != 1 || docs[0] != doc {
		t.Errorf("Doctors() = %+v", docs)
	}
	nurses := d.Nurses(ctx)
	if len(nurses) != 1 || nurses[0] != nurse {
		t.Errorf("Nurses() = %+v", nurses)
	}
}

func TestPasswordNeverSerialized(t *testing.T) {
	for _, v := range []interface{}{
		Patient{Email: "p@x.com", Password: "secret-pw"},
		Doctor{Email: "d@x.com", Password: "secret-pw"},
		Nurse{Email: "n@x.com", Password: "secret-pw"},
		Admin{Email: "a@x.com", Password: "secret-pw"},
	} {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(b), "secret-pw") {
			t.Errorf("%T leaks its password: %s", v, b)
		}
	}
}

func TestNameIndex(t *testing.T) {
	rows := []recordstore.Row{
		{Values: map[string]string{"email": "A@x.com", "name": "First"}},
		{Values: map[string]string{"email": "a@x.com", "name": "Second"}},
		{Values: map[string]string{"email": "", "name": "Blank"}},
	}
	idx := NameIndex(rows)
	if idx["a@x.com"] != "First" {
		t.Errorf("expected first row to win, got %q", idx["a@x.com"])
	}
	if _, ok := idx[""]; ok {
		t.Error("blank emails must not be indexed")
	}
}
