package directory

import "github.com/clinic/clinic/internal/platform/recordstore"

// Patient is a row of the patients table.
type Patient struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Phone    string `json:"phone"`
	Age      string `json:"age"`
}

func PatientFromRow(r recordstore.Row) Patient {
	return Patient{
		ID:       r.Get("id"),
		Name:     r.Get("name"),
		Email:    r.Get("email"),
		Password: r.Get("password"),
		Phone:    r.Get("phone"),
		Age:      r.Get("age"),
	}
}

// Values returns the row values in header order.
func (p Patient) Values() []string {
	return []string{p.ID, p.Name, p.Email, p.Password, p.Phone, p.Age}
}

// Doctor is a row of the doctors table.
type Doctor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"-"`
	Specialization string `json:"specialization"`
	Phone          string `json:"phone"`
	AvailableTime  string `json:"available_time"`
}

func DoctorFromRow(r recordstore.Row) Doctor {
	return Doctor{
		ID:             r.Get("id"),
		Name:           r.Get("name"),
		Email:          r.Get("email"),
		Password:       r.Get("password"),
		Specialization: r.Get("specialization"),
		Phone:          r.Get("phone"),
		AvailableTime:  r.Get("available_time"),
	}
}

func (d Doctor) Values() []string {
	return []string{d.ID, d.Name, d.Email, d.Password, d.Specialization, d.Phone, d.AvailableTime}
}

// Nurse is a row of the nurses table.
type Nurse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Phone    string `json:"phone"`
}

func NurseFromRow(r recordstore.Row) Nurse {
	return Nurse{
		ID:       r.Get("id"),
		Name:     r.Get("name"),
		Email:    r.Get("email"),
		Password: r.Get("password"),
		Phone:    r.Get("phone"),
	}
}

func (n Nurse) Values() []string {
	return []string{n.ID, n.Name, n.Email, n.Password, n.Phone}
}

// Admin is a row of the admins table.
type Admin struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

func AdminFromRow(r recordstore.Row) Admin {
	return Admin{Name: r.Get("name"), Email: r.Get("email"), Password: r.Get("password")}
}

func (a Admin) Values() []string {
	return []string{a.Name, a.Email, a.Password}
}
