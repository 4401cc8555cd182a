package state

import (
	"fmt"
	"time"

	"github.com/njoerd114/agendasync/internal/model"
)

// Filterable columns, for use with [Eq].
const (
	AppointmentPatientRUT     = "patient_rut"
	AppointmentProfessionalID = "professional_id"
	AppointmentDate           = "date"

	ProfessionalAvailable = "available"
	ProfessionalSpecialty = "specialty"

	UserUsername = "username"
	UserEmail    = "email"
	UserRUT      = "rut"
	UserRole     = "role"
	UserActive   = "active"
)

// Appointments returns the appointments table, newest booking first.
func (s *Store) Appointments() *Table[model.Appointment] {
	return newTable(s, codec[model.Appointment]{
		table: "appointments",
		columns: []string{
			"id", "patient_name", "patient_rut", "professional_id", "professional_name",
			"specialty", "date", "time", "reason", "created_at",
		},
		orderBy: "created_at DESC, id DESC",
		scan: func(sc scanner) (model.Appointment, error) {
			var a model.Appointment
			var createdAt int64
			err := sc.Scan(
				&a.ID, &a.PatientName, &a.PatientRUT, &a.ProfessionalID, &a.ProfessionalName,
				&a.Specialty, &a.Date, &a.Time, &a.Reason, &createdAt,
			)
			a.CreatedAt = fromMillis(createdAt)
			return a, err
		},
		values: func(a model.Appointment) []any {
			return []any{
				a.ID, a.PatientName, a.PatientRUT, a.ProfessionalID, a.ProfessionalName,
				a.Specialty, a.Date, a.Time, a.Reason, toMillis(a.CreatedAt),
			}
		},
	})
}

// Professionals returns the professionals table, ordered by name.
func (s *Store) Professionals() *Table[model.Professional] {
	return newTable(s, codec[model.Professional]{
		table:   "professionals",
		columns: []string{"id", "name", "specialty", "available"},
		orderBy: "name ASC, id ASC",
		scan: func(sc scanner) (model.Professional, error) {
			var p model.Professional
			err := sc.Scan(&p.ID, &p.Name, &p.Specialty, &p.Available)
			return p, err
		},
		values: func(p model.Professional) []any {
			return []any{p.ID, p.Name, p.Specialty, p.Available}
		},
	})
}

// Users returns the users table, ordered by full name.
func (s *Store) Users() *Table[model.User] {
	return newTable(s, codec[model.User]{
		table: "users",
		columns: []string{
			"id", "username", "full_name", "email", "rut", "role",
			"photo_url", "phone", "active", "created_at", "updated_at",
		},
		orderBy: "full_name ASC, id ASC",
		scan: func(sc scanner) (model.User, error) {
			var u model.User
			var role, createdAt, updatedAt string
			err := sc.Scan(
				&u.ID, &u.Username, &u.FullName, &u.Email, &u.RUT, &role,
				&u.PhotoURL, &u.Phone, &u.Active, &createdAt, &updatedAt,
			)
			if err != nil {
				return u, err
			}
			u.Role = model.RoleOrPatient(role)
			if u.CreatedAt, err = parseTime(createdAt); err != nil {
				return u, fmt.Errorf("user %d created_at: %w", u.ID, err)
			}
			if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
				return u, fmt.Errorf("user %d updated_at: %w", u.ID, err)
			}
			return u, nil
		},
		values: func(u model.User) []any {
			return []any{
				u.ID, u.Username, u.FullName, u.Email, u.RUT, string(u.Role),
				u.PhotoURL, u.Phone, u.Active, formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
			}
		},
	})
}

// --- helpers -----------------------------------------------------------------

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
