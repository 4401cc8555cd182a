package repository

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/remote"
)

// validate checks the required fields of incoming wire records. A record that
// fails is dropped by the engine instead of being cached half-empty.
var validate = validator.New(validator.WithRequiredStructEnabled())

// --- Appointments ------------------------------------------------------------

// appointmentMapper carries the booking time as Unix milliseconds, so
// CreatedAt comes back in UTC truncated to the millisecond.
type appointmentMapper struct{}

func (appointmentMapper) ToWire(a model.Appointment) remote.Appointment {
	w := remote.Appointment{
		ID:               a.ID,
		PatientName:      a.PatientName,
		PatientRUT:       a.PatientRUT,
		ProfessionalID:   a.ProfessionalID,
		ProfessionalName: optional(a.ProfessionalName, model.Unavailable),
		Specialty:        optional(a.Specialty, model.Unavailable),
		Date:             a.Date,
		Time:             a.Time,
		Reason:           optional(a.Reason, model.Unavailable),
	}
	if !a.CreatedAt.IsZero() {
		w.Timestamp = a.CreatedAt.UnixMilli()
	}
	return w
}

func (appointmentMapper) FromWire(w remote.Appointment) (model.Appointment, error) {
	if err := validate.Struct(w); err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %d: %w", w.ID, err)
	}
	a := model.Appointment{
		ID:               w.ID,
		PatientName:      w.PatientName,
		PatientRUT:       w.PatientRUT,
		ProfessionalID:   w.ProfessionalID,
		ProfessionalName: orDefault(w.ProfessionalName, model.Unavailable),
		Specialty:        orDefault(w.Specialty, model.Unavailable),
		Date:             w.Date,
		Time:             w.Time,
		Reason:           orDefault(w.Reason, model.Unavailable),
	}
	if w.Timestamp != 0 {
		a.CreatedAt = time.UnixMilli(w.Timestamp).UTC()
	}
	return a, nil
}

// --- Professionals -----------------------------------------------------------

type professionalMapper struct{}

func (professionalMapper) ToWire(p model.Professional) remote.Professional {
	w := remote.Professional{
		ID:        p.ID,
		Name:      p.Name,
		Specialty: optional(p.Specialty, model.Unavailable),
	}
	if !p.Available {
		w.Available = &p.Available
	}
	return w
}

func (professionalMapper) FromWire(w remote.Professional) (model.Professional, error) {
	if err := validate.Struct(w); err != nil {
		return model.Professional{}, fmt.Errorf("professional %d: %w", w.ID, err)
	}
	return model.Professional{
		ID:        w.ID,
		Name:      w.Name,
		Specialty: orDefault(w.Specialty, model.Unavailable),
		Available: w.Available == nil || *w.Available,
	}, nil
}

// --- Users -------------------------------------------------------------------

// userMapper sends timestamps as RFC 3339 in UTC and reads an empty or unknown
// role as [model.RolePatient].
type userMapper struct{}

func (userMapper) ToWire(u model.User) remote.User {
	w := remote.User{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		RUT:       u.RUT,
		Role:      string(u.Role),
		PhotoURL:  optional(u.PhotoURL, ""),
		Phone:     optional(u.Phone, ""),
		CreatedAt: formatOptionalTime(u.CreatedAt),
		UpdatedAt: formatOptionalTime(u.UpdatedAt),
	}
	if !u.Active {
		w.Active = &u.Active
	}
	return w
}

func (userMapper) FromWire(w remote.User) (model.User, error) {
	if err := validate.Struct(w); err != nil {
		return model.User{}, fmt.Errorf("user %d: %w", w.ID, err)
	}
	created, err := parseOptionalTime(w.CreatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("user %d: fechaCreacion: %w", w.ID, err)
	}
	updated, err := parseOptionalTime(w.UpdatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("user %d: fechaActualizacion: %w", w.ID, err)
	}
	return model.User{
		ID:        w.ID,
		Username:  w.Username,
		FullName:  w.FullName,
		Email:     w.Email,
		RUT:       w.RUT,
		Role:      model.RoleOrPatient(w.Role),
		PhotoURL:  orDefault(w.PhotoURL, ""),
		Phone:     orDefault(w.Phone, ""),
		Active:    w.Active == nil || *w.Active,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

// --- helpers -----------------------------------------------------------------

// optional returns nil when s equals the default the API uses for an absent
// field, so the default never travels as a literal value.
func optional(s, def string) *string {
	if s == def {
		return nil
	}
	return &s
}

func orDefault(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func formatOptionalTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func parseOptionalTime(s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// --- Medications -------------------------------------------------------------

// medicationFromLabel takes the first entry of every label field, with
// [model.Unavailable] for the missing ones. It never fails: a label with no
// names at all is still shown.
func medicationFromLabel(l remote.DrugLabel) model.Medication {
	var meta remote.DrugLabelMeta
	if l.OpenFDA != nil {
		meta = *l.OpenFDA
	}
	return model.Medication{
		BrandName:        first(meta.BrandName, model.Unavailable),
		GenericName:      first(meta.GenericName, model.Unavailable),
		Manufacturer:     first(meta.ManufacturerName, model.Unavailable),
		Purpose:          first(l.Purpose, model.Unavailable),
		Indications:      truncate(first(l.IndicationsAndUsage, model.Unavailable), medicationTextLen),
		Warnings:         truncate(first(l.Warnings, model.Unavailable), medicationTextLen),
		ActiveIngredient: first(l.ActiveIngredient, first(meta.GenericName, model.Unavailable)),
		Route:            first(meta.Route, model.Unavailable),
	}
}

func first(values []string, def string) string {
	if len(values) == 0 || values[0] == "" {
		return def
	}
	return values[0]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
