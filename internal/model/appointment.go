// Package model defines the domain entities served by the offline-first
// repositories: appointments, professionals, and users.
//
// Every entity carries a stable int64 identifier. Zero means "not yet
// assigned"; the identifier is assigned either by the remote API or, when the
// API is unreachable, by the local store.
package model

import "time"

// Unavailable is the placeholder shown for optional descriptive fields that
// the remote API did not send.
const Unavailable = "No disponible"

// Appointment is a booked consultation between a patient and a professional.
type Appointment struct {
	ID int64

	// PatientName and PatientRUT identify the patient. RUT is the Chilean
	// national id, e.g. "12345678-9".
	PatientName string
	PatientRUT  string

	ProfessionalID   int64
	ProfessionalName string
	Specialty        string

	// Date is the consultation day as YYYY-MM-DD and Time the slot as HH:MM.
	// Both are kept as the strings the API exchanges.
	Date string
	Time string

	Reason string

	// CreatedAt is when the appointment was booked. Millisecond precision.
	CreatedAt time.Time
}

// Key returns the appointment identifier.
func (a Appointment) Key() int64 { return a.ID }

// WithKey returns a copy of a with the identifier set to id.
func (a Appointment) WithKey(id int64) Appointment {
	a.ID = id
	return a
}

// ScheduledAt combines Date and Time into a local timestamp. The second return
// value is false when either part does not parse.
func (a Appointment) ScheduledAt(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
