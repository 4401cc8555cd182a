package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/remote"
	"github.com/njoerd114/agendasync/internal/state"
	syncp "github.com/njoerd114/agendasync/internal/sync"
)

// Appointments is the offline-first appointment repository. Streams are
// ordered newest booking first.
type Appointments struct {
	*syncp.Repository[model.Appointment, remote.Appointment]

	now func() time.Time
}

// NewAppointments binds the appointments API collection to its local table.
func NewAppointments(api *remote.Appointments, table *state.Table[model.Appointment], diag syncp.Diagnostics, opts ...syncp.Option) *Appointments {
	return &Appointments{
		Repository: syncp.New[model.Appointment, remote.Appointment]("appointments", api, table, appointmentMapper{}, diag, opts...),
		now:        time.Now,
	}
}

// ObserveByPatient streams the appointments of the patient with the given RUT.
func (r *Appointments) ObserveByPatient(ctx context.Context, rut string) <-chan state.Snapshot[model.Appointment] {
	return r.ObserveWhere(ctx, state.Eq(state.AppointmentPatientRUT, rut))
}

// ObserveByProfessional streams the appointments booked with one professional.
func (r *Appointments) ObserveByProfessional(ctx context.Context, professionalID int64) <-chan state.Snapshot[model.Appointment] {
	return r.ObserveWhere(ctx, state.Eq(state.AppointmentProfessionalID, professionalID))
}

// ObserveByDate streams the appointments on date (YYYY-MM-DD).
func (r *Appointments) ObserveByDate(ctx context.Context, date string) <-chan state.Snapshot[model.Appointment] {
	return r.ObserveWhere(ctx, state.Eq(state.AppointmentDate, date))
}

// Book creates an appointment, stamping the booking time when the draft has
// none.
func (r *Appointments) Book(ctx context.Context, draft model.Appointment) (model.Appointment, error) {
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = r.now().UTC().Truncate(time.Millisecond)
	}
	return r.Create(ctx, draft)
}

// Reschedule moves an appointment to a new date and time.
func (r *Appointments) Reschedule(ctx context.Context, id int64, date, hour string) (model.Appointment, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if current == nil {
		return model.Appointment{}, fmt.Errorf("appointment %d: %w", id, ErrNotFound)
	}
	current.Date = date
	current.Time = hour
	return r.Update(ctx, *current)
}

// Cancel deletes an appointment. It always succeeds locally.
func (r *Appointments) Cancel(ctx context.Context, id int64) error {
	return r.Delete(ctx, id)
}
