package backend

import (
	"fmt"
	"time"

	"github.com/njoerd114/agendasync/internal/remote"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "agenda123"

// Seed loads a small demo data set: professionals, one account per role, and
// a few appointments.
func (s *Server) Seed() error {
	str := func(v string) *string { return &v }
	no := false

	pros := []remote.Professional{
		{Name: "Dra. Ana Morales", Specialty: str("Medicina General")},
		{Name: "Dr. Bruno Soto", Specialty: str("Cardiología")},
		{Name: "Dra. Carla Rivas", Specialty: str("Pediatría")},
		{Name: "Dr. Diego Fuentes", Specialty: str("Dermatología"), Available: &no},
		{Name: "Dra. Elena Paredes"},
	}
	stored := make([]remote.Professional, 0, len(pros))
	for _, p := range pros {
		stored = append(stored, s.professionals.insert(p))
	}

	users := []remote.User{
		{Username: "admin", FullName: "Administrador General", Email: "admin@agenda.test", RUT: "11111111-1", Role: "ADMINISTRADOR"},
		{Username: "recepcion", FullName: "Rosa Contreras", Email: "recepcion@agenda.test", RUT: "12222222-2", Role: "RECEPCIONISTA"},
		{Username: "amorales", FullName: "Ana Morales", Email: "amorales@agenda.test", RUT: "13333333-3", Role: "MEDICO"},
		{Username: "jperez", FullName: "Juan Pérez", Email: "jperez@agenda.test", RUT: "14444444-4", Role: "PACIENTE", Phone: str("+56911112222")},
		{Username: "mgonzalez", FullName: "María González", Email: "mgonzalez@agenda.test", RUT: "15555555-K", Role: "PACIENTE"},
	}
	for _, u := range users {
		if _, err := s.addUser(u, SeedPassword); err != nil {
			return fmt.Errorf("seeding user %q: %w", u.Username, err)
		}
	}

	day := s.now().AddDate(0, 0, 1).Format(time.DateOnly)
	appointments := []remote.Appointment{
		{PatientName: "Juan Pérez", PatientRUT: "14444444-4", ProfessionalID: stored[0].ID, Date: day, Time: "09:00", Reason: str("Control anual")},
		{PatientName: "Juan Pérez", PatientRUT: "14444444-4", ProfessionalID: stored[1].ID, Date: day, Time: "11:30"},
		{PatientName: "María González", PatientRUT: "15555555-K", ProfessionalID: stored[2].ID, Date: day, Time: "15:00", Reason: str("Vacunación")},
	}
	for _, a := range appointments {
		s.appointments.insert(s.prepareAppointment(a))
	}

	s.log.Info("mock API seeded",
		"professionals", len(pros), "users", len(users), "appointments", len(appointments))
	return nil
}
