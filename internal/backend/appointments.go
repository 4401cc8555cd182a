package backend

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/njoerd114/agendasync/internal/remote"
)

func (s *Server) prepareAppointment(w remote.Appointment) remote.Appointment {
	if w.Timestamp == 0 {
		w.Timestamp = s.now().UnixMilli()
	}
	if w.ProfessionalID > 0 && (blank(w.ProfessionalName) || blank(w.Specialty)) {
		if p, ok := s.professionals.get(w.ProfessionalID); ok {
			if blank(w.ProfessionalName) {
				name := p.Name
				w.ProfessionalName = &name
			}
			if blank(w.Specialty) {
				w.Specialty = p.Specialty
			}
		}
	}
	return w
}

func (s *Server) setAvailability(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	available, err := strconv.ParseBool(c.QueryParam("disponible"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Parámetro disponible inválido")
	}
	p, ok := s.professionals.update(id, func(p remote.Professional) remote.Professional {
		p.Available = &available
		return p
	})
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Profesional "+strconv.FormatInt(id, 10)+" no encontrado")
	}
	return c.JSON(http.StatusOK, p)
}

func blank(s *string) bool { return s == nil || *s == "" }
