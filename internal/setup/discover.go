package setup

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/remote"
)

// probeTimeout bounds each request the wizard makes.
const probeTimeout = 5 * time.Second

// Specialty is one medical specialty offered by the API with the number of
// professionals practising it.
type Specialty struct {
	Name      string
	Total     int
	Available int
}

// Probe is what the wizard learned about an API instance.
type Probe struct {
	BaseURL       string
	Professionals int
	Specialties   []Specialty
}

// ProbeAPI checks that the booking API at baseURL answers and summarises the
// professionals it lists. A listing failure after a successful ping is
// logged and leaves the summary empty.
func ProbeAPI(ctx context.Context, baseURL, token string, logger *slog.Logger) (Probe, error) {
	opts := []remote.Option{remote.WithTimeout(probeTimeout), remote.WithMaxAttempts(1)}
	if token != "" {
		opts = append(opts, remote.WithToken(token))
	}
	c, err := remote.New(baseURL, logger, opts...)
	if err != nil {
		return Probe{}, err
	}
	if err := c.Ping(ctx); err != nil {
		return Probe{}, fmt.Errorf("connecting to %s: %w", baseURL, err)
	}

	p := Probe{BaseURL: c.BaseURL()}
	pros, err := remote.NewProfessionals(c).List(ctx)
	if err != nil {
		logger.Warn("could not list professionals", "error", err)
		return p, nil
	}
	p.Professionals = len(pros)
	p.Specialties = summarise(pros)
	return p, nil
}

// summarise groups professionals by specialty, most staffed first.
func summarise(pros []remote.Professional) []Specialty {
	byName := make(map[string]*Specialty)
	for _, w := range pros {
		name := model.Unavailable
		if w.Specialty != nil && *w.Specialty != "" {
			name = *w.Specialty
		}
		s, ok := byName[name]
		if !ok {
			s = &Specialty{Name: name}
			byName[name] = s
		}
		s.Total++
		if w.Available == nil || *w.Available {
			s.Available++
		}
	}

	out := make([]Specialty, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Specialty) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
