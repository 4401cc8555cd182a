package repository

import (
	"context"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/remote"
	"github.com/njoerd114/agendasync/internal/state"
	syncp "github.com/njoerd114/agendasync/internal/sync"
)

// Professionals is the offline-first professional repository. Streams are
// ordered by name.
type Professionals struct {
	*syncp.Repository[model.Professional, remote.Professional]

	api *remote.Professionals
}

// NewProfessionals binds the professionals API collection to its local table.
func NewProfessionals(api *remote.Professionals, table *state.Table[model.Professional], diag syncp.Diagnostics, opts ...syncp.Option) *Professionals {
	return &Professionals{
		Repository: syncp.New[model.Professional, remote.Professional]("professionals", api, table, professionalMapper{}, diag, opts...),
		api:        api,
	}
}

// ObserveAvailable streams the professionals currently accepting bookings.
func (r *Professionals) ObserveAvailable(ctx context.Context) <-chan state.Snapshot[model.Professional] {
	return r.ObserveWhere(ctx, state.Eq(state.ProfessionalAvailable, true))
}

// ObserveBySpecialty streams the professionals of one specialty.
func (r *Professionals) ObserveBySpecialty(ctx context.Context, specialty string) <-chan state.Snapshot[model.Professional] {
	return r.ObserveWhere(ctx, state.Eq(state.ProfessionalSpecialty, specialty))
}

// SetAvailability opens or closes a professional's agenda. When the API is
// unreachable the cached row is updated instead. It returns (nil, nil) if the
// API failed and the professional is not cached.
func (r *Professionals) SetAvailability(ctx context.Context, id int64, available bool) (*model.Professional, error) {
	return r.Apply(ctx, id, "set_availability",
		func(ctx context.Context) (remote.Professional, error) {
			return r.api.SetAvailability(ctx, id, available)
		},
		func(p model.Professional) model.Professional {
			p.Available = available
			return p
		},
	)
}
