package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/remote"
)

const (
	// medicationLimit caps the labels asked for per search.
	medicationLimit = 10
	// medicationTextLen caps the long free-text label sections, in runes.
	medicationTextLen = 300
)

// ErrEmptyQuery is returned by [Medications.Search] for a blank name.
var ErrEmptyQuery = errors.New("empty search")

// Medications looks up drug labels by name. It is a pass-through to the
// public label API: nothing is cached, and there is no offline answer.
type Medications struct {
	api *remote.Drugs
}

// NewMedications returns a medication search over api.
func NewMedications(api *remote.Drugs) *Medications {
	return &Medications{api: api}
}

// Search returns the labels whose brand or generic name matches name. No
// match is an empty slice and a nil error.
func (m *Medications) Search(ctx context.Context, name string) ([]model.Medication, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyQuery
	}
	labels, err := m.api.Search(ctx, name, medicationLimit)
	if err != nil {
		return nil, fmt.Errorf("searching medications %q: %w", name, err)
	}
	out := make([]model.Medication, 0, len(labels))
	for _, l := range labels {
		out = append(out, medicationFromLabel(l))
	}
	return out, nil
}
