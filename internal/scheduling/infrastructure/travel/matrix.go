package travel

import (
	"context"

	"github.com/google/uuid"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
)

type pairKey struct {
	from uuid.UUID
	to   uuid.UUID
}

// Matrix serves exact travel times keyed by address identity, falling back
// to an estimator for pairs it does not know. A negative stored value marks
// a pair as unroutable, which the fallback is not consulted for.
type Matrix struct {
	entries  map[pairKey]int64
	fallback domain.TravelProvider
}

// NewMatrix creates an empty matrix. fallback may be nil, in which case
// unknown pairs are infeasible.
func NewMatrix(fallback domain.TravelProvider) *Matrix {
	return &Matrix{
		entries:  make(map[pairKey]int64),
		fallback: fallback,
	}
}

// Set records the travel time for a directed pair. Directions are
// independent; set both if the pair is symmetric.
func (m *Matrix) Set(from, to uuid.UUID, seconds int64) {
	m.entries[pairKey{from: from, to: to}] = seconds
}

// SetUnroutable marks a directed pair as having no route.
func (m *Matrix) SetUnroutable(from, to uuid.UUID) {
	m.entries[pairKey{from: from, to: to}] = -1
}

// TravelSeconds implements domain.TravelProvider.
func (m *Matrix) TravelSeconds(ctx context.Context, from, to domain.Address) (int64, bool) {
	if seconds, ok := m.entries[pairKey{from: from.ID, to: to.ID}]; ok {
		if seconds < 0 {
			return 0, false
		}
		return seconds, true
	}
	if m.fallback != nil {
		return m.fallback.TravelSeconds(ctx, from, to)
	}
	return 0, false
}
