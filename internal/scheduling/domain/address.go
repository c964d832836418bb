package domain

import (
	sharedDomain "github.com/fieldworks-io/dispatch/internal/shared/domain"
	"github.com/google/uuid"
)

// Address is a geocoded service location. The engine treats it as opaque:
// identity drives travel-matrix lookups, coordinates feed only the fallback
// estimator.
type Address struct {
	ID  uuid.UUID
	Lat float64
	Lng float64
}

// NewAddress creates an address with a fresh identity.
func NewAddress(lat, lng float64) Address {
	return Address{ID: uuid.New(), Lat: lat, Lng: lng}
}

// Equals compares addresses by identity.
func (a Address) Equals(other sharedDomain.ValueObject) bool {
	if otherAddr, ok := other.(Address); ok {
		return a.ID == otherAddr.ID
	}
	return false
}

// IsZero reports whether the address carries no identity.
func (a Address) IsZero() bool {
	return a.ID == uuid.Nil
}
