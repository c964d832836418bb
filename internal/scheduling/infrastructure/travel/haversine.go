// Package travel provides the engine's travel-time providers: an exact
// matrix, a haversine estimator, and a Redis-backed caching decorator. They
// all satisfy domain.TravelProvider and compose in that order.
package travel

import (
	"context"
	"math"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
)

const (
	earthRadiusMiles = 3959.87433
	defaultSpeedMPH  = 30.0

	// MinTravelSeconds floors every estimate so back-to-back visits never
	// look free. The floor belongs to heuristic estimation only; exact
	// matrix entries pass through unfloored.
	MinTravelSeconds int64 = 300
)

// HaversineEstimator approximates drive time as great-circle distance at a
// constant speed. Good enough for penalty-scale decisions, not navigation.
type HaversineEstimator struct {
	speedMPH float64
	floor    int64
}

// NewHaversineEstimator builds an estimator. Non-positive arguments fall
// back to 30 mph and the five minute floor.
func NewHaversineEstimator(speedMPH float64, floor int64) *HaversineEstimator {
	if speedMPH <= 0 {
		speedMPH = defaultSpeedMPH
	}
	if floor <= 0 {
		floor = MinTravelSeconds
	}
	return &HaversineEstimator{speedMPH: speedMPH, floor: floor}
}

// TravelSeconds estimates travel between two coordinates. It always succeeds;
// the estimator has no notion of an unroutable pair.
func (h *HaversineEstimator) TravelSeconds(_ context.Context, from, to domain.Address) (int64, bool) {
	miles := haversineMiles(from.Lat, from.Lng, to.Lat, to.Lng)
	seconds := int64(math.Round(miles / h.speedMPH * 3600))
	if seconds < h.floor {
		seconds = h.floor
	}
	return seconds, true
}

func haversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}
