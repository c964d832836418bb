// Package vrp solves the single-day vehicle routing problem behind the
// optimize-schedule endpoint: time-windowed routes with mandatory fixed-time
// visits, hard break intervals, per-vehicle eligibility costs, and
// priority-weighted drop penalties. The package is pure computation; transport
// and persistence live elsewhere.
package vrp

import (
	"fmt"
	"strings"
	"time"
)

// Request is the optimize-schedule wire payload. All times are ISO-8601 with
// an explicit offset or trailing Z, all durations are integer seconds, and
// all location references are dense non-negative indices into Locations.
type Request struct {
	Locations                  []Location           `json:"locations"`
	Technicians                []TechnicianSpec     `json:"technicians"`
	Items                      []Item               `json:"items"`
	FixedConstraints           []FixedConstraint    `json:"fixedConstraints,omitempty"`
	TechnicianUnavailabilities []UnavailabilitySpec `json:"technicianUnavailabilities,omitempty"`
	TravelTimeMatrix           TravelMatrix         `json:"travelTimeMatrix"`
}

// Location declares one routable place. Only the index matters to the solver;
// coordinates stay on the engine side.
type Location struct {
	Index int `json:"index"`
}

// TechnicianSpec is one vehicle: a working window and its start/end depots.
type TechnicianSpec struct {
	ID                   string `json:"id"`
	StartLocationIndex   int    `json:"startLocationIndex"`
	EndLocationIndex     int    `json:"endLocationIndex"`
	EarliestStartTimeISO string `json:"earliestStartTimeISO"`
	LatestEndTimeISO     string `json:"latestEndTimeISO"`
}

// Item is one schedulable visit.
type Item struct {
	ID                    string   `json:"id"`
	LocationIndex         int      `json:"locationIndex"`
	DurationSeconds       int64    `json:"durationSeconds"`
	Priority              int      `json:"priority"`
	EligibleTechnicianIDs []string `json:"eligibleTechnicianIds"`
	EarliestStartTimeISO  string   `json:"earliestStartTimeISO,omitempty"`
	IsFixedTime           bool     `json:"isFixedTime,omitempty"`
	FixedTimeISO          string   `json:"fixedTimeISO,omitempty"`
}

// FixedConstraint pins an item's start to an exact instant. It is the
// alternate path for fixed times; an item-level fixedTimeISO wins when both
// are present.
type FixedConstraint struct {
	ItemID       string `json:"itemId"`
	FixedTimeISO string `json:"fixedTimeISO"`
}

// UnavailabilitySpec is a hard break: the vehicle performs no service and no
// travel between start and start+duration.
type UnavailabilitySpec struct {
	TechnicianID    string `json:"technicianId"`
	StartTimeISO    string `json:"startTimeISO"`
	DurationSeconds int64  `json:"durationSeconds"`
}

// TravelMatrix maps fromIndex -> toIndex -> seconds. Entries may be missing
// and need not be symmetric; a missing or negative entry means the arc is
// infeasible.
type TravelMatrix map[int]map[int]int64

// Seconds returns the travel time for an arc and whether a usable entry
// exists. Negative entries are invalid and reported as absent.
func (m TravelMatrix) Seconds(from, to int) (int64, bool) {
	row, ok := m[from]
	if !ok {
		return 0, false
	}
	seconds, ok := row[to]
	if !ok || seconds < 0 {
		return 0, false
	}
	return seconds, true
}

// ParseISOTime parses an ISO-8601 timestamp. A trailing Z is normalized to
// the +00:00 offset form, so both spellings of UTC are accepted.
func ParseISOTime(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	t, err := time.Parse("2006-01-02T15:04:05-07:00", s)
	if err != nil {
		// Retry with fractional seconds.
		t, err = time.Parse("2006-01-02T15:04:05.999999999-07:00", s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

// FormatISOTime renders absolute seconds since the Unix epoch as ISO-8601
// UTC with a trailing Z, the only form the service emits.
func FormatISOTime(unixSeconds int64) string {
	return time.Unix(unixSeconds, 0).UTC().Format(time.RFC3339)
}
