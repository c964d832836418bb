package vrp

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Protocol constants shared with the engine. InfeasibleCost doubles as the
// sentinel travel value for missing arcs and as the arc surcharge that prices
// ineligible vehicles out of contention. BasePenalty scales drop penalties by
// priority distance.
const (
	InfeasibleCost int64 = 9999999
	BasePenalty    int64 = 100000

	// DefaultTimeLimit bounds the improvement search wall clock.
	DefaultTimeLimit = 1000 * time.Millisecond

	minCapacitySeconds   int64 = 24 * 3600
	capacitySlackSeconds int64 = 12 * 3600
)

// InputError marks a request the caller must fix; the HTTP layer maps it to
// a 400-class response.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

func inputErrorf(format string, args ...any) error {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// ErrNoSolution is returned when no feasible set of routes exists, which with
// mandatory fixed-time items is a reachable outcome rather than a bug.
var ErrNoSolution = errors.New("no feasible solution")

// Options tunes a single solve.
type Options struct {
	// TimeLimit caps the improvement search; zero means DefaultTimeLimit.
	TimeLimit time.Duration
	// InfeasibleCost and BasePenalty override the protocol defaults when
	// positive. Engine and solver must agree on them.
	InfeasibleCost int64
	BasePenalty    int64
	// LogSearch enables per-iteration search logging.
	LogSearch bool
	Logger    *slog.Logger
}

func (o Options) timeLimit() time.Duration {
	if o.TimeLimit <= 0 {
		return DefaultTimeLimit
	}
	return o.TimeLimit
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// breakInterval is a hard stop in relative seconds: no service, no travel.
type breakInterval struct {
	start    int64
	duration int64
}

func (b breakInterval) end() int64 { return b.start + b.duration }

// vehicle is one technician normalized to relative seconds.
type vehicle struct {
	id          string
	startLoc    int
	endLoc      int
	windowStart int64
	windowEnd   int64
	breaks      []breakInterval
}

// node is one servable item. fixedAt and earliest are relative seconds;
// fixedAt is -1 when the item floats.
type node struct {
	item     int
	id       string
	loc      int
	service  int64
	priority int
	fixedAt  int64
	earliest int64
	eligible []bool
	penalty  int64
}

func (n *node) mandatory() bool { return n.fixedAt >= 0 }

// Model is a validated, epoch-normalized routing problem. All arithmetic
// downstream of BuildModel happens in relative seconds.
type Model struct {
	epoch          int64
	capacity       int64
	infeasibleCost int64
	basePenalty    int64
	vehicles       []vehicle
	nodes          []node
	// unservable items have no node: they sit at a depot location or have
	// no eligible vehicle, and are reported unassigned without routing.
	unservable []int
	travel     map[int]map[int]int64
	logger     *slog.Logger
}

// BuildModel validates the request and converts it to relative time. It
// returns an InputError for malformed input: bad ISO timestamps, negative
// durations, and location indices that do not exist.
func BuildModel(req *Request, opts Options) (*Model, error) {
	logger := opts.logger()

	known := make(map[int]bool, len(req.Locations))
	for _, loc := range req.Locations {
		if loc.Index < 0 {
			return nil, inputErrorf("negative location index %d", loc.Index)
		}
		known[loc.Index] = true
	}

	m := &Model{
		infeasibleCost: InfeasibleCost,
		basePenalty:    BasePenalty,
		travel:         req.TravelTimeMatrix,
		logger:         logger,
	}
	if opts.InfeasibleCost > 0 {
		m.infeasibleCost = opts.InfeasibleCost
	}
	if opts.BasePenalty > 0 {
		m.basePenalty = opts.BasePenalty
	}

	// Planning epoch: the earliest technician start. Every other instant in
	// the request becomes seconds after it, clamped at zero.
	vehicleIndex := make(map[string]int, len(req.Technicians))
	starts := make([]int64, len(req.Technicians))
	ends := make([]int64, len(req.Technicians))
	epoch := int64(0)
	for i, tech := range req.Technicians {
		if !known[tech.StartLocationIndex] {
			return nil, inputErrorf("technician %s: unknown start location index %d", tech.ID, tech.StartLocationIndex)
		}
		if !known[tech.EndLocationIndex] {
			return nil, inputErrorf("technician %s: unknown end location index %d", tech.ID, tech.EndLocationIndex)
		}
		start, err := ParseISOTime(tech.EarliestStartTimeISO)
		if err != nil {
			return nil, inputErrorf("technician %s: earliestStartTime: %v", tech.ID, err)
		}
		end, err := ParseISOTime(tech.LatestEndTimeISO)
		if err != nil {
			return nil, inputErrorf("technician %s: latestEndTime: %v", tech.ID, err)
		}
		starts[i] = start.Unix()
		ends[i] = end.Unix()
		if i == 0 || starts[i] < epoch {
			epoch = starts[i]
		}
		if _, dup := vehicleIndex[tech.ID]; dup {
			return nil, inputErrorf("duplicate technician id %s", tech.ID)
		}
		vehicleIndex[tech.ID] = i
	}
	m.epoch = epoch

	maxHorizon := int64(0)
	m.vehicles = make([]vehicle, len(req.Technicians))
	for i, tech := range req.Technicians {
		ws := relative(starts[i], epoch)
		we := relative(ends[i], epoch)
		if ws > we {
			logger.Warn("technician window inverted, clamping",
				slog.String("technician_id", tech.ID))
			we = ws
		}
		if we > maxHorizon {
			maxHorizon = we
		}
		m.vehicles[i] = vehicle{
			id:          tech.ID,
			startLoc:    tech.StartLocationIndex,
			endLoc:      tech.EndLocationIndex,
			windowStart: ws,
			windowEnd:   we,
		}
	}

	// Time capacity: the routing horizon plus slack, never under a day.
	m.capacity = maxHorizon + capacitySlackSeconds
	if m.capacity < minCapacitySeconds {
		m.capacity = minCapacitySeconds
	}

	for _, u := range req.TechnicianUnavailabilities {
		vi, ok := vehicleIndex[u.TechnicianID]
		if !ok {
			logger.Warn("unavailability for unknown technician, skipping",
				slog.String("technician_id", u.TechnicianID))
			continue
		}
		if u.DurationSeconds <= 0 {
			logger.Warn("unavailability with non-positive duration, skipping",
				slog.String("technician_id", u.TechnicianID))
			continue
		}
		start, err := ParseISOTime(u.StartTimeISO)
		if err != nil {
			return nil, inputErrorf("unavailability for technician %s: %v", u.TechnicianID, err)
		}
		m.vehicles[vi].breaks = append(m.vehicles[vi].breaks, breakInterval{
			start:    relative(start.Unix(), epoch),
			duration: u.DurationSeconds,
		})
	}
	for i := range m.vehicles {
		sort.Slice(m.vehicles[i].breaks, func(a, b int) bool {
			return m.vehicles[i].breaks[a].start < m.vehicles[i].breaks[b].start
		})
	}

	depot := make(map[int]bool, 2*len(m.vehicles))
	for _, v := range m.vehicles {
		depot[v.startLoc] = true
		depot[v.endLoc] = true
	}

	// Fixed times from the alternate constraint list; item-level fixed
	// times override these below.
	fixedByItem := make(map[string]int64, len(req.FixedConstraints))
	for _, fc := range req.FixedConstraints {
		at, err := ParseISOTime(fc.FixedTimeISO)
		if err != nil {
			return nil, inputErrorf("fixed constraint for item %s: %v", fc.ItemID, err)
		}
		fixedByItem[fc.ItemID] = at.Unix()
	}

	maxPriority := 1
	for _, item := range req.Items {
		if item.Priority > maxPriority {
			maxPriority = item.Priority
		}
	}

	seenItems := make(map[string]bool, len(req.Items))
	for i, item := range req.Items {
		if item.ID == "" {
			return nil, inputErrorf("item at position %d has empty id", i)
		}
		if seenItems[item.ID] {
			return nil, inputErrorf("duplicate item id %s", item.ID)
		}
		seenItems[item.ID] = true
		if item.DurationSeconds < 0 {
			return nil, inputErrorf("item %s: negative duration %d", item.ID, item.DurationSeconds)
		}
		if !known[item.LocationIndex] {
			return nil, inputErrorf("item %s: unknown location index %d", item.ID, item.LocationIndex)
		}

		eligible := make([]bool, len(m.vehicles))
		anyEligible := false
		for _, techID := range item.EligibleTechnicianIDs {
			if vi, ok := vehicleIndex[techID]; ok {
				eligible[vi] = true
				anyEligible = true
			}
		}

		fixedAt := int64(-1)
		if at, ok := fixedByItem[item.ID]; ok {
			fixedAt = relativeFixed(at, epoch, item.ID, logger)
		}
		if item.IsFixedTime && item.FixedTimeISO != "" {
			at, err := ParseISOTime(item.FixedTimeISO)
			if err != nil {
				return nil, inputErrorf("item %s: fixedTime: %v", item.ID, err)
			}
			fixedAt = relativeFixed(at.Unix(), epoch, item.ID, logger)
		}

		earliest := int64(0)
		if item.EarliestStartTimeISO != "" {
			at, err := ParseISOTime(item.EarliestStartTimeISO)
			if err != nil {
				return nil, inputErrorf("item %s: earliestStartTime: %v", item.ID, err)
			}
			earliest = relative(at.Unix(), epoch)
		}

		if depot[item.LocationIndex] || !anyEligible {
			// Depot-located or vehicle-less items cannot be modeled as
			// visits; they are unassigned from the start. A fixed time does
			// not rescue them.
			m.unservable = append(m.unservable, i)
			logger.Warn("item cannot be serviced by any route",
				slog.String("item_id", item.ID),
				slog.Bool("at_depot", depot[item.LocationIndex]),
				slog.Bool("has_eligible_vehicle", anyEligible))
			continue
		}

		penalty := m.basePenalty
		if item.Priority > 0 {
			penalty = m.basePenalty * int64(maxPriority-item.Priority+1)
		}

		m.nodes = append(m.nodes, node{
			item:     i,
			id:       item.ID,
			loc:      item.LocationIndex,
			service:  item.DurationSeconds,
			priority: item.Priority,
			fixedAt:  fixedAt,
			earliest: earliest,
			eligible: eligible,
			penalty:  penalty,
		})
	}

	return m, nil
}

// arcSeconds returns the raw travel time. Missing entries come back as the
// infeasible sentinel, which exceeds any capacity and kills the route in the
// timeline check.
func (m *Model) arcSeconds(from, to int) int64 {
	seconds, ok := TravelMatrix(m.travel).Seconds(from, to)
	if !ok {
		return m.infeasibleCost
	}
	return seconds
}

// arcCost is arcSeconds plus the eligibility surcharge for the destination
// node on the given vehicle. Ineligible arcs stay feasible but priced so any
// real alternative wins; post-extraction validation catches survivors.
func (m *Model) arcCost(v int, from, to int, dest *node) int64 {
	cost := m.arcSeconds(from, to)
	if dest != nil && !dest.eligible[v] {
		cost += m.infeasibleCost
	}
	return cost
}

func relative(abs, epoch int64) int64 {
	rel := abs - epoch
	if rel < 0 {
		return 0
	}
	return rel
}

// relativeFixed keeps fixed times strict: one that predates the epoch cannot
// be honored and is dropped with a warning rather than silently shifted.
func relativeFixed(abs, epoch int64, itemID string, logger *slog.Logger) int64 {
	rel := abs - epoch
	if rel < 0 {
		logger.Warn("fixed time predates planning epoch, ignoring",
			slog.String("item_id", itemID))
		return -1
	}
	return rel
}
