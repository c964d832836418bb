package domain

import (
	"errors"
	"sort"
	"time"

	sharedDomain "github.com/fieldworks-io/dispatch/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrMissingTechnicianName = errors.New("technician name must not be empty")
	ErrInvalidWorkday        = errors.New("workday end hour must be after start hour")
)

// Workday bounds applied when a technician carries no explicit hours.
const (
	DefaultWorkdayStartHour = 8
	DefaultWorkdayEndHour   = 17
)

// Technician is a mobile worker with a home base, a live location, and an
// equipment loadout that bounds which jobs they can serve.
type Technician struct {
	sharedDomain.BaseEntity
	name             string
	active           bool
	homeLocation     Address
	currentLocation  Address
	equipment        map[string]struct{}
	workdayStartHour int
	workdayEndHour   int
	schedule         *Schedule
}

// NewTechnician creates an active technician with default workday hours.
func NewTechnician(name string, home, current Address) (*Technician, error) {
	if name == "" {
		return nil, ErrMissingTechnicianName
	}
	if home.IsZero() {
		return nil, ErrMissingLocation
	}

	return &Technician{
		BaseEntity:       sharedDomain.NewBaseEntity(),
		name:             name,
		active:           true,
		homeLocation:     home,
		currentLocation:  current,
		equipment:        make(map[string]struct{}),
		workdayStartHour: DefaultWorkdayStartHour,
		workdayEndHour:   DefaultWorkdayEndHour,
		schedule:         NewSchedule(),
	}, nil
}

// Getters
func (t *Technician) Name() string              { return t.name }
func (t *Technician) IsActive() bool            { return t.active }
func (t *Technician) HomeLocation() Address     { return t.homeLocation }
func (t *Technician) CurrentLocation() Address  { return t.currentLocation }
func (t *Technician) WorkdayStartHour() int     { return t.workdayStartHour }
func (t *Technician) WorkdayEndHour() int       { return t.workdayEndHour }
func (t *Technician) Schedule() *Schedule       { return t.schedule }

// Equipment returns the technician's equipment models, sorted.
func (t *Technician) Equipment() []string {
	models := make([]string, 0, len(t.equipment))
	for model := range t.equipment {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// AddEquipment adds equipment models to the technician's loadout.
func (t *Technician) AddEquipment(models ...string) {
	for _, model := range models {
		if model == "" {
			continue
		}
		t.equipment[model] = struct{}{}
	}
	t.Touch()
}

// SetWorkday overrides the technician's daily working hours.
func (t *Technician) SetWorkday(startHour, endHour int) error {
	if startHour < 0 || endHour > 24 || endHour <= startHour {
		return ErrInvalidWorkday
	}
	t.workdayStartHour = startHour
	t.workdayEndHour = endHour
	t.Touch()
	return nil
}

// Deactivate removes the technician from planning.
func (t *Technician) Deactivate() {
	t.active = false
	t.Touch()
}

// CanHandle reports whether the technician's equipment covers the job.
func (t *Technician) CanHandle(job *Job) bool {
	return t.CoversEquipment(job.RequiredEquipment())
}

// CoversEquipment reports whether the loadout is a superset of models.
func (t *Technician) CoversEquipment(models []string) bool {
	for _, model := range models {
		if _, ok := t.equipment[model]; !ok {
			return false
		}
	}
	return true
}

// StartLocationForDay returns where the technician begins a planning day:
// the live location on day one, home afterwards.
func (t *Technician) StartLocationForDay(dayNumber int) Address {
	if dayNumber <= 1 && !t.currentLocation.IsZero() {
		return t.currentLocation
	}
	return t.homeLocation
}

// RehydrateTechnician recreates a technician from persisted state.
func RehydrateTechnician(
	id uuid.UUID,
	name string,
	active bool,
	home, current Address,
	equipment []string,
	workdayStartHour, workdayEndHour int,
	createdAt, updatedAt time.Time,
) *Technician {
	models := make(map[string]struct{}, len(equipment))
	for _, model := range equipment {
		models[model] = struct{}{}
	}

	if workdayEndHour <= workdayStartHour {
		workdayStartHour = DefaultWorkdayStartHour
		workdayEndHour = DefaultWorkdayEndHour
	}

	return &Technician{
		BaseEntity:       sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		name:             name,
		active:           active,
		homeLocation:     home,
		currentLocation:  current,
		equipment:        models,
		workdayStartHour: workdayStartHour,
		workdayEndHour:   workdayEndHour,
		schedule:         NewSchedule(),
	}
}
