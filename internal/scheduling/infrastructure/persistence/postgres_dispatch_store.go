package persistence

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// ErrJobNotFound is returned when an update targets a job that does not exist.
var ErrJobNotFound = errors.New("job not found")

// PostgresStore implements domain.Store using PostgreSQL.
type PostgresStore struct {
	conn database.Connection
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(conn database.Connection) *PostgresStore {
	return &PostgresStore{conn: conn}
}

// postgresTechnicianRow represents a technician row joined with its addresses.
type postgresTechnicianRow struct {
	ID         uuid.UUID
	Name       string
	Active     bool
	HomeID     uuid.UUID
	HomeLat    float64
	HomeLng    float64
	CurrentID  *uuid.UUID
	CurrentLat *float64
	CurrentLng *float64
	StartHour  *int
	EndHour    *int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// postgresJobRow represents a job row joined with its address.
type postgresJobRow struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	AddressID         uuid.UUID
	Lat               float64
	Lng               float64
	YMMID             int64
	Priority          int
	DurationSeconds   int64
	Status            string
	TechnicianID      *uuid.UUID
	FixedAssignment   bool
	FixedScheduleTime *time.Time
	EarliestStartTime *time.Time
	EstimatedSched    *time.Time
	EstimatedSchedEnd *time.Time
	CustomerETAStart  *time.Time
	CustomerETAEnd    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const postgresJobColumns = `
	j.id, j.order_id,
	j.address_id, a.lat, a.lng,
	j.ymm_id, j.priority, j.duration_seconds, j.status,
	j.assigned_technician_id, j.fixed_assignment,
	j.fixed_schedule_time, j.earliest_start_time,
	j.estimated_sched, j.estimated_sched_end,
	j.customer_eta_start, j.customer_eta_end,
	j.created_at, j.updated_at`

// ActiveTechnicians implements domain.Store.
func (s *PostgresStore) ActiveTechnicians(ctx context.Context) ([]*domain.Technician, error) {
	query := `
		SELECT t.id, t.name, t.active,
		       t.home_address_id, h.lat, h.lng,
		       t.current_address_id, c.lat, c.lng,
		       t.workday_start_hour, t.workday_end_hour,
		       t.created_at, t.updated_at
		FROM technicians t
		JOIN addresses h ON h.id = t.home_address_id
		LEFT JOIN addresses c ON c.id = t.current_address_id
		WHERE t.active
		ORDER BY t.created_at, t.id
	`

	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	techRows, err := collectPostgresTechnicianRows(rows)
	if err != nil {
		return nil, err
	}

	technicians := make([]*domain.Technician, 0, len(techRows))
	for _, row := range techRows {
		equipmentRows, err := exec.Query(ctx,
			`SELECT equipment_model FROM technician_equipment WHERE technician_id = $1 ORDER BY equipment_model`, row.ID)
		if err != nil {
			return nil, err
		}
		equipment, err := scanStrings(equipmentRows)
		if err != nil {
			return nil, err
		}
		technicians = append(technicians, postgresRowToTechnician(row, equipment))
	}
	return technicians, nil
}

// PendingJobs implements domain.Store.
func (s *PostgresStore) PendingJobs(ctx context.Context) ([]*domain.Job, error) {
	query := `SELECT` + postgresJobColumns + `
		FROM jobs j
		JOIN addresses a ON a.id = j.address_id
		WHERE j.status = $1 AND NOT j.fixed_assignment
		ORDER BY j.created_at, j.id`

	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, query, string(domain.JobStatusPendingReview))
	if err != nil {
		return nil, err
	}
	return s.loadJobs(ctx, rows)
}

// AssignedJobs implements domain.Store.
func (s *PostgresStore) AssignedJobs(ctx context.Context, technicianID uuid.UUID) ([]*domain.Job, error) {
	query := `SELECT` + postgresJobColumns + `
		FROM jobs j
		JOIN addresses a ON a.id = j.address_id
		WHERE j.assigned_technician_id = $1 AND j.status = $2 AND NOT j.fixed_assignment
		ORDER BY j.created_at, j.id`

	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, query, technicianID, string(domain.JobStatusAssigned))
	if err != nil {
		return nil, err
	}
	return s.loadJobs(ctx, rows)
}

// EquipmentRequirements implements domain.Store.
func (s *PostgresStore) EquipmentRequirements(ctx context.Context, ymmID int64, serviceIDs []int64) ([]string, error) {
	query := `SELECT equipment_model FROM equipment_requirements WHERE ymm_id = $1 AND service_id = $2 ORDER BY equipment_model`

	exec := database.ExecutorFromContext(ctx, s.conn)
	seen := make(map[string]struct{})
	for _, serviceID := range serviceIDs {
		rows, err := exec.Query(ctx, query, ymmID, serviceID)
		if err != nil {
			return nil, err
		}
		models, err := scanStrings(rows)
		if err != nil {
			return nil, err
		}
		for _, model := range models {
			seen[model] = struct{}{}
		}
	}

	models := make([]string, 0, len(seen))
	for model := range seen {
		models = append(models, model)
	}
	sort.Strings(models)
	return models, nil
}

// UpdateJobAssignment implements domain.Store.
func (s *PostgresStore) UpdateJobAssignment(ctx context.Context, jobID uuid.UUID, technicianID *uuid.UUID, status domain.JobStatus) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	result, err := exec.Exec(ctx,
		`UPDATE jobs SET assigned_technician_id = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		technicianID, string(status), jobID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, jobID)
}

// UpdateJobETAs implements domain.Store. Updates run in a single transaction
// unless the context already carries one.
func (s *PostgresStore) UpdateJobETAs(ctx context.Context, updates map[uuid.UUID]domain.ETAUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	if tx := database.TxFromContext(ctx); tx != nil {
		return writePostgresETAs(ctx, tx, updates)
	}

	tx, err := s.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := writePostgresETAs(ctx, tx, updates); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func writePostgresETAs(ctx context.Context, exec database.Executor, updates map[uuid.UUID]domain.ETAUpdate) error {
	query := `UPDATE jobs
		SET estimated_sched = $1, estimated_sched_end = $2,
		    customer_eta_start = $3, customer_eta_end = $4, updated_at = NOW()
		WHERE id = $5`

	for jobID, update := range updates {
		result, err := exec.Exec(ctx, query,
			update.EstimatedSched,
			update.EstimatedSchedEnd,
			update.CustomerETAStart,
			update.CustomerETAEnd,
			jobID,
		)
		if err != nil {
			return err
		}
		if err := requireRowAffected(result, jobID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateJobFixedSchedule implements domain.Store.
func (s *PostgresStore) UpdateJobFixedSchedule(ctx context.Context, jobID uuid.UUID, fixedTime *time.Time) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	result, err := exec.Exec(ctx,
		`UPDATE jobs SET fixed_schedule_time = $1, updated_at = NOW() WHERE id = $2`,
		fixedTime, jobID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, jobID)
}

// UnavailabilitiesFor implements availability.UnavailabilitySource.
func (s *PostgresStore) UnavailabilitiesFor(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]domain.Unavailability, error) {
	query := `
		SELECT id, technician_id, start_time, duration_seconds
		FROM technician_unavailabilities
		WHERE technician_id = $1 AND start_time < $2
		ORDER BY start_time`

	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, query, technicianID, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaks []domain.Unavailability
	for rows.Next() {
		var (
			id      uuid.UUID
			techID  uuid.UUID
			start   time.Time
			seconds int64
		)
		if err := rows.Scan(&id, &techID, &start, &seconds); err != nil {
			return nil, err
		}

		u := domain.Unavailability{
			ID:           id,
			TechnicianID: techID,
			StartTime:    start.UTC(),
			Duration:     time.Duration(seconds) * time.Second,
		}
		if u.EndTime().After(from) {
			breaks = append(breaks, u)
		}
	}
	return breaks, rows.Err()
}

// SaveAddress upserts a service location.
func (s *PostgresStore) SaveAddress(ctx context.Context, address domain.Address) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	return upsertPostgresAddress(ctx, exec, address)
}

// SaveTechnician upserts a technician with its addresses and equipment.
func (s *PostgresStore) SaveTechnician(ctx context.Context, technician *domain.Technician) error {
	if tx := database.TxFromContext(ctx); tx != nil {
		return savePostgresTechnician(ctx, tx, technician)
	}

	tx, err := s.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := savePostgresTechnician(ctx, tx, technician); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func savePostgresTechnician(ctx context.Context, exec database.Executor, technician *domain.Technician) error {
	home := technician.HomeLocation()
	if err := upsertPostgresAddress(ctx, exec, home); err != nil {
		return err
	}

	var currentID *uuid.UUID
	if current := technician.CurrentLocation(); !current.IsZero() {
		if err := upsertPostgresAddress(ctx, exec, current); err != nil {
			return err
		}
		id := current.ID
		currentID = &id
	}

	_, err := exec.Exec(ctx, `
		INSERT INTO technicians (
			id, name, active, home_address_id, current_address_id,
			workday_start_hour, workday_end_hour, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			active = EXCLUDED.active,
			home_address_id = EXCLUDED.home_address_id,
			current_address_id = EXCLUDED.current_address_id,
			workday_start_hour = EXCLUDED.workday_start_hour,
			workday_end_hour = EXCLUDED.workday_end_hour,
			updated_at = NOW()`,
		technician.ID(),
		technician.Name(),
		technician.IsActive(),
		home.ID,
		currentID,
		technician.WorkdayStartHour(),
		technician.WorkdayEndHour(),
		technician.CreatedAt(),
		technician.UpdatedAt(),
	)
	if err != nil {
		return err
	}

	// Delete existing equipment and re-insert
	if _, err := exec.Exec(ctx, `DELETE FROM technician_equipment WHERE technician_id = $1`, technician.ID()); err != nil {
		return err
	}
	for _, model := range technician.Equipment() {
		_, err := exec.Exec(ctx,
			`INSERT INTO technician_equipment (technician_id, equipment_model) VALUES ($1, $2)`,
			technician.ID(), model,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveJob upserts a job with its address, order, equipment, and services.
func (s *PostgresStore) SaveJob(ctx context.Context, job *domain.Job) error {
	if tx := database.TxFromContext(ctx); tx != nil {
		return savePostgresJob(ctx, tx, job)
	}

	tx, err := s.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := savePostgresJob(ctx, tx, job); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func savePostgresJob(ctx context.Context, exec database.Executor, job *domain.Job) error {
	if err := upsertPostgresAddress(ctx, exec, job.Location()); err != nil {
		return err
	}
	if _, err := exec.Exec(ctx, `INSERT INTO orders (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, job.OrderID()); err != nil {
		return err
	}

	_, err := exec.Exec(ctx, `
		INSERT INTO jobs (
			id, order_id, address_id, ymm_id, priority, duration_seconds, status,
			assigned_technician_id, fixed_assignment, fixed_schedule_time,
			earliest_start_time, estimated_sched, estimated_sched_end,
			customer_eta_start, customer_eta_end, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			address_id = EXCLUDED.address_id,
			ymm_id = EXCLUDED.ymm_id,
			priority = EXCLUDED.priority,
			duration_seconds = EXCLUDED.duration_seconds,
			status = EXCLUDED.status,
			assigned_technician_id = EXCLUDED.assigned_technician_id,
			fixed_assignment = EXCLUDED.fixed_assignment,
			fixed_schedule_time = EXCLUDED.fixed_schedule_time,
			earliest_start_time = EXCLUDED.earliest_start_time,
			estimated_sched = EXCLUDED.estimated_sched,
			estimated_sched_end = EXCLUDED.estimated_sched_end,
			customer_eta_start = EXCLUDED.customer_eta_start,
			customer_eta_end = EXCLUDED.customer_eta_end,
			updated_at = NOW()`,
		job.ID(),
		job.OrderID(),
		job.Location().ID,
		job.YMMID(),
		job.Priority(),
		int64(job.Duration()/time.Second),
		string(job.Status()),
		job.AssignedTechnicianID(),
		job.FixedAssignment(),
		job.FixedScheduleTime(),
		job.EarliestStartTime(),
		job.EstimatedSched(),
		job.EstimatedSchedEnd(),
		job.CustomerETAStart(),
		job.CustomerETAEnd(),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return err
	}

	// Delete existing requirement rows and re-insert
	if _, err := exec.Exec(ctx, `DELETE FROM job_equipment_requirements WHERE job_id = $1`, job.ID()); err != nil {
		return err
	}
	for _, model := range job.RequiredEquipment() {
		_, err := exec.Exec(ctx,
			`INSERT INTO job_equipment_requirements (job_id, equipment_model) VALUES ($1, $2)`,
			job.ID(), model,
		)
		if err != nil {
			return err
		}
	}

	if _, err := exec.Exec(ctx, `DELETE FROM job_services WHERE job_id = $1`, job.ID()); err != nil {
		return err
	}
	for _, serviceID := range job.ServiceIDs() {
		_, err := exec.Exec(ctx,
			`INSERT INTO job_services (job_id, service_id) VALUES ($1, $2)`,
			job.ID(), serviceID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveUnavailability upserts a technician break.
func (s *PostgresStore) SaveUnavailability(ctx context.Context, u domain.Unavailability) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	_, err := exec.Exec(ctx, `
		INSERT INTO technician_unavailabilities (id, technician_id, start_time, duration_seconds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			technician_id = EXCLUDED.technician_id,
			start_time = EXCLUDED.start_time,
			duration_seconds = EXCLUDED.duration_seconds`,
		u.ID, u.TechnicianID, u.StartTime, int64(u.Duration/time.Second),
	)
	return err
}

// SaveEquipmentRequirement records the equipment a vehicle/service pair demands.
func (s *PostgresStore) SaveEquipmentRequirement(ctx context.Context, ymmID, serviceID int64, models ...string) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	for _, model := range models {
		_, err := exec.Exec(ctx, `
			INSERT INTO equipment_requirements (ymm_id, service_id, equipment_model)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`,
			ymmID, serviceID, model,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) loadJobs(ctx context.Context, rows database.Rows) ([]*domain.Job, error) {
	jobRows, err := collectPostgresJobRows(rows)
	if err != nil {
		return nil, err
	}

	exec := database.ExecutorFromContext(ctx, s.conn)
	jobs := make([]*domain.Job, 0, len(jobRows))
	for _, row := range jobRows {
		equipmentRows, err := exec.Query(ctx,
			`SELECT equipment_model FROM job_equipment_requirements WHERE job_id = $1 ORDER BY equipment_model`, row.ID)
		if err != nil {
			return nil, err
		}
		equipment, err := scanStrings(equipmentRows)
		if err != nil {
			return nil, err
		}

		serviceRows, err := exec.Query(ctx,
			`SELECT service_id FROM job_services WHERE job_id = $1 ORDER BY service_id`, row.ID)
		if err != nil {
			return nil, err
		}
		services, err := scanInt64s(serviceRows)
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, postgresRowToJob(row, equipment, services))
	}
	return jobs, nil
}

func collectPostgresTechnicianRows(rows database.Rows) ([]postgresTechnicianRow, error) {
	defer rows.Close()

	var out []postgresTechnicianRow
	for rows.Next() {
		var row postgresTechnicianRow
		err := rows.Scan(
			&row.ID, &row.Name, &row.Active,
			&row.HomeID, &row.HomeLat, &row.HomeLng,
			&row.CurrentID, &row.CurrentLat, &row.CurrentLng,
			&row.StartHour, &row.EndHour,
			&row.CreatedAt, &row.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func collectPostgresJobRows(rows database.Rows) ([]postgresJobRow, error) {
	defer rows.Close()

	var out []postgresJobRow
	for rows.Next() {
		var row postgresJobRow
		err := rows.Scan(
			&row.ID, &row.OrderID,
			&row.AddressID, &row.Lat, &row.Lng,
			&row.YMMID, &row.Priority, &row.DurationSeconds, &row.Status,
			&row.TechnicianID, &row.FixedAssignment,
			&row.FixedScheduleTime, &row.EarliestStartTime,
			&row.EstimatedSched, &row.EstimatedSchedEnd,
			&row.CustomerETAStart, &row.CustomerETAEnd,
			&row.CreatedAt, &row.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func postgresRowToTechnician(row postgresTechnicianRow, equipment []string) *domain.Technician {
	home := domain.Address{ID: row.HomeID, Lat: row.HomeLat, Lng: row.HomeLng}

	var current domain.Address
	if row.CurrentID != nil {
		current = domain.Address{ID: *row.CurrentID}
		if row.CurrentLat != nil {
			current.Lat = *row.CurrentLat
		}
		if row.CurrentLng != nil {
			current.Lng = *row.CurrentLng
		}
	}

	startHour, endHour := domain.DefaultWorkdayStartHour, domain.DefaultWorkdayEndHour
	if row.StartHour != nil && row.EndHour != nil {
		startHour = *row.StartHour
		endHour = *row.EndHour
	}

	return domain.RehydrateTechnician(
		row.ID, row.Name, row.Active,
		home, current, equipment,
		startHour, endHour,
		row.CreatedAt, row.UpdatedAt,
	)
}

func postgresRowToJob(row postgresJobRow, equipment []string, services []int64) *domain.Job {
	location := domain.Address{ID: row.AddressID, Lat: row.Lat, Lng: row.Lng}

	return domain.RehydrateJob(
		row.ID, row.OrderID, location,
		row.YMMID, services,
		row.Priority,
		time.Duration(row.DurationSeconds)*time.Second,
		equipment,
		domain.JobStatus(row.Status),
		row.TechnicianID,
		row.FixedAssignment,
		utcTimePtr(row.FixedScheduleTime),
		utcTimePtr(row.EarliestStartTime),
		utcTimePtr(row.EstimatedSched),
		utcTimePtr(row.EstimatedSchedEnd),
		utcTimePtr(row.CustomerETAStart),
		utcTimePtr(row.CustomerETAEnd),
		row.CreatedAt, row.UpdatedAt,
	)
}

func upsertPostgresAddress(ctx context.Context, exec database.Executor, address domain.Address) error {
	_, err := exec.Exec(ctx, `
		INSERT INTO addresses (id, lat, lng) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET lat = EXCLUDED.lat, lng = EXCLUDED.lng`,
		address.ID, address.Lat, address.Lng,
	)
	return err
}

func utcTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
