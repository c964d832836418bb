package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLiteStore implements domain.Store on SQLite for zero-config local mode.
// Timestamps are stored as RFC3339 UTC strings so lexicographic comparison
// matches chronological order.
type SQLiteStore struct {
	conn database.Connection
}

// NewSQLiteStore creates a SQLite-backed store.
func NewSQLiteStore(conn database.Connection) *SQLiteStore {
	return &SQLiteStore{conn: conn}
}

// sqliteTechnicianRow represents a technician row joined with its addresses.
type sqliteTechnicianRow struct {
	ID         string
	Name       string
	Active     int64
	HomeID     string
	HomeLat    float64
	HomeLng    float64
	CurrentID  sql.NullString
	CurrentLat sql.NullFloat64
	CurrentLng sql.NullFloat64
	StartHour  sql.NullInt64
	EndHour    sql.NullInt64
	CreatedAt  string
	UpdatedAt  string
}

// sqliteJobRow represents a job row joined with its address.
type sqliteJobRow struct {
	ID                string
	OrderID           string
	AddressID         string
	Lat               float64
	Lng               float64
	YMMID             int64
	Priority          int64
	DurationSeconds   int64
	Status            string
	TechnicianID      sql.NullString
	FixedAssignment   int64
	FixedScheduleTime sql.NullString
	EarliestStartTime sql.NullString
	EstimatedSched    sql.NullString
	EstimatedSchedEnd sql.NullString
	CustomerETAStart  sql.NullString
	CustomerETAEnd    sql.NullString
	CreatedAt         string
	UpdatedAt         string
}

const sqliteJobColumns = `
	j.id, j.order_id,
	j.address_id, a.lat, a.lng,
	j.ymm_id, j.priority, j.duration_seconds, j.status,
	j.assigned_technician_id, j.fixed_assignment,
	j.fixed_schedule_time, j.earliest_start_time,
	j.estimated_sched, j.estimated_sched_end,
	j.customer_eta_start, j.customer_eta_end,
	j.created_at, j.updated_at`

// ActiveTechnicians implements domain.Store.
func (s *SQLiteStore) ActiveTechnicians(ctx context.Context) ([]*domain.Technician, error) {
	query := `
		SELECT t.id, t.name, t.active,
		       t.home_address_id, h.lat, h.lng,
		       t.current_address_id, c.lat, c.lng,
		       t.workday_start_hour, t.workday_end_hour,
		       t.created_at, t.updated_at
		FROM technicians t
		JOIN addresses h ON h.id = t.home_address_id
		LEFT JOIN addresses c ON c.id = t.current_address_id
		WHERE t.active = 1
		ORDER BY t.created_at, t.id
	`

	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	// SQLite holds a single connection, so the result set must be drained
	// before the per-technician equipment queries run.
	techRows, err := collectSQLiteTechnicianRows(rows)
	if err != nil {
		return nil, err
	}

	technicians := make([]*domain.Technician, 0, len(techRows))
	for _, row := range techRows {
		equipment, err := s.technicianEquipment(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		technicians = append(technicians, sqliteRowToTechnician(row, equipment))
	}
	return technicians, nil
}

// PendingJobs implements domain.Store.
func (s *SQLiteStore) PendingJobs(ctx context.Context) ([]*domain.Job, error) {
	query := `SELECT` + sqliteJobColumns + `
		FROM jobs j
		JOIN addresses a ON a.id = j.address_id
		WHERE j.status = ? AND j.fixed_assignment = 0
		ORDER BY j.created_at, j.id`

	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, query, string(domain.JobStatusPendingReview))
	if err != nil {
		return nil, err
	}
	return s.loadJobs(ctx, rows)
}

// AssignedJobs implements domain.Store.
func (s *SQLiteStore) AssignedJobs(ctx context.Context, technicianID uuid.UUID) ([]*domain.Job, error) {
	query := `SELECT` + sqliteJobColumns + `
		FROM jobs j
		JOIN addresses a ON a.id = j.address_id
		WHERE j.assigned_technician_id = ? AND j.status = ? AND j.fixed_assignment = 0
		ORDER BY j.created_at, j.id`

	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, query, technicianID.String(), string(domain.JobStatusAssigned))
	if err != nil {
		return nil, err
	}
	return s.loadJobs(ctx, rows)
}

// EquipmentRequirements implements domain.Store.
func (s *SQLiteStore) EquipmentRequirements(ctx context.Context, ymmID int64, serviceIDs []int64) ([]string, error) {
	query := `SELECT equipment_model FROM equipment_requirements WHERE ymm_id = ? AND service_id = ? ORDER BY equipment_model`

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
func (s *SQLiteStore) UpdateJobAssignment(ctx context.Context, jobID uuid.UUID, technicianID *uuid.UUID, status domain.JobStatus) error {
	var tech sql.NullString
	if technicianID != nil {
		tech = sql.NullString{String: technicianID.String(), Valid: true}
	}

	exec := database.ExecutorFromContext(ctx, s.conn)
	result, err := exec.Exec(ctx,
		`UPDATE jobs SET assigned_technician_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		tech, string(status), formatSQLiteTime(time.Now()), jobID.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, jobID)
}

// UpdateJobETAs implements domain.Store. Updates run in a single transaction
// unless the context already carries one.
func (s *SQLiteStore) UpdateJobETAs(ctx context.Context, updates map[uuid.UUID]domain.ETAUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	if tx := database.TxFromContext(ctx); tx != nil {
		return writeSQLiteETAs(ctx, tx, updates)
	}

	tx, err := s.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := writeSQLiteETAs(ctx, tx, updates); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func writeSQLiteETAs(ctx context.Context, exec database.Executor, updates map[uuid.UUID]domain.ETAUpdate) error {
	query := `UPDATE jobs
		SET estimated_sched = ?, estimated_sched_end = ?,
		    customer_eta_start = ?, customer_eta_end = ?, updated_at = ?
		WHERE id = ?`

	now := formatSQLiteTime(time.Now())
	for jobID, update := range updates {
		result, err := exec.Exec(ctx, query,
			nullSQLiteTime(update.EstimatedSched),
			nullSQLiteTime(update.EstimatedSchedEnd),
			nullSQLiteTime(update.CustomerETAStart),
			nullSQLiteTime(update.CustomerETAEnd),
			now, jobID.String(),
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
func (s *SQLiteStore) UpdateJobFixedSchedule(ctx context.Context, jobID uuid.UUID, fixedTime *time.Time) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	result, err := exec.Exec(ctx,
		`UPDATE jobs SET fixed_schedule_time = ?, updated_at = ? WHERE id = ?`,
		nullSQLiteTime(fixedTime), formatSQLiteTime(time.Now()), jobID.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(result, jobID)
}

// UnavailabilitiesFor implements availability.UnavailabilitySource. The query
// bounds the start side; the end-after-from check runs here because the end
// is derived from the stored duration.
func (s *SQLiteStore) UnavailabilitiesFor(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]domain.Unavailability, error) {
	query := `
		SELECT id, technician_id, start_time, duration_seconds
		FROM technician_unavailabilities
		WHERE technician_id = ? AND start_time < ?
		ORDER BY start_time`

	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, query, technicianID.String(), formatSQLiteTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaks []domain.Unavailability
	for rows.Next() {
		var (
			id      string
			techID  string
			start   string
			seconds int64
		)
		if err := rows.Scan(&id, &techID, &start, &seconds); err != nil {
			return nil, err
		}

		breakID, _ := uuid.Parse(id)
		ownerID, _ := uuid.Parse(techID)
		u := domain.Unavailability{
			ID:           breakID,
			TechnicianID: ownerID,
			StartTime:    parseSQLiteTime(start),
			Duration:     time.Duration(seconds) * time.Second,
		}
		if u.EndTime().After(from) {
			breaks = append(breaks, u)
		}
	}
	return breaks, rows.Err()
}

// SaveAddress upserts a service location.
func (s *SQLiteStore) SaveAddress(ctx context.Context, address domain.Address) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	return upsertSQLiteAddress(ctx, exec, address)
}

// SaveTechnician upserts a technician with its addresses and equipment.
func (s *SQLiteStore) SaveTechnician(ctx context.Context, technician *domain.Technician) error {
	if tx := database.TxFromContext(ctx); tx != nil {
		return saveSQLiteTechnician(ctx, tx, technician)
	}

	tx, err := s.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := saveSQLiteTechnician(ctx, tx, technician); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func saveSQLiteTechnician(ctx context.Context, exec database.Executor, technician *domain.Technician) error {
	home := technician.HomeLocation()
	if err := upsertSQLiteAddress(ctx, exec, home); err != nil {
		return err
	}

	var currentID sql.NullString
	if current := technician.CurrentLocation(); !current.IsZero() {
		if err := upsertSQLiteAddress(ctx, exec, current); err != nil {
			return err
		}
		currentID = sql.NullString{String: current.ID.String(), Valid: true}
	}

	_, err := exec.Exec(ctx, `
		INSERT INTO technicians (
			id, name, active, home_address_id, current_address_id,
			workday_start_hour, workday_end_hour, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			home_address_id = excluded.home_address_id,
			current_address_id = excluded.current_address_id,
			workday_start_hour = excluded.workday_start_hour,
			workday_end_hour = excluded.workday_end_hour,
			updated_at = excluded.updated_at`,
		technician.ID().String(),
		technician.Name(),
		boolToInt64(technician.IsActive()),
		home.ID.String(),
		currentID,
		int64(technician.WorkdayStartHour()),
		int64(technician.WorkdayEndHour()),
		formatSQLiteTime(technician.CreatedAt()),
		formatSQLiteTime(technician.UpdatedAt()),
	)
	if err != nil {
		return err
	}

	// Delete existing equipment and re-insert
	if _, err := exec.Exec(ctx, `DELETE FROM technician_equipment WHERE technician_id = ?`, technician.ID().String()); err != nil {
		return err
	}
	for _, model := range technician.Equipment() {
		_, err := exec.Exec(ctx,
			`INSERT INTO technician_equipment (technician_id, equipment_model) VALUES (?, ?)`,
			technician.ID().String(), model,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveJob upserts a job with its address, order, equipment, and services.
func (s *SQLiteStore) SaveJob(ctx context.Context, job *domain.Job) error {
	if tx := database.TxFromContext(ctx); tx != nil {
		return saveSQLiteJob(ctx, tx, job)
	}

	tx, err := s.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := saveSQLiteJob(ctx, tx, job); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func saveSQLiteJob(ctx context.Context, exec database.Executor, job *domain.Job) error {
	if err := upsertSQLiteAddress(ctx, exec, job.Location()); err != nil {
		return err
	}
	if _, err := exec.Exec(ctx, `INSERT INTO orders (id) VALUES (?) ON CONFLICT (id) DO NOTHING`, job.OrderID().String()); err != nil {
		return err
	}

	var techID sql.NullString
	if id := job.AssignedTechnicianID(); id != nil {
		techID = sql.NullString{String: id.String(), Valid: true}
	}

	_, err := exec.Exec(ctx, `
		INSERT INTO jobs (
			id, order_id, address_id, ymm_id, priority, duration_seconds, status,
			assigned_technician_id, fixed_assignment, fixed_schedule_time,
			earliest_start_time, estimated_sched, estimated_sched_end,
			customer_eta_start, customer_eta_end, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			order_id = excluded.order_id,
			address_id = excluded.address_id,
			ymm_id = excluded.ymm_id,
			priority = excluded.priority,
			duration_seconds = excluded.duration_seconds,
			status = excluded.status,
			assigned_technician_id = excluded.assigned_technician_id,
			fixed_assignment = excluded.fixed_assignment,
			fixed_schedule_time = excluded.fixed_schedule_time,
			earliest_start_time = excluded.earliest_start_time,
			estimated_sched = excluded.estimated_sched,
			estimated_sched_end = excluded.estimated_sched_end,
			customer_eta_start = excluded.customer_eta_start,
			customer_eta_end = excluded.customer_eta_end,
			updated_at = excluded.updated_at`,
		job.ID().String(),
		job.OrderID().String(),
		job.Location().ID.String(),
		job.YMMID(),
		int64(job.Priority()),
		int64(job.Duration()/time.Second),
		string(job.Status()),
		techID,
		boolToInt64(job.FixedAssignment()),
		nullSQLiteTime(job.FixedScheduleTime()),
		nullSQLiteTime(job.EarliestStartTime()),
		nullSQLiteTime(job.EstimatedSched()),
		nullSQLiteTime(job.EstimatedSchedEnd()),
		nullSQLiteTime(job.CustomerETAStart()),
		nullSQLiteTime(job.CustomerETAEnd()),
		formatSQLiteTime(job.CreatedAt()),
		formatSQLiteTime(job.UpdatedAt()),
	)
	if err != nil {
		return err
	}

	// Delete existing requirement rows and re-insert
	if _, err := exec.Exec(ctx, `DELETE FROM job_equipment_requirements WHERE job_id = ?`, job.ID().String()); err != nil {
		return err
	}
	for _, model := range job.RequiredEquipment() {
		_, err := exec.Exec(ctx,
			`INSERT INTO job_equipment_requirements (job_id, equipment_model) VALUES (?, ?)`,
			job.ID().String(), model,
		)
		if err != nil {
			return err
		}
	}

	if _, err := exec.Exec(ctx, `DELETE FROM job_services WHERE job_id = ?`, job.ID().String()); err != nil {
		return err
	}
	for _, serviceID := range job.ServiceIDs() {
		_, err := exec.Exec(ctx,
			`INSERT INTO job_services (job_id, service_id) VALUES (?, ?)`,
			job.ID().String(), serviceID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveUnavailability upserts a technician break.
func (s *SQLiteStore) SaveUnavailability(ctx context.Context, u domain.Unavailability) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	_, err := exec.Exec(ctx, `
		INSERT INTO technician_unavailabilities (id, technician_id, start_time, duration_seconds)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			technician_id = excluded.technician_id,
			start_time = excluded.start_time,
			duration_seconds = excluded.duration_seconds`,
		u.ID.String(), u.TechnicianID.String(), formatSQLiteTime(u.StartTime), int64(u.Duration/time.Second),
	)
	return err
}

// SaveEquipmentRequirement records the equipment a vehicle/service pair demands.
func (s *SQLiteStore) SaveEquipmentRequirement(ctx context.Context, ymmID, serviceID int64, models ...string) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	for _, model := range models {
		_, err := exec.Exec(ctx, `
			INSERT INTO equipment_requirements (ymm_id, service_id, equipment_model)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING`,
			ymmID, serviceID, model,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) technicianEquipment(ctx context.Context, technicianID string) ([]string, error) {
	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx,
		`SELECT equipment_model FROM technician_equipment WHERE technician_id = ? ORDER BY equipment_model`,
		technicianID,
	)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

// loadJobs drains the job rows, then resolves each job's equipment and
// services with follow-up queries.
func (s *SQLiteStore) loadJobs(ctx context.Context, rows database.Rows) ([]*domain.Job, error) {
	jobRows, err := collectSQLiteJobRows(rows)
	if err != nil {
		return nil, err
	}

	exec := database.ExecutorFromContext(ctx, s.conn)
	jobs := make([]*domain.Job, 0, len(jobRows))
	for _, row := range jobRows {
		equipmentRows, err := exec.Query(ctx,
			`SELECT equipment_model FROM job_equipment_requirements WHERE job_id = ? ORDER BY equipment_model`, row.ID)
		if err != nil {
			return nil, err
		}
		equipment, err := scanStrings(equipmentRows)
		if err != nil {
			return nil, err
		}

		serviceRows, err := exec.Query(ctx,
			`SELECT service_id FROM job_services WHERE job_id = ? ORDER BY service_id`, row.ID)
		if err != nil {
			return nil, err
		}
		services, err := scanInt64s(serviceRows)
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, sqliteRowToJob(row, equipment, services))
	}
	return jobs, nil
}

func collectSQLiteTechnicianRows(rows database.Rows) ([]sqliteTechnicianRow, error) {
	defer rows.Close()

	var out []sqliteTechnicianRow
	for rows.Next() {
		var row sqliteTechnicianRow
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

func collectSQLiteJobRows(rows database.Rows) ([]sqliteJobRow, error) {
	defer rows.Close()

	var out []sqliteJobRow
	for rows.Next() {
		var row sqliteJobRow
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

func sqliteRowToTechnician(row sqliteTechnicianRow, equipment []string) *domain.Technician {
	id, _ := uuid.Parse(row.ID)
	homeID, _ := uuid.Parse(row.HomeID)
	home := domain.Address{ID: homeID, Lat: row.HomeLat, Lng: row.HomeLng}

	var current domain.Address
	if row.CurrentID.Valid {
		currentID, _ := uuid.Parse(row.CurrentID.String)
		current = domain.Address{ID: currentID, Lat: row.CurrentLat.Float64, Lng: row.CurrentLng.Float64}
	}

	startHour, endHour := domain.DefaultWorkdayStartHour, domain.DefaultWorkdayEndHour
	if row.StartHour.Valid && row.EndHour.Valid {
		startHour = int(row.StartHour.Int64)
		endHour = int(row.EndHour.Int64)
	}

	return domain.RehydrateTechnician(
		id, row.Name, row.Active != 0,
		home, current, equipment,
		startHour, endHour,
		parseSQLiteTime(row.CreatedAt), parseSQLiteTime(row.UpdatedAt),
	)
}

func sqliteRowToJob(row sqliteJobRow, equipment []string, services []int64) *domain.Job {
	id, _ := uuid.Parse(row.ID)
	orderID, _ := uuid.Parse(row.OrderID)
	addressID, _ := uuid.Parse(row.AddressID)
	location := domain.Address{ID: addressID, Lat: row.Lat, Lng: row.Lng}

	var technicianID *uuid.UUID
	if row.TechnicianID.Valid {
		techID, _ := uuid.Parse(row.TechnicianID.String)
		technicianID = &techID
	}

	return domain.RehydrateJob(
		id, orderID, location,
		row.YMMID, services,
		int(row.Priority),
		time.Duration(row.DurationSeconds)*time.Second,
		equipment,
		domain.JobStatus(row.Status),
		technicianID,
		row.FixedAssignment != 0,
		parseNullSQLiteTime(row.FixedScheduleTime),
		parseNullSQLiteTime(row.EarliestStartTime),
		parseNullSQLiteTime(row.EstimatedSched),
		parseNullSQLiteTime(row.EstimatedSchedEnd),
		parseNullSQLiteTime(row.CustomerETAStart),
		parseNullSQLiteTime(row.CustomerETAEnd),
		parseSQLiteTime(row.CreatedAt), parseSQLiteTime(row.UpdatedAt),
	)
}

func upsertSQLiteAddress(ctx context.Context, exec database.Executor, address domain.Address) error {
	_, err := exec.Exec(ctx, `
		INSERT INTO addresses (id, lat, lng) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET lat = excluded.lat, lng = excluded.lng`,
		address.ID.String(), address.Lat, address.Lng,
	)
	return err
}

func requireRowAffected(result database.Result, jobID uuid.UUID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
	}
	return nil
}

func scanStrings(rows database.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

func scanInt64s(rows database.Rows) ([]int64, error) {
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var value int64
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

// Time helpers

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullSQLiteTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatSQLiteTime(*t), Valid: true}
}

func parseSQLiteTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t.UTC()
}

func parseNullSQLiteTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseSQLiteTime(ns.String)
	return &t
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
