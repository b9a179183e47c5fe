package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// RouteRepository handles route and route step persistence
type RouteRepository struct {
	db DB
}

// NewRouteRepository creates a new route repository
func NewRouteRepository(db DB) *RouteRepository {
	return &RouteRepository{db: db}
}

const routeColumns = `
	id, start_location_id, end_location_id, vehicle_modes, fare_min, fare_max,
	duration_minutes, difficulty, path_geometry, is_active, needs_approval,
	created_by, created_at, updated_at,
	avg_fare, avg_duration_minutes, confidence, contributor_count,
	report_count, aggregate_updated_at
`

const stepColumns = `
	id, route_id, step_number, from_location_id, to_location_id, vehicle_mode,
	instructions, fare_min, fare_max, duration_minutes, created_at, updated_at,
	avg_fare, avg_duration_minutes, confidence, contributor_count,
	report_count, aggregate_updated_at
`

// CreateWithSteps inserts a route and all its steps in a single
// transaction. Either everything persists or nothing does.
func (r *RouteRepository) CreateWithSteps(route *models.Route, steps []models.RouteStep) (*models.Route, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, apperrors.NewStorage("begin route create", err)
	}
	defer tx.Rollback()

	routeQuery := `
		INSERT INTO routes (id, start_location_id, end_location_id, vehicle_modes,
			fare_min, fare_max, duration_minutes, difficulty, path_geometry,
			is_active, needs_approval, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING ` + routeColumns

	var created models.Route
	err = tx.Get(&created, routeQuery,
		route.ID, route.StartLocationID, route.EndLocationID, route.VehicleModes,
		route.FareMin, route.FareMax, route.DurationMinutes, route.Difficulty,
		route.PathGeometry, route.IsActive, route.NeedsApproval, route.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewConflict("an active route between these locations already exists")
		}
		return nil, fmt.Errorf("failed to create route: %w", err)
	}

	stepQuery := `
		INSERT INTO route_steps (id, route_id, step_number, from_location_id,
			to_location_id, vehicle_mode, instructions, fare_min, fare_max,
			duration_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING ` + stepColumns

	created.Steps = make([]models.RouteStep, 0, len(steps))
	for _, step := range steps {
		var createdStep models.RouteStep
		err = tx.Get(&createdStep, stepQuery,
			step.ID, created.ID, step.StepNumber, step.FromLocationID,
			step.ToLocationID, step.VehicleMode, step.Instructions,
			step.FareMin, step.FareMax, step.DurationMinutes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create route step %d: %w", step.StepNumber, err)
		}
		created.Steps = append(created.Steps, createdStep)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStorage("commit route create", err)
	}

	return &created, nil
}

// GetByID fetches a route with its steps ordered by step number.
func (r *RouteRepository) GetByID(id uuid.UUID) (*models.Route, error) {
	var route models.Route
	err := r.db.Get(&route, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("route", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch route: %w", err)
	}

	steps, err := r.GetStepsByRouteID(id)
	if err != nil {
		return nil, err
	}
	route.Steps = steps

	return &route, nil
}

// GetStepsByRouteID fetches a route's steps ordered by step number.
func (r *RouteRepository) GetStepsByRouteID(routeID uuid.UUID) ([]models.RouteStep, error) {
	var steps []models.RouteStep
	query := `SELECT ` + stepColumns + ` FROM route_steps WHERE route_id = $1 ORDER BY step_number ASC`
	if err := r.db.Select(&steps, query, routeID); err != nil {
		return nil, fmt.Errorf("failed to fetch route steps: %w", err)
	}

	return steps, nil
}

// GetStepByID fetches a single route step.
func (r *RouteRepository) GetStepByID(stepID uuid.UUID) (*models.RouteStep, error) {
	var step models.RouteStep
	err := r.db.Get(&step, `SELECT `+stepColumns+` FROM route_steps WHERE id = $1`, stepID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("route step", stepID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch route step: %w", err)
	}

	return &step, nil
}

// ActiveRouteExists reports whether an active route already covers the
// ordered (start, end) pair.
func (r *RouteRepository) ActiveRouteExists(startID, endID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM routes
			WHERE start_location_id = $1 AND end_location_id = $2 AND is_active = true
		)
	`

	var exists bool
	if err := r.db.QueryRow(query, startID, endID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check for duplicate route: %w", err)
	}

	return exists, nil
}

// Search returns active routes matching the filters, most trusted first.
func (r *RouteRepository) Search(q *models.SearchRoutesQuery) ([]models.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE is_active = true`
	args := []interface{}{}

	if q.FromLocationID != nil {
		args = append(args, *q.FromLocationID)
		query += fmt.Sprintf(" AND start_location_id = $%d", len(args))
	}
	if q.ToLocationID != nil {
		args = append(args, *q.ToLocationID)
		query += fmt.Sprintf(" AND end_location_id = $%d", len(args))
	}
	if q.VehicleMode != "" {
		args = append(args, q.VehicleMode)
		query += fmt.Sprintf(" AND $%d = ANY(vehicle_modes)", len(args))
	}
	if q.MaxFare != nil {
		args = append(args, *q.MaxFare)
		query += fmt.Sprintf(" AND fare_min <= $%d", len(args))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY confidence DESC, report_count DESC LIMIT $%d", len(args))

	var routes []models.Route
	if err := r.db.Select(&routes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search routes: %w", err)
	}

	return routes, nil
}

// Update applies a partial update to a route and returns the stored row.
func (r *RouteRepository) Update(id uuid.UUID, patch *models.UpdateRouteRequest) (*models.Route, error) {
	set := `updated_at = NOW()`
	args := []interface{}{}

	if patch.VehicleModes != nil {
		args = append(args, models.StringArray(patch.VehicleModes))
		set += fmt.Sprintf(", vehicle_modes = $%d", len(args))
	}
	if patch.FareMin != nil {
		args = append(args, *patch.FareMin)
		set += fmt.Sprintf(", fare_min = $%d", len(args))
	}
	if patch.FareMax != nil {
		args = append(args, *patch.FareMax)
		set += fmt.Sprintf(", fare_max = $%d", len(args))
	}
	if patch.DurationMinutes != nil {
		args = append(args, *patch.DurationMinutes)
		set += fmt.Sprintf(", duration_minutes = $%d", len(args))
	}
	if patch.Difficulty != nil {
		args = append(args, *patch.Difficulty)
		set += fmt.Sprintf(", difficulty = $%d", len(args))
	}
	if patch.IsActive != nil {
		args = append(args, *patch.IsActive)
		set += fmt.Sprintf(", is_active = $%d", len(args))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE routes SET %s WHERE id = $%d RETURNING %s`, set, len(args), routeColumns)

	var route models.Route
	err := r.db.Get(&route, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("route", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update route: %w", err)
	}

	return &route, nil
}

// setRouteApprovalState resolves a suggested route's activation flags,
// shared with the suggestion review transaction.
func setRouteApprovalState(tx *sqlx.Tx, id uuid.UUID, isActive bool) error {
	query := `UPDATE routes SET is_active = $1, needs_approval = false, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(query, isActive, id); err != nil {
		return fmt.Errorf("failed to set route approval state: %w", err)
	}

	return nil
}

// LockStepForUpdate loads a step under a row lock so concurrent aggregate
// writes for the same step serialize.
func (r *RouteRepository) LockStepForUpdate(tx *sqlx.Tx, stepID uuid.UUID) (*models.RouteStep, error) {
	var step models.RouteStep
	query := `SELECT ` + stepColumns + ` FROM route_steps WHERE id = $1 FOR UPDATE`
	err := tx.Get(&step, query, stepID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("route step", stepID.String())
	}
	if err != nil {
		return nil, apperrors.NewStorage("lock route step", err)
	}

	return &step, nil
}

// UpdateStepAggregate persists a recomputed per-step aggregate.
func (r *RouteRepository) UpdateStepAggregate(tx *sqlx.Tx, stepID uuid.UUID, agg *models.Aggregate) error {
	query := `
		UPDATE route_steps
		SET avg_fare = $1, avg_duration_minutes = $2, confidence = $3,
		    contributor_count = $4, report_count = $5,
		    aggregate_updated_at = NOW(), updated_at = NOW()
		WHERE id = $6
	`

	_, err := tx.Exec(query,
		agg.AvgFare, agg.AvgDurationMinutes, agg.Confidence,
		agg.ContributorCount, agg.ReportCount, stepID,
	)
	if err != nil {
		return fmt.Errorf("failed to update step aggregate: %w", err)
	}

	return nil
}

// UpdateStepFareRange publishes a recomputed fare estimate for a step.
func (r *RouteRepository) UpdateStepFareRange(tx *sqlx.Tx, stepID uuid.UUID, fareMin, fareMax float64) error {
	query := `UPDATE route_steps SET fare_min = $1, fare_max = $2, updated_at = NOW() WHERE id = $3`
	if _, err := tx.Exec(query, fareMin, fareMax, stepID); err != nil {
		return fmt.Errorf("failed to update step fare range: %w", err)
	}

	return nil
}

// RecomputeRouteAggregate rolls the per-step aggregates up to the route:
// fares and durations sum across legs, confidence is the weakest leg's.
func (r *RouteRepository) RecomputeRouteAggregate(tx *sqlx.Tx, routeID uuid.UUID) error {
	query := `
		UPDATE routes SET
			avg_fare = s.total_fare,
			avg_duration_minutes = s.total_duration,
			confidence = COALESCE(s.min_confidence, 0),
			contributor_count = COALESCE(s.contributors, 0),
			report_count = COALESCE(s.reports, 0),
			aggregate_updated_at = NOW(),
			updated_at = NOW()
		FROM (
			SELECT SUM(avg_fare) AS total_fare,
			       SUM(avg_duration_minutes) AS total_duration,
			       MIN(confidence) AS min_confidence,
			       MAX(contributor_count) AS contributors,
			       SUM(report_count) AS reports
			FROM route_steps
			WHERE route_id = $1
		) s
		WHERE routes.id = $1
	`

	if _, err := tx.Exec(query, routeID); err != nil {
		return fmt.Errorf("failed to recompute route aggregate: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (class 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
