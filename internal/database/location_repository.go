package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// LocationRepository handles location persistence
type LocationRepository struct {
	db DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db DB) *LocationRepository {
	return &LocationRepository{db: db}
}

const locationColumns = `
	id, name, latitude, longitude, address, city, state, category,
	is_verified, search_count, route_count, is_active, created_by,
	created_at, updated_at
`

// Create inserts a new location and returns the stored row.
func (r *LocationRepository) Create(req *models.CreateLocationRequest, createdBy *uuid.UUID) (*models.Location, error) {
	query := `
		INSERT INTO locations (id, name, latitude, longitude, address, city, state, category, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING ` + locationColumns

	var loc models.Location
	err := r.db.Get(&loc, query,
		uuid.New(), req.Name, req.Latitude, req.Longitude,
		req.Address, req.City, req.State, req.Category, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}

	return &loc, nil
}

// GetByID fetches a single active location.
func (r *LocationRepository) GetByID(id uuid.UUID) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1 AND is_active = true`

	var loc models.Location
	err := r.db.Get(&loc, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("location", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch location: %w", err)
	}

	return &loc, nil
}

// FindWithinBox returns active locations inside a latitude/longitude box,
// optionally filtered by category. Callers refine the candidates with a
// great-circle distance check.
func (r *LocationRepository) FindWithinBox(minLat, maxLat, minLng, maxLng float64, category string) ([]models.Location, error) {
	query := `
		SELECT ` + locationColumns + `
		FROM locations
		WHERE is_active = true
		  AND latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
	`
	args := []interface{}{minLat, maxLat, minLng, maxLng}

	if category != "" {
		query += ` AND category = $5`
		args = append(args, category)
	}

	var locations []models.Location
	if err := r.db.Select(&locations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query locations within box: %w", err)
	}

	return locations, nil
}

// ExistsNear reports whether an active location already exists within
// +/- tolerance degrees of the given point.
func (r *LocationRepository) ExistsNear(lat, lng, toleranceDeg float64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM locations
			WHERE is_active = true
			  AND latitude BETWEEN $1 AND $2
			  AND longitude BETWEEN $3 AND $4
		)
	`

	var exists bool
	err := r.db.QueryRow(query,
		lat-toleranceDeg, lat+toleranceDeg,
		lng-toleranceDeg, lng+toleranceDeg,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for nearby location: %w", err)
	}

	return exists, nil
}

// Search runs a paginated text/field search over active locations.
func (r *LocationRepository) Search(q *models.SearchLocationsQuery) ([]models.Location, int, error) {
	where := ` WHERE is_active = true`
	args := []interface{}{}

	if q.Query != "" {
		args = append(args, "%"+q.Query+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR address ILIKE $%d)", len(args), len(args))
	}
	if q.City != "" {
		args = append(args, q.City)
		where += fmt.Sprintf(" AND city ILIKE $%d", len(args))
	}
	if q.State != "" {
		args = append(args, q.State)
		where += fmt.Sprintf(" AND state ILIKE $%d", len(args))
	}
	if q.Category != "" {
		args = append(args, q.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	var total int
	if err := r.db.Get(&total, `SELECT COUNT(*) FROM locations`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count locations: %w", err)
	}

	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)
	query := `SELECT ` + locationColumns + ` FROM locations` + where +
		fmt.Sprintf(` ORDER BY search_count DESC, name ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var locations []models.Location
	if err := r.db.Select(&locations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to search locations: %w", err)
	}

	return locations, total, nil
}

// IncrementSearchCount bumps the popularity counter for the given locations.
func (r *LocationRepository) IncrementSearchCount(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE locations SET search_count = search_count + 1, updated_at = NOW() WHERE id = ANY($1)`
	if _, err := r.db.Exec(query, uuidArray(ids)); err != nil {
		return fmt.Errorf("failed to increment search count: %w", err)
	}

	return nil
}

// IncrementRouteCount bumps the route usage counter for a location.
func (r *LocationRepository) IncrementRouteCount(id uuid.UUID) error {
	query := `UPDATE locations SET route_count = route_count + 1, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to increment route count: %w", err)
	}

	return nil
}

// Deactivate soft-deletes a location.
func (r *LocationRepository) Deactivate(id uuid.UUID) error {
	query := `UPDATE locations SET is_active = false, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate location: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("location", id.String())
	}

	return nil
}
