package models

import (
	"time"

	"github.com/google/uuid"
)

// Vehicle modes seen on Nigerian roads
const (
	ModeBus   = "bus"
	ModeKeke  = "keke"
	ModeOkada = "okada"
	ModeTaxi  = "taxi"
	ModeFerry = "ferry"
	ModeWalk  = "walk"
)

// Difficulty tiers
const (
	DifficultyEasy     = "easy"
	DifficultyModerate = "moderate"
	DifficultyHard     = "hard"
)

// Step duration bounds (minutes)
const (
	MinStepDurationMinutes  = 1
	MaxStepDurationMinutes  = 480
	MaxTotalDurationMinutes = 2880
)

// Route is an ordered path between two locations. At most one active route
// may exist per ordered (start, end) pair. A route awaiting suggestion
// review carries is_active=false and needs_approval=true.
type Route struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	StartLocationID uuid.UUID   `json:"start_location_id" db:"start_location_id"`
	EndLocationID   uuid.UUID   `json:"end_location_id" db:"end_location_id"`
	VehicleModes    StringArray `json:"vehicle_modes" db:"vehicle_modes"`
	FareMin         float64     `json:"fare_min" db:"fare_min"`
	FareMax         float64     `json:"fare_max" db:"fare_max"`
	DurationMinutes int         `json:"duration_minutes" db:"duration_minutes"`
	Difficulty      string      `json:"difficulty" db:"difficulty"`
	PathGeometry    []byte      `json:"-" db:"path_geometry"` // WKB, optional
	PathGeoJSON     string      `json:"path_geojson,omitempty" db:"-"`
	IsActive        bool        `json:"is_active" db:"is_active"`
	NeedsApproval   bool        `json:"needs_approval" db:"needs_approval"`
	CreatedBy       *uuid.UUID  `json:"created_by,omitempty" db:"created_by"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`

	Aggregate

	Steps []RouteStep `json:"steps,omitempty"`
}

// RouteStep is the i-th leg of a route. Step numbers are 1-based and
// contiguous; step i's to_location must equal step i+1's from_location.
type RouteStep struct {
	ID              uuid.UUID `json:"id" db:"id"`
	RouteID         uuid.UUID `json:"route_id" db:"route_id"`
	StepNumber      int       `json:"step_number" db:"step_number"`
	FromLocationID  uuid.UUID `json:"from_location_id" db:"from_location_id"`
	ToLocationID    uuid.UUID `json:"to_location_id" db:"to_location_id"`
	VehicleMode     string    `json:"vehicle_mode" db:"vehicle_mode"`
	Instructions    *string   `json:"instructions,omitempty" db:"instructions"`
	FareMin         float64   `json:"fare_min" db:"fare_min"`
	FareMax         float64   `json:"fare_max" db:"fare_max"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`

	Aggregate
}

// StepInput is one leg of a route as submitted by a contributor.
type StepInput struct {
	StepNumber      int       `json:"step_number" validate:"required,min=1"`
	FromLocationID  uuid.UUID `json:"from_location_id" validate:"required"`
	ToLocationID    uuid.UUID `json:"to_location_id" validate:"required"`
	VehicleMode     string    `json:"vehicle_mode" validate:"required,oneof=bus keke okada taxi ferry walk"`
	Instructions    *string   `json:"instructions,omitempty"`
	FareMin         float64   `json:"fare_min" validate:"required,gt=0"`
	FareMax         *float64  `json:"fare_max,omitempty"` // defaults to FareMin when omitted
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=1"`
}

// CreateRouteRequest is the payload for creating a route with its steps.
type CreateRouteRequest struct {
	StartLocationID uuid.UUID   `json:"start_location_id" validate:"required"`
	EndLocationID   uuid.UUID   `json:"end_location_id" validate:"required"`
	VehicleModes    []string    `json:"vehicle_modes" validate:"required,min=1,dive,oneof=bus keke okada taxi ferry walk"`
	Difficulty      string      `json:"difficulty" validate:"omitempty,oneof=easy moderate hard"`
	PathGeoJSON     string      `json:"path_geojson,omitempty"` // optional LineString
	Steps           []StepInput `json:"steps" validate:"required,min=1,dive"`
}

// Validate runs struct-tag validation on the request.
func (r *CreateRouteRequest) Validate() error {
	return validate.Struct(r)
}

// UpdateRouteRequest is a partial route update.
type UpdateRouteRequest struct {
	VehicleModes    []string `json:"vehicle_modes,omitempty" validate:"omitempty,min=1,dive,oneof=bus keke okada taxi ferry walk"`
	FareMin         *float64 `json:"fare_min,omitempty" validate:"omitempty,gt=0"`
	FareMax         *float64 `json:"fare_max,omitempty" validate:"omitempty,gt=0"`
	DurationMinutes *int     `json:"duration_minutes,omitempty" validate:"omitempty,min=1"`
	Difficulty      *string  `json:"difficulty,omitempty" validate:"omitempty,oneof=easy moderate hard"`
	IsActive        *bool    `json:"is_active,omitempty"`
}

// Validate runs struct-tag validation on the request.
func (r *UpdateRouteRequest) Validate() error {
	return validate.Struct(r)
}

// SearchRoutesQuery filters route search.
type SearchRoutesQuery struct {
	FromLocationID *uuid.UUID
	ToLocationID   *uuid.UUID
	VehicleMode    string
	MaxFare        *float64
	Limit          int
}
