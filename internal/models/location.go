package models

import (
	"time"

	"github.com/google/uuid"
)

// Location categories
const (
	CategoryMotorPark = "motor_park"
	CategoryMarket    = "market"
	CategoryLandmark  = "landmark"
	CategorySchool    = "school"
	CategoryHospital  = "hospital"
	CategoryOther     = "other"
)

// Location represents a named point inside the operating country. Locations
// are never hard-deleted; deactivation flips is_active.
type Location struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Latitude    float64    `json:"latitude" db:"latitude"`
	Longitude   float64    `json:"longitude" db:"longitude"`
	Address     *string    `json:"address,omitempty" db:"address"`
	City        string     `json:"city" db:"city"`
	State       string     `json:"state" db:"state"`
	Category    string     `json:"category" db:"category"`
	IsVerified  bool       `json:"is_verified" db:"is_verified"`
	SearchCount int        `json:"search_count" db:"search_count"`
	RouteCount  int        `json:"route_count" db:"route_count"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// NearbyLocation is a Location annotated with its haversine distance from
// the query point.
type NearbyLocation struct {
	Location
	DistanceKm float64 `json:"distance_km"`
}

// CreateLocationRequest is the payload for creating a new location.
type CreateLocationRequest struct {
	Name      string  `json:"name" validate:"required,min=2,max=120"`
	Latitude  float64 `json:"latitude" validate:"required"`
	Longitude float64 `json:"longitude" validate:"required"`
	Address   *string `json:"address,omitempty"`
	City      string  `json:"city" validate:"required"`
	State     string  `json:"state" validate:"required"`
	Category  string  `json:"category" validate:"required,oneof=motor_park market landmark school hospital other"`
}

// Validate runs struct-tag validation on the request.
func (r *CreateLocationRequest) Validate() error {
	return validate.Struct(r)
}

// NearbyQuery carries a proximity search.
type NearbyQuery struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	Limit     int
	Category  string // optional filter
}

// SearchLocationsQuery carries a paginated text/field search.
type SearchLocationsQuery struct {
	Query    string
	City     string
	State    string
	Category string
	Page     int
	PageSize int
}
