package models

import (
	"time"

	"github.com/google/uuid"
)

// Confidence score bounds and adjustments
const (
	ConfidenceFloor   = 0
	ConfidenceCeiling = 100
	FlagPenalty       = 50
	VerifyBonus       = 20
)

// FareReport is one contributor's observation of what a route step actually
// cost. Reports are never hard-deleted; retention cleanup deactivates them.
type FareReport struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ReporterID      *uuid.UUID `json:"reporter_id,omitempty" db:"reporter_id"` // nil for anonymous
	RouteStepID     uuid.UUID  `json:"route_step_id" db:"route_step_id"`
	AmountPaid      float64    `json:"amount_paid" db:"amount_paid"`
	VehicleMode     string     `json:"vehicle_mode" db:"vehicle_mode"`
	TravelDate      time.Time  `json:"travel_date" db:"travel_date"`
	Rating          int        `json:"rating" db:"rating"`         // 1-5, derived from fare vs estimate
	Confidence      int        `json:"confidence" db:"confidence"` // 1-5, self-declared
	Traffic         *string    `json:"traffic,omitempty" db:"traffic"`
	Weather         *string    `json:"weather,omitempty" db:"weather"`
	TimeOfDay       *string    `json:"time_of_day,omitempty" db:"time_of_day"`
	DurationMinutes *float64   `json:"duration_minutes,omitempty" db:"duration_minutes"`
	// ReporterReputation is the contributor's score captured at submission
	// time, so the aggregate weighting is reproducible.
	ReporterReputation float64   `json:"reporter_reputation" db:"reporter_reputation"`
	ConfidenceScore    int       `json:"confidence_score" db:"confidence_score"` // 0-100, derived
	IsVerified         bool      `json:"is_verified" db:"is_verified"`
	IsFlagged          bool      `json:"is_flagged" db:"is_flagged"`
	FlagReason         *string   `json:"flag_reason,omitempty" db:"flag_reason"`
	IsActive           bool      `json:"is_active" db:"is_active"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// SubmitFareReportRequest is the payload for submitting a fare report.
type SubmitFareReportRequest struct {
	RouteStepID     uuid.UUID `json:"route_step_id" validate:"required"`
	AmountPaid      float64   `json:"amount_paid" validate:"required,gt=0"`
	VehicleMode     string    `json:"vehicle_mode" validate:"required,oneof=bus keke okada taxi ferry walk"`
	TravelDate      time.Time `json:"travel_date" validate:"required"`
	Confidence      int       `json:"confidence" validate:"required,min=1,max=5"`
	Traffic         *string   `json:"traffic,omitempty" validate:"omitempty,oneof=light moderate heavy"`
	Weather         *string   `json:"weather,omitempty" validate:"omitempty,oneof=dry rainy harmattan"`
	TimeOfDay       *string   `json:"time_of_day,omitempty" validate:"omitempty,oneof=morning afternoon evening night"`
	DurationMinutes *float64  `json:"duration_minutes,omitempty" validate:"omitempty,gt=0"`
}

// Validate runs struct-tag validation on the request.
func (r *SubmitFareReportRequest) Validate() error {
	return validate.Struct(r)
}

// FlagReportRequest carries the reason a report is being flagged.
type FlagReportRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// Validate runs struct-tag validation on the request.
func (r *FlagReportRequest) Validate() error {
	return validate.Struct(r)
}
