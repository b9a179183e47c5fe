package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// ReportRepository handles fare report persistence
type ReportRepository struct {
	db DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `
	id, reporter_id, route_step_id, amount_paid, vehicle_mode, travel_date,
	rating, confidence, traffic, weather, time_of_day, duration_minutes,
	reporter_reputation, confidence_score, is_verified, is_flagged,
	flag_reason, is_active, created_at, updated_at
`

// Insert stores a new fare report inside an existing transaction.
func (r *ReportRepository) Insert(tx *sqlx.Tx, report *models.FareReport) (*models.FareReport, error) {
	query := `
		INSERT INTO fare_reports (id, reporter_id, route_step_id, amount_paid,
			vehicle_mode, travel_date, rating, confidence, traffic, weather,
			time_of_day, duration_minutes, reporter_reputation, confidence_score,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		RETURNING ` + reportColumns

	var created models.FareReport
	err := tx.Get(&created, query,
		report.ID, report.ReporterID, report.RouteStepID, report.AmountPaid,
		report.VehicleMode, report.TravelDate, report.Rating, report.Confidence,
		report.Traffic, report.Weather, report.TimeOfDay, report.DurationMinutes,
		report.ReporterReputation, report.ConfidenceScore,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewConflict("a report for this step and travel date already exists")
		}
		return nil, fmt.Errorf("failed to insert fare report: %w", err)
	}

	return &created, nil
}

// GetByID fetches a single fare report.
func (r *ReportRepository) GetByID(id uuid.UUID) (*models.FareReport, error) {
	var report models.FareReport
	err := r.db.Get(&report, `SELECT `+reportColumns+` FROM fare_reports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("fare report", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fare report: %w", err)
	}

	return &report, nil
}

// LatestForReporterAndStep returns the creation time of the most recent
// active report by a contributor for a step, or nil when none exists. Used
// for cooldown enforcement.
func (r *ReportRepository) LatestForReporterAndStep(reporterID, stepID uuid.UUID) (*time.Time, error) {
	query := `
		SELECT MAX(created_at)
		FROM fare_reports
		WHERE reporter_id = $1 AND route_step_id = $2 AND is_active = true
	`

	var latest sql.NullTime
	if err := r.db.QueryRow(query, reporterID, stepID).Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to check for prior report: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}

	return &latest.Time, nil
}

// ExistsForTravelDate reports whether the contributor already reported this
// step for the same travel date.
func (r *ReportRepository) ExistsForTravelDate(reporterID, stepID uuid.UUID, travelDate time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM fare_reports
			WHERE reporter_id = $1 AND route_step_id = $2
			  AND travel_date = $3 AND is_active = true
		)
	`

	var exists bool
	if err := r.db.QueryRow(query, reporterID, stepID, travelDate).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check for duplicate travel date report: %w", err)
	}

	return exists, nil
}

// WindowForStep fetches the retained window for a step inside an existing
// transaction: the most recent limit active reports, oldest first.
func (r *ReportRepository) WindowForStep(tx *sqlx.Tx, stepID uuid.UUID, limit int) ([]models.FareReport, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM (
			SELECT ` + reportColumns + `
			FROM fare_reports
			WHERE route_step_id = $1 AND is_active = true
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`

	var reports []models.FareReport
	if err := tx.Select(&reports, query, stepID, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch report window: %w", err)
	}

	return reports, nil
}

// Flag marks a report as flagged and lowers its confidence score by the
// fixed penalty, floored at zero.
func (r *ReportRepository) Flag(id uuid.UUID, reason string) (*models.FareReport, error) {
	query := `
		UPDATE fare_reports
		SET is_flagged = true, flag_reason = $1,
		    confidence_score = GREATEST($2, confidence_score - $3),
		    updated_at = NOW()
		WHERE id = $4
		RETURNING ` + reportColumns

	var report models.FareReport
	err := r.db.Get(&report, query, reason, models.ConfidenceFloor, models.FlagPenalty, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("fare report", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to flag fare report: %w", err)
	}

	return &report, nil
}

// Unflag reverses a flag, restoring the confidence penalty up to the
// ceiling.
func (r *ReportRepository) Unflag(id uuid.UUID) (*models.FareReport, error) {
	query := `
		UPDATE fare_reports
		SET is_flagged = false, flag_reason = NULL,
		    confidence_score = LEAST($1, confidence_score + $2),
		    updated_at = NOW()
		WHERE id = $3
		RETURNING ` + reportColumns

	var report models.FareReport
	err := r.db.Get(&report, query, models.ConfidenceCeiling, models.FlagPenalty, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("fare report", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unflag fare report: %w", err)
	}

	return &report, nil
}

// Verify marks a report as verified and raises its confidence score up to
// the ceiling.
func (r *ReportRepository) Verify(id uuid.UUID) (*models.FareReport, error) {
	query := `
		UPDATE fare_reports
		SET is_verified = true,
		    confidence_score = LEAST($1, confidence_score + $2),
		    updated_at = NOW()
		WHERE id = $3
		RETURNING ` + reportColumns

	var report models.FareReport
	err := r.db.Get(&report, query, models.ConfidenceCeiling, models.VerifyBonus, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("fare report", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify fare report: %w", err)
	}

	return &report, nil
}

// DeactivateOlderThan soft-deletes reports past the retention horizon.
// Rows are kept for audit history.
func (r *ReportRepository) DeactivateOlderThan(cutoff time.Time) (int64, error) {
	query := `
		UPDATE fare_reports
		SET is_active = false, updated_at = NOW()
		WHERE is_active = true AND created_at < $1
	`

	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate old reports: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
