package services

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// AggregatorService turns raw fare reports into the published per-step and
// per-route estimates. All aggregate writes for a step run inside one
// transaction under that step's row lock, so concurrent reports serialize
// and the stored aggregate always reflects a consistent window.
type AggregatorService struct {
	db         database.DB
	reports    *database.ReportRepository
	routes     *database.RouteRepository
	guard      *SubmissionGuard
	reputation *ReputationService
	audit      *AuditService
	cfg        config.AggregationConfig
	retention  config.RetentionConfig
	logger     *logrus.Logger
}

// NewAggregatorService creates a new aggregator service
func NewAggregatorService(
	db database.DB,
	reports *database.ReportRepository,
	routes *database.RouteRepository,
	reputation *ReputationService,
	audit *AuditService,
	cfg config.AggregationConfig,
	retention config.RetentionConfig,
	logger *logrus.Logger,
) *AggregatorService {
	return &AggregatorService{
		db:         db,
		reports:    reports,
		routes:     routes,
		reputation: reputation,
		audit:      audit,
		cfg:        cfg,
		retention:  retention,
		logger:     logger,
	}
}

// SetGuard wires the submission guard after construction. The guard and the
// aggregator reference each other, so one side is attached late.
func (s *AggregatorService) SetGuard(guard *SubmissionGuard) {
	s.guard = guard
}

// ReportWeight is the aggregation weight of a single report: self-declared
// confidence scaled by the reporter's normalized reputation. The floor keeps
// brand-new and anonymous reporters from being weighted to zero.
func ReportWeight(confidence int, reputation, floor float64) float64 {
	return float64(confidence) * math.Max(reputation/100, floor)
}

// FareRating grades a reported amount against the step's published fare
// range on a 1-5 scale. The tolerance is a quarter of the range width, so a
// wide range is forgiving and a tight one is strict.
func FareRating(amount, fareMin, fareMax float64) int {
	mid := (fareMin + fareMax) / 2
	tolerance := (fareMax - fareMin) / 4

	switch {
	case amount <= mid-tolerance:
		return 5
	case amount <= mid+tolerance:
		return 4
	case amount <= fareMax:
		return 3
	case amount <= fareMax*1.2:
		return 2
	default:
		return 1
	}
}

// ComputeAggregate derives the published summary from a report window.
// Flagged reports and reports older than the recency horizon are excluded;
// the remainder contribute weighted by ReportWeight. Confidence is the
// weighted mean of the 0-100 scaled self-declared confidences.
func ComputeAggregate(reports []models.WindowReport, now time.Time, recencyDays int, floor float64) *models.Aggregate {
	cutoff := now.AddDate(0, 0, -recencyDays)

	var (
		weightSum     float64
		fareSum       float64
		durationSum   float64
		durationWSum  float64
		confidenceSum float64
		count         int
	)
	contributors := map[string]struct{}{}
	anonymous := 0

	for _, r := range reports {
		if r.Flagged || r.CreatedAt.Before(cutoff) {
			continue
		}

		w := ReportWeight(r.Confidence, r.Reputation, floor)
		weightSum += w
		fareSum += w * r.AmountPaid
		confidenceSum += w * float64(r.Confidence*20)
		if r.DurationMinutes != nil {
			durationSum += w * *r.DurationMinutes
			durationWSum += w
		}

		if r.ReporterID != nil {
			contributors[*r.ReporterID] = struct{}{}
		} else {
			anonymous++
		}
		count++
	}

	agg := &models.Aggregate{
		ContributorCount: len(contributors) + anonymous,
		ReportCount:      count,
	}
	if weightSum > 0 {
		avgFare := fareSum / weightSum
		agg.AvgFare = &avgFare
		agg.Confidence = confidenceSum / weightSum
	}
	if durationWSum > 0 {
		avgDuration := durationSum / durationWSum
		agg.AvgDurationMinutes = &avgDuration
	}

	return agg
}

// windowFromReports adapts stored rows, oldest first, into the bounded FIFO
// window. The capacity bound holds even if the fetch returns more rows.
func windowFromReports(rows []models.FareReport, capacity int) *models.ReportWindow {
	window := models.NewReportWindow(capacity)
	for _, row := range rows {
		r := models.WindowReport{
			AmountPaid:      row.AmountPaid,
			DurationMinutes: row.DurationMinutes,
			Confidence:      row.Confidence,
			Reputation:      row.ReporterReputation,
			Flagged:         row.IsFlagged,
			TravelDate:      row.TravelDate,
			CreatedAt:       row.CreatedAt,
		}
		if row.ReporterID != nil {
			id := row.ReporterID.String()
			r.ReporterID = &id
		}
		window.Add(r)
	}

	return window
}

// rangeNeedsUpdate decides whether a recomputed fare range differs enough
// from the published one to replace it.
func rangeNeedsUpdate(currentMin, currentMax, newMin, newMax, threshold float64) bool {
	return relativeChange(currentMin, newMin) > threshold ||
		relativeChange(currentMax, newMax) > threshold
}

func relativeChange(current, proposed float64) float64 {
	if current == 0 {
		if proposed == 0 {
			return 0
		}
		return 1
	}
	return math.Abs(proposed-current) / current
}

// RecordReport validates and stores a fare report, then recomputes the
// step's aggregate and the parent route rollup in the same transaction.
// Returns the stored report together with the recomputed step aggregate.
// Reputation grant and audit happen after commit so a slow audit sink never
// holds the step lock.
func (s *AggregatorService) RecordReport(req *models.SubmitFareReportRequest, actor *models.Actor, client ClientInfo) (*models.FareReport, *models.Aggregate, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, apperrors.NewValidation("invalid fare report: %v", err)
	}

	now := time.Now()
	if req.TravelDate.After(now) {
		return nil, nil, apperrors.NewFieldValidation("travel_date", "cannot be in the future")
	}
	if req.TravelDate.Before(now.AddDate(0, 0, -s.retention.TravelDateMaxAgeDays)) {
		return nil, nil, apperrors.NewFieldValidation("travel_date", "is more than %d days old", s.retention.TravelDateMaxAgeDays)
	}

	if s.guard != nil {
		if err := s.guard.CheckAndAdmit(actor, req.RouteStepID, SubmissionFareReport, now); err != nil {
			return nil, nil, err
		}
	}
	if actor != nil {
		exists, err := s.reports.ExistsForTravelDate(actor.ID, req.RouteStepID, req.TravelDate)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			return nil, nil, apperrors.NewConflict("you already reported this step for that travel date")
		}
	}

	report := &models.FareReport{
		ID:          uuid.New(),
		RouteStepID: req.RouteStepID,
		AmountPaid:  req.AmountPaid,
		VehicleMode: req.VehicleMode,
		TravelDate:  req.TravelDate,
		Confidence:  req.Confidence,
		Traffic:     req.Traffic,
		Weather:     req.Weather,
		TimeOfDay:   req.TimeOfDay,
		// 1-5 self-declared confidence scaled to the 0-100 score the
		// moderation adjustments operate on.
		ConfidenceScore: req.Confidence * 20,
		DurationMinutes: req.DurationMinutes,
	}
	if actor != nil {
		id := actor.ID
		report.ReporterID = &id
		report.ReporterReputation = float64(actor.Reputation)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, nil, apperrors.NewStorage("begin report transaction", err)
	}
	defer tx.Rollback()

	step, err := s.routes.LockStepForUpdate(tx, req.RouteStepID)
	if err != nil {
		return nil, nil, err
	}
	if step.VehicleMode != req.VehicleMode {
		return nil, nil, apperrors.NewFieldValidation("vehicle_mode",
			"does not match the step's %s leg", step.VehicleMode)
	}

	report.Rating = FareRating(req.AmountPaid, step.FareMin, step.FareMax)

	created, err := s.reports.Insert(tx, report)
	if err != nil {
		return nil, nil, err
	}

	agg, err := s.recomputeLocked(tx, step, now)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, apperrors.NewStorage("commit report transaction", err)
	}

	s.logger.WithFields(logrus.Fields{
		"report_id":   created.ID,
		"step_id":     step.ID,
		"amount_paid": created.AmountPaid,
		"rating":      created.Rating,
	}).Info("Fare report recorded")

	if _, err := s.reputation.GrantForAction(actor, models.ActionFareReport, req.Confidence, "fare_report", &created.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to grant fare report reputation")
	}

	var actorID *uuid.UUID
	if actor != nil {
		actorID = &actor.ID
	}
	if err := s.audit.LogReportSubmitted(actorID, created.ID, step.ID, created.AmountPaid, client); err != nil {
		s.logger.WithError(err).Warn("Failed to audit fare report")
	}

	return created, agg, nil
}

// RecomputeStep rebuilds a step's aggregate from its retained window and
// returns the result, used after moderation changes a report's standing.
func (s *AggregatorService) RecomputeStep(stepID uuid.UUID) (*models.Aggregate, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, apperrors.NewStorage("begin recompute transaction", err)
	}
	defer tx.Rollback()

	step, err := s.routes.LockStepForUpdate(tx, stepID)
	if err != nil {
		return nil, err
	}

	agg, err := s.recomputeLocked(tx, step, time.Now())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStorage("commit recompute transaction", err)
	}

	return agg, nil
}

// recomputeLocked recalculates the step aggregate, the published fare range
// and the parent route rollup, returning the recomputed step aggregate. The
// caller holds the step's row lock.
func (s *AggregatorService) recomputeLocked(tx *sqlx.Tx, step *models.RouteStep, now time.Time) (*models.Aggregate, error) {
	rows, err := s.reports.WindowForStep(tx, step.ID, s.cfg.WindowSize)
	if err != nil {
		return nil, err
	}

	window := windowFromReports(rows, s.cfg.WindowSize)
	agg := ComputeAggregate(window.Reports(), now, s.cfg.RecencyDays, s.cfg.ReputationFloor)
	agg.AggregateUpdatedAt = &now
	if err := s.routes.UpdateStepAggregate(tx, step.ID, agg); err != nil {
		return nil, err
	}

	if newMin, newMax, ok := s.fareRangeFromWindow(rows); ok {
		if rangeNeedsUpdate(step.FareMin, step.FareMax, newMin, newMax, s.cfg.RangeUpdatePct) {
			if err := s.routes.UpdateStepFareRange(tx, step.ID, newMin, newMax); err != nil {
				return nil, err
			}
			s.logger.WithFields(logrus.Fields{
				"step_id":  step.ID,
				"fare_min": newMin,
				"fare_max": newMax,
			}).Info("Step fare range updated from reports")
		}
	}

	if err := s.routes.RecomputeRouteAggregate(tx, step.RouteID); err != nil {
		return nil, err
	}

	return agg, nil
}

// fareRangeFromWindow proposes a fare range from the unflagged reports in
// the window. Requires the configured minimum report count; returns ok=false
// below it.
func (s *AggregatorService) fareRangeFromWindow(rows []models.FareReport) (float64, float64, bool) {
	var (
		min, max float64
		count    int
	)
	for _, row := range rows {
		if row.IsFlagged {
			continue
		}
		if count == 0 || row.AmountPaid < min {
			min = row.AmountPaid
		}
		if count == 0 || row.AmountPaid > max {
			max = row.AmountPaid
		}
		count++
	}

	if count < s.cfg.MinReportsForRangeUpdate {
		return 0, 0, false
	}

	return min, max, true
}

// GetReport fetches a single fare report.
func (s *AggregatorService) GetReport(id uuid.UUID) (*models.FareReport, error) {
	return s.reports.GetByID(id)
}
