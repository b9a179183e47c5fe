package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// Submission kinds with independent cooldown windows
const (
	SubmissionStepFeedback = "step_feedback"
	SubmissionFareReport   = "fare_report"
)

// SubmissionGuard enforces per-contributor cooldowns and moderation actions
// on fare reports. Anonymous submissions carry no identity to rate by, so
// they always pass the cooldown and compensate with the lowest aggregation
// weight instead.
type SubmissionGuard struct {
	reports    *database.ReportRepository
	aggregator *AggregatorService
	audit      *AuditService
	cfg        config.CooldownConfig
	logger     *logrus.Logger
}

// NewSubmissionGuard creates a new submission guard
func NewSubmissionGuard(
	reports *database.ReportRepository,
	aggregator *AggregatorService,
	audit *AuditService,
	cfg config.CooldownConfig,
	logger *logrus.Logger,
) *SubmissionGuard {
	return &SubmissionGuard{
		reports:    reports,
		aggregator: aggregator,
		audit:      audit,
		cfg:        cfg,
		logger:     logger,
	}
}

// cooldownFor returns the configured window for a submission kind.
func (g *SubmissionGuard) cooldownFor(kind string) time.Duration {
	if kind == SubmissionStepFeedback {
		return g.cfg.StepFeedback
	}
	return g.cfg.FareReport
}

// CheckAndAdmit returns a ConflictError when the actor reported the same
// step within the cooldown window for the given submission kind.
func (g *SubmissionGuard) CheckAndAdmit(actor *models.Actor, stepID uuid.UUID, kind string, now time.Time) error {
	if actor == nil {
		return nil
	}

	latest, err := g.reports.LatestForReporterAndStep(actor.ID, stepID)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}

	cooldown := g.cooldownFor(kind)
	if elapsed := now.Sub(*latest); elapsed < cooldown {
		return apperrors.NewConflict("you already reported this step recently, try again in %s",
			(cooldown - elapsed).Round(time.Minute))
	}

	return nil
}

// FlagReport marks a report as suspect, applies the confidence penalty and
// recomputes the step's aggregate so the flagged report stops contributing.
// Returns the report together with the recomputed aggregate.
func (g *SubmissionGuard) FlagReport(id uuid.UUID, reason string, actor *models.Actor, client ClientInfo) (*models.FareReport, *models.Aggregate, error) {
	if err := RequireIdentified(actor, "flagging a report"); err != nil {
		return nil, nil, err
	}

	before, err := g.reports.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if before.IsFlagged {
		return nil, nil, apperrors.NewConflict("report is already flagged")
	}

	report, err := g.reports.Flag(id, reason)
	if err != nil {
		return nil, nil, err
	}

	agg, err := g.aggregator.RecomputeStep(report.RouteStepID)
	if err != nil {
		return nil, nil, err
	}

	if err := g.audit.LogReportModeration(&actor.ID, id, "report_flagged",
		before.ConfidenceScore, report.ConfidenceScore, reason, client); err != nil {
		g.logger.WithError(err).Warn("Failed to audit report flag")
	}

	return report, agg, nil
}

// UnflagReport reverses a flag and restores the report's contribution.
func (g *SubmissionGuard) UnflagReport(id uuid.UUID, actor *models.Actor, client ClientInfo) (*models.FareReport, *models.Aggregate, error) {
	if err := RequireIdentified(actor, "unflagging a report"); err != nil {
		return nil, nil, err
	}

	before, err := g.reports.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if !before.IsFlagged {
		return nil, nil, apperrors.NewConflict("report is not flagged")
	}

	report, err := g.reports.Unflag(id)
	if err != nil {
		return nil, nil, err
	}

	agg, err := g.aggregator.RecomputeStep(report.RouteStepID)
	if err != nil {
		return nil, nil, err
	}

	if err := g.audit.LogReportModeration(&actor.ID, id, "report_unflagged",
		before.ConfidenceScore, report.ConfidenceScore, "", client); err != nil {
		g.logger.WithError(err).Warn("Failed to audit report unflag")
	}

	return report, agg, nil
}

// VerifyReport marks a report as independently confirmed and applies the
// confidence bonus.
func (g *SubmissionGuard) VerifyReport(id uuid.UUID, actor *models.Actor, client ClientInfo) (*models.FareReport, *models.Aggregate, error) {
	if err := RequireIdentified(actor, "verifying a report"); err != nil {
		return nil, nil, err
	}

	before, err := g.reports.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if before.IsVerified {
		return nil, nil, apperrors.NewConflict("report is already verified")
	}

	report, err := g.reports.Verify(id)
	if err != nil {
		return nil, nil, err
	}

	agg, err := g.aggregator.RecomputeStep(report.RouteStepID)
	if err != nil {
		return nil, nil, err
	}

	if err := g.audit.LogReportModeration(&actor.ID, id, "report_verified",
		before.ConfidenceScore, report.ConfidenceScore, "", client); err != nil {
		g.logger.WithError(err).Warn("Failed to audit report verify")
	}

	return report, agg, nil
}
