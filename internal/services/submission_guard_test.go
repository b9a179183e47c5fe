package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

func newSubmissionGuard(t *testing.T) (*SubmissionGuard, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pg := &database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := config.CooldownConfig{
		StepFeedback: 24 * time.Hour,
		FareReport:   6 * time.Hour,
	}

	aggregator := buildAggregatorService(pg, logger)
	guard := NewSubmissionGuard(
		database.NewReportRepository(pg),
		aggregator,
		NewAuditService(pg),
		cfg,
		logger,
	)
	aggregator.SetGuard(guard)

	return guard, mock
}

func TestCheckAndAdmit(t *testing.T) {
	now := time.Now()
	stepID := uuid.New()
	actor := &models.Actor{ID: uuid.New(), Reputation: 80}

	t.Run("Anonymous Always Admitted", func(t *testing.T) {
		guard, mock := newSubmissionGuard(t)

		assert.NoError(t, guard.CheckAndAdmit(nil, stepID, SubmissionFareReport, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("First Report Admitted", func(t *testing.T) {
		guard, mock := newSubmissionGuard(t)

		mock.ExpectQuery(`SELECT MAX\(created_at\)`).
			WithArgs(actor.ID, stepID).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

		assert.NoError(t, guard.CheckAndAdmit(actor, stepID, SubmissionFareReport, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Within Fare Report Cooldown Rejected", func(t *testing.T) {
		guard, mock := newSubmissionGuard(t)

		mock.ExpectQuery(`SELECT MAX\(created_at\)`).
			WithArgs(actor.ID, stepID).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(now.Add(-2 * time.Hour)))

		err := guard.CheckAndAdmit(actor, stepID, SubmissionFareReport, now)

		var conflict *apperrors.ConflictError
		assert.True(t, errors.As(err, &conflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Past Fare Report Cooldown Admitted", func(t *testing.T) {
		guard, mock := newSubmissionGuard(t)

		mock.ExpectQuery(`SELECT MAX\(created_at\)`).
			WithArgs(actor.ID, stepID).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(now.Add(-7 * time.Hour)))

		assert.NoError(t, guard.CheckAndAdmit(actor, stepID, SubmissionFareReport, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Step Feedback Uses Longer Cooldown", func(t *testing.T) {
		guard, mock := newSubmissionGuard(t)

		// 7 hours clears the fare report window but not step feedback.
		mock.ExpectQuery(`SELECT MAX\(created_at\)`).
			WithArgs(actor.ID, stepID).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(now.Add(-7 * time.Hour)))

		err := guard.CheckAndAdmit(actor, stepID, SubmissionStepFeedback, now)

		var conflict *apperrors.ConflictError
		assert.True(t, errors.As(err, &conflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFlagReportRecomputesAggregate(t *testing.T) {
	guard, mock := newSubmissionGuard(t)

	reportID := uuid.New()
	stepID := uuid.New()
	routeID := uuid.New()
	moderator := &models.Actor{ID: uuid.New(), Reputation: 300}
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM fare_reports WHERE id = \$1`).
		WithArgs(reportID).
		WillReturnRows(sqlmock.NewRows(reportTestColumns).
			AddRow(reportID, uuid.New(), stepID, 9000.0, "bus", now.AddDate(0, 0, -1),
				1, 5, nil, nil, nil, nil,
				100.0, 80, false, false, nil, true, now, now))

	mock.ExpectQuery(`UPDATE fare_reports\s+SET is_flagged = true`).
		WithArgs("inflated fare", models.ConfidenceFloor, models.FlagPenalty, reportID).
		WillReturnRows(sqlmock.NewRows(reportTestColumns).
			AddRow(reportID, uuid.New(), stepID, 9000.0, "bus", now.AddDate(0, 0, -1),
				1, 5, nil, nil, nil, nil,
				100.0, 30, false, true, "inflated fare", true, now, now))

	// The flagged report is the only one in the window, so the recomputed
	// aggregate published alongside the report is empty.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM route_steps WHERE id = \$1 FOR UPDATE`).
		WithArgs(stepID).
		WillReturnRows(lockedStepRow(stepID, routeID, 250, 400))
	mock.ExpectQuery(`ORDER BY created_at ASC`).
		WithArgs(stepID, 30).
		WillReturnRows(sqlmock.NewRows(reportTestColumns).
			AddRow(reportID, uuid.New(), stepID, 9000.0, "bus", now.AddDate(0, 0, -1),
				1, 5, nil, nil, nil, nil,
				100.0, 30, false, true, "inflated fare", true, now, now))
	mock.ExpectExec(`UPDATE route_steps\s+SET avg_fare = \$1`).
		WithArgs(nil, nil, 0.0, 0, 0, stepID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`avg_fare = s\.total_fare`).
		WithArgs(routeID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// The moderation audit write hits the database with no scripted
	// expectation; its failure is logged and swallowed.
	report, agg, err := guard.FlagReport(reportID, "inflated fare", moderator, ClientInfo{})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.IsFlagged)
	assert.Equal(t, 30, report.ConfidenceScore)
	require.NotNil(t, agg)
	assert.Nil(t, agg.AvgFare)
	assert.Equal(t, 0, agg.ReportCount)
	assert.Equal(t, 0.0, agg.Confidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}
