package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

func testAggregationConfig() config.AggregationConfig {
	return config.AggregationConfig{
		WindowSize:               30,
		RecencyDays:              30,
		MinReportsForRangeUpdate: 3,
		RangeUpdatePct:           0.20,
		ReputationFloor:          0.1,
	}
}

func buildAggregatorService(pg *database.PostgresDB, logger *logrus.Logger) *AggregatorService {
	audit := NewAuditService(pg)
	reputation := NewReputationService(database.NewReputationRepository(pg), audit, testReputationConfig(), logger)

	return NewAggregatorService(
		pg,
		database.NewReportRepository(pg),
		database.NewRouteRepository(pg),
		reputation,
		audit,
		testAggregationConfig(),
		config.RetentionConfig{ReportMaxAgeDays: 540, TravelDateMaxAgeDays: 365},
		logger,
	)
}

func newAggregatorService(t *testing.T) (*AggregatorService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pg := &database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return buildAggregatorService(pg, logger), mock
}

var stepTestColumns = []string{
	"id", "route_id", "step_number", "from_location_id", "to_location_id", "vehicle_mode",
	"instructions", "fare_min", "fare_max", "duration_minutes", "created_at", "updated_at",
	"avg_fare", "avg_duration_minutes", "confidence", "contributor_count",
	"report_count", "aggregate_updated_at",
}

var reportTestColumns = []string{
	"id", "reporter_id", "route_step_id", "amount_paid", "vehicle_mode", "travel_date",
	"rating", "confidence", "traffic", "weather", "time_of_day", "duration_minutes",
	"reporter_reputation", "confidence_score", "is_verified", "is_flagged",
	"flag_reason", "is_active", "created_at", "updated_at",
}

func lockedStepRow(stepID, routeID uuid.UUID, fareMin, fareMax float64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(stepTestColumns).
		AddRow(stepID, routeID, 1, uuid.New(), uuid.New(), "bus",
			nil, fareMin, fareMax, 30, now, now,
			nil, nil, 0.0, 0, 0, nil)
}

// stepWindowRows builds a retained window of unflagged reports from distinct
// trusted reporters, one per amount.
func stepWindowRows(stepID uuid.UUID, amounts ...float64) *sqlmock.Rows {
	now := time.Now()
	rows := sqlmock.NewRows(reportTestColumns)
	for _, amount := range amounts {
		rows.AddRow(uuid.New(), uuid.New(), stepID, amount, "bus", now.AddDate(0, 0, -1),
			4, 5, nil, nil, nil, nil,
			100.0, 100, false, false,
			nil, true, now, now)
	}
	return rows
}

func TestReportWeight(t *testing.T) {
	t.Run("Established Reporter", func(t *testing.T) {
		// Confidence 5, reputation 100 -> full weight.
		assert.Equal(t, 5.0, ReportWeight(5, 100, 0.1))
	})

	t.Run("Low Reputation Hits The Floor", func(t *testing.T) {
		// Reputation 5 normalizes to 0.05, below the 0.1 floor.
		assert.Equal(t, 0.1, ReportWeight(1, 5, 0.1))
	})

	t.Run("Anonymous Reporter", func(t *testing.T) {
		// Compute 3 x floor at runtime so the expectation matches the
		// float64 arithmetic in ReportWeight rather than Go's exact
		// constant folding (3*0.1 folds to 0.3 exactly).
		floor := 0.1
		assert.Equal(t, 3*floor, ReportWeight(3, 0, floor))
	})

	t.Run("High Reputation Scales Past One", func(t *testing.T) {
		assert.Equal(t, 6.0, ReportWeight(3, 200, 0.1))
	})
}

func TestFareRating(t *testing.T) {
	// Range 200-400: mid 300, tolerance 50.
	tests := []struct {
		name   string
		amount float64
		want   int
	}{
		{"Well Below Midpoint", 240, 5},
		{"At Lower Tolerance Edge", 250, 5},
		{"Near Midpoint", 300, 4},
		{"At Upper Tolerance Edge", 350, 4},
		{"Within Range", 390, 3},
		{"At Range Maximum", 400, 3},
		{"Slightly Over", 460, 2},
		{"At Overshoot Limit", 480, 2},
		{"Far Over", 600, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FareRating(tt.amount, 200, 400))
		})
	}

	t.Run("Degenerate Range", func(t *testing.T) {
		// fare_min == fare_max: tolerance collapses to zero.
		assert.Equal(t, 5, FareRating(250, 300, 300))
		assert.Equal(t, 5, FareRating(300, 300, 300))
		assert.Equal(t, 1, FareRating(500, 300, 300))
	})
}

func reporter(id string) *string {
	return &id
}

func TestComputeAggregate(t *testing.T) {
	now := time.Now()
	recent := now.Add(-24 * time.Hour)

	t.Run("Weighted Average Favors Trusted Reporters", func(t *testing.T) {
		reports := []models.WindowReport{
			{ReporterID: reporter("a"), AmountPaid: 300, Confidence: 5, Reputation: 100, CreatedAt: recent},
			{ReporterID: reporter("b"), AmountPaid: 320, Confidence: 5, Reputation: 100, CreatedAt: recent},
			{ReporterID: reporter("c"), AmountPaid: 500, Confidence: 1, Reputation: 10, CreatedAt: recent},
		}

		agg := ComputeAggregate(reports, now, 30, 0.1)
		require.NotNil(t, agg.AvgFare)

		// Weights: 5, 5, 0.1. The outlier barely moves the average.
		assert.InDelta(t, 3150.0/10.1, *agg.AvgFare, 0.01)
		unweighted := (300.0 + 320.0 + 500.0) / 3
		assert.Less(t, *agg.AvgFare, unweighted)

		assert.Equal(t, 3, agg.ReportCount)
		assert.Equal(t, 3, agg.ContributorCount)
	})

	t.Run("Flagged Reports Excluded", func(t *testing.T) {
		reports := []models.WindowReport{
			{ReporterID: reporter("a"), AmountPaid: 300, Confidence: 5, Reputation: 100, CreatedAt: recent},
			{ReporterID: reporter("b"), AmountPaid: 9000, Confidence: 5, Reputation: 100, Flagged: true, CreatedAt: recent},
		}

		agg := ComputeAggregate(reports, now, 30, 0.1)
		require.NotNil(t, agg.AvgFare)
		assert.Equal(t, 300.0, *agg.AvgFare)
		assert.Equal(t, 1, agg.ReportCount)
	})

	t.Run("Stale Reports Excluded", func(t *testing.T) {
		reports := []models.WindowReport{
			{ReporterID: reporter("a"), AmountPaid: 300, Confidence: 5, Reputation: 100, CreatedAt: recent},
			{ReporterID: reporter("b"), AmountPaid: 100, Confidence: 5, Reputation: 100, CreatedAt: now.AddDate(0, 0, -45)},
		}

		agg := ComputeAggregate(reports, now, 30, 0.1)
		require.NotNil(t, agg.AvgFare)
		assert.Equal(t, 300.0, *agg.AvgFare)
	})

	t.Run("Empty Window", func(t *testing.T) {
		agg := ComputeAggregate(nil, now, 30, 0.1)
		assert.Nil(t, agg.AvgFare)
		assert.Nil(t, agg.AvgDurationMinutes)
		assert.Equal(t, 0.0, agg.Confidence)
		assert.Equal(t, 0, agg.ReportCount)
	})

	t.Run("Confidence Is Weighted Mean Of Scaled Declarations", func(t *testing.T) {
		reports := []models.WindowReport{
			{ReporterID: reporter("a"), AmountPaid: 300, Confidence: 5, Reputation: 100, CreatedAt: recent},
		}

		agg := ComputeAggregate(reports, now, 30, 0.1)
		assert.Equal(t, 100.0, agg.Confidence)
	})

	t.Run("Order Independent", func(t *testing.T) {
		reports := []models.WindowReport{
			{ReporterID: reporter("a"), AmountPaid: 300, Confidence: 5, Reputation: 100, CreatedAt: recent},
			{ReporterID: reporter("b"), AmountPaid: 320, Confidence: 5, Reputation: 100, CreatedAt: recent},
			{ReporterID: reporter("c"), AmountPaid: 500, Confidence: 1, Reputation: 10, CreatedAt: recent},
		}
		reversed := []models.WindowReport{reports[2], reports[1], reports[0]}

		forward := ComputeAggregate(reports, now, 30, 0.1)
		backward := ComputeAggregate(reversed, now, 30, 0.1)

		require.NotNil(t, forward.AvgFare)
		require.NotNil(t, backward.AvgFare)
		assert.InDelta(t, *forward.AvgFare, *backward.AvgFare, 1e-9)
		assert.Equal(t, forward.ContributorCount, backward.ContributorCount)
	})

	t.Run("Distinct Contributors With Anonymous Reports", func(t *testing.T) {
		duration := 40.0
		reports := []models.WindowReport{
			{ReporterID: reporter("a"), AmountPaid: 300, Confidence: 4, Reputation: 50, CreatedAt: recent},
			{ReporterID: reporter("a"), AmountPaid: 310, Confidence: 4, Reputation: 50, CreatedAt: recent},
			{AmountPaid: 320, Confidence: 2, Reputation: 0, CreatedAt: recent, DurationMinutes: &duration},
		}

		agg := ComputeAggregate(reports, now, 30, 0.1)
		assert.Equal(t, 3, agg.ReportCount)
		assert.Equal(t, 2, agg.ContributorCount)
		require.NotNil(t, agg.AvgDurationMinutes)
		assert.Equal(t, 40.0, *agg.AvgDurationMinutes)
	})
}

func TestRangeNeedsUpdate(t *testing.T) {
	t.Run("Small Drift Keeps Published Range", func(t *testing.T) {
		assert.False(t, rangeNeedsUpdate(300, 400, 310, 420, 0.20))
	})

	t.Run("Large Minimum Shift Triggers Update", func(t *testing.T) {
		assert.True(t, rangeNeedsUpdate(300, 400, 380, 400, 0.20))
	})

	t.Run("Large Maximum Shift Triggers Update", func(t *testing.T) {
		assert.True(t, rangeNeedsUpdate(300, 400, 300, 500, 0.20))
	})

	t.Run("Exactly At Threshold Does Not Trigger", func(t *testing.T) {
		assert.False(t, rangeNeedsUpdate(300, 400, 360, 400, 0.20))
	})

	t.Run("Zero Current Bound", func(t *testing.T) {
		assert.True(t, rangeNeedsUpdate(0, 400, 100, 400, 0.20))
		assert.False(t, rangeNeedsUpdate(0, 400, 0, 400, 0.20))
	})
}

func TestRecomputeStepReturnsFreshAggregate(t *testing.T) {
	svc, mock := newAggregatorService(t)

	stepID := uuid.New()
	routeID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM route_steps WHERE id = \$1 FOR UPDATE`).
		WithArgs(stepID).
		WillReturnRows(lockedStepRow(stepID, routeID, 250, 400))
	mock.ExpectQuery(`ORDER BY created_at ASC`).
		WithArgs(stepID, 30).
		WillReturnRows(stepWindowRows(stepID, 300, 320))
	mock.ExpectExec(`UPDATE route_steps\s+SET avg_fare = \$1`).
		WithArgs(310.0, nil, 100.0, 2, 2, stepID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`avg_fare = s\.total_fare`).
		WithArgs(routeID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	agg, err := svc.RecomputeStep(stepID)
	require.NoError(t, err)
	require.NotNil(t, agg)
	require.NotNil(t, agg.AvgFare)
	assert.InDelta(t, 310.0, *agg.AvgFare, 1e-9)
	assert.Equal(t, 100.0, agg.Confidence)
	assert.Equal(t, 2, agg.ReportCount)
	assert.Equal(t, 2, agg.ContributorCount)
	assert.NotNil(t, agg.AggregateUpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReportReturnsAggregate(t *testing.T) {
	svc, mock := newAggregatorService(t)

	stepID := uuid.New()
	routeID := uuid.New()
	reportID := uuid.New()
	now := time.Now()

	req := &models.SubmitFareReportRequest{
		RouteStepID: stepID,
		AmountPaid:  300,
		VehicleMode: "bus",
		TravelDate:  now.AddDate(0, 0, -1),
		Confidence:  4,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM route_steps WHERE id = \$1 FOR UPDATE`).
		WithArgs(stepID).
		WillReturnRows(lockedStepRow(stepID, routeID, 250, 400))
	mock.ExpectQuery(`INSERT INTO fare_reports`).
		WillReturnRows(sqlmock.NewRows(reportTestColumns).
			AddRow(reportID, nil, stepID, 300.0, "bus", req.TravelDate,
				4, 4, nil, nil, nil, nil,
				0.0, 80, false, false, nil, true, now, now))
	mock.ExpectQuery(`ORDER BY created_at ASC`).
		WithArgs(stepID, 30).
		WillReturnRows(stepWindowRows(stepID, 300))
	mock.ExpectExec(`UPDATE route_steps\s+SET avg_fare = \$1`).
		WithArgs(300.0, nil, 100.0, 1, 1, stepID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`avg_fare = s\.total_fare`).
		WithArgs(routeID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// The post-commit audit write hits the database with no scripted
	// expectation; its failure is logged and swallowed. The anonymous actor
	// earns no reputation, so no grant is attempted.
	report, agg, err := svc.RecordReport(req, nil, ClientInfo{})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, reportID, report.ID)
	require.NotNil(t, agg)
	require.NotNil(t, agg.AvgFare)
	assert.InDelta(t, 300.0, *agg.AvgFare, 1e-9)
	assert.Equal(t, 1, agg.ReportCount)
	assert.NotNil(t, agg.AggregateUpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportWindowFIFO(t *testing.T) {
	w := models.NewReportWindow(3)

	for i := 1; i <= 5; i++ {
		w.Add(models.WindowReport{AmountPaid: float64(i * 100)})
	}

	assert.Equal(t, 3, w.Len())
	reports := w.Reports()
	// The two oldest reports were evicted.
	assert.Equal(t, 300.0, reports[0].AmountPaid)
	assert.Equal(t, 500.0, reports[2].AmountPaid)
}
