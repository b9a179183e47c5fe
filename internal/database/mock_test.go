package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// newMockDB wraps a sqlmock connection in the sqlx-backed DB implementation
// so repositories run their real scanning code against scripted rows.
func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}, mock
}

var locationColumnList = []string{
	"id", "name", "latitude", "longitude", "address", "city", "state", "category",
	"is_verified", "search_count", "route_count", "is_active", "created_by",
	"created_at", "updated_at",
}

var stepColumnList = []string{
	"id", "route_id", "step_number", "from_location_id", "to_location_id", "vehicle_mode",
	"instructions", "fare_min", "fare_max", "duration_minutes", "created_at", "updated_at",
	"avg_fare", "avg_duration_minutes", "confidence", "contributor_count",
	"report_count", "aggregate_updated_at",
}

var routeColumnList = []string{
	"id", "start_location_id", "end_location_id", "vehicle_modes", "fare_min", "fare_max",
	"duration_minutes", "difficulty", "path_geometry", "is_active", "needs_approval",
	"created_by", "created_at", "updated_at",
	"avg_fare", "avg_duration_minutes", "confidence", "contributor_count",
	"report_count", "aggregate_updated_at",
}

var reportColumnList = []string{
	"id", "reporter_id", "route_step_id", "amount_paid", "vehicle_mode", "travel_date",
	"rating", "confidence", "traffic", "weather", "time_of_day", "duration_minutes",
	"reporter_reputation", "confidence_score", "is_verified", "is_flagged",
	"flag_reason", "is_active", "created_at", "updated_at",
}

var suggestionColumnList = []string{
	"id", "route_id", "submitted_by", "submitter_confidence", "reviewed_by",
	"approved_at", "rejected_at", "review_comments", "created_at", "updated_at",
}
