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

func testGeoConfig() config.GeoConfig {
	return config.GeoConfig{
		MinLatitude:           4.0,
		MaxLatitude:           14.0,
		MinLongitude:          2.5,
		MaxLongitude:          15.0,
		MaxRadiusKm:           50,
		DuplicateToleranceDeg: 0.0005,
		DefaultNearbyLimit:    20,
	}
}

func newGeoService(t *testing.T) (*GeoService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewLocationRepository(&database.PostgresDB{DB: sqlx.NewDb(db, "sqlmock")})
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return NewGeoService(repo, testGeoConfig(), logger), mock
}

var geoTestColumns = []string{
	"id", "name", "latitude", "longitude", "address", "city", "state", "category",
	"is_verified", "search_count", "route_count", "is_active", "created_by",
	"created_at", "updated_at",
}

func addLocation(rows *sqlmock.Rows, name string, lat, lng float64, searchCount int) {
	now := time.Now()
	rows.AddRow(uuid.New(), name, lat, lng, nil, "Lagos", "Lagos", "motor_park",
		false, searchCount, 0, true, nil, now, now)
}

func TestHaversine(t *testing.T) {
	t.Run("Zero Distance", func(t *testing.T) {
		assert.Equal(t, 0.0, Haversine(6.5244, 3.3792, 6.5244, 3.3792))
	})

	t.Run("Lagos To Ibadan", func(t *testing.T) {
		// Lagos (6.5244, 3.3792) to Ibadan (7.3775, 3.9470), roughly 113 km.
		d := Haversine(6.5244, 3.3792, 7.3775, 3.9470)
		assert.InDelta(t, 113, d, 5)
	})

	t.Run("Symmetric", func(t *testing.T) {
		d1 := Haversine(6.5244, 3.3792, 9.0765, 7.3986)
		d2 := Haversine(9.0765, 7.3986, 6.5244, 3.3792)
		assert.InDelta(t, d1, d2, 1e-9)
	})
}

func TestInBounds(t *testing.T) {
	svc, _ := newGeoService(t)

	assert.True(t, svc.InBounds(6.5244, 3.3792))   // Lagos
	assert.True(t, svc.InBounds(9.0765, 7.3986))   // Abuja
	assert.False(t, svc.InBounds(51.5074, -0.1278)) // London
	assert.False(t, svc.InBounds(6.5244, 1.0))      // west of the box
}

func TestFindNearby(t *testing.T) {
	t.Run("Out Of Bounds Coordinates Rejected", func(t *testing.T) {
		svc, _ := newGeoService(t)

		_, err := svc.FindNearby(&models.NearbyQuery{Latitude: 51.5, Longitude: -0.12, RadiusKm: 5})

		var verr *apperrors.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("Non Positive Radius Rejected", func(t *testing.T) {
		svc, _ := newGeoService(t)

		_, err := svc.FindNearby(&models.NearbyQuery{Latitude: 6.5, Longitude: 3.4, RadiusKm: 0})

		var verr *apperrors.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "radius_km", verr.Field)
	})

	t.Run("Filters And Sorts By Distance", func(t *testing.T) {
		svc, mock := newGeoService(t)

		rows := sqlmock.NewRows(geoTestColumns)
		addLocation(rows, "Far Park", 6.60, 3.38, 10)    // ~8.4 km north
		addLocation(rows, "Near Park", 6.53, 3.38, 5)    // ~0.6 km
		addLocation(rows, "Outside Park", 6.80, 3.38, 1) // ~30 km, beyond radius

		mock.ExpectQuery(`SELECT (.+) FROM locations`).WillReturnRows(rows)

		results, err := svc.FindNearby(&models.NearbyQuery{
			Latitude:  6.5244,
			Longitude: 3.3792,
			RadiusKm:  10,
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "Near Park", results[0].Name)
		assert.Equal(t, "Far Park", results[1].Name)
		assert.Less(t, results[0].DistanceKm, results[1].DistanceKm)
	})

	t.Run("Ties Broken By Popularity", func(t *testing.T) {
		svc, mock := newGeoService(t)

		rows := sqlmock.NewRows(geoTestColumns)
		addLocation(rows, "Quiet Park", 6.53, 3.38, 2)
		addLocation(rows, "Busy Park", 6.53, 3.38, 90)

		mock.ExpectQuery(`SELECT (.+) FROM locations`).WillReturnRows(rows)

		results, err := svc.FindNearby(&models.NearbyQuery{
			Latitude:  6.5244,
			Longitude: 3.3792,
			RadiusKm:  5,
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "Busy Park", results[0].Name)
	})

	t.Run("Limit Truncates Results", func(t *testing.T) {
		svc, mock := newGeoService(t)

		rows := sqlmock.NewRows(geoTestColumns)
		addLocation(rows, "One", 6.525, 3.379, 0)
		addLocation(rows, "Two", 6.526, 3.379, 0)
		addLocation(rows, "Three", 6.527, 3.379, 0)

		mock.ExpectQuery(`SELECT (.+) FROM locations`).WillReturnRows(rows)

		results, err := svc.FindNearby(&models.NearbyQuery{
			Latitude:  6.5244,
			Longitude: 3.3792,
			RadiusKm:  5,
			Limit:     2,
		})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})
}

func TestFindByCoordinates(t *testing.T) {
	t.Run("Out Of Bounds", func(t *testing.T) {
		svc, _ := newGeoService(t)

		_, err := svc.FindByCoordinates(51.5, -0.12, 0)

		var verr *apperrors.ValidationError
		assert.True(t, errors.As(err, &verr))
	})

	t.Run("Duplicate Found", func(t *testing.T) {
		svc, mock := newGeoService(t)

		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := svc.FindByCoordinates(6.5244, 3.3792, 0)
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
