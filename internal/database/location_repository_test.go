package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
)

func locationRow(id uuid.UUID, name string, lat, lng float64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(locationColumnList).AddRow(
		id, name, lat, lng, nil, "Lagos", "Lagos", "motor_park",
		false, 0, 0, true, nil, now, now,
	)
}

func TestLocationGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLocationRepository(db)

	t.Run("Success", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM locations WHERE id = \$1 AND is_active = true`).
			WithArgs(id).
			WillReturnRows(locationRow(id, "Ojota Motor Park", 6.5874, 3.3786))

		loc, err := repo.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, "Ojota Motor Park", loc.Name)
		assert.Equal(t, 6.5874, loc.Latitude)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM locations WHERE id = \$1 AND is_active = true`).
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		loc, err := repo.GetByID(id)
		assert.Nil(t, loc)

		var notFound *apperrors.NotFoundError
		assert.True(t, errors.As(err, &notFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLocationExistsNear(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLocationRepository(db)

	t.Run("Exists", func(t *testing.T) {
		// Compute the bounds at runtime so they match the repository's
		// float64 arithmetic rather than Go's exact constant folding.
		tol := 0.0005
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(6.5874-tol, 6.5874+tol, 3.3786-tol, 3.3786+tol).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := repo.ExistsNear(6.5874, 3.3786, 0.0005)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Does Not Exist", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		exists, err := repo.ExistsNear(9.0765, 7.3986, 0.0005)
		require.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLocationFindWithinBox(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLocationRepository(db)

	t.Run("Without Category", func(t *testing.T) {
		rows := locationRow(uuid.New(), "Mile 12 Market", 6.6051, 3.3958)

		mock.ExpectQuery(`SELECT (.+) FROM locations`).
			WithArgs(6.5, 6.7, 3.3, 3.5).
			WillReturnRows(rows)

		locs, err := repo.FindWithinBox(6.5, 6.7, 3.3, 3.5, "")
		require.NoError(t, err)
		require.Len(t, locs, 1)
		assert.Equal(t, "Mile 12 Market", locs[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("With Category", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM locations`).
			WithArgs(6.5, 6.7, 3.3, 3.5, "market").
			WillReturnRows(sqlmock.NewRows(locationColumnList))

		locs, err := repo.FindWithinBox(6.5, 6.7, 3.3, 3.5, "market")
		require.NoError(t, err)
		assert.Empty(t, locs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLocationDeactivate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLocationRepository(db)

	t.Run("Success", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectExec(`UPDATE locations SET is_active = false`).
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Deactivate(id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectExec(`UPDATE locations SET is_active = false`).
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Deactivate(id)
		var notFound *apperrors.NotFoundError
		assert.True(t, errors.As(err, &notFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		id := uuid.New()

		mock.ExpectExec(`UPDATE locations SET is_active = false`).
			WithArgs(id).
			WillReturnError(fmt.Errorf("connection reset"))

		err := repo.Deactivate(id)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to deactivate location")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLocationIncrementSearchCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLocationRepository(db)

	t.Run("No IDs Is A No-Op", func(t *testing.T) {
		assert.NoError(t, repo.IncrementSearchCount(nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Bumps Counters", func(t *testing.T) {
		mock.ExpectExec(`UPDATE locations SET search_count = search_count \+ 1`).
			WithArgs(sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 2))

		assert.NoError(t, repo.IncrementSearchCount([]uuid.UUID{uuid.New(), uuid.New()}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
