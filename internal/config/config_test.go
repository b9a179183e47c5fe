package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crowdroutes_test")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)

	assert.Equal(t, 4.0, cfg.Geo.MinLatitude)
	assert.Equal(t, 14.0, cfg.Geo.MaxLatitude)
	assert.Equal(t, 50.0, cfg.Geo.MaxRadiusKm)

	assert.Equal(t, 30, cfg.Aggregation.WindowSize)
	assert.Equal(t, 30, cfg.Aggregation.RecencyDays)
	assert.Equal(t, 3, cfg.Aggregation.MinReportsForRangeUpdate)
	assert.Equal(t, 0.20, cfg.Aggregation.RangeUpdatePct)
	assert.Equal(t, 0.1, cfg.Aggregation.ReputationFloor)

	assert.Equal(t, 24*time.Hour, cfg.Cooldown.StepFeedback)
	assert.Equal(t, 6*time.Hour, cfg.Cooldown.FareReport)

	assert.Equal(t, 50, cfg.Reputation.RouteCreateMin)
	assert.Equal(t, 200, cfg.Reputation.NonOwnerEditMin)
	assert.Equal(t, 500, cfg.Reputation.SuggestionReviewMin)
	assert.Equal(t, 1000, cfg.Reputation.NonOwnerDeleteMin)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crowdroutes_test")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("AGG_WINDOW_SIZE", "50")
	t.Setenv("COOLDOWN_FARE_REPORT_HOURS", "12")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Aggregation.WindowSize)
	assert.Equal(t, 12*time.Hour, cfg.Cooldown.FareReport)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/crowdroutes_test")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("AGG_WINDOW_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Aggregation.WindowSize)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{URL: "postgres://localhost/db"},
			JWT:      JWTConfig{Secret: "s"},
			Geo: GeoConfig{
				MinLatitude: 4, MaxLatitude: 14,
				MinLongitude: 2.5, MaxLongitude: 15,
				MaxRadiusKm: 50,
			},
			Aggregation: AggregationConfig{WindowSize: 30, RangeUpdatePct: 0.2},
			Reputation: ReputationConfig{
				NonOwnerEditMin:     200,
				SuggestionReviewMin: 500,
				NonOwnerDeleteMin:   1000,
			},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("Missing Database URL", func(t *testing.T) {
		cfg := valid()
		cfg.Database.URL = ""
		assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
	})

	t.Run("Missing JWT Secret", func(t *testing.T) {
		cfg := valid()
		cfg.JWT.Secret = ""
		assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")
	})

	t.Run("Inverted Latitude Bounds", func(t *testing.T) {
		cfg := valid()
		cfg.Geo.MinLatitude = 20
		assert.ErrorContains(t, cfg.Validate(), "GEO_MIN_LATITUDE")
	})

	t.Run("Zero Window", func(t *testing.T) {
		cfg := valid()
		cfg.Aggregation.WindowSize = 0
		assert.ErrorContains(t, cfg.Validate(), "AGG_WINDOW_SIZE")
	})

	t.Run("Range Pct Above One", func(t *testing.T) {
		cfg := valid()
		cfg.Aggregation.RangeUpdatePct = 1.5
		assert.ErrorContains(t, cfg.Validate(), "AGG_RANGE_UPDATE_PCT")
	})

	t.Run("Edit Gate Above Review Gate", func(t *testing.T) {
		cfg := valid()
		cfg.Reputation.NonOwnerEditMin = 600
		assert.ErrorContains(t, cfg.Validate(), "REP_GATE_NON_OWNER_EDIT")
	})

	t.Run("Edit Gate Above Delete Gate", func(t *testing.T) {
		cfg := valid()
		cfg.Reputation.NonOwnerEditMin = 400
		cfg.Reputation.NonOwnerDeleteMin = 300
		assert.ErrorContains(t, cfg.Validate(), "REP_GATE_NON_OWNER_DELETE")
	})
}
