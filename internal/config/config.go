package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Geo         GeoConfig
	Reputation  ReputationConfig
	Aggregation AggregationConfig
	Cooldown    CooldownConfig
	Retention   RetentionConfig
	CORS        CORSConfig
	Logging     LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds identity token configuration. Tokens are minted by the
// external identity service; this service only needs the shared secret to
// verify them.
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// GeoConfig bounds all coordinate input to the operating country and caps
// proximity query cost.
type GeoConfig struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
	MaxRadiusKm  float64
	// DuplicateToleranceDeg is the +/- degree box used to treat two
	// locations as the same point on creation.
	DuplicateToleranceDeg float64
	DefaultNearbyLimit    int
}

// ReputationConfig holds the point grant table and the privilege ladder.
type ReputationConfig struct {
	// Grants
	CreateLocation      int
	ImproveLocation     int
	CreateRoute         int
	ImproveRoute        int
	FareReport          int
	FareReportConfident int // granted instead of FareReport when self-declared confidence >= 4
	SafetyReport        int
	SuggestRoute        int
	SuggestionApproved  int
	DirectionShared     int
	DirectionUsed       int

	// Gates
	RouteCreateMin      int
	NonOwnerEditMin     int
	NonOwnerDeleteMin   int
	SuggestionSubmitMin int
	SuggestionReviewMin int
}

// AggregationConfig holds the report weighting and window policy.
type AggregationConfig struct {
	// WindowSize is the max number of raw reports retained per target,
	// oldest evicted first.
	WindowSize int
	// RecencyDays excludes retained reports older than this from the
	// current average.
	RecencyDays int
	// MinReportsForRangeUpdate is the number of unflagged reports in the
	// window required before the published fare range may be recomputed.
	MinReportsForRangeUpdate int
	// RangeUpdatePct is the relative change (0-1) the recomputed range
	// must exceed before the published estimate is replaced.
	RangeUpdatePct float64
	// ReputationFloor prevents a zero aggregation weight for brand-new
	// or anonymous reporters.
	ReputationFloor float64
}

// CooldownConfig holds per-contributor submission cooldowns.
type CooldownConfig struct {
	StepFeedback time.Duration // full route-step feedback path
	FareReport   time.Duration // lighter-weight fare report path
}

// RetentionConfig holds the report retention horizon.
type RetentionConfig struct {
	ReportMaxAgeDays int
	// TravelDateMaxAgeDays bounds how far back a reported travel date may be.
	TravelDateMaxAgeDays int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// LoggingConfig holds log output configuration
type LoggingConfig struct {
	File       string // empty means stdout only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Geo: GeoConfig{
			// Nigeria bounding box
			MinLatitude:           getEnvAsFloat("GEO_MIN_LATITUDE", 4.0),
			MaxLatitude:           getEnvAsFloat("GEO_MAX_LATITUDE", 14.0),
			MinLongitude:          getEnvAsFloat("GEO_MIN_LONGITUDE", 2.5),
			MaxLongitude:          getEnvAsFloat("GEO_MAX_LONGITUDE", 15.0),
			MaxRadiusKm:           getEnvAsFloat("GEO_MAX_RADIUS_KM", 50),
			DuplicateToleranceDeg: getEnvAsFloat("GEO_DUPLICATE_TOLERANCE_DEG", 0.0005),
			DefaultNearbyLimit:    getEnvAsInt("GEO_DEFAULT_NEARBY_LIMIT", 20),
		},
		Reputation: ReputationConfig{
			CreateLocation:      getEnvAsInt("REP_CREATE_LOCATION", 10),
			ImproveLocation:     getEnvAsInt("REP_IMPROVE_LOCATION", 5),
			CreateRoute:         getEnvAsInt("REP_CREATE_ROUTE", 20),
			ImproveRoute:        getEnvAsInt("REP_IMPROVE_ROUTE", 5),
			FareReport:          getEnvAsInt("REP_FARE_REPORT", 3),
			FareReportConfident: getEnvAsInt("REP_FARE_REPORT_CONFIDENT", 5),
			SafetyReport:        getEnvAsInt("REP_SAFETY_REPORT", 10),
			SuggestRoute:        getEnvAsInt("REP_SUGGEST_ROUTE", 15),
			SuggestionApproved:  getEnvAsInt("REP_SUGGESTION_APPROVED", 25),
			DirectionShared:     getEnvAsInt("REP_DIRECTION_SHARED", 5),
			DirectionUsed:       getEnvAsInt("REP_DIRECTION_USED", 1),
			RouteCreateMin:      getEnvAsInt("REP_GATE_ROUTE_CREATE", 50),
			NonOwnerEditMin:     getEnvAsInt("REP_GATE_NON_OWNER_EDIT", 200),
			NonOwnerDeleteMin:   getEnvAsInt("REP_GATE_NON_OWNER_DELETE", 1000),
			SuggestionSubmitMin: getEnvAsInt("REP_GATE_SUGGESTION_SUBMIT", 50),
			SuggestionReviewMin: getEnvAsInt("REP_GATE_SUGGESTION_REVIEW", 500),
		},
		Aggregation: AggregationConfig{
			WindowSize:               getEnvAsInt("AGG_WINDOW_SIZE", 30),
			RecencyDays:              getEnvAsInt("AGG_RECENCY_DAYS", 30),
			MinReportsForRangeUpdate: getEnvAsInt("AGG_MIN_REPORTS_FOR_RANGE_UPDATE", 3),
			RangeUpdatePct:           getEnvAsFloat("AGG_RANGE_UPDATE_PCT", 0.20),
			ReputationFloor:          getEnvAsFloat("AGG_REPUTATION_FLOOR", 0.1),
		},
		Cooldown: CooldownConfig{
			StepFeedback: time.Duration(getEnvAsInt("COOLDOWN_STEP_FEEDBACK_HOURS", 24)) * time.Hour,
			FareReport:   time.Duration(getEnvAsInt("COOLDOWN_FARE_REPORT_HOURS", 6)) * time.Hour,
		},
		Retention: RetentionConfig{
			ReportMaxAgeDays:     getEnvAsInt("RETENTION_REPORT_MAX_AGE_DAYS", 540),
			TravelDateMaxAgeDays: getEnvAsInt("RETENTION_TRAVEL_DATE_MAX_AGE_DAYS", 365),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Logging: LoggingConfig{
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Geo.MinLatitude >= c.Geo.MaxLatitude {
		return fmt.Errorf("GEO_MIN_LATITUDE must be below GEO_MAX_LATITUDE")
	}

	if c.Geo.MinLongitude >= c.Geo.MaxLongitude {
		return fmt.Errorf("GEO_MIN_LONGITUDE must be below GEO_MAX_LONGITUDE")
	}

	if c.Geo.MaxRadiusKm <= 0 {
		return fmt.Errorf("GEO_MAX_RADIUS_KM must be positive")
	}

	if c.Aggregation.WindowSize < 1 {
		return fmt.Errorf("AGG_WINDOW_SIZE must be at least 1")
	}

	if c.Aggregation.RangeUpdatePct < 0 || c.Aggregation.RangeUpdatePct > 1 {
		return fmt.Errorf("AGG_RANGE_UPDATE_PCT must be between 0 and 1")
	}

	// The privilege ladder ordering must hold whatever the exact numbers:
	// editing someone else's entity takes less trust than reviewing
	// suggestions, which takes less trust than deleting.
	r := c.Reputation
	if r.NonOwnerEditMin >= r.SuggestionReviewMin {
		return fmt.Errorf("REP_GATE_NON_OWNER_EDIT must be below REP_GATE_SUGGESTION_REVIEW")
	}
	if r.NonOwnerEditMin >= r.NonOwnerDeleteMin {
		return fmt.Errorf("REP_GATE_NON_OWNER_EDIT must be below REP_GATE_NON_OWNER_DELETE")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
