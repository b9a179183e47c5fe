package services

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// earthRadiusKm is the mean Earth radius used for great-circle distance.
const earthRadiusKm = 6371.0

// kmPerDegreeLat is the approximate north-south span of one degree of
// latitude, used only for candidate prefiltering.
const kmPerDegreeLat = 111.0

// GeoService answers proximity and text searches over locations
type GeoService struct {
	locations *database.LocationRepository
	cfg       config.GeoConfig
	logger    *logrus.Logger
}

// NewGeoService creates a new geo service
func NewGeoService(locations *database.LocationRepository, cfg config.GeoConfig, logger *logrus.Logger) *GeoService {
	return &GeoService{
		locations: locations,
		cfg:       cfg,
		logger:    logger,
	}
}

// Haversine returns the great-circle distance in kilometres between two
// points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// InBounds reports whether the point lies inside the operating bounding box.
func (s *GeoService) InBounds(lat, lng float64) bool {
	return lat >= s.cfg.MinLatitude && lat <= s.cfg.MaxLatitude &&
		lng >= s.cfg.MinLongitude && lng <= s.cfg.MaxLongitude
}

// FindNearby returns active locations within radiusKm of the query point,
// closest first. Ties are broken by popularity so results are stable.
// Pure read: usage counters are the caller's responsibility.
func (s *GeoService) FindNearby(q *models.NearbyQuery) ([]models.NearbyLocation, error) {
	if !s.InBounds(q.Latitude, q.Longitude) {
		return nil, apperrors.NewValidation("coordinates (%f, %f) are outside the supported area", q.Latitude, q.Longitude)
	}

	if q.RadiusKm <= 0 {
		return nil, apperrors.NewFieldValidation("radius_km", "must be positive")
	}
	radius := q.RadiusKm
	if radius > s.cfg.MaxRadiusKm {
		radius = s.cfg.MaxRadiusKm
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultNearbyLimit
	}

	// Prefilter with a degree box before computing exact distances.
	latDelta := radius / kmPerDegreeLat
	lngDelta := radius / (kmPerDegreeLat * math.Cos(toRadians(q.Latitude)))

	candidates, err := s.locations.FindWithinBox(
		q.Latitude-latDelta, q.Latitude+latDelta,
		q.Longitude-lngDelta, q.Longitude+lngDelta,
		q.Category,
	)
	if err != nil {
		return nil, err
	}

	results := make([]models.NearbyLocation, 0, len(candidates))
	for _, loc := range candidates {
		d := Haversine(q.Latitude, q.Longitude, loc.Latitude, loc.Longitude)
		if d <= radius {
			results = append(results, models.NearbyLocation{Location: loc, DistanceKm: d})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceKm != results[j].DistanceKm {
			return results[i].DistanceKm < results[j].DistanceKm
		}
		if results[i].SearchCount != results[j].SearchCount {
			return results[i].SearchCount > results[j].SearchCount
		}
		return results[i].Name < results[j].Name
	})

	if len(results) > limit {
		results = results[:limit]
	}

	s.logger.WithFields(logrus.Fields{
		"lat":       q.Latitude,
		"lng":       q.Longitude,
		"radius_km": radius,
		"matches":   len(results),
	}).Debug("Nearby query served")

	return results, nil
}

// FindByCoordinates reports whether an active location already exists
// within +/- toleranceDeg of the point. Used to prevent duplicate location
// creation at effectively the same spot.
func (s *GeoService) FindByCoordinates(lat, lng, toleranceDeg float64) (bool, error) {
	if !s.InBounds(lat, lng) {
		return false, apperrors.NewValidation("coordinates (%f, %f) are outside the supported area", lat, lng)
	}
	if toleranceDeg <= 0 {
		toleranceDeg = s.cfg.DuplicateToleranceDeg
	}

	return s.locations.ExistsNear(lat, lng, toleranceDeg)
}

// Search runs a paginated text/field search over locations.
func (s *GeoService) Search(q *models.SearchLocationsQuery) ([]models.Location, int, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}

	return s.locations.Search(q)
}
