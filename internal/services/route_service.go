package services

import (
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// RouteService validates and stores multi-step routes
type RouteService struct {
	routes     *database.RouteRepository
	locations  *database.LocationRepository
	reputation *ReputationService
	audit      *AuditService
	cfg        config.ReputationConfig
	logger     *logrus.Logger
}

// NewRouteService creates a new route service
func NewRouteService(
	routes *database.RouteRepository,
	locations *database.LocationRepository,
	reputation *ReputationService,
	audit *AuditService,
	cfg config.ReputationConfig,
	logger *logrus.Logger,
) *RouteService {
	return &RouteService{
		routes:     routes,
		locations:  locations,
		reputation: reputation,
		audit:      audit,
		cfg:        cfg,
		logger:     logger,
	}
}

// ValidateSteps checks the structural integrity of a step sequence:
// step numbers must be exactly 1..N, adjacent legs must connect, fares and
// durations must be in range. Returns the steps sorted by step number with
// fare_max defaulted, or a ValidationError.
func ValidateSteps(steps []models.StepInput) ([]models.StepInput, error) {
	if len(steps) == 0 {
		return nil, apperrors.NewFieldValidation("steps", "at least one step is required")
	}

	sorted := make([]models.StepInput, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StepNumber < sorted[j].StepNumber })

	totalDuration := 0
	for i := range sorted {
		step := &sorted[i]

		if step.StepNumber != i+1 {
			return nil, apperrors.NewFieldValidation("steps",
				"step numbers must be contiguous starting at 1, found %d at position %d", step.StepNumber, i+1)
		}

		if step.FromLocationID == step.ToLocationID {
			return nil, apperrors.NewFieldValidation("steps",
				"step %d starts and ends at the same location", step.StepNumber)
		}

		if i > 0 && sorted[i-1].ToLocationID != step.FromLocationID {
			return nil, apperrors.NewFieldValidation("steps",
				"step %d does not start where step %d ends", step.StepNumber, sorted[i-1].StepNumber)
		}

		if step.FareMax == nil {
			fareMax := step.FareMin
			step.FareMax = &fareMax
		}
		if step.FareMin <= 0 {
			return nil, apperrors.NewFieldValidation("steps", "step %d fare must be positive", step.StepNumber)
		}
		if *step.FareMax < step.FareMin {
			return nil, apperrors.NewFieldValidation("steps",
				"step %d maximum fare is below its minimum fare", step.StepNumber)
		}

		if step.DurationMinutes < models.MinStepDurationMinutes || step.DurationMinutes > models.MaxStepDurationMinutes {
			return nil, apperrors.NewFieldValidation("steps",
				"step %d duration must be between %d and %d minutes",
				step.StepNumber, models.MinStepDurationMinutes, models.MaxStepDurationMinutes)
		}
		totalDuration += step.DurationMinutes
	}

	if totalDuration > models.MaxTotalDurationMinutes {
		return nil, apperrors.NewFieldValidation("steps",
			"total journey duration %d exceeds the %d minute limit", totalDuration, models.MaxTotalDurationMinutes)
	}

	return sorted, nil
}

// CreateRoute validates and persists a new active route with its steps.
// Requires the configured minimum reputation.
func (s *RouteService) CreateRoute(req *models.CreateRouteRequest, actor *models.Actor, client ClientInfo) (*models.Route, error) {
	if err := RequireReputation(actor, "route creation", s.cfg.RouteCreateMin); err != nil {
		return nil, err
	}

	route, err := s.createRoute(req, actor, true)
	if err != nil {
		return nil, err
	}

	if _, err := s.reputation.GrantForAction(actor, models.ActionCreateRoute, 0, "route", &route.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to grant route creation reputation")
	}

	if err := s.audit.LogRouteChange(&actor.ID, route.ID, "route_created", nil, routeAuditState(route), client); err != nil {
		s.logger.WithError(err).Warn("Failed to audit route creation")
	}

	return route, nil
}

// createRoute is the shared creation path for direct creation (active) and
// suggestions (pending approval).
func (s *RouteService) createRoute(req *models.CreateRouteRequest, actor *models.Actor, active bool) (*models.Route, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid route payload: %v", err)
	}

	if req.StartLocationID == req.EndLocationID {
		return nil, apperrors.NewFieldValidation("end_location_id", "route start and end must differ")
	}

	steps, err := ValidateSteps(req.Steps)
	if err != nil {
		return nil, err
	}

	if steps[0].FromLocationID != req.StartLocationID {
		return nil, apperrors.NewFieldValidation("steps", "first step must start at the route's start location")
	}
	if steps[len(steps)-1].ToLocationID != req.EndLocationID {
		return nil, apperrors.NewFieldValidation("steps", "last step must end at the route's end location")
	}

	if _, err := s.locations.GetByID(req.StartLocationID); err != nil {
		return nil, err
	}
	if _, err := s.locations.GetByID(req.EndLocationID); err != nil {
		return nil, err
	}

	exists, err := s.routes.ActiveRouteExists(req.StartLocationID, req.EndLocationID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.NewConflict("an active route between these locations already exists")
	}

	var geometry []byte
	if req.PathGeoJSON != "" {
		geometry, err = models.GeometryFromGeoJSON(req.PathGeoJSON)
		if err != nil {
			return nil, apperrors.NewFieldValidation("path_geojson", "%v", err)
		}
	}

	fareMin, fareMax, duration := 0.0, 0.0, 0
	stepRows := make([]models.RouteStep, 0, len(steps))
	for _, in := range steps {
		fareMin += in.FareMin
		fareMax += *in.FareMax
		duration += in.DurationMinutes
		stepRows = append(stepRows, models.RouteStep{
			ID:              uuid.New(),
			StepNumber:      in.StepNumber,
			FromLocationID:  in.FromLocationID,
			ToLocationID:    in.ToLocationID,
			VehicleMode:     in.VehicleMode,
			Instructions:    in.Instructions,
			FareMin:         in.FareMin,
			FareMax:         *in.FareMax,
			DurationMinutes: in.DurationMinutes,
		})
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyModerate
	}

	route := &models.Route{
		ID:              uuid.New(),
		StartLocationID: req.StartLocationID,
		EndLocationID:   req.EndLocationID,
		VehicleModes:    models.StringArray(req.VehicleModes),
		FareMin:         fareMin,
		FareMax:         fareMax,
		DurationMinutes: duration,
		Difficulty:      difficulty,
		PathGeometry:    geometry,
		IsActive:        active,
		NeedsApproval:   !active,
	}
	if actor != nil {
		id := actor.ID
		route.CreatedBy = &id
	}

	created, err := s.routes.CreateWithSteps(route, stepRows)
	if err != nil {
		return nil, err
	}
	s.attachPathGeoJSON(created)

	for _, locID := range []uuid.UUID{req.StartLocationID, req.EndLocationID} {
		if err := s.locations.IncrementRouteCount(locID); err != nil {
			s.logger.WithError(err).WithField("location_id", locID).Warn("Failed to bump route count")
		}
	}

	return created, nil
}

// GetRoute fetches a route with its steps.
func (s *RouteService) GetRoute(id uuid.UUID) (*models.Route, error) {
	route, err := s.routes.GetByID(id)
	if err != nil {
		return nil, err
	}
	s.attachPathGeoJSON(route)

	return route, nil
}

// GetStep fetches a single route step.
func (s *RouteService) GetStep(id uuid.UUID) (*models.RouteStep, error) {
	return s.routes.GetStepByID(id)
}

// SearchRoutes returns active routes matching the filters.
func (s *RouteService) SearchRoutes(q *models.SearchRoutesQuery) ([]models.Route, error) {
	routes, err := s.routes.Search(q)
	if err != nil {
		return nil, err
	}
	for i := range routes {
		s.attachPathGeoJSON(&routes[i])
	}

	return routes, nil
}

// UpdateRoute applies a partial update. The owner may always edit; anyone
// else needs the non-owner edit reputation, and deactivating someone
// else's route needs the higher delete threshold.
func (s *RouteService) UpdateRoute(id uuid.UUID, patch *models.UpdateRouteRequest, actor *models.Actor, client ClientInfo) (*models.Route, error) {
	if err := RequireIdentified(actor, "route update"); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid route update: %v", err)
	}

	existing, err := s.routes.GetByID(id)
	if err != nil {
		return nil, err
	}

	isOwner := existing.CreatedBy != nil && *existing.CreatedBy == actor.ID
	if !isOwner {
		if err := RequireReputation(actor, "editing another contributor's route", s.cfg.NonOwnerEditMin); err != nil {
			return nil, err
		}
		if patch.IsActive != nil && !*patch.IsActive {
			if err := RequireReputation(actor, "deactivating another contributor's route", s.cfg.NonOwnerDeleteMin); err != nil {
				return nil, err
			}
		}
	}

	fareMin := existing.FareMin
	fareMax := existing.FareMax
	if patch.FareMin != nil {
		fareMin = *patch.FareMin
	}
	if patch.FareMax != nil {
		fareMax = *patch.FareMax
	}
	if fareMax < fareMin {
		return nil, apperrors.NewFieldValidation("fare_max", "maximum fare is below minimum fare")
	}

	updated, err := s.routes.Update(id, patch)
	if err != nil {
		return nil, err
	}
	updated.Steps, err = s.routes.GetStepsByRouteID(id)
	if err != nil {
		return nil, err
	}
	s.attachPathGeoJSON(updated)

	if !isOwner {
		if _, err := s.reputation.GrantForAction(actor, models.ActionImproveRoute, 0, "route", &id); err != nil {
			s.logger.WithError(err).Warn("Failed to grant route improvement reputation")
		}
	}

	if err := s.audit.LogRouteChange(&actor.ID, id, "route_updated", routeAuditState(existing), routeAuditState(updated), client); err != nil {
		s.logger.WithError(err).Warn("Failed to audit route update")
	}

	return updated, nil
}

// attachPathGeoJSON decodes the stored WKB path for API responses. A route
// without geometry keeps an empty field; a corrupt row is logged and served
// without its path rather than failing the read.
func (s *RouteService) attachPathGeoJSON(route *models.Route) {
	if route == nil || len(route.PathGeometry) == 0 {
		return
	}

	geoJSON, err := models.GeometryToGeoJSON(route.PathGeometry)
	if err != nil {
		s.logger.WithError(err).WithField("route_id", route.ID).Warn("Failed to decode route path geometry")
		return
	}
	route.PathGeoJSON = geoJSON
}

// routeAuditState captures the audited fields of a route.
func routeAuditState(r *models.Route) map[string]interface{} {
	if r == nil {
		return nil
	}
	return map[string]interface{}{
		"fare_min":         r.FareMin,
		"fare_max":         r.FareMax,
		"duration_minutes": r.DurationMinutes,
		"vehicle_modes":    []string(r.VehicleModes),
		"difficulty":       r.Difficulty,
		"is_active":        r.IsActive,
	}
}
