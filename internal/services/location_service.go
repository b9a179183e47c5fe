package services

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// LocationService handles contributor-driven location mutations. Reads go
// through GeoService.
type LocationService struct {
	locations  *database.LocationRepository
	geo        *GeoService
	reputation *ReputationService
	audit      *AuditService
	cfg        config.ReputationConfig
	logger     *logrus.Logger
}

// NewLocationService creates a new location service
func NewLocationService(
	locations *database.LocationRepository,
	geo *GeoService,
	reputation *ReputationService,
	audit *AuditService,
	cfg config.ReputationConfig,
	logger *logrus.Logger,
) *LocationService {
	return &LocationService{
		locations:  locations,
		geo:        geo,
		reputation: reputation,
		audit:      audit,
		cfg:        cfg,
		logger:     logger,
	}
}

// Create validates and stores a new location. Coordinates must fall inside
// the operating bounding box, and a location at effectively the same point
// is a conflict.
func (s *LocationService) Create(req *models.CreateLocationRequest, actor *models.Actor, client ClientInfo) (*models.Location, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid location payload: %v", err)
	}

	exists, err := s.geo.FindByCoordinates(req.Latitude, req.Longitude, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.NewConflict("a location already exists at these coordinates")
	}

	var createdBy *uuid.UUID
	if actor != nil {
		id := actor.ID
		createdBy = &id
	}

	location, err := s.locations.Create(req, createdBy)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"location_id": location.ID,
		"name":        location.Name,
		"category":    location.Category,
	}).Info("Location created")

	if _, err := s.reputation.GrantForAction(actor, models.ActionCreateLocation, 0, "location", &location.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to grant location creation reputation")
	}

	if err := s.audit.Log(AuditEvent{
		ActorID:    createdBy,
		Action:     "location_created",
		EntityType: "location",
		EntityID:   &location.ID,
		Client:     client,
		Details: map[string]interface{}{
			"name":     location.Name,
			"category": location.Category,
			"city":     location.City,
			"state":    location.State,
		},
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to audit location creation")
	}

	return location, nil
}

// Get fetches a single active location.
func (s *LocationService) Get(id uuid.UUID) (*models.Location, error) {
	return s.locations.GetByID(id)
}

// Deactivate soft-deletes a location. Requires the non-owner delete
// threshold since locations are shared infrastructure.
func (s *LocationService) Deactivate(id uuid.UUID, actor *models.Actor, client ClientInfo) error {
	if err := RequireReputation(actor, "deactivating a location", s.cfg.NonOwnerDeleteMin); err != nil {
		return err
	}

	if err := s.locations.Deactivate(id); err != nil {
		return err
	}

	if err := s.audit.Log(AuditEvent{
		ActorID:    &actor.ID,
		Action:     "location_deactivated",
		EntityType: "location",
		EntityID:   &id,
		Severity:   SeverityWarning,
		Client:     client,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to audit location deactivation")
	}

	return nil
}

// RecordSearchHits bumps popularity counters for locations served by a
// search. Best effort: a failed bump never fails the read path.
func (s *LocationService) RecordSearchHits(ids []uuid.UUID) {
	if err := s.locations.IncrementSearchCount(ids); err != nil {
		s.logger.WithError(err).Warn("Failed to record search hits")
	}
}
