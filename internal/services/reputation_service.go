package services

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// ReputationService maintains contributor trust scores. Scores only move
// through discrete per-action grants recorded in the ledger, and never go
// below zero.
type ReputationService struct {
	repo   *database.ReputationRepository
	audit  *AuditService
	cfg    config.ReputationConfig
	logger *logrus.Logger
}

// NewReputationService creates a new reputation service
func NewReputationService(repo *database.ReputationRepository, audit *AuditService, cfg config.ReputationConfig, logger *logrus.Logger) *ReputationService {
	return &ReputationService{
		repo:   repo,
		audit:  audit,
		cfg:    cfg,
		logger: logger,
	}
}

// PointsFor returns the grant for an action from the configured table.
// For fare reports, high self-declared confidence earns the larger grant.
func (s *ReputationService) PointsFor(action string, confidence int) int {
	switch action {
	case models.ActionCreateLocation:
		return s.cfg.CreateLocation
	case models.ActionImproveLocation:
		return s.cfg.ImproveLocation
	case models.ActionCreateRoute:
		return s.cfg.CreateRoute
	case models.ActionImproveRoute:
		return s.cfg.ImproveRoute
	case models.ActionFareReport:
		if confidence >= 4 {
			return s.cfg.FareReportConfident
		}
		return s.cfg.FareReport
	case models.ActionSafetyReport:
		return s.cfg.SafetyReport
	case models.ActionSuggestRoute:
		return s.cfg.SuggestRoute
	case models.ActionSuggestionApproved:
		return s.cfg.SuggestionApproved
	case models.ActionDirectionShared:
		return s.cfg.DirectionShared
	case models.ActionDirectionUsed:
		return s.cfg.DirectionUsed
	default:
		return 0
	}
}

// Grant applies a point adjustment for an action, creating the contributor
// row on first contact, and returns the new score.
func (s *ReputationService) Grant(contributorID uuid.UUID, displayName, action string, points int, entityType string, entityID *uuid.UUID) (int, error) {
	if _, err := s.repo.GetOrCreate(contributorID, displayName); err != nil {
		return 0, err
	}

	event := &models.ReputationEvent{
		ID:            uuid.New(),
		ContributorID: contributorID,
		Action:        action,
		Points:        points,
	}
	if entityType != "" {
		event.EntityType = &entityType
		event.EntityID = entityID
	}

	newScore, err := s.repo.Grant(event)
	if err != nil {
		return 0, err
	}

	if err := s.audit.LogReputationGrant(contributorID, action, points, newScore); err != nil {
		s.logger.WithError(err).Warn("Failed to audit reputation grant")
	}

	return newScore, nil
}

// GrantForAction looks up the configured points for an action and applies
// the grant.
func (s *ReputationService) GrantForAction(actor *models.Actor, action string, confidence int, entityType string, entityID *uuid.UUID) (int, error) {
	if actor == nil {
		return 0, nil // anonymous contributions never earn reputation
	}

	return s.Grant(actor.ID, actor.DisplayName, action, s.PointsFor(action, confidence), entityType, entityID)
}

// History returns a contributor's most recent ledger entries.
func (s *ReputationService) History(contributorID uuid.UUID, limit int) ([]models.ReputationEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.History(contributorID, limit)
}

// Score returns a contributor's current reputation score.
func (s *ReputationService) Score(contributorID uuid.UUID) (int, error) {
	contributor, err := s.repo.GetByID(contributorID)
	if err != nil {
		return 0, err
	}

	return contributor.ReputationScore, nil
}

// RequireIdentified returns an AuthenticationError when the actor is
// anonymous.
func RequireIdentified(actor *models.Actor, action string) error {
	if actor == nil {
		return apperrors.NewAuthentication("%s requires an identified contributor", action)
	}
	return nil
}

// RequireReputation returns an AuthorizationError when the actor's score is
// below min. The actor must already be identified.
func RequireReputation(actor *models.Actor, action string, min int) error {
	if err := RequireIdentified(actor, action); err != nil {
		return err
	}
	if actor.Reputation < min {
		return apperrors.NewAuthorization(action, min, actor.Reputation)
	}
	return nil
}
