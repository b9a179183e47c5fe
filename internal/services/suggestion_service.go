package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// SuggestionService runs the propose-then-review workflow for contributors
// below the direct route creation threshold.
type SuggestionService struct {
	suggestions *database.SuggestionRepository
	routeSvc    *RouteService
	reputation  *ReputationService
	audit       *AuditService
	cfg         config.ReputationConfig
	logger      *logrus.Logger
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(
	suggestions *database.SuggestionRepository,
	routeSvc *RouteService,
	reputation *ReputationService,
	audit *AuditService,
	cfg config.ReputationConfig,
	logger *logrus.Logger,
) *SuggestionService {
	return &SuggestionService{
		suggestions: suggestions,
		routeSvc:    routeSvc,
		reputation:  reputation,
		audit:       audit,
		cfg:         cfg,
		logger:      logger,
	}
}

// Submit validates the proposed route and stores it inactive, pending
// review. The submitter earns the suggestion grant immediately and the
// larger approval grant only if a reviewer accepts it.
func (s *SuggestionService) Submit(req *models.SubmitSuggestionRequest, actor *models.Actor, client ClientInfo) (*models.RouteSuggestion, error) {
	if err := RequireReputation(actor, "suggesting a route", s.cfg.SuggestionSubmitMin); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid suggestion: %v", err)
	}

	route, err := s.routeSvc.createRoute(&req.Route, actor, false)
	if err != nil {
		return nil, err
	}

	suggestion, err := s.suggestions.Create(&models.RouteSuggestion{
		ID:                  uuid.New(),
		RouteID:             route.ID,
		SubmittedBy:         actor.ID,
		SubmitterConfidence: req.Confidence,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.reputation.GrantForAction(actor, models.ActionSuggestRoute, 0, "suggestion", &suggestion.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to grant suggestion reputation")
	}

	if err := s.audit.LogSuggestionEvent(&actor.ID, suggestion.ID, "suggestion_submitted", "", client); err != nil {
		s.logger.WithError(err).Warn("Failed to audit suggestion submission")
	}

	return suggestion, nil
}

// Review resolves a pending suggestion. Designated reviewers may always
// review; others need the review reputation threshold. Nobody reviews their
// own suggestion, and a second review of the same suggestion is a conflict.
func (s *SuggestionService) Review(id uuid.UUID, req *models.ReviewSuggestionRequest, actor *models.Actor, client ClientInfo) (*models.RouteSuggestion, error) {
	if err := RequireIdentified(actor, "reviewing a suggestion"); err != nil {
		return nil, err
	}
	if !actor.IsReviewer {
		if err := RequireReputation(actor, "reviewing a suggestion", s.cfg.SuggestionReviewMin); err != nil {
			return nil, err
		}
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid review: %v", err)
	}

	pending, err := s.suggestions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if pending.SubmittedBy == actor.ID {
		return nil, apperrors.NewConflict("you cannot review your own suggestion")
	}

	approve := req.Action == models.ReviewApprove
	resolved, err := s.suggestions.Resolve(id, approve, actor.ID, req.Comments, time.Now())
	if err != nil {
		return nil, err
	}

	verdict := "suggestion_rejected"
	if approve {
		verdict = "suggestion_approved"

		submitter := &models.Actor{ID: resolved.SubmittedBy}
		if _, err := s.reputation.GrantForAction(submitter, models.ActionSuggestionApproved, 0, "suggestion", &resolved.ID); err != nil {
			s.logger.WithError(err).Warn("Failed to grant approval reputation")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"suggestion_id": resolved.ID,
		"route_id":      resolved.RouteID,
		"approved":      approve,
	}).Info("Suggestion reviewed")

	if err := s.audit.LogSuggestionEvent(&actor.ID, resolved.ID, verdict, req.Comments, client); err != nil {
		s.logger.WithError(err).Warn("Failed to audit suggestion review")
	}

	return resolved, nil
}

// Get fetches a suggestion.
func (s *SuggestionService) Get(id uuid.UUID) (*models.RouteSuggestion, error) {
	return s.suggestions.GetByID(id)
}

// ListPending returns the review queue, oldest first.
func (s *SuggestionService) ListPending(limit int) ([]models.RouteSuggestion, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.suggestions.ListPending(limit)
}
