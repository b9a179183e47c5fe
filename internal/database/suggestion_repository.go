package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// SuggestionRepository handles route suggestion persistence
type SuggestionRepository struct {
	db DB
}

// NewSuggestionRepository creates a new suggestion repository
func NewSuggestionRepository(db DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

const suggestionColumns = `
	id, route_id, submitted_by, submitter_confidence, reviewed_by,
	approved_at, rejected_at, review_comments, created_at, updated_at
`

// Create stores suggestion metadata for a pending route.
func (r *SuggestionRepository) Create(s *models.RouteSuggestion) (*models.RouteSuggestion, error) {
	query := `
		INSERT INTO route_suggestions (id, route_id, submitted_by, submitter_confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + suggestionColumns

	var created models.RouteSuggestion
	err := r.db.Get(&created, query, s.ID, s.RouteID, s.SubmittedBy, s.SubmitterConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to create route suggestion: %w", err)
	}

	return &created, nil
}

// GetByID fetches a suggestion.
func (r *SuggestionRepository) GetByID(id uuid.UUID) (*models.RouteSuggestion, error) {
	var s models.RouteSuggestion
	err := r.db.Get(&s, `SELECT `+suggestionColumns+` FROM route_suggestions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("route suggestion", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch route suggestion: %w", err)
	}

	return &s, nil
}

// ListPending returns unresolved suggestions oldest first.
func (r *SuggestionRepository) ListPending(limit int) ([]models.RouteSuggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM route_suggestions
		WHERE approved_at IS NULL AND rejected_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`

	var suggestions []models.RouteSuggestion
	if err := r.db.Select(&suggestions, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending suggestions: %w", err)
	}

	return suggestions, nil
}

// Resolve records a review verdict and flips the underlying route's
// activation flags in one transaction. A suggestion already resolved is a
// conflict: the WHERE clause only matches unresolved rows, so a second
// review finds nothing to update.
func (r *SuggestionRepository) Resolve(id uuid.UUID, approve bool, reviewerID uuid.UUID, comments string, now time.Time) (*models.RouteSuggestion, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, apperrors.NewStorage("begin suggestion resolve", err)
	}
	defer tx.Rollback()

	var verdictColumn string
	if approve {
		verdictColumn = "approved_at"
	} else {
		verdictColumn = "rejected_at"
	}

	query := fmt.Sprintf(`
		UPDATE route_suggestions
		SET %s = $1, reviewed_by = $2, review_comments = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $4 AND approved_at IS NULL AND rejected_at IS NULL
		RETURNING `+suggestionColumns, verdictColumn)

	var resolved models.RouteSuggestion
	err = tx.Get(&resolved, query, now, reviewerID, comments, id)
	if errors.Is(err, sql.ErrNoRows) {
		// Either absent or already resolved; disambiguate for the caller.
		if _, getErr := r.GetByID(id); getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.NewConflict("suggestion has already been reviewed")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve suggestion: %w", err)
	}

	if err := setRouteApprovalState(tx, resolved.RouteID, approve); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStorage("commit suggestion resolve", err)
	}

	return &resolved, nil
}
