package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
)

// ReputationRepository handles contributor trust state and its ledger
type ReputationRepository struct {
	db DB
}

// NewReputationRepository creates a new reputation repository
func NewReputationRepository(db DB) *ReputationRepository {
	return &ReputationRepository{db: db}
}

const contributorColumns = `
	id, display_name, reputation_score, is_reviewer, created_at, updated_at
`

// GetOrCreate fetches a contributor row, creating it with a zero score on
// first contact.
func (r *ReputationRepository) GetOrCreate(id uuid.UUID, displayName string) (*models.Contributor, error) {
	query := `
		INSERT INTO contributors (id, display_name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
		RETURNING ` + contributorColumns

	var contributor models.Contributor
	if err := r.db.Get(&contributor, query, id, displayName); err != nil {
		return nil, fmt.Errorf("failed to get or create contributor: %w", err)
	}

	return &contributor, nil
}

// GetByID fetches a contributor.
func (r *ReputationRepository) GetByID(id uuid.UUID) (*models.Contributor, error) {
	var contributor models.Contributor
	err := r.db.Get(&contributor, `SELECT `+contributorColumns+` FROM contributors WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("contributor", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contributor: %w", err)
	}

	return &contributor, nil
}

// Grant applies a point adjustment clamped at the zero floor and appends
// the ledger event, atomically. Returns the new score.
func (r *ReputationRepository) Grant(event *models.ReputationEvent) (int, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return 0, apperrors.NewStorage("begin reputation grant", err)
	}
	defer tx.Rollback()

	var newScore int
	updateQuery := `
		UPDATE contributors
		SET reputation_score = GREATEST(0, reputation_score + $1), updated_at = NOW()
		WHERE id = $2
		RETURNING reputation_score
	`
	err = tx.QueryRow(updateQuery, event.Points, event.ContributorID).Scan(&newScore)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NewNotFound("contributor", event.ContributorID.String())
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust reputation score: %w", err)
	}

	insertQuery := `
		INSERT INTO reputation_events (id, contributor_id, action, points, entity_type, entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err = tx.Exec(insertQuery,
		event.ID, event.ContributorID, event.Action, event.Points,
		event.EntityType, event.EntityID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record reputation event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStorage("commit reputation grant", err)
	}

	return newScore, nil
}

// History returns a contributor's most recent ledger entries.
func (r *ReputationRepository) History(contributorID uuid.UUID, limit int) ([]models.ReputationEvent, error) {
	query := `
		SELECT id, contributor_id, action, points, entity_type, entity_id, created_at
		FROM reputation_events
		WHERE contributor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var events []models.ReputationEvent
	if err := r.db.Select(&events, query, contributorID, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch reputation history: %w", err)
	}

	return events, nil
}
