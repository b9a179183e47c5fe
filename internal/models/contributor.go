package models

import (
	"time"

	"github.com/google/uuid"
)

// Reputation actions recorded in the ledger
const (
	ActionCreateLocation     = "create_location"
	ActionImproveLocation    = "improve_location"
	ActionCreateRoute        = "create_route"
	ActionImproveRoute       = "improve_route"
	ActionFareReport         = "fare_report"
	ActionSafetyReport       = "safety_report"
	ActionSuggestRoute       = "suggest_route"
	ActionSuggestionApproved = "suggestion_approved"
	ActionDirectionShared    = "direction_shared"
	ActionDirectionUsed      = "direction_used"
)

// Contributor is the locally stored trust state for a user. Identity itself
// comes from the external identity service; this row only tracks reputation.
type Contributor struct {
	ID              uuid.UUID `json:"id" db:"id"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	ReputationScore int       `json:"reputation_score" db:"reputation_score"`
	IsReviewer      bool      `json:"is_reviewer" db:"is_reviewer"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ReputationEvent is one append-only ledger entry behind a score change.
type ReputationEvent struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	ContributorID uuid.UUID  `json:"contributor_id" db:"contributor_id"`
	Action        string     `json:"action" db:"action"`
	Points        int        `json:"points" db:"points"`
	EntityType    *string    `json:"entity_type,omitempty" db:"entity_type"`
	EntityID      *uuid.UUID `json:"entity_id,omitempty" db:"entity_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
