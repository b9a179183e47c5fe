package models

import (
	"time"

	"github.com/google/uuid"
)

// Suggestion review actions
const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// RouteSuggestion is a route in the pending_approval state plus its review
// metadata. The route row itself carries is_active=false /
// needs_approval=true until resolved.
type RouteSuggestion struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	RouteID             uuid.UUID  `json:"route_id" db:"route_id"`
	SubmittedBy         uuid.UUID  `json:"submitted_by" db:"submitted_by"`
	SubmitterConfidence int        `json:"submitter_confidence" db:"submitter_confidence"` // 1-5
	ReviewedBy          *uuid.UUID `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	RejectedAt          *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
	ReviewComments      *string    `json:"review_comments,omitempty" db:"review_comments"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// Resolved reports whether the suggestion has already been reviewed.
func (s *RouteSuggestion) Resolved() bool {
	return s.ApprovedAt != nil || s.RejectedAt != nil
}

// SubmitSuggestionRequest proposes a brand-new route.
type SubmitSuggestionRequest struct {
	Route      CreateRouteRequest `json:"route" validate:"required"`
	Confidence int                `json:"confidence" validate:"required,min=1,max=5"`
}

// Validate runs struct-tag validation on the request.
func (r *SubmitSuggestionRequest) Validate() error {
	return validate.Struct(r)
}

// ReviewSuggestionRequest approves or rejects a pending suggestion.
type ReviewSuggestionRequest struct {
	Action   string `json:"action" validate:"required,oneof=approve reject"`
	Comments string `json:"comments,omitempty" validate:"omitempty,max=1000"`
}

// Validate runs struct-tag validation on the request.
func (r *ReviewSuggestionRequest) Validate() error {
	return validate.Struct(r)
}
