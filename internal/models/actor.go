package models

import "github.com/google/uuid"

// Actor is the authenticated contributor attached to a request, as supplied
// by the external identity service. A nil *Actor means anonymous.
type Actor struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Reputation  int       `json:"reputation"`
	IsReviewer  bool      `json:"is_reviewer"`
}
