package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lagostransit/crowdroutes-backend/internal/database"
	"github.com/lagostransit/crowdroutes-backend/internal/utils"
)

// Audit severities
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// AuditService emits structured audit events for every trust-relevant
// mutation. The audit_logs table is the boundary to the external audit
// sink; the engine itself never reads these rows back for decisions.
type AuditService struct {
	db database.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db database.DB) *AuditService {
	return &AuditService{db: db}
}

// ClientInfo carries request metadata captured by the handlers.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// AuditEvent represents one trust-relevant mutation
type AuditEvent struct {
	ActorID    *uuid.UUID // nil for anonymous contributions
	Action     string     // e.g. "report_submitted", "suggestion_approved"
	EntityType string     // "fare_report", "route", "suggestion", "location", "reputation"
	EntityID   *uuid.UUID
	Severity   string
	Client     ClientInfo
	Details    map[string]interface{} // before/after values and context
}

// Log writes an audit event.
func (s *AuditService) Log(event AuditEvent) error {
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	details := event.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	if event.Client.UserAgent != "" {
		details["device_info"] = utils.ParseUserAgent(event.Client.UserAgent)
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, severity, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

	_, err = s.db.Exec(query,
		event.ActorID, event.Action, event.EntityType, event.EntityID,
		event.Severity, event.Client.IPAddress, event.Client.UserAgent, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}

// LogReportSubmitted records a fare report submission.
func (s *AuditService) LogReportSubmitted(actorID *uuid.UUID, reportID uuid.UUID, stepID uuid.UUID, amount float64, client ClientInfo) error {
	return s.Log(AuditEvent{
		ActorID:    actorID,
		Action:     "report_submitted",
		EntityType: "fare_report",
		EntityID:   &reportID,
		Client:     client,
		Details: map[string]interface{}{
			"route_step_id": stepID,
			"amount_paid":   amount,
		},
	})
}

// LogReportModeration records a flag, unflag or verify action.
func (s *AuditService) LogReportModeration(actorID *uuid.UUID, reportID uuid.UUID, action string, confidenceBefore, confidenceAfter int, reason string, client ClientInfo) error {
	details := map[string]interface{}{
		"confidence_before": confidenceBefore,
		"confidence_after":  confidenceAfter,
	}
	if reason != "" {
		details["reason"] = reason
	}

	severity := SeverityInfo
	if action == "report_flagged" {
		severity = SeverityWarning
	}

	return s.Log(AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: "fare_report",
		EntityID:   &reportID,
		Severity:   severity,
		Client:     client,
		Details:    details,
	})
}

// LogRouteChange records a route creation or update with before/after state.
func (s *AuditService) LogRouteChange(actorID *uuid.UUID, routeID uuid.UUID, action string, before, after map[string]interface{}, client ClientInfo) error {
	return s.Log(AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: "route",
		EntityID:   &routeID,
		Client:     client,
		Details: map[string]interface{}{
			"before": before,
			"after":  after,
		},
	})
}

// LogSuggestionEvent records a suggestion submission or review verdict.
func (s *AuditService) LogSuggestionEvent(actorID *uuid.UUID, suggestionID uuid.UUID, action, comments string, client ClientInfo) error {
	details := map[string]interface{}{}
	if comments != "" {
		details["comments"] = comments
	}

	return s.Log(AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: "suggestion",
		EntityID:   &suggestionID,
		Client:     client,
		Details:    details,
	})
}

// LogReputationGrant records a reputation ledger adjustment.
func (s *AuditService) LogReputationGrant(contributorID uuid.UUID, action string, points, newScore int) error {
	return s.Log(AuditEvent{
		ActorID:    &contributorID,
		Action:     "reputation_grant",
		EntityType: "reputation",
		EntityID:   &contributorID,
		Details: map[string]interface{}{
			"grant_action": action,
			"points":       points,
			"new_score":    newScore,
		},
	})
}

// CleanupOldAuditLogs removes audit rows older than the given duration.
func (s *AuditService) CleanupOldAuditLogs(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := s.db.Exec(`DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
