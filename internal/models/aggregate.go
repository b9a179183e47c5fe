package models

import (
	"time"
)

// Aggregate is the derived crowdsourced summary embedded on a route or a
// route step. It is a cache over the report history: it can always be
// rebuilt from the retained reports plus the weighting policy, and it is
// recomputed under the owner row's lock on every accepted write.
type Aggregate struct {
	AvgFare            *float64   `json:"avg_fare,omitempty" db:"avg_fare"`
	AvgDurationMinutes *float64   `json:"avg_duration_minutes,omitempty" db:"avg_duration_minutes"`
	Confidence         float64    `json:"confidence" db:"confidence"` // 0-100
	ContributorCount   int        `json:"contributor_count" db:"contributor_count"`
	ReportCount        int        `json:"report_count" db:"report_count"`
	AggregateUpdatedAt *time.Time `json:"aggregate_updated_at,omitempty" db:"aggregate_updated_at"`
}

// WindowReport is one raw report as seen by the aggregation window.
type WindowReport struct {
	ReporterID      *string
	AmountPaid      float64
	DurationMinutes *float64
	Confidence      int     // 1-5 self-declared certainty
	Reputation      float64 // reporter's score at submission time, 0 for anonymous
	Flagged         bool
	TravelDate      time.Time
	CreatedAt       time.Time
}

// ReportWindow is the bounded FIFO of the most recent raw reports for one
// target. Capacity K; adding beyond capacity evicts the oldest.
type ReportWindow struct {
	capacity int
	reports  []WindowReport
}

// NewReportWindow creates a window retaining at most capacity reports.
func NewReportWindow(capacity int) *ReportWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &ReportWindow{capacity: capacity}
}

// Add appends a report, evicting the oldest when the window is full.
func (w *ReportWindow) Add(r WindowReport) {
	w.reports = append(w.reports, r)
	if len(w.reports) > w.capacity {
		w.reports = w.reports[1:]
	}
}

// Len returns the number of retained reports.
func (w *ReportWindow) Len() int {
	return len(w.reports)
}

// Reports returns the retained reports, oldest first.
func (w *ReportWindow) Reports() []WindowReport {
	return w.reports
}
