package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
)

// auditLogMaxAge is how long audit rows are kept before cleanup.
const auditLogMaxAge = 180 * 24 * time.Hour

// CronService manages scheduled background jobs
type CronService struct {
	cron    *cron.Cron
	reports *database.ReportRepository
	audit   *AuditService
	cfg     config.RetentionConfig
	logger  *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(reports *database.ReportRepository, audit *AuditService, cfg config.RetentionConfig, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:    cron.New(cron.WithSeconds()),
		reports: reports,
		audit:   audit,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start schedules all background jobs and starts the scheduler.
func (s *CronService) Start() error {
	// Cron format: second minute hour day month weekday

	// Retention sweep daily at 2 AM: deactivate reports past the horizon.
	if _, err := s.cron.AddFunc("0 0 2 * * *", s.retentionJob); err != nil {
		return fmt.Errorf("failed to schedule retention job: %w", err)
	}

	// Audit log cleanup weekly on Sunday at 4 AM.
	if _, err := s.cron.AddFunc("0 0 4 * * 0", s.auditCleanupJob); err != nil {
		return fmt.Errorf("failed to schedule audit cleanup job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// retentionJob deactivates fare reports older than the retention horizon.
// Deactivated reports drop out of every aggregation window but stay on disk
// for audit history.
func (s *CronService) retentionJob() {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -s.cfg.ReportMaxAgeDays)

	rows, err := s.reports.DeactivateOlderThan(cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Retention sweep failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"deactivated": rows,
		"cutoff":      cutoff.Format("2006-01-02"),
		"took":        time.Since(start).String(),
	}).Info("Retention sweep complete")
}

// auditCleanupJob removes audit rows past their keep window.
func (s *CronService) auditCleanupJob() {
	start := time.Now()

	rows, err := s.audit.CleanupOldAuditLogs(auditLogMaxAge)
	if err != nil {
		s.logger.WithError(err).Error("Audit log cleanup failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"deleted": rows,
		"took":    time.Since(start).String(),
	}).Info("Audit log cleanup complete")
}

// RunRetentionNow runs the retention sweep immediately, for the admin
// endpoint and operational recovery.
func (s *CronService) RunRetentionNow() {
	s.retentionJob()
}

// GetJobStatus returns the scheduler state for the admin endpoint.
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
