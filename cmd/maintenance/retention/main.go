// Command retention runs a one-shot retention sweep: reports past the
// configured horizon are deactivated and old audit rows removed. Intended
// for operational recovery when the in-process scheduler was down.
package main

import (
	"time"

	"github.com/lagostransit/crowdroutes-backend/internal/config"
	"github.com/lagostransit/crowdroutes-backend/internal/database"
	applogger "github.com/lagostransit/crowdroutes-backend/internal/logger"
	"github.com/lagostransit/crowdroutes-backend/internal/services"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := applogger.New(cfg.Server, cfg.Logging)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	reports := database.NewReportRepository(db)
	cutoff := time.Now().AddDate(0, 0, -cfg.Retention.ReportMaxAgeDays)

	rows, err := reports.DeactivateOlderThan(cutoff)
	if err != nil {
		logger.Fatalf("Retention sweep failed: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"deactivated": rows,
		"cutoff":      cutoff.Format("2006-01-02"),
	}).Info("Retention sweep complete")

	audit := services.NewAuditService(db)
	deleted, err := audit.CleanupOldAuditLogs(180 * 24 * time.Hour)
	if err != nil {
		logger.Fatalf("Audit cleanup failed: %v", err)
	}
	logger.WithField("deleted", deleted).Info("Audit log cleanup complete")
}
