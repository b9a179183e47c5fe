package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/middleware"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
	"github.com/lagostransit/crowdroutes-backend/internal/services"
)

// ReportHandler handles HTTP requests for fare reports
type ReportHandler struct {
	aggregator *services.AggregatorService
	guard      *services.SubmissionGuard
	logger     *logrus.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(aggregator *services.AggregatorService, guard *services.SubmissionGuard, logger *logrus.Logger) *ReportHandler {
	return &ReportHandler{
		aggregator: aggregator,
		guard:      guard,
		logger:     logger,
	}
}

// Submit handles POST /api/v1/reports/fare
func (h *ReportHandler) Submit(c *gin.Context) {
	var req models.SubmitFareReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request format"})
		return
	}

	report, aggregate, err := h.aggregator.RecordReport(&req, middleware.GetActor(c), clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "report": report, "aggregate": aggregate})
}

// Get handles GET /api/v1/reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid report ID"})
		return
	}

	report, err := h.aggregator.GetReport(id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "report": report})
}

// Flag handles POST /api/v1/reports/:id/flag
func (h *ReportHandler) Flag(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid report ID"})
		return
	}

	var req models.FlagReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request format"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "A flag reason of 3-500 characters is required"})
		return
	}

	report, aggregate, err := h.guard.FlagReport(id, req.Reason, middleware.GetActor(c), clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "report": report, "aggregate": aggregate})
}

// Unflag handles POST /api/v1/reports/:id/unflag
func (h *ReportHandler) Unflag(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid report ID"})
		return
	}

	report, aggregate, err := h.guard.UnflagReport(id, middleware.GetActor(c), clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "report": report, "aggregate": aggregate})
}

// Verify handles POST /api/v1/reports/:id/verify
func (h *ReportHandler) Verify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid report ID"})
		return
	}

	report, aggregate, err := h.guard.VerifyReport(id, middleware.GetActor(c), clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "report": report, "aggregate": aggregate})
}
