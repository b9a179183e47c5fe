package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/services"
)

// ContributorHandler handles HTTP requests for contributor reputation
type ContributorHandler struct {
	reputation *services.ReputationService
	logger     *logrus.Logger
}

// NewContributorHandler creates a new contributor handler
func NewContributorHandler(reputation *services.ReputationService, logger *logrus.Logger) *ContributorHandler {
	return &ContributorHandler{
		reputation: reputation,
		logger:     logger,
	}
}

// GetScore handles GET /api/v1/contributors/:id/reputation
func (h *ContributorHandler) GetScore(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid contributor ID"})
		return
	}

	score, err := h.reputation.Score(id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"contributor_id": id,
		"reputation":     score,
	})
}

// GetHistory handles GET /api/v1/contributors/:id/reputation/history
func (h *ContributorHandler) GetHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid contributor ID"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.reputation.History(id, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"count":  len(events),
		"events": events,
	})
}
