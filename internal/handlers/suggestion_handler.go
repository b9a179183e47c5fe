package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/middleware"
	"github.com/lagostransit/crowdroutes-backend/internal/models"
	"github.com/lagostransit/crowdroutes-backend/internal/services"
)

// SuggestionHandler handles HTTP requests for route suggestions
type SuggestionHandler struct {
	suggestions *services.SuggestionService
	logger      *logrus.Logger
}

// NewSuggestionHandler creates a new suggestion handler
func NewSuggestionHandler(suggestions *services.SuggestionService, logger *logrus.Logger) *SuggestionHandler {
	return &SuggestionHandler{
		suggestions: suggestions,
		logger:      logger,
	}
}

// Submit handles POST /api/v1/suggestions
func (h *SuggestionHandler) Submit(c *gin.Context) {
	var req models.SubmitSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request format"})
		return
	}

	suggestion, err := h.suggestions.Submit(&req, middleware.GetActor(c), clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "suggestion": suggestion})
}

// Get handles GET /api/v1/suggestions/:id
func (h *SuggestionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid suggestion ID"})
		return
	}

	suggestion, err := h.suggestions.Get(id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "suggestion": suggestion})
}

// ListPending handles GET /api/v1/suggestions/pending
func (h *SuggestionHandler) ListPending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	suggestions, err := h.suggestions.ListPending(limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"count":       len(suggestions),
		"suggestions": suggestions,
	})
}

// Review handles POST /api/v1/suggestions/:id/review
func (h *SuggestionHandler) Review(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid suggestion ID"})
		return
	}

	var req models.ReviewSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request format"})
		return
	}

	suggestion, err := h.suggestions.Review(id, &req, middleware.GetActor(c), clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "suggestion": suggestion})
}
