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

// LocationHandler handles HTTP requests for locations
type LocationHandler struct {
	locations *services.LocationService
	geo       *services.GeoService
	logger    *logrus.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(locations *services.LocationService, geo *services.GeoService, logger *logrus.Logger) *LocationHandler {
	return &LocationHandler{
		locations: locations,
		geo:       geo,
		logger:    logger,
	}
}

// Nearby handles GET /api/v1/locations/nearby
func (h *LocationHandler) Nearby(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "lat must be a number"})
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "lng must be a number"})
		return
	}
	radius, err := strconv.ParseFloat(c.DefaultQuery("radius_km", "5"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "radius_km must be a number"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	results, err := h.geo.FindNearby(&models.NearbyQuery{
		Latitude:  lat,
		Longitude: lng,
		RadiusKm:  radius,
		Limit:     limit,
		Category:  c.Query("category"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// Popularity counters feed result ranking; a failed bump is not an error.
	ids := make([]uuid.UUID, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	h.locations.RecordSearchHits(ids)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"count":   len(results),
		"results": results,
	})
}

// Search handles GET /api/v1/locations/search
func (h *LocationHandler) Search(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	results, total, err := h.geo.Search(&models.SearchLocationsQuery{
		Query:    c.Query("q"),
		City:     c.Query("city"),
		State:    c.Query("state"),
		Category: c.Query("category"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"total":   total,
		"page":    page,
		"results": results,
	})
}

// Create handles POST /api/v1/locations
func (h *LocationHandler) Create(c *gin.Context) {
	var req models.CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request format"})
		return
	}

	location, err := h.locations.Create(&req, middleware.GetActor(c), clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "location": location})
}

// Get handles GET /api/v1/locations/:id
func (h *LocationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid location ID"})
		return
	}

	location, err := h.locations.Get(id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "location": location})
}

// Delete handles DELETE /api/v1/locations/:id
func (h *LocationHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid location ID"})
		return
	}

	if err := h.locations.Deactivate(id, middleware.GetActor(c), clientInfo(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Location deactivated"})
}
