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

// RouteHandler handles HTTP requests for routes
type RouteHandler struct {
	routes *services.RouteService
	logger *logrus.Logger
}

// NewRouteHandler creates a new route handler
func NewRouteHandler(routes *services.RouteService, logger *logrus.Logger) *RouteHandler {
	return &RouteHandler{
		routes: routes,
		logger: logger,
	}
}

// Create handles POST /api/v1/routes
func (h *RouteHandler) Create(c *gin.Context) {
	var req models.CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request format"})
		return
	}

	route, err := h.routes.CreateRoute(&req, middleware.GetActor(c), clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "route": route})
}

// Get handles GET /api/v1/routes/:id
func (h *RouteHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid route ID"})
		return
	}

	route, err := h.routes.GetRoute(id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "route": route})
}

// Search handles GET /api/v1/routes
func (h *RouteHandler) Search(c *gin.Context) {
	q := &models.SearchRoutesQuery{
		VehicleMode: c.Query("vehicle_mode"),
	}

	if raw := c.Query("from"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid from location ID"})
			return
		}
		q.FromLocationID = &id
	}
	if raw := c.Query("to"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid to location ID"})
			return
		}
		q.ToLocationID = &id
	}
	if raw := c.Query("max_fare"); raw != "" {
		maxFare, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "max_fare must be a number"})
			return
		}
		q.MaxFare = &maxFare
	}
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	routes, err := h.routes.SearchRoutes(q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"count":  len(routes),
		"routes": routes,
	})
}

// Update handles PATCH /api/v1/routes/:id
func (h *RouteHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid route ID"})
		return
	}

	var patch models.UpdateRouteRequest
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request format"})
		return
	}

	route, err := h.routes.UpdateRoute(id, &patch, middleware.GetActor(c), clientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "route": route})
}
