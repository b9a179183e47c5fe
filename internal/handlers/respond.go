package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lagostransit/crowdroutes-backend/internal/apperrors"
	"github.com/lagostransit/crowdroutes-backend/internal/services"
)

// respondError maps the service error taxonomy to HTTP statuses. Transient
// storage failures surface as 503 so clients know to retry; everything
// unrecognized is a 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		validationErr *apperrors.ValidationError
		notFoundErr   *apperrors.NotFoundError
		conflictErr   *apperrors.ConflictError
		authzErr      *apperrors.AuthorizationError
		authnErr      *apperrors.AuthenticationError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": validationErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": notFoundErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"status": "error", "message": conflictErr.Error()})
	case errors.As(err, &authzErr):
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": authzErr.Error()})
	case errors.As(err, &authnErr):
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": authnErr.Error()})
	case apperrors.IsRetryable(err):
		logger.WithError(err).Error("Transient storage failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "Temporary storage problem. Please retry.",
		})
	default:
		logger.WithError(err).Error("Unhandled internal error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Something went wrong. Please try again later.",
		})
	}
}

// clientInfo captures the request metadata the audit trail records.
func clientInfo(c *gin.Context) services.ClientInfo {
	return services.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
