package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/services"
)

// respond writes the standard success envelope.
func respond(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// respondList writes a success envelope with a count field for slices.
func respondList(c *gin.Context, data interface{}, count int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   count,
		"data":    data,
	})
}

// respondError maps a service error onto the envelope and status code.
func respondError(c *gin.Context, err error) {
	var (
		validationErr   *models.ValidationError
		notFoundErr     *models.NotFoundError
		invalidStateErr *models.InvalidStateError
		conflictErr     *models.ConflictError
		dependencyErr   *models.DependencyError
	)

	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		message = validationErr.Error()
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
		message = notFoundErr.Error()
	case errors.Is(err, models.ErrNotOwner):
		status = http.StatusForbidden
		message = err.Error()
	case errors.As(err, &invalidStateErr):
		status = http.StatusConflict
		message = invalidStateErr.Error()
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
		message = conflictErr.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		message = err.Error()
	case errors.As(err, &dependencyErr):
		log.Printf("Dependency failure: %v", err)
	default:
		log.Printf("Unhandled error: %v", err)
	}

	c.JSON(status, gin.H{"success": false, "error": message})
}
