package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guided-traffic/meetup-client/api"
	"github.com/guided-traffic/meetup-client/models"
)

// respondError maps a domain error onto an HTTP status
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var statusErr *api.StatusError
	switch {
	case errors.Is(err, models.ErrInvalidPayload):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotConnected):
		status = http.StatusConflict
	case errors.Is(err, models.ErrQueueFull):
		status = http.StatusServiceUnavailable
	case errors.Is(err, models.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.As(err, &statusErr):
		status = http.StatusBadGateway
		if statusErr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
	}

	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}
