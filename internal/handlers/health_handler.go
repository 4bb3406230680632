package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/enrollment-service/internal/services"
	"github.com/SAP-F-2025/enrollment-service/internal/utils"
)

type HealthHandler struct {
	BaseHandler
	services services.ServiceManager
}

func NewHealthHandler(sm services.ServiceManager, logger utils.Logger) *HealthHandler {
	return &HealthHandler{BaseHandler: NewBaseHandler(logger), services: sm}
}

// Health pings the database and cache
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.services.HealthCheck(c.Request.Context()); err != nil {
		h.LogError(c, err, "Health check failed")
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	body["status"] = "healthy"
	c.JSON(http.StatusOK, body)
}
