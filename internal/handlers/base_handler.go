package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SAP-F-2025/enrollment-service/internal/services"
	"github.com/SAP-F-2025/enrollment-service/internal/utils"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// log returns the request scoped logger when the context carries one
func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	return utils.FromContext(c.Request.Context(), h.logger)
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	h.log(c).Info(msg, append([]any{"method", c.Request.Method, "path", c.FullPath()}, args...)...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	h.log(c).Error(msg, append([]any{"error", err}, args...)...)
}

func (h *BaseHandler) RespondWithError(c *gin.Context, status int, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{Message: message, Details: details})
}

// parseIDParam reads a uuid path parameter, answering 400 when malformed
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid "+name, err.Error())
		return "", false
	}
	return id, true
}

// bindJSON decodes the body, answering 400 on malformed payloads
func (h *BaseHandler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return false
	}
	return true
}

// handleServiceError maps service errors onto HTTP statuses
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var (
		verrs   services.ValidationErrors
		ruleErr *services.BusinessRuleError
		permErr *services.PermissionError
	)

	switch {
	case errors.As(err, &verrs):
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", verrs)
	case errors.Is(err, services.ErrValidationFailed):
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err.Error())
	case errors.Is(err, services.ErrNestedItemNotFound):
		h.RespondWithError(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, services.ErrNotFound):
		h.RespondWithError(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, services.ErrAlreadyEnrolled):
		h.RespondWithError(c, http.StatusConflict, err.Error(), nil)
	case errors.As(err, &ruleErr):
		h.RespondWithError(c, http.StatusUnprocessableEntity, ruleErr.Message, ruleErr)
	case errors.As(err, &permErr):
		h.RespondWithError(c, http.StatusForbidden, "Forbidden", permErr.Reason)
	case errors.Is(err, services.ErrTemplateUnavailable):
		h.LogError(c, err, "Certificate template unavailable")
		h.RespondWithError(c, http.StatusBadGateway, "Certificate template unavailable", nil)
	default:
		h.LogError(c, err, "Unhandled service error")
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}
