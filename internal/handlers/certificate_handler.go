package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/enrollment-service/internal/services"
	"github.com/SAP-F-2025/enrollment-service/internal/utils"
)

type CertificateHandler struct {
	BaseHandler
	service services.CertificateService
}

func NewCertificateHandler(service services.CertificateService, logger utils.Logger) *CertificateHandler {
	return &CertificateHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// VerifyCertificate is public: anyone holding a validation code can check it
// @Summary Verify certificate
// @Tags certificates
// @Produce json
// @Param code path string true "Validation code"
// @Success 200 {object} services.CertificateVerification
// @Failure 404 {object} ErrorResponse
// @Router /certificates/{code} [get]
func (h *CertificateHandler) VerifyCertificate(c *gin.Context) {
	code := c.Param("code")
	if code == "" || len(code) > 32 {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid code", nil)
		return
	}

	verification, err := h.service.VerifyCertificate(c.Request.Context(), code)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, verification)
}
