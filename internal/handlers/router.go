package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/services"
	"github.com/SAP-F-2025/enrollment-service/internal/utils"
)

const serviceName = "enrollment-service"

type HandlerManager struct {
	courseHandler       *CourseHandler
	registrationHandler *RegistrationHandler
	certificateHandler  *CertificateHandler
	healthHandler       *HealthHandler
	auth                Authenticator
	metricsHandler      http.Handler
}

// NewHandlerManager builds every handler. metricsHandler may be nil, in
// which case /metrics is not mounted.
func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	auth Authenticator,
	metricsHandler http.Handler,
) *HandlerManager {
	return &HandlerManager{
		courseHandler: NewCourseHandler(
			serviceManager.Course(),
			serviceManager.Registration(),
			serviceManager.Report(),
			logger,
		),
		registrationHandler: NewRegistrationHandler(serviceManager.Registration(), serviceManager.Certificate(), logger),
		certificateHandler:  NewCertificateHandler(serviceManager.Certificate(), logger),
		healthHandler:       NewHealthHandler(serviceManager, logger),
		auth:                auth,
		metricsHandler:      metricsHandler,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	staff := hm.auth.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)
	admin := hm.auth.RequireRoleMiddleware(models.RoleAdmin)

	v1 := router.Group("/api/v1")

	// Certificate verification is public
	v1.GET("/certificates/:code", hm.certificateHandler.VerifyCertificate)

	authed := v1.Group("")
	authed.Use(hm.auth.AuthMiddleware())
	{
		courses := authed.Group("/courses")
		{
			courses.GET("", hm.courseHandler.ListCourses)
			courses.POST("", staff, hm.courseHandler.CreateCourse)
			courses.PUT("/:id", staff, hm.courseHandler.UpdateCourse)
			courses.PUT("/:id/image", staff, hm.courseHandler.UpdateCourseImage)
			courses.DELETE("/:id", admin, hm.courseHandler.DeleteCourse)
			courses.GET("/:id", hm.courseHandler.GetCourse)
			courses.GET("/:id/lessons", hm.courseHandler.ListLessons)
			courses.GET("/:id/registrations", staff, hm.courseHandler.ListRegistrations)
			courses.GET("/:id/registrations/export", staff, hm.courseHandler.ExportRoster)
		}

		registrations := authed.Group("/registrations")
		{
			registrations.POST("", hm.registrationHandler.CreateRegistration)
			registrations.GET("/:id", hm.registrationHandler.GetRegistration)
			registrations.DELETE("/:id", admin, hm.registrationHandler.DeleteRegistration)
			registrations.POST("/:id/finish", staff, hm.registrationHandler.FinishCourse)
			registrations.POST("/:id/answers", hm.registrationHandler.CreateStudentAnswers)
		}

		authed.PUT("/lesson-progress/:id/watched", hm.registrationHandler.MarkLessonWatched)
	}

	router.GET("/health", hm.healthHandler.Health)
	if hm.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(hm.metricsHandler))
	}
}
