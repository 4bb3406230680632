package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
	"github.com/SAP-F-2025/enrollment-service/internal/services"
	"github.com/SAP-F-2025/enrollment-service/internal/utils"
)

type RegistrationHandler struct {
	BaseHandler
	registrationService services.RegistrationService
	certificateService  services.CertificateService
}

func NewRegistrationHandler(
	registrationService services.RegistrationService,
	certificateService services.CertificateService,
	logger utils.Logger,
) *RegistrationHandler {
	return &RegistrationHandler{
		BaseHandler:         NewBaseHandler(logger),
		registrationService: registrationService,
		certificateService:  certificateService,
	}
}

// CreateRegistration enrolls a student in a course
// @Summary Create registration
// @Tags registrations
// @Accept json
// @Produce json
// @Param registration body services.CreateRegistrationRequest true "Registration data"
// @Success 201 {object} models.Registration
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already enrolled"
// @Failure 422 {object} ErrorResponse "Ticket missing or used"
// @Router /registrations [post]
func (h *RegistrationHandler) CreateRegistration(c *gin.Context) {
	var req services.CreateRegistrationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating registration", "student_id", req.StudentID, "course_id", req.CourseID)
	registration, err := h.registrationService.CreateRegistration(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, registration)
}

// GetRegistration returns a registration. include=progress,answers,exam
// loads the optional relations.
// @Summary Get registration
// @Tags registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Param include query string false "Comma separated: progress, answers, exam"
// @Success 200 {object} models.Registration
// @Failure 404 {object} ErrorResponse
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) GetRegistration(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	registration, err := h.registrationService.GetRegistration(c.Request.Context(), id, parseInclude(c.Query("include")))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, registration)
}

func (h *RegistrationHandler) DeleteRegistration(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting registration", "registration_id", id)
	if err := h.registrationService.DeleteRegistration(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// FinishCourse records the exam result and issues the certificate
// @Summary Finish course
// @Tags registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param body body services.FinishCourseRequest true "Exam result and conclusion date"
// @Success 200 {object} services.CertificateResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse "Template unavailable"
// @Router /registrations/{id}/finish [post]
func (h *RegistrationHandler) FinishCourse(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.FinishCourseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Finishing course", "registration_id", id)
	certificate, err := h.certificateService.FinishCourse(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, certificate)
}

func (h *RegistrationHandler) CreateStudentAnswers(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.StudentAnswersRequest
	if !h.bindJSON(c, &req) {
		return
	}

	answers, err := h.registrationService.CreateStudentAnswers(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"answers": answers})
}

// MarkLessonWatched stamps a lesson progress row as watched now
// @Summary Mark lesson watched
// @Tags registrations
// @Produce json
// @Param id path string true "Lesson progress ID"
// @Success 200 {object} models.LessonProgress
// @Failure 404 {object} ErrorResponse
// @Router /lesson-progress/{id}/watched [put]
func (h *RegistrationHandler) MarkLessonWatched(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	progress, err := h.registrationService.UpdateLessonProgress(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

func parseInclude(raw string) repositories.RegistrationInclude {
	var include repositories.RegistrationInclude
	for _, part := range strings.Split(raw, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "progress", "lesson_progress":
			include.LessonProgress = true
		case "answers":
			include.Answers = true
		case "exam", "exams":
			include.Exam = true
		}
	}
	return include
}
