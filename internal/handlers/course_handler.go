package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/enrollment-service/internal/services"
	"github.com/SAP-F-2025/enrollment-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const maxCourseImageSize = 5 << 20

type CourseHandler struct {
	BaseHandler
	courseService       services.CourseService
	registrationService services.RegistrationService
	reportService       services.ReportService
}

func NewCourseHandler(
	courseService services.CourseService,
	registrationService services.RegistrationService,
	reportService services.ReportService,
	logger utils.Logger,
) *CourseHandler {
	return &CourseHandler{
		BaseHandler:         NewBaseHandler(logger),
		courseService:       courseService,
		registrationService: registrationService,
		reportService:       reportService,
	}
}

// CreateCourse creates a course together with its lessons, exams and materials
// @Summary Create course
// @Tags courses
// @Accept json
// @Produce json
// @Param course body services.CreateCourseRequest true "Course data"
// @Success 201 {object} services.CourseResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /courses [post]
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req services.CreateCourseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	actor, err := GetUserFromContext(c)
	if err != nil {
		h.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	course, err := h.courseService.CreateCourse(c.Request.Context(), &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, course)
}

// UpdateCourse applies scalar changes and reconciles any nested collection
// present in the body. Absent collections are left alone; an empty array
// deletes every item.
// @Summary Update course
// @Tags courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param course body services.UpdateCourseRequest true "Fields to change"
// @Success 200 {object} services.CourseResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /courses/{id} [put]
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateCourseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	actor, err := GetUserFromContext(c)
	if err != nil {
		h.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	h.LogRequest(c, "Updating course", "course_id", id)
	course, err := h.courseService.UpdateCourse(c.Request.Context(), id, &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// GetCourse returns a course with its nested tree
// @Summary Get course
// @Tags courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} models.Course
// @Failure 404 {object} ErrorResponse
// @Router /courses/{id} [get]
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	course, err := h.courseService.GetCourse(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// ListCourses returns every course ordered by name
// @Summary List courses
// @Tags courses
// @Produce json
// @Success 200 {array} services.CourseSummary
// @Router /courses [get]
func (h *CourseHandler) ListCourses(c *gin.Context) {
	courses, err := h.courseService.ListCourses(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"courses": courses, "total": len(courses)})
}

// UpdateCourseImage replaces the course cover with the multipart "image" file
// @Summary Update course image
// @Tags courses
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param image formData file true "PNG, JPEG or WebP image"
// @Success 200 {object} models.Course
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /courses/{id}/image [put]
func (h *CourseHandler) UpdateCourseImage(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Image is required", err.Error())
		return
	}
	if fh.Size > maxCourseImageSize {
		h.RespondWithError(c, http.StatusBadRequest, "Image is too large", fmt.Sprintf("limit is %d bytes", maxCourseImageSize))
		return
	}

	actor, err := GetUserFromContext(c)
	if err != nil {
		h.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	src, err := fh.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid image upload", err.Error())
		return
	}
	defer src.Close()

	// trust the bytes, not the client's header
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid image upload", err.Error())
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)

	h.LogRequest(c, "Updating course image", "course_id", id, "content_type", contentType, "size", fh.Size)
	course, err := h.courseService.UpdateCourseImage(c.Request.Context(), id, io.MultiReader(bytes.NewReader(head), src), contentType, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

func (h *CourseHandler) ListLessons(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	lessons, err := h.courseService.ListLessons(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lessons": lessons})
}

// DeleteCourse removes a course and everything hanging off it
// @Summary Delete course
// @Tags courses
// @Param id path string true "Course ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /courses/{id} [delete]
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	actor, err := GetUserFromContext(c)
	if err != nil {
		h.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	h.LogRequest(c, "Deleting course", "course_id", id)
	if err := h.courseService.DeleteCourse(c.Request.Context(), id, actor); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *CourseHandler) ListRegistrations(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	registrations, err := h.registrationService.ListCourseRegistrations(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"registrations": registrations, "total": len(registrations)})
}

// ExportRoster streams the course roster as an XLSX workbook
// @Summary Export course roster
// @Tags courses
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Course ID"
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse
// @Router /courses/{id}/registrations/export [get]
func (h *CourseHandler) ExportRoster(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	data, err := h.reportService.ExportCourseRoster(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="roster-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}
