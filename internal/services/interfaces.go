package services

import (
	"context"
	"io"
	"time"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
	"github.com/SAP-F-2025/enrollment-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateCourseRequest = validator.CourseCreateRequest
type UpdateCourseRequest = validator.CourseUpdateRequest
type LessonInput = validator.LessonInput
type ExamInput = validator.ExamInput
type QuestionInput = validator.QuestionInput
type OptionInput = validator.OptionInput
type MaterialInput = validator.MaterialInput

type CreateRegistrationRequest = validator.RegistrationCreateRequest
type StudentAnswersRequest = validator.StudentAnswersRequest
type StudentAnswerInput = validator.StudentAnswerInput
type FinishCourseRequest = validator.FinishCourseRequest

type CourseResponse struct {
	*models.Course
	Changes *ReconcileResult `json:"changes,omitempty"`
}

// CourseSummary is a course row in listings
type CourseSummary struct {
	*models.Course
	InstructorName *string `json:"instructor_name"`
}

type CertificateResponse struct {
	RegistrationID string              `json:"registration_id"`
	Code           string              `json:"code"`
	Link           string              `json:"link"`
	ExamResult     float64             `json:"exam_result"`
	ConclusionDate string              `json:"conclusion_date"`
	Status         models.DegreeStatus `json:"status"`
}

// CertificateVerification is the public view of an issued certificate
type CertificateVerification struct {
	Code           string    `json:"code"`
	StudentName    string    `json:"student_name"`
	CourseName     string    `json:"course_name"`
	Duration       string    `json:"duration"`
	ExamResult     *float64  `json:"exam_result"`
	ConclusionDate string    `json:"conclusion_date"`
	Link           string    `json:"link"`
	IssuedAt       time.Time `json:"issued_at"`
}

// ===== SERVICE INTERFACES =====

// CourseService manages courses and their nested lessons, exams and materials.
// actor may be nil for system callers, which skip ownership checks.
type CourseService interface {
	CreateCourse(ctx context.Context, req *CreateCourseRequest, actor *models.User) (*CourseResponse, error)
	UpdateCourse(ctx context.Context, id string, req *UpdateCourseRequest, actor *models.User) (*CourseResponse, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	DeleteCourse(ctx context.Context, id string, actor *models.User) error
	ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error)
	ListCourses(ctx context.Context) ([]CourseSummary, error)
	UpdateCourseImage(ctx context.Context, id string, image io.Reader, contentType string, actor *models.User) (*models.Course, error)
}

type RegistrationService interface {
	CreateRegistration(ctx context.Context, req *CreateRegistrationRequest) (*models.Registration, error)
	GetRegistration(ctx context.Context, id string, include repositories.RegistrationInclude) (*models.Registration, error)
	DeleteRegistration(ctx context.Context, id string) error
	ListCourseRegistrations(ctx context.Context, courseID string) ([]models.Registration, error)
	UpdateLessonProgress(ctx context.Context, progressID string) (*models.LessonProgress, error)
	CreateStudentAnswers(ctx context.Context, registrationID string, req *StudentAnswersRequest) ([]models.StudentAnswer, error)
}

type CertificateService interface {
	FinishCourse(ctx context.Context, registrationID string, req *FinishCourseRequest) (*CertificateResponse, error)
	VerifyCertificate(ctx context.Context, code string) (*CertificateVerification, error)
}

type ReportService interface {
	// ExportCourseRoster renders the course's registrations as an XLSX workbook
	ExportCourseRoster(ctx context.Context, courseID string) ([]byte, error)
}

// ServiceManager owns service construction and lifecycle
type ServiceManager interface {
	Initialize(ctx context.Context) error

	Course() CourseService
	Registration() RegistrationService
	Certificate() CertificateService
	Report() ReportService

	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
