package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// Every method takes an optional transaction; a nil tx runs on the pool.

type CourseRepository interface {
	Create(ctx context.Context, tx *gorm.DB, course *models.Course) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error)
	// GetWithDetails loads lessons, materials and exams with questions and options, all ordered.
	GetWithDetails(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error)
	Update(ctx context.Context, tx *gorm.DB, course *models.Course) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	ExistsByID(ctx context.Context, tx *gorm.DB, id string) (bool, error)
	// List returns every course ordered by name, without nested collections.
	List(ctx context.Context, tx *gorm.DB) ([]models.Course, error)
}

type LessonRepository interface {
	Create(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error
	Update(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error
	GetByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]models.Lesson, error)
	// DeleteByCourseExcept removes the course's lessons whose ids are not in keepIDs.
	DeleteByCourseExcept(ctx context.Context, tx *gorm.DB, courseID string, keepIDs []string) error
	InvalidateCourse(ctx context.Context, courseID string)
}

type MaterialRepository interface {
	Create(ctx context.Context, tx *gorm.DB, material *models.Material) error
	Update(ctx context.Context, tx *gorm.DB, material *models.Material) error
	GetByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]models.Material, error)
	DeleteByCourseExcept(ctx context.Context, tx *gorm.DB, courseID string, keepIDs []string) error
}

type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	// GetByCourseWithQuestions loads exams with their questions and options.
	GetByCourseWithQuestions(ctx context.Context, tx *gorm.DB, courseID string) ([]models.Exam, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]models.Exam, error)
	DeleteByCourseExcept(ctx context.Context, tx *gorm.DB, courseID string, keepIDs []string) error
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]models.Question, error)
	DeleteByExamExcept(ctx context.Context, tx *gorm.DB, examID string, keepIDs []string) error
}

type QuestionOptionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, option *models.QuestionOption) error
	Update(ctx context.Context, tx *gorm.DB, option *models.QuestionOption) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]models.QuestionOption, error)
	DeleteByQuestionExcept(ctx context.Context, tx *gorm.DB, questionID string, keepIDs []string) error
}

type StudentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, student *models.Student) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Student, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Student, error)
	ExistsByID(ctx context.Context, tx *gorm.DB, id string) (bool, error)
}

type TicketRepository interface {
	Create(ctx context.Context, tx *gorm.DB, ticket *models.Ticket) error
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Ticket, error)
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Ticket, error)
	// MarkUsed flips used from false to true and reports whether this call did it.
	MarkUsed(ctx context.Context, tx *gorm.DB, id string) (bool, error)
}

// RegistrationInclude selects optional relations on registration reads.
type RegistrationInclude struct {
	LessonProgress bool
	Answers        bool
	// Exam loads the course with its exams, questions and options.
	Exam bool
}

// DegreeIssue is the final write of a finished course.
type DegreeIssue struct {
	Code           string
	Link           string
	ExamResult     float64
	ConclusionDate time.Time
}

type RegistrationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, registration *models.Registration) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Registration, error)
	GetWithIncludes(ctx context.Context, tx *gorm.DB, id string, include RegistrationInclude) (*models.Registration, error)
	// GetWithStudentAndCourse preloads the student and course; either missing yields ErrNotFound.
	GetWithStudentAndCourse(ctx context.Context, tx *gorm.DB, id string) (*models.Registration, error)
	GetByDegreeCode(ctx context.Context, tx *gorm.DB, code string) (*models.Registration, error)
	ExistsByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID string) (bool, error)
	// ListByCourse preloads each student and its lesson progress.
	ListByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]models.Registration, error)
	ListIDsByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]string, error)
	// MarkDegreePending reserves the code a certificate is about to be stored
	// under and returns the reservation it replaced, nil when there was none.
	MarkDegreePending(ctx context.Context, tx *gorm.DB, id, code string) (*string, error)
	// ClearDegreePending drops the reservation when it still holds code. A
	// previously issued certificate stays valid.
	ClearDegreePending(ctx context.Context, tx *gorm.DB, id, code string) error
	// IssueDegree promotes the pending code and returns the affected row count,
	// zero when another finish replaced the reservation.
	IssueDegree(ctx context.Context, tx *gorm.DB, id string, issue DegreeIssue) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, id string) error
}

type LessonProgressRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, rows []models.LessonProgress) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.LessonProgress, error)
	GetByRegistration(ctx context.Context, tx *gorm.DB, registrationID string) ([]models.LessonProgress, error)
	MarkWatched(ctx context.Context, tx *gorm.DB, id string, at time.Time) error
}

type StudentAnswerRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []models.StudentAnswer) error
	GetByRegistration(ctx context.Context, tx *gorm.DB, registrationID string) ([]models.StudentAnswer, error)
}
