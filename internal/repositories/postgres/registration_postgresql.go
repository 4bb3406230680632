package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
)

type RegistrationPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewRegistrationPostgreSQL(db *gorm.DB) repositories.RegistrationRepository {
	return &RegistrationPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

// progressByLessonOrder preloads progress rows in the order of their lessons
func progressByLessonOrder(db *gorm.DB) *gorm.DB {
	return db.
		Select("lesson_progress.*").
		Joins("JOIN lessons ON lessons.id = lesson_progress.lesson_id").
		Order("lessons.position ASC")
}

func (r *RegistrationPostgreSQL) Create(ctx context.Context, tx *gorm.DB, registration *models.Registration) error {
	if err := r.helpers.conn(ctx, tx).Omit(clause.Associations).Create(registration).Error; err != nil {
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *RegistrationPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Registration, error) {
	var registration models.Registration
	if err := r.helpers.conn(ctx, tx).First(&registration, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "registration")
	}
	return &registration, nil
}

func (r *RegistrationPostgreSQL) GetWithIncludes(ctx context.Context, tx *gorm.DB, id string, include repositories.RegistrationInclude) (*models.Registration, error) {
	query := r.helpers.conn(ctx, tx)
	if include.LessonProgress {
		query = query.
			Preload("LessonProgress", progressByLessonOrder).
			Preload("LessonProgress.Lesson")
	}
	if include.Exam {
		query = query.
			Preload("Course").
			Preload("Course.Exams", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
			Preload("Course.Exams.Questions", byPosition).
			Preload("Course.Exams.Questions.Options", byPosition)
	} else if include.LessonProgress {
		query = query.Preload("Course")
	}

	var registration models.Registration
	if err := query.First(&registration, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "registration")
	}
	return &registration, nil
}

func (r *RegistrationPostgreSQL) GetWithStudentAndCourse(ctx context.Context, tx *gorm.DB, id string) (*models.Registration, error) {
	var registration models.Registration
	err := r.helpers.conn(ctx, tx).
		Preload("Student").
		Preload("Course").
		First(&registration, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "registration")
	}
	if registration.Student == nil {
		return nil, fmt.Errorf("student of registration: %w", repositories.ErrNotFound)
	}
	if registration.Course == nil {
		return nil, fmt.Errorf("course of registration: %w", repositories.ErrNotFound)
	}
	return &registration, nil
}

// GetByDegreeCode resolves an issued certificate code
func (r *RegistrationPostgreSQL) GetByDegreeCode(ctx context.Context, tx *gorm.DB, code string) (*models.Registration, error) {
	var registration models.Registration
	err := r.helpers.conn(ctx, tx).
		Preload("Student").
		Preload("Course").
		Where("degree_code = ? AND degree_status = ?", code, models.DegreeIssued).
		First(&registration).Error
	if err != nil {
		return nil, notFound(err, "certificate")
	}
	return &registration, nil
}

func (r *RegistrationPostgreSQL) ExistsByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID string) (bool, error) {
	return r.helpers.Exists(ctx, tx, &models.Registration{}, "student_id = ? AND course_id = ?", studentID, courseID)
}

func (r *RegistrationPostgreSQL) ListByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]models.Registration, error) {
	var registrations []models.Registration
	err := r.helpers.conn(ctx, tx).
		Preload("Student").
		Preload("LessonProgress").
		Where("course_id = ?", courseID).
		Order("register_date ASC").
		Order("created_at ASC").
		Find(&registrations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return registrations, nil
}

func (r *RegistrationPostgreSQL) ListIDsByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]string, error) {
	var ids []string
	err := r.helpers.conn(ctx, tx).
		Model(&models.Registration{}).
		Where("course_id = ?", courseID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list registration ids: %w", err)
	}
	return ids, nil
}

func (r *RegistrationPostgreSQL) MarkDegreePending(ctx context.Context, tx *gorm.DB, id, code string) (*string, error) {
	db := r.helpers.conn(ctx, tx)

	var current models.Registration
	if err := db.Select("id", "pending_degree_code").First(&current, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "registration")
	}

	result := db.
		Model(&models.Registration{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"pending_degree_code": code,
			"degree_status":       models.DegreePending,
		})
	if err := requireAffected(result, "registration"); err != nil {
		return nil, err
	}
	return current.PendingDegreeCode, nil
}

func (r *RegistrationPostgreSQL) ClearDegreePending(ctx context.Context, tx *gorm.DB, id, code string) error {
	status := gorm.Expr("CASE WHEN degree_code IS NULL THEN ? ELSE ? END", models.DegreeNone, models.DegreeIssued)
	return r.helpers.conn(ctx, tx).
		Model(&models.Registration{}).
		Where("id = ? AND pending_degree_code = ?", id, code).
		Updates(map[string]interface{}{
			"pending_degree_code": nil,
			"degree_status":       status,
		}).Error
}

func (r *RegistrationPostgreSQL) IssueDegree(ctx context.Context, tx *gorm.DB, id string, issue repositories.DegreeIssue) (int64, error) {
	result := r.helpers.conn(ctx, tx).
		Model(&models.Registration{}).
		Where("id = ? AND pending_degree_code = ?", id, issue.Code).
		Updates(map[string]interface{}{
			"degree_code":         issue.Code,
			"pending_degree_code": nil,
			"degree_status":       models.DegreeIssued,
			"degree_link":         issue.Link,
			"exam_result":         issue.ExamResult,
			"conclusion_date":     datatypes.Date(issue.ConclusionDate),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to issue degree: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *RegistrationPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	result := r.helpers.conn(ctx, tx).Delete(&models.Registration{}, "id = ?", id)
	return requireAffected(result, "registration")
}

type LessonProgressPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewLessonProgressPostgreSQL(db *gorm.DB) repositories.LessonProgressRepository {
	return &LessonProgressPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (p *LessonProgressPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, rows []models.LessonProgress) error {
	if len(rows) == 0 {
		return nil
	}
	if err := p.helpers.conn(ctx, tx).Omit(clause.Associations).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("failed to create lesson progress: %w", err)
	}
	return nil
}

func (p *LessonProgressPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.LessonProgress, error) {
	var progress models.LessonProgress
	if err := p.helpers.conn(ctx, tx).First(&progress, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "lesson progress")
	}
	return &progress, nil
}

func (p *LessonProgressPostgreSQL) GetByRegistration(ctx context.Context, tx *gorm.DB, registrationID string) ([]models.LessonProgress, error) {
	var rows []models.LessonProgress
	err := progressByLessonOrder(p.helpers.conn(ctx, tx)).
		Where("lesson_progress.registration_id = ?", registrationID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}
	return rows, nil
}

// MarkWatched stamps the row; repeating it only moves the timestamp
func (p *LessonProgressPostgreSQL) MarkWatched(ctx context.Context, tx *gorm.DB, id string, at time.Time) error {
	result := p.helpers.conn(ctx, tx).
		Model(&models.LessonProgress{}).
		Where("id = ?", id).
		Update("watched_at", at)
	return requireAffected(result, "lesson progress")
}

type StudentAnswerPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewStudentAnswerPostgreSQL(db *gorm.DB) repositories.StudentAnswerRepository {
	return &StudentAnswerPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (a *StudentAnswerPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []models.StudentAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	if err := a.helpers.conn(ctx, tx).CreateInBatches(answers, 100).Error; err != nil {
		return fmt.Errorf("failed to create student answers: %w", err)
	}
	return nil
}

func (a *StudentAnswerPostgreSQL) GetByRegistration(ctx context.Context, tx *gorm.DB, registrationID string) ([]models.StudentAnswer, error) {
	var answers []models.StudentAnswer
	err := a.helpers.conn(ctx, tx).
		Where("registration_id = ?", registrationID).
		Order("created_at ASC").
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get student answers: %w", err)
	}
	return answers, nil
}
