package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if err := e.helpers.conn(ctx, tx).Omit(clause.Associations).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	return nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	result := e.helpers.conn(ctx, tx).
		Model(exam).
		Select("title", "description").
		Updates(exam)
	return requireAffected(result, "exam")
}

func (e *ExamPostgreSQL) GetByCourseWithQuestions(ctx context.Context, tx *gorm.DB, courseID string) ([]models.Exam, error) {
	var exams []models.Exam
	err := e.helpers.conn(ctx, tx).
		Preload("Questions", byPosition).
		Preload("Questions.Options", byPosition).
		Where("course_id = ?", courseID).
		Order("created_at ASC").
		Find(&exams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get exams: %w", err)
	}
	return exams, nil
}

func (e *ExamPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]models.Exam, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var exams []models.Exam
	if err := e.helpers.conn(ctx, tx).Where("id IN ?", ids).Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("failed to get exams: %w", err)
	}
	return exams, nil
}

func (e *ExamPostgreSQL) DeleteByCourseExcept(ctx context.Context, tx *gorm.DB, courseID string, keepIDs []string) error {
	if err := e.helpers.DeleteScopedExcept(ctx, tx, &models.Exam{}, "course_id", courseID, keepIDs); err != nil {
		return fmt.Errorf("failed to delete exams: %w", err)
	}
	return nil
}
