package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := q.helpers.conn(ctx, tx).Omit(clause.Associations).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	result := q.helpers.conn(ctx, tx).
		Model(question).
		Select("prompt", "position").
		Updates(question)
	return requireAffected(result, "question")
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var questions []models.Question
	if err := q.helpers.conn(ctx, tx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) DeleteByExamExcept(ctx context.Context, tx *gorm.DB, examID string, keepIDs []string) error {
	if err := q.helpers.DeleteScopedExcept(ctx, tx, &models.Question{}, "exam_id", examID, keepIDs); err != nil {
		return fmt.Errorf("failed to delete questions: %w", err)
	}
	return nil
}

type QuestionOptionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewQuestionOptionPostgreSQL(db *gorm.DB) repositories.QuestionOptionRepository {
	return &QuestionOptionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (o *QuestionOptionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, option *models.QuestionOption) error {
	if err := o.helpers.conn(ctx, tx).Omit(clause.Associations).Create(option).Error; err != nil {
		return fmt.Errorf("failed to create question option: %w", err)
	}
	return nil
}

func (o *QuestionOptionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, option *models.QuestionOption) error {
	result := o.helpers.conn(ctx, tx).
		Model(option).
		Select("answer", "is_correct", "position").
		Updates(option)
	return requireAffected(result, "question option")
}

func (o *QuestionOptionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]models.QuestionOption, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var options []models.QuestionOption
	if err := o.helpers.conn(ctx, tx).Where("id IN ?", ids).Find(&options).Error; err != nil {
		return nil, fmt.Errorf("failed to get question options: %w", err)
	}
	return options, nil
}

func (o *QuestionOptionPostgreSQL) DeleteByQuestionExcept(ctx context.Context, tx *gorm.DB, questionID string, keepIDs []string) error {
	if err := o.helpers.DeleteScopedExcept(ctx, tx, &models.QuestionOption{}, "question_id", questionID, keepIDs); err != nil {
		return fmt.Errorf("failed to delete question options: %w", err)
	}
	return nil
}
