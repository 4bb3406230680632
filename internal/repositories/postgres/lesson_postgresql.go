package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/enrollment-service/internal/cache"
	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
)

type LessonPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewLessonPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.LessonRepository {
	return &LessonPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (l *LessonPostgreSQL) Create(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error {
	if err := l.helpers.conn(ctx, tx).Omit(clause.Associations).Create(lesson).Error; err != nil {
		return fmt.Errorf("failed to create lesson: %w", err)
	}
	return nil
}

func (l *LessonPostgreSQL) Update(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error {
	result := l.helpers.conn(ctx, tx).
		Model(lesson).
		Select("title", "description", "position", "video_url").
		Updates(lesson)
	return requireAffected(result, "lesson")
}

// GetByCourse returns lessons in course order; the pool read is cached per course
func (l *LessonPostgreSQL) GetByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]models.Lesson, error) {
	load := func() (interface{}, error) {
		var lessons []models.Lesson
		err := byPosition(l.helpers.conn(ctx, tx)).
			Where("course_id = ?", courseID).
			Find(&lessons).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get lessons: %w", err)
		}
		return lessons, nil
	}

	if tx != nil {
		lessons, err := load()
		if err != nil {
			return nil, err
		}
		return lessons.([]models.Lesson), nil
	}

	var lessons []models.Lesson
	if err := l.cacheManager.Lesson.CacheOrExecute(ctx, courseID, &lessons, cache.LessonCacheConfig.TTL, load); err != nil {
		return nil, err
	}
	return lessons, nil
}

func (l *LessonPostgreSQL) DeleteByCourseExcept(ctx context.Context, tx *gorm.DB, courseID string, keepIDs []string) error {
	if err := l.helpers.DeleteScopedExcept(ctx, tx, &models.Lesson{}, "course_id", courseID, keepIDs); err != nil {
		return fmt.Errorf("failed to delete lessons: %w", err)
	}
	return nil
}

// InvalidateCourse drops cached reads of the course; call after the writing transaction commits
func (l *LessonPostgreSQL) InvalidateCourse(ctx context.Context, courseID string) {
	l.cacheManager.InvalidateCourse(ctx, courseID)
}
