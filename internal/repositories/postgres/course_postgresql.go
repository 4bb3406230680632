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

// courseColumns are the scalar columns an update may write
var courseColumns = []string{
	"name", "visible", "description", "audience", "requirements",
	"price", "duration", "support_hours", "instructor_id", "image_url",
}

type CoursePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewCoursePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.CourseRepository {
	return &CoursePostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// Create inserts the course row only; nested collections are written by their own repositories
func (c *CoursePostgreSQL) Create(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	if err := c.helpers.conn(ctx, tx).Omit(clause.Associations).Create(course).Error; err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	c.cacheManager.InvalidateCourseLists(ctx)
	return nil
}

func (c *CoursePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error) {
	var course models.Course
	if err := c.helpers.conn(ctx, tx).First(&course, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "course")
	}
	return &course, nil
}

// GetWithDetails loads the full course tree; reads outside a transaction are cached
func (c *CoursePostgreSQL) GetWithDetails(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error) {
	load := func() (interface{}, error) {
		var course models.Course
		err := c.helpers.conn(ctx, tx).
			Preload("Lessons", byPosition).
			Preload("Materials", byPosition).
			Preload("Exams", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
			Preload("Exams.Questions", byPosition).
			Preload("Exams.Questions.Options", byPosition).
			First(&course, "id = ?", id).Error
		if err != nil {
			return nil, notFound(err, "course")
		}
		return &course, nil
	}

	if tx != nil {
		course, err := load()
		if err != nil {
			return nil, err
		}
		return course.(*models.Course), nil
	}

	var course models.Course
	if err := c.cacheManager.Course.CacheOrExecute(ctx, id, &course, cache.CourseCacheConfig.TTL, load); err != nil {
		return nil, err
	}
	return &course, nil
}

// Update writes the scalar columns only; children are reconciled separately
func (c *CoursePostgreSQL) Update(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	result := c.helpers.conn(ctx, tx).
		Model(course).
		Select(courseColumns).
		Updates(course)
	if err := requireAffected(result, "course"); err != nil {
		return err
	}
	c.cacheManager.InvalidateCourse(ctx, course.ID)
	return nil
}

func (c *CoursePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	result := c.helpers.conn(ctx, tx).Delete(&models.Course{}, "id = ?", id)
	if err := requireAffected(result, "course"); err != nil {
		return err
	}
	c.cacheManager.InvalidateCourse(ctx, id)
	return nil
}

func (c *CoursePostgreSQL) ExistsByID(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	return c.helpers.Exists(ctx, tx, &models.Course{}, "id = ?", id)
}

func (c *CoursePostgreSQL) List(ctx context.Context, tx *gorm.DB) ([]models.Course, error) {
	load := func() (interface{}, error) {
		var courses []models.Course
		err := c.helpers.conn(ctx, tx).
			Order("name ASC").
			Order("created_at ASC").
			Find(&courses).Error
		if err != nil {
			return nil, fmt.Errorf("failed to list courses: %w", err)
		}
		return courses, nil
	}

	if tx != nil {
		courses, err := load()
		if err != nil {
			return nil, err
		}
		return courses.([]models.Course), nil
	}

	var courses []models.Course
	if err := c.cacheManager.CourseList.CacheOrExecute(ctx, "all", &courses, cache.CourseListCacheConfig.TTL, load); err != nil {
		return nil, err
	}
	return courses, nil
}
