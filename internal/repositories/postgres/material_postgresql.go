package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
)

type MaterialPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewMaterialPostgreSQL(db *gorm.DB) repositories.MaterialRepository {
	return &MaterialPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (m *MaterialPostgreSQL) Create(ctx context.Context, tx *gorm.DB, material *models.Material) error {
	if err := m.helpers.conn(ctx, tx).Omit(clause.Associations).Create(material).Error; err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}
	return nil
}

func (m *MaterialPostgreSQL) Update(ctx context.Context, tx *gorm.DB, material *models.Material) error {
	result := m.helpers.conn(ctx, tx).
		Model(material).
		Select("file_name", "mime_type", "url", "position").
		Updates(material)
	return requireAffected(result, "material")
}

func (m *MaterialPostgreSQL) GetByCourse(ctx context.Context, tx *gorm.DB, courseID string) ([]models.Material, error) {
	var materials []models.Material
	err := byPosition(m.helpers.conn(ctx, tx)).
		Where("course_id = ?", courseID).
		Find(&materials).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get materials: %w", err)
	}
	return materials, nil
}

func (m *MaterialPostgreSQL) DeleteByCourseExcept(ctx context.Context, tx *gorm.DB, courseID string, keepIDs []string) error {
	if err := m.helpers.DeleteScopedExcept(ctx, tx, &models.Material{}, "course_id", courseID, keepIDs); err != nil {
		return fmt.Errorf("failed to delete materials: %w", err)
	}
	return nil
}
