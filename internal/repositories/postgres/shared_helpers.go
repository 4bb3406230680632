package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
)

// SharedHelpers contains common database operations
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// conn returns the transaction if provided, otherwise the pool, bound to ctx
func (h *SharedHelpers) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return h.db.WithContext(ctx)
}

// DeleteScopedExcept deletes the rows of model under one parent whose ids are not in keepIDs.
// Dependent rows go with them through ON DELETE CASCADE.
func (h *SharedHelpers) DeleteScopedExcept(ctx context.Context, tx *gorm.DB, model interface{}, parentColumn, parentID string, keepIDs []string) error {
	query := h.conn(ctx, tx).Where(parentColumn+" = ?", parentID)
	if len(keepIDs) > 0 {
		query = query.Where("id NOT IN ?", keepIDs)
	}
	return query.Delete(model).Error
}

// Exists reports whether any row of model matches the condition
func (h *SharedHelpers) Exists(ctx context.Context, tx *gorm.DB, model interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	err := h.conn(ctx, tx).
		Model(model).
		Where(query, args...).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

// byPosition orders preloaded children by their ordinal
func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("created_at ASC")
}

// notFound maps gorm's missing-row error to repositories.ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, repositories.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// requireAffected turns an update or delete that touched nothing into ErrNotFound
func requireAffected(result *gorm.DB, what string) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, repositories.ErrNotFound)
	}
	return nil
}
